package consts

import "time"

const (
	DBCtxTimeout = 3 * time.Second

	// BcryptCost is the work factor for stored password hashes.
	BcryptCost = 10

	TokenTTL = time.Hour

	DefaultPage     = 1
	DefaultPageSize = 5

	MinRating = 1
	MaxRating = 5
)
