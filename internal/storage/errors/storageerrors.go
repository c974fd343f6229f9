package storerrors

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")

	ErrBookNoExist = errors.New("book does not exist")

	ErrReviewNoExist = errors.New("review does not exist")
	ErrReviewExists  = errors.New("review already exists")
)
