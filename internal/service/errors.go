package service

import "errors"

// Error kinds. Every error returned by Service wraps exactly one of them.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrAuth       = errors.New("unauthorized")
	ErrInternal   = errors.New("internal error")
)

// Error is a caller-facing failure of a given kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

var (
	ErrDuplicateEmail     = &Error{Kind: ErrConflict, Msg: "user already exists"}
	ErrDuplicateReview    = &Error{Kind: ErrConflict, Msg: "you already reviewed this book"}
	ErrInvalidCredentials = &Error{Kind: ErrAuth, Msg: "invalid credentials"}
	ErrForbidden          = &Error{Kind: ErrAuth, Msg: "not authorized to change this review"}
	ErrInvalidRating      = &Error{Kind: ErrValidation, Msg: "rating must be between 1 and 5"}
	ErrInvalidPage        = &Error{Kind: ErrValidation, Msg: "page and limit must be positive integers"}
	ErrPasswordTooLong    = &Error{Kind: ErrValidation, Msg: "password is too long"}
	ErrBookNotFound       = &Error{Kind: ErrNotFound, Msg: "book not found"}
	ErrReviewNotFound     = &Error{Kind: ErrNotFound, Msg: "review not found"}
	ErrUserNotFound       = &Error{Kind: ErrNotFound, Msg: "user not found"}
)
