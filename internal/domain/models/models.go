package models

import "time"

type User struct {
	UID       string    `json:"uuid"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Pass      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type Book struct {
	BID         string    `json:"bid"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Genre       string    `json:"genre,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Review references its user and book by id only.
type Review struct {
	ReviewID  string    `json:"review_id"`
	UserID    string    `json:"user_id"`
	BookID    string    `json:"book_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReviewAuthor is the public identity of a reviewer.
type ReviewAuthor struct {
	UID      string `json:"uuid"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type ReviewWithAuthor struct {
	Review
	User ReviewAuthor `json:"user"`
}

// RatingSummary is computed over every review of a book.
type RatingSummary struct {
	Average *float64
	Count   int
}

type BookDetails struct {
	Book          Book               `json:"book"`
	AverageRating *float64           `json:"averageRating"`
	ReviewCount   int                `json:"reviewCount"`
	Page          int                `json:"page"`
	Limit         int                `json:"limit"`
	Reviews       []ReviewWithAuthor `json:"reviews"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

type BookRequest struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author" validate:"required"`
	Genre       string `json:"genre"`
	Description string `json:"description"`
}

// ReviewRequest leaves rating checks to the review ledger, which runs them
// after the book and duplicate checks.
type ReviewRequest struct {
	Rating  *int   `json:"rating"`
	Comment string `json:"comment"`
}

// ReviewUpdateRequest applies only the fields that are present.
type ReviewUpdateRequest struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}
