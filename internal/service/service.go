// Package service holds the account flow (registration, login, current user),
// the book catalog and the review ledger. It talks to persistence only through
// the Storage interface and never returns raw storage errors.
package service

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/azaliaz/bookly/review-service/internal/domain/consts"
	"github.com/azaliaz/bookly/review-service/internal/domain/models"
	"github.com/azaliaz/bookly/review-service/internal/logger"
	"github.com/azaliaz/bookly/review-service/internal/metrics"
	storerrors "github.com/azaliaz/bookly/review-service/internal/storage/errors"
)

type Storage interface {
	SaveUser(ctx context.Context, user models.User) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUser(ctx context.Context, uid string) (models.User, error)

	SaveBook(ctx context.Context, book models.Book) (models.Book, error)
	GetBooks(ctx context.Context) ([]models.Book, error)
	GetBook(ctx context.Context, bid string) (models.Book, error)

	FindReview(ctx context.Context, uid, bid string) (models.Review, error)
	SaveReview(ctx context.Context, review models.Review) (models.Review, error)
	GetReview(ctx context.Context, rid string) (models.Review, error)
	UpdateReview(ctx context.Context, review models.Review) (models.Review, error)
	DeleteReview(ctx context.Context, rid string) error
	GetBookReviews(ctx context.Context, bid string, offset, limit int) ([]models.ReviewWithAuthor, error)
	GetBookRating(ctx context.Context, bid string) (models.RatingSummary, error)
}

type TokenIssuer interface {
	Issue(uid string) (string, error)
}

type Service struct {
	storage Storage
	tokens  TokenIssuer
	cost    int
}

func New(stor Storage, tokens TokenIssuer) *Service {
	return &Service{
		storage: stor,
		tokens:  tokens,
		cost:    consts.BcryptCost,
	}
}

// dummyHash is compared against when the email is unknown, so a failed login
// costs the same whether or not the account exists.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("no-such-user"), consts.BcryptCost)
	return hash
})

func internal(err error, msg string) error {
	logger.Get().Error().Err(err).Msg(msg)
	return ErrInternal
}

func validRating(rating int) bool {
	return rating >= consts.MinRating && rating <= consts.MaxRating
}

func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (resp models.AuthResponse, err error) {
	defer func() { metrics.ObserveAuth("register", err) }()

	_, err = s.storage.GetUserByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return models.AuthResponse{}, ErrDuplicateEmail
	case !errors.Is(err, storerrors.ErrUserNotFound):
		return models.AuthResponse{}, internal(err, "lookup user by email failed")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return models.AuthResponse{}, ErrPasswordTooLong
		}
		return models.AuthResponse{}, internal(err, "hash password failed")
	}

	user, err := s.storage.SaveUser(ctx, models.User{
		Username: req.Username,
		Email:    req.Email,
		Pass:     string(hash),
	})
	if err != nil {
		if errors.Is(err, storerrors.ErrUserExists) {
			return models.AuthResponse{}, ErrDuplicateEmail
		}
		return models.AuthResponse{}, internal(err, "save user failed")
	}

	return s.issue(user.UID)
}

// Login reports a missing account and a wrong password with the same error.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (resp models.AuthResponse, err error) {
	defer func() { metrics.ObserveAuth("login", err) }()

	user, err := s.storage.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, storerrors.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(req.Password))
			return models.AuthResponse{}, ErrInvalidCredentials
		}
		return models.AuthResponse{}, internal(err, "lookup user by email failed")
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.Pass), []byte(req.Password)); err != nil {
		return models.AuthResponse{}, ErrInvalidCredentials
	}
	return s.issue(user.UID)
}

func (s *Service) issue(uid string) (models.AuthResponse, error) {
	token, err := s.tokens.Issue(uid)
	if err != nil {
		return models.AuthResponse{}, internal(err, "create jwt failed")
	}
	return models.AuthResponse{Token: token, UserID: uid}, nil
}

func (s *Service) CurrentUser(ctx context.Context, uid string) (models.User, error) {
	user, err := s.storage.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, storerrors.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, internal(err, "failed get user from db")
	}
	user.Pass = ""
	return user, nil
}
