package service

import (
	"context"
	"errors"
	"math"

	"github.com/azaliaz/bookly/review-service/internal/domain/models"
	"github.com/azaliaz/bookly/review-service/internal/metrics"
	storerrors "github.com/azaliaz/bookly/review-service/internal/storage/errors"
)

func (s *Service) CreateBook(ctx context.Context, req models.BookRequest) (models.Book, error) {
	book, err := s.storage.SaveBook(ctx, models.Book{
		Title:       req.Title,
		Author:      req.Author,
		Genre:       req.Genre,
		Description: req.Description,
	})
	if err != nil {
		return models.Book{}, internal(err, "save book failed")
	}
	return book, nil
}

func (s *Service) ListBooks(ctx context.Context) ([]models.Book, error) {
	books, err := s.storage.GetBooks(ctx)
	if err != nil {
		return nil, internal(err, "failed get all books")
	}
	if books == nil {
		books = []models.Book{}
	}
	return books, nil
}

func (s *Service) getBook(ctx context.Context, bid string) (models.Book, error) {
	book, err := s.storage.GetBook(ctx, bid)
	if err != nil {
		if errors.Is(err, storerrors.ErrBookNoExist) {
			return models.Book{}, ErrBookNotFound
		}
		return models.Book{}, internal(err, "get book failed")
	}
	return book, nil
}

// BookDetails returns one page of a book's reviews together with the average
// rating over all of them. A page past the end is empty, not an error.
func (s *Service) BookDetails(ctx context.Context, bid string, page, limit int) (models.BookDetails, error) {
	if page < 1 || limit < 1 {
		return models.BookDetails{}, ErrInvalidPage
	}
	book, err := s.getBook(ctx, bid)
	if err != nil {
		return models.BookDetails{}, err
	}
	summary, err := s.storage.GetBookRating(ctx, bid)
	if err != nil {
		return models.BookDetails{}, internal(err, "aggregate ratings failed")
	}

	details := models.BookDetails{
		Book:          book,
		AverageRating: summary.Average,
		ReviewCount:   summary.Count,
		Page:          page,
		Limit:         limit,
		Reviews:       []models.ReviewWithAuthor{},
	}
	if page-1 > math.MaxInt/limit {
		return details, nil
	}
	reviews, err := s.storage.GetBookReviews(ctx, bid, (page-1)*limit, limit)
	if err != nil {
		return models.BookDetails{}, internal(err, "get book reviews failed")
	}
	if reviews != nil {
		details.Reviews = reviews
	}
	return details, nil
}

func (s *Service) CreateReview(ctx context.Context, bid, uid string, req models.ReviewRequest) (review models.Review, err error) {
	defer func() { metrics.ObserveReview("create", err) }()

	if _, err = s.getBook(ctx, bid); err != nil {
		return models.Review{}, err
	}

	_, err = s.storage.FindReview(ctx, uid, bid)
	switch {
	case err == nil:
		return models.Review{}, ErrDuplicateReview
	case !errors.Is(err, storerrors.ErrReviewNoExist):
		return models.Review{}, internal(err, "lookup review failed")
	}

	if req.Rating == nil || !validRating(*req.Rating) {
		return models.Review{}, ErrInvalidRating
	}

	review, err = s.storage.SaveReview(ctx, models.Review{
		UserID:  uid,
		BookID:  bid,
		Rating:  *req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		switch {
		case errors.Is(err, storerrors.ErrReviewExists):
			return models.Review{}, ErrDuplicateReview
		case errors.Is(err, storerrors.ErrBookNoExist):
			return models.Review{}, ErrBookNotFound
		case errors.Is(err, storerrors.ErrUserNotFound):
			return models.Review{}, ErrUserNotFound
		}
		return models.Review{}, internal(err, "save review failed")
	}
	return review, nil
}

// ownedReview loads a review and checks that uid wrote it.
func (s *Service) ownedReview(ctx context.Context, rid, uid string) (models.Review, error) {
	review, err := s.storage.GetReview(ctx, rid)
	if err != nil {
		if errors.Is(err, storerrors.ErrReviewNoExist) {
			return models.Review{}, ErrReviewNotFound
		}
		return models.Review{}, internal(err, "get review failed")
	}
	if review.UserID != uid {
		return models.Review{}, ErrForbidden
	}
	return review, nil
}

// UpdateReview validates every supplied field before changing anything.
func (s *Service) UpdateReview(ctx context.Context, rid, uid string, req models.ReviewUpdateRequest) (review models.Review, err error) {
	defer func() { metrics.ObserveReview("update", err) }()

	review, err = s.ownedReview(ctx, rid, uid)
	if err != nil {
		return models.Review{}, err
	}
	if req.Rating != nil && !validRating(*req.Rating) {
		return models.Review{}, ErrInvalidRating
	}

	if req.Rating != nil {
		review.Rating = *req.Rating
	}
	if req.Comment != nil {
		review.Comment = *req.Comment
	}
	review, err = s.storage.UpdateReview(ctx, review)
	if err != nil {
		if errors.Is(err, storerrors.ErrReviewNoExist) {
			return models.Review{}, ErrReviewNotFound
		}
		return models.Review{}, internal(err, "update review failed")
	}
	return review, nil
}

func (s *Service) DeleteReview(ctx context.Context, rid, uid string) (err error) {
	defer func() { metrics.ObserveReview("delete", err) }()

	if _, err = s.ownedReview(ctx, rid, uid); err != nil {
		return err
	}
	if err = s.storage.DeleteReview(ctx, rid); err != nil {
		if errors.Is(err, storerrors.ErrReviewNoExist) {
			return ErrReviewNotFound
		}
		return internal(err, "delete review failed")
	}
	return nil
}
