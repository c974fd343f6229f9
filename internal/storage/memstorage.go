package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/azaliaz/bookly/review-service/internal/domain/models"
	"github.com/azaliaz/bookly/review-service/internal/logger"
	storerrors "github.com/azaliaz/bookly/review-service/internal/storage/errors"
)

type memReview struct {
	models.Review
	seq uint64
}

// MemStorage keeps everything in maps guarded by one lock. Uniqueness checks
// and inserts happen under the same write lock.
type MemStorage struct {
	mu          sync.RWMutex
	usersStor   map[string]models.User
	emailIndex  map[string]string
	bookStor    map[string]models.Book
	bookSeq     map[string]uint64
	reviewStor  map[string]memReview
	reviewIndex map[string]string
	seq         uint64
	now         func() time.Time
}

func New() *MemStorage {
	return &MemStorage{
		usersStor:   make(map[string]models.User),
		emailIndex:  make(map[string]string),
		bookStor:    make(map[string]models.Book),
		bookSeq:     make(map[string]uint64),
		reviewStor:  make(map[string]memReview),
		reviewIndex: make(map[string]string),
		now:         time.Now,
	}
}

func reviewKey(uid, bid string) string {
	return uid + "/" + bid
}

func (ms *MemStorage) SaveUser(_ context.Context, user models.User) (models.User, error) {
	log := logger.Get()
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, ok := ms.emailIndex[user.Email]; ok {
		return models.User{}, storerrors.ErrUserExists
	}
	user.UID = uuid.New().String()
	user.CreatedAt = ms.now().UTC()
	ms.usersStor[user.UID] = user
	ms.emailIndex[user.Email] = user.UID
	log.Debug().Str("uid", user.UID).Msg("user saved")
	return user, nil
}

func (ms *MemStorage) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	uid, ok := ms.emailIndex[email]
	if !ok {
		return models.User{}, storerrors.ErrUserNotFound
	}
	return ms.usersStor[uid], nil
}

func (ms *MemStorage) GetUser(_ context.Context, uid string) (models.User, error) {
	log := logger.Get()
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	user, ok := ms.usersStor[uid]
	if !ok {
		log.Debug().Str("uid", uid).Msg("user not found")
		return models.User{}, storerrors.ErrUserNotFound
	}
	return user, nil
}

func (ms *MemStorage) SaveBook(_ context.Context, book models.Book) (models.Book, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.seq++
	book.BID = uuid.New().String()
	book.CreatedAt = ms.now().UTC()
	ms.bookStor[book.BID] = book
	ms.bookSeq[book.BID] = ms.seq
	return book, nil
}

func (ms *MemStorage) GetBooks(_ context.Context) ([]models.Book, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	books := make([]models.Book, 0, len(ms.bookStor))
	for _, book := range ms.bookStor {
		books = append(books, book)
	}
	sort.Slice(books, func(i, j int) bool {
		return ms.bookSeq[books[i].BID] < ms.bookSeq[books[j].BID]
	})
	return books, nil
}

func (ms *MemStorage) GetBook(_ context.Context, bid string) (models.Book, error) {
	log := logger.Get()
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	book, ok := ms.bookStor[bid]
	if !ok {
		log.Debug().Str("bid", bid).Msg("book not found")
		return models.Book{}, storerrors.ErrBookNoExist
	}
	return book, nil
}

func (ms *MemStorage) FindReview(_ context.Context, uid, bid string) (models.Review, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	rid, ok := ms.reviewIndex[reviewKey(uid, bid)]
	if !ok {
		return models.Review{}, storerrors.ErrReviewNoExist
	}
	return ms.reviewStor[rid].Review, nil
}

func (ms *MemStorage) SaveReview(_ context.Context, review models.Review) (models.Review, error) {
	log := logger.Get()
	ms.mu.Lock()
	defer ms.mu.Unlock()
	key := reviewKey(review.UserID, review.BookID)
	if _, ok := ms.reviewIndex[key]; ok {
		return models.Review{}, storerrors.ErrReviewExists
	}
	if _, ok := ms.bookStor[review.BookID]; !ok {
		return models.Review{}, storerrors.ErrBookNoExist
	}
	ms.seq++
	review.ReviewID = uuid.New().String()
	review.CreatedAt = ms.now().UTC()
	review.UpdatedAt = review.CreatedAt
	ms.reviewStor[review.ReviewID] = memReview{Review: review, seq: ms.seq}
	ms.reviewIndex[key] = review.ReviewID
	log.Debug().Str("rid", review.ReviewID).Msg("review saved")
	return review, nil
}

func (ms *MemStorage) GetReview(_ context.Context, rid string) (models.Review, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	r, ok := ms.reviewStor[rid]
	if !ok {
		return models.Review{}, storerrors.ErrReviewNoExist
	}
	return r.Review, nil
}

// UpdateReview overwrites rating and comment of an existing review.
func (ms *MemStorage) UpdateReview(_ context.Context, review models.Review) (models.Review, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	r, ok := ms.reviewStor[review.ReviewID]
	if !ok {
		return models.Review{}, storerrors.ErrReviewNoExist
	}
	r.Rating = review.Rating
	r.Comment = review.Comment
	r.UpdatedAt = ms.now().UTC()
	ms.reviewStor[review.ReviewID] = r
	return r.Review, nil
}

func (ms *MemStorage) DeleteReview(_ context.Context, rid string) error {
	log := logger.Get()
	ms.mu.Lock()
	defer ms.mu.Unlock()
	r, ok := ms.reviewStor[rid]
	if !ok {
		log.Warn().Str("rid", rid).Msg("review not found")
		return storerrors.ErrReviewNoExist
	}
	delete(ms.reviewIndex, reviewKey(r.UserID, r.BookID))
	delete(ms.reviewStor, rid)
	log.Info().Str("rid", rid).Msg("review deleted successfully")
	return nil
}

func (ms *MemStorage) bookReviews(bid string) []memReview {
	var reviews []memReview
	for _, r := range ms.reviewStor {
		if r.BookID == bid {
			reviews = append(reviews, r)
		}
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].seq < reviews[j].seq })
	return reviews
}

// GetBookReviews returns reviews of a book in creation order, skipping offset
// entries. An offset past the end yields an empty slice.
func (ms *MemStorage) GetBookReviews(_ context.Context, bid string, offset, limit int) ([]models.ReviewWithAuthor, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	all := ms.bookReviews(bid)
	if offset >= len(all) {
		return []models.ReviewWithAuthor{}, nil
	}
	end := offset + min(limit, len(all)-offset)
	page := make([]models.ReviewWithAuthor, 0, end-offset)
	for _, r := range all[offset:end] {
		item := models.ReviewWithAuthor{Review: r.Review}
		if user, ok := ms.usersStor[r.UserID]; ok {
			item.User = models.ReviewAuthor{UID: user.UID, Username: user.Username, Email: user.Email}
		}
		page = append(page, item)
	}
	return page, nil
}

func (ms *MemStorage) GetBookRating(_ context.Context, bid string) (models.RatingSummary, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	var sum, count int
	for _, r := range ms.reviewStor {
		if r.BookID == bid {
			sum += r.Rating
			count++
		}
	}
	if count == 0 {
		return models.RatingSummary{}, nil
	}
	avg := float64(sum) / float64(count)
	return models.RatingSummary{Average: &avg, Count: count}, nil
}
