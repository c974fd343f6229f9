package storage

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azaliaz/bookly/review-service/internal/domain/models"
	"github.com/azaliaz/bookly/review-service/internal/logger"
	storerrors "github.com/azaliaz/bookly/review-service/internal/storage/errors"
)

func seedBook(t *testing.T, ms *MemStorage) models.Book {
	t.Helper()
	book, err := ms.SaveBook(context.Background(), models.Book{Title: "Dune", Author: "Herbert"})
	require.NoError(t, err)
	return book
}

func seedUser(t *testing.T, ms *MemStorage, email string) models.User {
	t.Helper()
	user, err := ms.SaveUser(context.Background(), models.User{Username: email, Email: email, Pass: "hash"})
	require.NoError(t, err)
	return user
}

func TestMemStorage_Users(t *testing.T) {
	ctx := context.Background()
	ms := New()

	user := seedUser(t, ms, "a@x.com")
	assert.NotEmpty(t, user.UID)
	assert.False(t, user.CreatedAt.IsZero())

	_, err := ms.SaveUser(ctx, models.User{Username: "other", Email: "a@x.com", Pass: "hash2"})
	assert.ErrorIs(t, err, storerrors.ErrUserExists)

	_, err = ms.SaveUser(ctx, models.User{Username: "other", Email: "A@x.com", Pass: "hash2"})
	assert.NoError(t, err, "emails are compared as stored")

	got, err := ms.GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.UID, got.UID)

	got, err = ms.GetUser(ctx, user.UID)
	require.NoError(t, err)
	assert.Equal(t, "hash", got.Pass)

	_, err = ms.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, storerrors.ErrUserNotFound)
	_, err = ms.GetUserByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, storerrors.ErrUserNotFound)
}

func TestMemStorage_Books(t *testing.T) {
	ctx := context.Background()
	ms := New()

	books, err := ms.GetBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)

	for i := 0; i < 3; i++ {
		_, err := ms.SaveBook(ctx, models.Book{Title: fmt.Sprintf("Book%d", i), Author: "Author"})
		require.NoError(t, err)
	}
	books, err = ms.GetBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	for i, b := range books {
		assert.Equal(t, fmt.Sprintf("Book%d", i), b.Title)
	}

	_, err = ms.GetBook(ctx, "missing")
	assert.ErrorIs(t, err, storerrors.ErrBookNoExist)
}

func TestMemStorage_ReviewLifecycle(t *testing.T) {
	ctx := context.Background()
	ms := New()
	book := seedBook(t, ms)
	user := seedUser(t, ms, "a@x.com")

	review, err := ms.SaveReview(ctx, models.Review{UserID: user.UID, BookID: book.BID, Rating: 4, Comment: "good"})
	require.NoError(t, err)
	assert.NotEmpty(t, review.ReviewID)

	_, err = ms.SaveReview(ctx, models.Review{UserID: user.UID, BookID: book.BID, Rating: 2})
	assert.ErrorIs(t, err, storerrors.ErrReviewExists)

	_, err = ms.SaveReview(ctx, models.Review{UserID: user.UID, BookID: "missing", Rating: 2})
	assert.ErrorIs(t, err, storerrors.ErrBookNoExist)

	found, err := ms.FindReview(ctx, user.UID, book.BID)
	require.NoError(t, err)
	assert.Equal(t, review.ReviewID, found.ReviewID)

	review.Rating = 5
	review.Comment = "great"
	updated, err := ms.UpdateReview(ctx, review)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Rating)
	assert.Equal(t, "great", updated.Comment)
	assert.Equal(t, review.ReviewID, updated.ReviewID)
	assert.Equal(t, review.CreatedAt, updated.CreatedAt)

	require.NoError(t, ms.DeleteReview(ctx, review.ReviewID))
	_, err = ms.GetReview(ctx, review.ReviewID)
	assert.ErrorIs(t, err, storerrors.ErrReviewNoExist)
	assert.ErrorIs(t, ms.DeleteReview(ctx, review.ReviewID), storerrors.ErrReviewNoExist)
	_, err = ms.UpdateReview(ctx, review)
	assert.ErrorIs(t, err, storerrors.ErrReviewNoExist)

	_, err = ms.SaveReview(ctx, models.Review{UserID: user.UID, BookID: book.BID, Rating: 1})
	assert.NoError(t, err, "pair is free again after delete")
}

func TestMemStorage_PaginationAndRating(t *testing.T) {
	ctx := context.Background()
	ms := New()
	book := seedBook(t, ms)
	other := seedBook(t, ms)

	ratings := []int{5, 3, 4, 1, 2, 5, 4}
	var ids []string
	for i, r := range ratings {
		user := seedUser(t, ms, fmt.Sprintf("u%d@x.com", i))
		review, err := ms.SaveReview(ctx, models.Review{UserID: user.UID, BookID: book.BID, Rating: r})
		require.NoError(t, err)
		ids = append(ids, review.ReviewID)
	}
	user := seedUser(t, ms, "other@x.com")
	_, err := ms.SaveReview(ctx, models.Review{UserID: user.UID, BookID: other.BID, Rating: 1})
	require.NoError(t, err)

	tests := []struct {
		name   string
		offset int
		limit  int
		want   []string
	}{
		{name: "first page", offset: 0, limit: 3, want: ids[0:3]},
		{name: "second page", offset: 3, limit: 3, want: ids[3:6]},
		{name: "partial last page", offset: 6, limit: 3, want: ids[6:]},
		{name: "beyond last page", offset: 9, limit: 3, want: []string{}},
		{name: "all at once", offset: 0, limit: 50, want: ids},
		{name: "limit far above count", offset: 2, limit: math.MaxInt, want: ids[2:]},
		{name: "huge limit past the end", offset: 7, limit: math.MaxInt, want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			page, err := ms.GetBookReviews(ctx, book.BID, tc.offset, tc.limit)
			require.NoError(t, err)
			got := make([]string, 0, len(page))
			for _, r := range page {
				got = append(got, r.ReviewID)
				assert.NotEmpty(t, r.User.Username)
				assert.NotEmpty(t, r.User.Email)
			}
			assert.Equal(t, tc.want, got)
		})
	}

	summary, err := ms.GetBookRating(ctx, book.BID)
	require.NoError(t, err)
	require.NotNil(t, summary.Average)
	assert.InDelta(t, 24.0/7.0, *summary.Average, 1e-9)
	assert.Equal(t, 7, summary.Count)

	empty := seedBook(t, ms)
	summary, err = ms.GetBookRating(ctx, empty.BID)
	require.NoError(t, err)
	assert.Nil(t, summary.Average)
	assert.Zero(t, summary.Count)
}

func TestMemStorage_ConcurrentDuplicateReview(t *testing.T) {
	ctx := context.Background()
	ms := New()
	book := seedBook(t, ms)
	user := seedUser(t, ms, "a@x.com")

	var wg sync.WaitGroup
	var created, conflicts atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(rating int) {
			defer wg.Done()
			_, err := ms.SaveReview(ctx, models.Review{UserID: user.UID, BookID: book.BID, Rating: rating})
			switch {
			case err == nil:
				created.Add(1)
			case assert.ErrorIs(t, err, storerrors.ErrReviewExists):
				conflicts.Add(1)
			}
		}(i%5 + 1)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(31), conflicts.Load())
	summary, err := ms.GetBookRating(ctx, book.BID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count)
}

func TestMemStorage_MissingRowsLogBelowInfo(t *testing.T) {
	log := logger.Get()
	saved := *log
	t.Cleanup(func() { *log = saved })

	var buf bytes.Buffer
	*log = zerolog.New(&buf).Level(zerolog.InfoLevel)

	ctx := context.Background()
	ms := New()
	_, err := ms.GetBook(ctx, "missing")
	assert.ErrorIs(t, err, storerrors.ErrBookNoExist)
	_, err = ms.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, storerrors.ErrUserNotFound)
	assert.Empty(t, buf.String())

	*log = zerolog.New(&buf).Level(zerolog.DebugLevel)
	_, err = ms.GetBook(ctx, "missing")
	assert.ErrorIs(t, err, storerrors.ErrBookNoExist)
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), "book not found")
}
