package storage

import (
	"context"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azaliaz/bookly/review-service/internal/domain/models"
	storerrors "github.com/azaliaz/bookly/review-service/internal/storage/errors"
)

// newTestDB connects to the database named by DB_DSN and applies migrations.
// Rows created through the returned helpers are removed when the test ends.
func newTestDB(t *testing.T) (*DBStorage, *dbSeed) {
	t.Helper()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN is not set")
	}
	require.NoError(t, Migrations(dsn, "../../migrations"))

	dbs, err := NewDB(context.Background(), dsn)
	require.NoError(t, err)
	seed := &dbSeed{t: t, dbs: dbs}
	t.Cleanup(func() {
		seed.cleanup()
		dbs.Close()
	})
	return dbs, seed
}

type dbSeed struct {
	t     *testing.T
	dbs   *DBStorage
	users []string
	books []string
}

func (s *dbSeed) user() models.User {
	s.t.Helper()
	user, err := s.dbs.SaveUser(context.Background(), models.User{
		Username: "reader",
		Email:    uuid.NewString() + "@x.com",
		Pass:     "hash",
	})
	require.NoError(s.t, err)
	s.users = append(s.users, user.UID)
	return user
}

func (s *dbSeed) book() models.Book {
	s.t.Helper()
	book, err := s.dbs.SaveBook(context.Background(), models.Book{Title: "Dune", Author: "Herbert"})
	require.NoError(s.t, err)
	s.books = append(s.books, book.BID)
	return book
}

func (s *dbSeed) cleanup() {
	ctx := context.Background()
	_, _ = s.dbs.pool.Exec(ctx, `DELETE FROM reviews WHERE book_id = ANY($1::uuid[]) OR user_id = ANY($2::uuid[])`, s.books, s.users)
	_, _ = s.dbs.pool.Exec(ctx, `DELETE FROM books WHERE bid = ANY($1::uuid[])`, s.books)
	_, _ = s.dbs.pool.Exec(ctx, `DELETE FROM users WHERE uid = ANY($1::uuid[])`, s.users)
}

func TestDBStorage_Users(t *testing.T) {
	dbs, seed := newTestDB(t)
	ctx := context.Background()

	user := seed.user()
	_, err := dbs.SaveUser(ctx, models.User{Username: "twin", Email: user.Email, Pass: "hash"})
	assert.ErrorIs(t, err, storerrors.ErrUserExists)

	got, err := dbs.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.UID, got.UID)

	_, err = dbs.GetUser(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storerrors.ErrUserNotFound)
	_, err = dbs.GetUser(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, storerrors.ErrUserNotFound)

	_, err = dbs.GetBook(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storerrors.ErrBookNoExist)
}

func TestDBStorage_SaveReviewConstraints(t *testing.T) {
	dbs, seed := newTestDB(t)
	ctx := context.Background()
	user := seed.user()
	book := seed.book()

	_, err := dbs.SaveReview(ctx, models.Review{UserID: user.UID, BookID: book.BID, Rating: 4})
	require.NoError(t, err)

	_, err = dbs.SaveReview(ctx, models.Review{UserID: user.UID, BookID: book.BID, Rating: 1})
	assert.ErrorIs(t, err, storerrors.ErrReviewExists)

	_, err = dbs.SaveReview(ctx, models.Review{UserID: user.UID, BookID: uuid.NewString(), Rating: 3})
	assert.ErrorIs(t, err, storerrors.ErrBookNoExist)

	_, err = dbs.SaveReview(ctx, models.Review{UserID: uuid.NewString(), BookID: book.BID, Rating: 3})
	assert.ErrorIs(t, err, storerrors.ErrUserNotFound)
}

func TestDBStorage_ConcurrentDuplicateReviews(t *testing.T) {
	dbs, seed := newTestDB(t)
	user := seed.user()
	book := seed.book()

	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := dbs.SaveReview(context.Background(), models.Review{UserID: user.UID, BookID: book.BID, Rating: 5})
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, storerrors.ErrReviewExists):
				dup.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 15, dup.Load())
}

func TestDBStorage_PagesAndRating(t *testing.T) {
	dbs, seed := newTestDB(t)
	ctx := context.Background()
	book := seed.book()

	summary, err := dbs.GetBookRating(ctx, book.BID)
	require.NoError(t, err)
	assert.Nil(t, summary.Average)
	assert.Zero(t, summary.Count)

	for _, r := range []int{5, 2, 4} {
		_, err := dbs.SaveReview(ctx, models.Review{UserID: seed.user().UID, BookID: book.BID, Rating: r})
		require.NoError(t, err)
	}

	summary, err = dbs.GetBookRating(ctx, book.BID)
	require.NoError(t, err)
	require.NotNil(t, summary.Average)
	assert.InDelta(t, 11.0/3.0, *summary.Average, 1e-9)
	assert.Equal(t, 3, summary.Count)

	all, err := dbs.GetBookReviews(ctx, book.BID, 0, math.MaxInt)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, r := range all {
		assert.Equal(t, r.UserID, r.User.UID)
		assert.Equal(t, "reader", r.User.Username)
		assert.NotEmpty(t, r.User.Email)
	}

	page, err := dbs.GetBookReviews(ctx, book.BID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ReviewID, page[0].ReviewID)

	page, err = dbs.GetBookReviews(ctx, book.BID, 3, 5)
	require.NoError(t, err)
	assert.NotNil(t, page)
	assert.Empty(t, page)

	rev := all[0].Review
	rev.Rating = 1
	rev.Comment = "changed"
	updated, err := dbs.UpdateReview(ctx, rev)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Rating)
	assert.Equal(t, "changed", updated.Comment)

	require.NoError(t, dbs.DeleteReview(ctx, rev.ReviewID))
	assert.ErrorIs(t, dbs.DeleteReview(ctx, rev.ReviewID), storerrors.ErrReviewNoExist)
	_, err = dbs.GetReview(ctx, rev.ReviewID)
	assert.ErrorIs(t, err, storerrors.ErrReviewNoExist)
}
