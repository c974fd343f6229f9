package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azaliaz/bookly/review-service/internal/domain/consts"
	"github.com/azaliaz/bookly/review-service/internal/domain/models"
	"github.com/azaliaz/bookly/review-service/internal/logger"
	storerrors "github.com/azaliaz/bookly/review-service/internal/storage/errors"
)

const (
	reviewColumns = `review_id, user_id, book_id, rating, comment, created_at, updated_at`
	bookColumns   = `bid, title, author, genre, description, created_at`
)

type DBStorage struct {
	pool *pgxpool.Pool
}

func NewDB(ctx context.Context, addr string) (*DBStorage, error) {
	config, err := pgxpool.ParseConfig(addr)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DBStorage{pool: pool}, nil
}

func (dbs *DBStorage) Close() {
	dbs.pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// foreignKeyViolation returns the violated constraint name, or "" when err is
// not a foreign key violation.
func foreignKeyViolation(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		return pgErr.ConstraintName
	}
	return ""
}

// validID filters out ids that cannot be uuids so they read as missing rows
// instead of failing the query.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (dbs *DBStorage) SaveUser(ctx context.Context, user models.User) (models.User, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	user.UID = uuid.New().String()
	err := dbs.pool.QueryRow(ctx,
		`INSERT INTO users (uid, username, email, pass) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		user.UID, user.Username, user.Email, user.Pass).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, storerrors.ErrUserExists
		}
		log.Error().Err(err).Msg("failed to insert user")
		return models.User{}, err
	}
	log.Debug().Str("uid", user.UID).Msg("user saved")
	return user, nil
}

func (dbs *DBStorage) getUser(ctx context.Context, column, value string) (models.User, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT uid, username, email, pass, created_at FROM users WHERE %s = $1`, column)
	var usr models.User
	err := dbs.pool.QueryRow(ctx, query, value).Scan(&usr.UID, &usr.Username, &usr.Email, &usr.Pass, &usr.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storerrors.ErrUserNotFound
		}
		log.Error().Err(err).Msg("failed scan db data")
		return models.User{}, err
	}
	return usr, nil
}

func (dbs *DBStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return dbs.getUser(ctx, "email", email)
}

func (dbs *DBStorage) GetUser(ctx context.Context, uid string) (models.User, error) {
	if !validID(uid) {
		return models.User{}, storerrors.ErrUserNotFound
	}
	return dbs.getUser(ctx, "uid", uid)
}

func (dbs *DBStorage) SaveBook(ctx context.Context, book models.Book) (models.Book, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	book.BID = uuid.New().String()
	err := dbs.pool.QueryRow(ctx,
		`INSERT INTO books (bid, title, author, genre, description) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		book.BID, book.Title, book.Author, book.Genre, book.Description).Scan(&book.CreatedAt)
	if err != nil {
		log.Error().Err(err).Msg("save book failed")
		return models.Book{}, err
	}
	log.Info().Str("bid", book.BID).Msg("book saved")
	return book, nil
}

func (dbs *DBStorage) GetBooks(ctx context.Context) ([]models.Book, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	rows, err := dbs.pool.Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY created_at, bid`)
	if err != nil {
		log.Error().Err(err).Msg("failed get all books from db")
		return nil, err
	}
	defer rows.Close()

	books := make([]models.Book, 0)
	for rows.Next() {
		var book models.Book
		if err := rows.Scan(&book.BID, &book.Title, &book.Author, &book.Genre, &book.Description, &book.CreatedAt); err != nil {
			log.Error().Err(err).Msg("failed to scan data from db")
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

func (dbs *DBStorage) GetBook(ctx context.Context, bid string) (models.Book, error) {
	log := logger.Get()
	if !validID(bid) {
		return models.Book{}, storerrors.ErrBookNoExist
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	var book models.Book
	err := dbs.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE bid = $1`, bid).
		Scan(&book.BID, &book.Title, &book.Author, &book.Genre, &book.Description, &book.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Book{}, storerrors.ErrBookNoExist
		}
		log.Error().Err(err).Msg("failed to scan data from db")
		return models.Book{}, err
	}
	return book, nil
}

func scanReview(row pgx.Row) (models.Review, error) {
	var r models.Review
	err := row.Scan(&r.ReviewID, &r.UserID, &r.BookID, &r.Rating, &r.Comment, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (dbs *DBStorage) FindReview(ctx context.Context, uid, bid string) (models.Review, error) {
	if !validID(uid) || !validID(bid) {
		return models.Review{}, storerrors.ErrReviewNoExist
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	r, err := scanReview(dbs.pool.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE user_id = $1 AND book_id = $2`, uid, bid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Review{}, storerrors.ErrReviewNoExist
		}
		return models.Review{}, err
	}
	return r, nil
}

// SaveReview relies on the (user_id, book_id) unique constraint, so two
// concurrent inserts for the same pair cannot both succeed.
func (dbs *DBStorage) SaveReview(ctx context.Context, review models.Review) (models.Review, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	review.ReviewID = uuid.New().String()
	err := dbs.pool.QueryRow(ctx,
		`INSERT INTO reviews (review_id, user_id, book_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		review.ReviewID, review.UserID, review.BookID, review.Rating, review.Comment).
		Scan(&review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Review{}, storerrors.ErrReviewExists
		}
		switch foreignKeyViolation(err) {
		case "reviews_book_id_fkey":
			return models.Review{}, storerrors.ErrBookNoExist
		case "reviews_user_id_fkey":
			return models.Review{}, storerrors.ErrUserNotFound
		}
		log.Error().Err(err).Msg("failed to save review")
		return models.Review{}, err
	}
	log.Info().Str("review_id", review.ReviewID).Msg("review saved successfully")
	return review, nil
}

func (dbs *DBStorage) GetReview(ctx context.Context, rid string) (models.Review, error) {
	if !validID(rid) {
		return models.Review{}, storerrors.ErrReviewNoExist
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	r, err := scanReview(dbs.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE review_id = $1`, rid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Review{}, storerrors.ErrReviewNoExist
		}
		return models.Review{}, err
	}
	return r, nil
}

func (dbs *DBStorage) UpdateReview(ctx context.Context, review models.Review) (models.Review, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	r, err := scanReview(dbs.pool.QueryRow(ctx,
		`UPDATE reviews SET rating = $2, comment = $3, updated_at = now()
		WHERE review_id = $1
		RETURNING `+reviewColumns,
		review.ReviewID, review.Rating, review.Comment))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Review{}, storerrors.ErrReviewNoExist
		}
		log.Error().Err(err).Msg("failed to update review")
		return models.Review{}, err
	}
	return r, nil
}

func (dbs *DBStorage) DeleteReview(ctx context.Context, rid string) error {
	log := logger.Get()
	if !validID(rid) {
		return storerrors.ErrReviewNoExist
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	res, err := dbs.pool.Exec(ctx, `DELETE FROM reviews WHERE review_id = $1`, rid)
	if err != nil {
		log.Error().Err(err).Msg("failed to delete review")
		return err
	}
	if res.RowsAffected() == 0 {
		log.Warn().Str("rid", rid).Msg("review not found")
		return storerrors.ErrReviewNoExist
	}
	log.Info().Str("rid", rid).Msg("review deleted successfully")
	return nil
}

// GetBookReviews joins each review with its author at read time.
func (dbs *DBStorage) GetBookReviews(ctx context.Context, bid string, offset, limit int) ([]models.ReviewWithAuthor, error) {
	log := logger.Get()
	reviews := []models.ReviewWithAuthor{}
	if !validID(bid) {
		return reviews, nil
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	rows, err := dbs.pool.Query(ctx, `
	SELECT r.review_id, r.user_id, r.book_id, r.rating, r.comment, r.created_at, r.updated_at,
	       COALESCE(u.uid::text, ''), COALESCE(u.username, ''), COALESCE(u.email, '')
	FROM reviews r
	LEFT JOIN users u ON r.user_id = u.uid
	WHERE r.book_id = $1
	ORDER BY r.created_at, r.review_id
	OFFSET $2 LIMIT $3`, bid, offset, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to get reviews")
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r models.ReviewWithAuthor
		if err := rows.Scan(&r.ReviewID, &r.UserID, &r.BookID, &r.Rating, &r.Comment, &r.CreatedAt, &r.UpdatedAt,
			&r.User.UID, &r.User.Username, &r.User.Email); err != nil {
			log.Error().Err(err).Msg("failed to scan review row")
			return nil, err
		}
		reviews = append(reviews, r)
	}
	if rows.Err() != nil {
		log.Error().Err(rows.Err()).Msg("rows iteration error")
		return nil, rows.Err()
	}
	return reviews, nil
}

func (dbs *DBStorage) GetBookRating(ctx context.Context, bid string) (models.RatingSummary, error) {
	if !validID(bid) {
		return models.RatingSummary{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	var summary models.RatingSummary
	err := dbs.pool.QueryRow(ctx,
		`SELECT AVG(rating)::float8, COUNT(*) FROM reviews WHERE book_id = $1`, bid).
		Scan(&summary.Average, &summary.Count)
	if err != nil {
		logger.Get().Error().Err(err).Msg("failed to aggregate ratings")
		return models.RatingSummary{}, err
	}
	return summary, nil
}

func Migrations(dbDsn string, migrationsPath string) error {
	log := logger.Get()
	migratePath := fmt.Sprintf("file://%s", migrationsPath)
	m, err := migrate.New(migratePath, dbDsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("no migrations apply")
			return nil
		}
		return err
	}
	log.Info().Msg("all migrations apply")
	return nil
}
