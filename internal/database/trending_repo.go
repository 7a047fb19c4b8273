package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/kdimtricp/cinesearch/internal/cachestore"
)

const pgUniqueViolation = "23505"

// TrendingRepo is the SQL-backed cache store.
type TrendingRepo struct {
	db *DB
}

func NewTrendingRepo(db *DB) *TrendingRepo {
	return &TrendingRepo{db: db}
}

const recordColumns = `id, record_key, movie_id, title, search_term, poster_url, count, movie, created_at, updated_at`

func (r *TrendingRepo) TopByCount(ctx context.Context, n int) ([]cachestore.Record, error) {
	tieBreak := "rowid"
	if r.db.dbType == "postgres" {
		tieBreak = "seq"
	}

	query := r.db.rebind(fmt.Sprintf(`
		SELECT %s
		FROM trending_movies
		ORDER BY count DESC, %s ASC
		LIMIT ?`, recordColumns, tieBreak))

	rows, err := r.db.conn.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query trending movies: %w", err)
	}
	defer rows.Close()

	records := []cachestore.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trending movie: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

func (r *TrendingRepo) Get(ctx context.Context, key string) (*cachestore.Record, error) {
	query := r.db.rebind(fmt.Sprintf(`SELECT %s FROM trending_movies WHERE record_key = ?`, recordColumns))

	rec, err := scanRecord(r.db.conn.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cachestore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trending movie: %w", err)
	}
	return rec, nil
}

func (r *TrendingRepo) Create(ctx context.Context, rec *cachestore.Record) error {
	query := r.db.rebind(fmt.Sprintf(`
		INSERT INTO trending_movies (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, recordColumns))

	_, err := r.db.conn.ExecContext(ctx, query,
		rec.ID,
		rec.Key,
		rec.MovieID,
		rec.Title,
		rec.SearchTerm,
		rec.PosterURL,
		rec.Count,
		string(rec.Movie),
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return cachestore.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert trending movie: %w", err)
	}
	return nil
}

func (r *TrendingRepo) IncrementCount(ctx context.Context, key string, delta int64) error {
	query := r.db.rebind(`
		UPDATE trending_movies
		SET count = count + ?, updated_at = ?
		WHERE record_key = ?`)

	result, err := r.db.conn.ExecContext(ctx, query, delta, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("failed to increment count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return cachestore.ErrNotFound
	}
	return nil
}

// Close is a no-op; the DB is owned by the caller.
func (r *TrendingRepo) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*cachestore.Record, error) {
	var rec cachestore.Record
	var movie string
	err := row.Scan(
		&rec.ID,
		&rec.Key,
		&rec.MovieID,
		&rec.Title,
		&rec.SearchTerm,
		&rec.PosterURL,
		&rec.Count,
		&movie,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if movie != "" {
		rec.Movie = []byte(movie)
	}
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	return false
}
