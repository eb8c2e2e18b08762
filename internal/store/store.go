package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// NextOrderNumber allocates the next order number for the month of t.
// Numbers are ORD-YYYYMM-NNNN, drawn from a per-month sequence row so they
// are unique and never reused even across concurrent creations.
func (s *Store) NextOrderNumber(ctx context.Context, t time.Time) (string, error) {
	yearMonth := t.Format("200601")

	var seq int64
	err := s.db.GetContext(ctx, &seq, `
		INSERT INTO order_sequences (year_month, seq)
		VALUES ($1, 1)
		ON CONFLICT (year_month) DO UPDATE SET seq = order_sequences.seq + 1
		RETURNING seq`, yearMonth)
	if err != nil {
		return "", fmt.Errorf("failed to allocate order sequence: %w", err)
	}

	return fmt.Sprintf("ORD-%s-%04d", yearMonth, seq), nil
}
