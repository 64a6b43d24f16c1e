// Package pgstore implements the ladder store contracts on PostgreSQL.
//
// Expected schema:
//
//	users(id serial primary key, gamertag text unique, discord text unique,
//	      rank int, wins int, losses int, challenged bool, timeout timestamptz)
//	challenges(id serial primary key, p1 int, p2 int, date timestamptz,
//	      p1_wins int, p2_wins int, p1_score int, p2_score int,
//	      winner int, state text)
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/Erik-Lamers1/os3-rll-bot/internal/ladder"
)

type Store struct {
	db *sql.DB
}

func New(databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Update runs fn in one serializable transaction. Player lookups lock
// their rows, so read-check-write sequences on the challenged flag and
// rank mutations cannot interleave between transactions.
func (s *Store) Update(ctx context.Context, fn func(tx ladder.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx ladder.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&pgTx{tx: tx, readonly: true})
}

type pgTx struct {
	tx       *sql.Tx
	readonly bool
}

// lockClause appends FOR UPDATE in writable transactions only.
func (t *pgTx) lockClause() string {
	if t.readonly {
		return ""
	}
	return " FOR UPDATE"
}

func noRow(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ladder.ErrNoRow
	}
	return err
}
