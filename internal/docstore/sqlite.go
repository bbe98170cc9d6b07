package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"lootledger/internal/actor"
)

// SQLiteStore persists records in a single-file database. One JSON document
// per actor; the token column exists only to resolve scene-token lookups
// without decoding every row.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// The store is written from the authority loop only.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS actors (
  id       TEXT PRIMARY KEY,
  token_id TEXT NOT NULL DEFAULT '',
  doc      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS actors_token ON actors(token_id);
`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(ctx context.Context, id string) (*actor.Actor, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM actors WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("actor %s: %w", id, ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func (s *SQLiteStore) GetByToken(ctx context.Context, tokenID string) (*actor.Actor, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM actors WHERE token_id = ?`, tokenID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("token %s: %w", tokenID, ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func (s *SQLiteStore) Put(ctx context.Context, a *actor.Actor) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO actors (id, token_id, doc) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET token_id = excluded.token_id, doc = excluded.doc
`, a.ID, a.TokenID, raw)
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM actors WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) List(ctx context.Context) ([]*actor.Actor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM actors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*actor.Actor
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		a, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
