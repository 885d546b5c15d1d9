// Package cursors persists the last-seen commit of each repository so a
// restart resumes where the previous process stopped.
package cursors

import (
	"context"
	"errors"
	"time"

	"github.com/gomantics/gitwatch/db"
	"github.com/gomantics/gitwatch/domains/repos"
	"github.com/gomantics/gitwatch/pkg/pgconv"
	"github.com/jackc/pgx/v5"
)

// Cursor is a stored last-seen commit.
type Cursor struct {
	Key     repos.CursorKey
	Hash    string
	Updated time.Time
}

// Store keeps cursors in the database.
type Store struct{}

// New returns the database store when a database is configured and an
// in-memory no-op store otherwise.
func New() repos.CursorStore {
	if !db.Enabled() {
		return repos.NopCursors{}
	}
	return Store{}
}

func (Store) Load(ctx context.Context, key repos.CursorKey) (string, error) {
	c, err := Get(ctx, key)
	if errors.Is(err, repos.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return c.Hash, nil
}

func (Store) Save(ctx context.Context, key repos.CursorKey, hash string) error {
	return db.Query(ctx, func(q *db.Queries) error {
		return q.UpsertCursor(ctx, db.UpsertCursorParams{
			ShortName:  key.ShortName,
			Url:        key.URL,
			Branch:     key.Branch,
			CommitHash: hash,
			UpdatedAt:  pgconv.Timestamptz(time.Now()),
		})
	})
}

// Get retrieves the cursor stored for key.
func Get(ctx context.Context, key repos.CursorKey) (*Cursor, error) {
	row, err := db.Query1(ctx, func(q *db.Queries) (db.Cursor, error) {
		return q.GetCursor(ctx, db.GetCursorParams{
			ShortName: key.ShortName,
			Url:       key.URL,
			Branch:    key.Branch,
		})
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repos.ErrNotFound
		}
		return nil, err
	}
	return &Cursor{
		Key:     key,
		Hash:    row.CommitHash,
		Updated: pgconv.Time(row.UpdatedAt),
	}, nil
}
