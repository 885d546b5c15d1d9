package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"no rows", pgx.ErrNoRows, false},
		{"plain", errors.New("boom"), false},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"connection", &pgconn.PgError{Code: "08006"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transient(tt.err))
		})
	}
}

func TestQueryWithoutDatabase(t *testing.T) {
	called := false
	err := Query(context.Background(), func(*Queries) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrDisabled)
	assert.False(t, called)

	assert.False(t, Enabled())
	assert.ErrorIs(t, Ping(context.Background()), ErrDisabled)
}
