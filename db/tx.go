package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	maxAttempts = 3
	retryDelay  = 10 * time.Millisecond
)

// transient reports whether err may succeed on a fresh attempt.
func transient(err error) bool {
	if err == nil {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "08000", "08003", "08006":
		return true
	}
	return false
}

// Query runs fn against the pool, retrying transient failures.
func Query(ctx context.Context, fn func(*Queries) error) error {
	_, err := Query1(ctx, func(q *Queries) (struct{}, error) {
		return struct{}{}, fn(q)
	})
	return err
}

// Query1 runs fn against the pool and returns its result, retrying
// transient failures with a doubling delay.
func Query1[T any](ctx context.Context, fn func(*Queries) (T, error)) (T, error) {
	var zero T
	var err error

	delay := retryDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if defaultPool == nil {
			return zero, ErrDisabled
		}

		var v T
		if v, err = fn(New(defaultPool)); err == nil {
			return v, nil
		}
		if !transient(err) || attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	if transient(err) {
		return zero, fmt.Errorf("query failed after %d attempts: %w", maxAttempts, err)
	}
	return zero, err
}
