// Package pgconv converts between pgx column types and Go values.
package pgconv

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Timestamptz stores t, or NULL for the zero time.
func Timestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

// Time reads ts back; NULL becomes the zero time.
func Time(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}

