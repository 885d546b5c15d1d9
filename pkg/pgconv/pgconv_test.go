package pgconv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimestamptz(t *testing.T) {
	assert.False(t, Timestamptz(time.Time{}).Valid)
	assert.True(t, Time(Timestamptz(time.Time{})).IsZero())

	at := time.Date(2024, 5, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	ts := Timestamptz(at)
	assert.True(t, ts.Valid)
	assert.Equal(t, time.UTC, ts.Time.Location())
	assert.True(t, at.Equal(Time(ts)))
}
