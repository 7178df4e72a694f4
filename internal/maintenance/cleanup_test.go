package maintenance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	cutoff  time.Time
	deleted int64
	err     error
	calls   int
}

func (f *fakePruner) DeleteLinksSeenBefore(cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.deleted, f.err
}

func TestCleanup(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	db := &fakePruner{deleted: 7}

	deleted, err := Cleanup(db, Config{RetentionHours: 48}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
	assert.Equal(t, now.Add(-48*time.Hour), db.cutoff)
}

func TestCleanupErrors(t *testing.T) {
	db := &fakePruner{err: errors.New("db down")}

	_, err := Cleanup(db, Config{RetentionHours: 1}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	_, err = Cleanup(db, Config{}, time.Now())
	require.Error(t, err)
	assert.Equal(t, 1, db.calls)
}

func TestStartCleanupTickerDisabled(t *testing.T) {
	db := &fakePruner{}

	stop := StartCleanupTicker(db, Config{RetentionHours: 1})
	stop()
	assert.Equal(t, 0, db.calls)
}

func TestStartCleanupTickerStopTwice(t *testing.T) {
	db := &fakePruner{}

	stop := StartCleanupTicker(db, Config{RetentionHours: 1, CleanupIntervalMin: 60})
	stop()
	assert.NotPanics(t, stop)
	assert.Equal(t, 0, db.calls)
}
