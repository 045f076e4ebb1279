package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbrief/core/domain"
	"mailbrief/pkg/logger"
)

type fakeStore struct {
	historicalIDs map[string]struct{}
	hashes        map[string]struct{}
	historyErr    error
	hashErr       error
}

func (f *fakeStore) HistoricalEmailIDs(ctx context.Context, userID int64) (map[string]struct{}, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.historicalIDs, nil
}

func (f *fakeStore) ContentHashesSince(ctx context.Context, userID int64, since time.Time) (map[string]struct{}, error) {
	if f.hashErr != nil {
		return nil, f.hashErr
	}
	return f.hashes, nil
}

func newTestEmail(emailID, subject, sender string, date time.Time) *domain.Email {
	return &domain.Email{
		EmailID:    emailID,
		Subject:    subject,
		Sender:     sender,
		Date:       date,
		Recipients: []string{"me@example.com"},
		Body:       "body text",
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.LevelFatal + 1})
}

func TestFilter_DropsHistoricalEmailID(t *testing.T) {
	date := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candidate := newTestEmail("a@gmail.com:1", "S1", "x@y.com", date)
	store := &fakeStore{
		historicalIDs: map[string]struct{}{"a@gmail.com:1": {}},
		hashes:        map[string]struct{}{},
	}
	eng := NewEngine(store, 7, testLogger())

	survivors, tally := eng.Filter(context.Background(), 7, 30, []*domain.Email{candidate})

	assert.Empty(t, survivors)
	assert.Equal(t, 1, tally.EmailIDDuplicate)
	assert.Equal(t, 0, tally.Survived)
}

func TestFilter_DropsInBatchDuplicateContentHash(t *testing.T) {
	date := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c1 := newTestEmail("a@gmail.com:1", "S1", "x@y.com", date)
	c2 := newTestEmail("a@gmail.com:2", "S1", "x@y.com", date) // identical fingerprint fields
	store := &fakeStore{historicalIDs: map[string]struct{}{}, hashes: map[string]struct{}{}}
	eng := NewEngine(store, 7, testLogger())

	survivors, tally := eng.Filter(context.Background(), 7, 30, []*domain.Email{c1, c2})

	require.Len(t, survivors, 1)
	assert.Equal(t, "a@gmail.com:1", survivors[0].EmailID)
	assert.Equal(t, 1, tally.ContentDuplicate)
}

func TestFilter_FailsOpenOnStoreError(t *testing.T) {
	date := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candidate := newTestEmail("a@gmail.com:1", "S1", "x@y.com", date)
	store := &fakeStore{historyErr: assertErr{"boom"}}
	eng := NewEngine(store, 7, testLogger())

	survivors, tally := eng.Filter(context.Background(), 7, 30, []*domain.Email{candidate})

	require.Len(t, survivors, 1)
	assert.Equal(t, 1, tally.Survived)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }

func TestFingerprint_Deterministic(t *testing.T) {
	date := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e1 := newTestEmail("a@gmail.com:1", "S1", "x@y.com", date)
	e2 := newTestEmail("a@gmail.com:9", "S1", "x@y.com", date)

	assert.Equal(t, Fingerprint(e1), Fingerprint(e2))
}
