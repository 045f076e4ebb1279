package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbrief/core/domain"
	"mailbrief/core/port/out"
	"mailbrief/core/service/classification"
	"mailbrief/core/service/dedupe"
	"mailbrief/core/service/digest"
	"mailbrief/pkg/logger"
)

// fakeStore implements out.Store entirely in memory for pipeline tests.
type fakeStore struct {
	emails        map[string]*domain.Email
	config        domain.UserConfig
	accounts      []*domain.EmailAccount
	notifications []notification
	digests       []*domain.Digest
	rules         []*domain.ClassificationRule
}

type notification struct {
	UserID  int64
	Title   string
	Message string
	Kind    domain.NotificationType
}

func newFakeStore() *fakeStore {
	return &fakeStore{emails: make(map[string]*domain.Email), config: domain.UserConfig{}}
}

func (f *fakeStore) UpsertEmail(ctx context.Context, email *domain.Email) error {
	f.emails[email.EmailID] = email
	return nil
}
func (f *fakeStore) GetRecentSaved(ctx context.Context, userID int64, limit int) ([]*domain.Email, error) {
	var out []*domain.Email
	for _, e := range f.emails {
		out = append(out, e)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (f *fakeStore) UpdateEmailSummary(ctx context.Context, userID int64, emailID, aiSummary string) error {
	return nil
}
func (f *fakeStore) UpdateEmailClassification(ctx context.Context, userID int64, emailID string, category domain.Category, importance int, method domain.ClassificationMethod) error {
	return nil
}
func (f *fakeStore) SoftDeleteEmail(ctx context.Context, userID int64, emailID string) error {
	return nil
}
func (f *fakeStore) RestoreEmail(ctx context.Context, userID int64, emailID string) error { return nil }
func (f *fakeStore) PurgeEmail(ctx context.Context, userID int64, emailID string) error   { return nil }
func (f *fakeStore) ClearAllEmails(ctx context.Context, userID int64) (int, error)        { return 0, nil }
func (f *fakeStore) SaveTranslation(ctx context.Context, userID int64, emailID, language, text string) error {
	return nil
}
func (f *fakeStore) GetTranslation(ctx context.Context, userID int64, emailID, language string) (string, error) {
	return "", nil
}
func (f *fakeStore) ClearTranslations(ctx context.Context, userID int64, emailID string) error {
	return nil
}
func (f *fakeStore) HistoricalEmailIDs(ctx context.Context, userID int64) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}
func (f *fakeStore) ContentHashesSince(ctx context.Context, userID int64, since time.Time) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}
func (f *fakeStore) SaveDigest(ctx context.Context, d *domain.Digest) error {
	f.digests = append(f.digests, d)
	return nil
}
func (f *fakeStore) ListDigests(ctx context.Context, userID int64, page, pageSize int) ([]*domain.Digest, error) {
	return f.digests, nil
}
func (f *fakeStore) GetDigest(ctx context.Context, userID int64, digestID int64) (*domain.Digest, error) {
	return nil, nil
}
func (f *fakeStore) ListActiveAccounts(ctx context.Context, userID int64) ([]*domain.EmailAccount, error) {
	return f.accounts, nil
}
func (f *fakeStore) UpdateAccountStats(ctx context.Context, accountID int64, lastCheck time.Time, totalEmails int64) error {
	return nil
}
func (f *fakeStore) ListActiveRules(ctx context.Context, userID int64) ([]*domain.ClassificationRule, error) {
	return f.rules, nil
}
func (f *fakeStore) CreateRule(ctx context.Context, rule *domain.ClassificationRule) error { return nil }
func (f *fakeStore) UpdateRule(ctx context.Context, rule *domain.ClassificationRule) error { return nil }
func (f *fakeStore) DeleteRule(ctx context.Context, userID int64, ruleID int64) error      { return nil }
func (f *fakeStore) IncrementRuleMatch(ctx context.Context, ruleID int64, at time.Time) error {
	return nil
}
func (f *fakeStore) RecordManualReclassification(ctx context.Context, rec *domain.ManualClassificationRecord) error {
	return nil
}
func (f *fakeStore) SaveNotification(ctx context.Context, userID int64, title, message string, kind domain.NotificationType) error {
	f.notifications = append(f.notifications, notification{userID, title, message, kind})
	return nil
}
func (f *fakeStore) GetUserConfig(ctx context.Context, userID int64) (domain.UserConfig, error) {
	return f.config, nil
}
func (f *fakeStore) ListSchedulableUsers(ctx context.Context) ([]int64, error) {
	var ids []int64
	for _, a := range f.accounts {
		ids = append(ids, a.UserID)
	}
	return ids, nil
}

type fakeCache struct{ calls int }

func (f *fakeCache) Invalidate(ctx context.Context, userID int64, scope out.CacheScope) error {
	f.calls++
	return nil
}

type fakeFetcher struct {
	emails []*domain.Email
	err    error
}

func (f *fakeFetcher) Fetch(ctx context.Context, req out.FetchRequest) ([]*domain.Email, error) {
	return f.emails, f.err
}

type fakeSummarizer struct{}

func (f *fakeSummarizer) SummarizeOne(ctx context.Context, email *domain.Email, maxLen int) (string, error) {
	return "已总结: " + email.Subject, nil
}
func (f *fakeSummarizer) SummarizeDigest(ctx context.Context, stats domain.DigestStats, top out.DigestTopItems, isManualFetch bool) (string, error) {
	return "摘要", nil
}

func newTestPipeline(store *fakeStore, fetcher out.EmailFetcher) *Pipeline {
	classifier := classification.NewClassifier(store)
	dedupeEngine := dedupe.NewEngine(store, 7, logger.New(logger.Config{Level: logger.LevelFatal + 1}))
	assembler := digest.NewAssembler(&fakeSummarizer{})
	p := New(store, &fakeCache{}, fetcher, classifier, dedupeEngine, &fakeSummarizer{}, assembler, logger.New(logger.Config{Level: logger.LevelFatal + 1}))
	p.sleep = func(time.Duration) {}
	return p
}

func TestRun_HappyPathSavesAllAndWritesDigest(t *testing.T) {
	store := newFakeStore()
	store.accounts = []*domain.EmailAccount{{ID: 1, UserID: 7, Address: "a@gmail.com", ProviderTag: "gmail", Active: true}}
	now := time.Now().UTC()
	fetcher := &fakeFetcher{emails: []*domain.Email{
		{EmailID: "a@gmail.com:1", Subject: "S1", Sender: "x@y.com", Date: now},
		{EmailID: "a@gmail.com:2", Subject: "S2", Sender: "x@y.com", Date: now},
		{EmailID: "a@gmail.com:3", Subject: "S3", Sender: "x@y.com", Date: now},
	}}

	p := newTestPipeline(store, fetcher)
	result, err := p.RunScheduled(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, 3, result.FoundCount)
	assert.Equal(t, 3, result.SavedCount)
	assert.True(t, result.DigestSaved)
	assert.Len(t, store.emails, 3)
	require.Len(t, store.notifications, 1)
	assert.Equal(t, domain.NotificationSuccess, store.notifications[0].Kind)
}

func TestRun_EmptyBatchSendsInfoNotification(t *testing.T) {
	store := newFakeStore()
	store.accounts = []*domain.EmailAccount{{ID: 1, UserID: 7, Address: "a@gmail.com", Active: true}}
	fetcher := &fakeFetcher{emails: nil}

	p := newTestPipeline(store, fetcher)
	result, err := p.RunScheduled(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, 0, result.SavedCount)
	require.Len(t, store.notifications, 1)
	assert.Equal(t, domain.NotificationInfo, store.notifications[0].Kind)
	assert.False(t, result.DigestSaved)
}

func TestRun_AccountFetchErrorIsSkippedWithoutFailingRun(t *testing.T) {
	store := newFakeStore()
	store.accounts = []*domain.EmailAccount{
		{ID: 1, UserID: 7, Address: "bad@gmail.com", Active: true},
	}
	fetcher := &fakeFetcher{err: assertErr("boom")}

	p := newTestPipeline(store, fetcher)
	result, err := p.RunScheduled(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, 0, result.FoundCount)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
