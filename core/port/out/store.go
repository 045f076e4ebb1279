// Package out declares the collaborator contracts the core depends on but
// does not implement: persistence, cache invalidation, and summarization.
// Concrete adapters live under adapter/out/*.
package out

import (
	"context"
	"time"

	"mailbrief/core/domain"
)

// CacheScope names the kind of mutation that just happened, so the Cache
// Invalidator can decide which keys to drop. The core never reads the
// cache directly.
type CacheScope string

const (
	CacheScopeNewEmail       CacheScope = "new_email"
	CacheScopeDeleteEmail    CacheScope = "delete_email"
	CacheScopePurgeEmail     CacheScope = "purge_email"
	CacheScopeRestoreEmail   CacheScope = "restore_email"
	CacheScopeClearAllEmails CacheScope = "clear_all_emails"
	CacheScopeNewDigest      CacheScope = "new_digest"
	CacheScopeConfigChange   CacheScope = "config_change"
	CacheScopeAll            CacheScope = "all"
)

// Store is the persistence contract the pipeline invokes. The pipeline
// follows each email upsert, digest save and notification with a
// CacheInvalidator.Invalidate call at the call site; account-stats updates
// and rule match counts are not followed by one. Store implementations do
// not invalidate the cache themselves (see §9's
// cache-invalidation-coupling redesign note).
type Store interface {
	// UpsertEmail inserts or overwrites keyed by (user_id, email_id) OR
	// (user_id, content_hash); on conflict, all mutable fields are
	// overwritten and updated_at bumped. date is normalized to UTC naive
	// before the write.
	UpsertEmail(ctx context.Context, email *domain.Email) error

	// GetRecentSaved returns the most recently saved emails for a user,
	// newest date first, used to build a digest from exactly what a run
	// just saved.
	GetRecentSaved(ctx context.Context, userID int64, limit int) ([]*domain.Email, error)

	UpdateEmailSummary(ctx context.Context, userID int64, emailID string, aiSummary string) error
	UpdateEmailClassification(ctx context.Context, userID int64, emailID string, category domain.Category, importance int, method domain.ClassificationMethod) error

	SoftDeleteEmail(ctx context.Context, userID int64, emailID string) error
	RestoreEmail(ctx context.Context, userID int64, emailID string) error
	PurgeEmail(ctx context.Context, userID int64, emailID string) error
	ClearAllEmails(ctx context.Context, userID int64) (int, error)

	SaveTranslation(ctx context.Context, userID int64, emailID string, language string, text string) error
	GetTranslation(ctx context.Context, userID int64, emailID string, language string) (string, error)
	ClearTranslations(ctx context.Context, userID int64, emailID string) error

	// HistoricalEmailIDs returns every email_id ever stored for a user,
	// deleted or not — the precise signal that prevents re-saving a
	// message across runs.
	HistoricalEmailIDs(ctx context.Context, userID int64) (map[string]struct{}, error)
	// ContentHashesSince returns content_hash values stored for a user
	// within the given window, a width-bounded content filter.
	ContentHashesSince(ctx context.Context, userID int64, since time.Time) (map[string]struct{}, error)

	SaveDigest(ctx context.Context, digest *domain.Digest) error
	ListDigests(ctx context.Context, userID int64, page, pageSize int) ([]*domain.Digest, error)
	GetDigest(ctx context.Context, userID int64, digestID int64) (*domain.Digest, error)

	ListActiveAccounts(ctx context.Context, userID int64) ([]*domain.EmailAccount, error)
	UpdateAccountStats(ctx context.Context, accountID int64, lastCheck time.Time, totalEmails int64) error

	ListActiveRules(ctx context.Context, userID int64) ([]*domain.ClassificationRule, error)
	CreateRule(ctx context.Context, rule *domain.ClassificationRule) error
	UpdateRule(ctx context.Context, rule *domain.ClassificationRule) error
	DeleteRule(ctx context.Context, userID int64, ruleID int64) error
	IncrementRuleMatch(ctx context.Context, ruleID int64, at time.Time) error

	RecordManualReclassification(ctx context.Context, rec *domain.ManualClassificationRecord) error

	SaveNotification(ctx context.Context, userID int64, title, message string, kind domain.NotificationType) error

	GetUserConfig(ctx context.Context, userID int64) (domain.UserConfig, error)

	// ListSchedulableUsers returns every user ID with at least one active
	// email account, the population the Scheduler registers a trigger for.
	ListSchedulableUsers(ctx context.Context) ([]int64, error)
}
