// Package pipeline implements the User Pipeline (§4.7): the single linear
// per-run state machine that wires the Fetcher, Forward Detector (inside
// the Fetcher), Classifier, Dedupe Engine, Summarizer, Digest Assembler,
// Store, and CacheInvalidator together for one user. Sequential numbered
// steps, per-step error logging that doesn't abort the whole run, and a
// single terminal notification written on exit.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"mailbrief/core/domain"
	"mailbrief/core/port/out"
	"mailbrief/core/service/classification"
	"mailbrief/core/service/dedupe"
	"mailbrief/core/service/digest"
	"mailbrief/core/service/summarize"
	"mailbrief/pkg/logger"
)

// interCallDelay is the §5 pacing delay between per-email Summarizer calls,
// to respect the provider's implicit rate limits.
const interCallDelay = 500 * time.Millisecond

// Pipeline runs one user's fetch-classify-summarize-persist-digest cycle.
type Pipeline struct {
	store      out.Store
	cache      out.CacheInvalidator
	fetcher    out.EmailFetcher
	classifier *classification.Classifier
	dedupe     *dedupe.Engine
	summarizer out.Summarizer
	assembler  *digest.Assembler
	log        *logger.Logger
	sleep      func(time.Duration)
}

// New builds a Pipeline from its collaborators.
func New(
	store out.Store,
	cache out.CacheInvalidator,
	fetcher out.EmailFetcher,
	classifier *classification.Classifier,
	dedupeEngine *dedupe.Engine,
	summarizer out.Summarizer,
	assembler *digest.Assembler,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		store:      store,
		cache:      cache,
		fetcher:    fetcher,
		classifier: classifier,
		dedupe:     dedupeEngine,
		summarizer: summarizer,
		assembler:  assembler,
		log:        log,
		sleep:      time.Sleep,
	}
}

// Result summarizes one completed run, mostly useful for the scheduler's
// error-accounting and for tests.
type Result struct {
	FoundCount   int
	SavedCount   int
	DigestSaved  bool
}

// RunScheduled is the Scheduler's entrypoint: always capped, never manual.
func (p *Pipeline) RunScheduled(ctx context.Context, userID int64) (Result, error) {
	return p.Run(ctx, userID, false, false)
}

// RunManual is the explicit manual-trigger entrypoint. unlimited requests
// the bulk-import mode (§9 OQ2's max_emails_per_account == nil case), never
// reachable from the Scheduler.
func (p *Pipeline) RunManual(ctx context.Context, userID int64, unlimited bool) (Result, error) {
	return p.Run(ctx, userID, true, unlimited)
}

// Run executes the full state machine for one user. isManualFetch biases
// only the digest summary prompt's tone. unlimited, when true, ignores the
// configured per-account email cap (the bulk-import mode, §9 OQ2) — reached
// only through RunManual, never the Scheduler.
func (p *Pipeline) Run(ctx context.Context, userID int64, isManualFetch, unlimited bool) (Result, error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pipeline: panic recovered for user %d: %v", userID, r)
			p.notify(ctx, userID, domain.NotificationError, "邮件收取出错", fmt.Sprintf("处理过程中发生异常: %v", r))
		}
	}()

	cfg, err := p.store.GetUserConfig(ctx, userID)
	if err != nil {
		p.notify(ctx, userID, domain.NotificationError, "邮件收取出错", "无法加载用户配置")
		return Result{}, err
	}
	rc := coerceConfig(cfg)
	if unlimited {
		rc.MaxEmailsPerAccount = nil
	}

	accounts, err := p.store.ListActiveAccounts(ctx, userID)
	if err != nil {
		p.notify(ctx, userID, domain.NotificationError, "邮件收取出错", "无法加载邮箱账户")
		return Result{}, err
	}

	var candidates []*domain.Email
	for _, account := range accounts {
		fetched, err := p.fetchAccount(ctx, account, rc)
		if err != nil {
			p.log.WithError(err).Warn("pipeline: fetch failed for account %s (user %d)", account.Address, userID)
			continue
		}
		candidates = append(candidates, fetched...)
	}

	foundCount := len(candidates)
	survivors, tally := p.dedupe.Filter(ctx, userID, rc.DuplicateCheckDays, candidates)

	if len(survivors) == 0 {
		body := "没有发现新邮件"
		if tally.ContentDuplicate > 0 || tally.EmailIDDuplicate > 0 {
			body = fmt.Sprintf("发现 %d 封邮件，全部为重复邮件", foundCount)
		}
		p.notify(ctx, userID, domain.NotificationInfo, "邮件收取完成", body)
		return Result{FoundCount: foundCount}, nil
	}

	savedCount := p.classifySummarizeAndPersist(ctx, userID, survivors, rc)

	for _, account := range accounts {
		if err := p.store.UpdateAccountStats(ctx, account.ID, time.Now().UTC(), account.TotalEmails+int64(savedCount)); err != nil {
			p.log.WithError(err).Warn("pipeline: failed to update account stats for %s", account.Address)
		}
	}

	digestSaved := false
	if savedCount > 0 {
		batch, err := p.store.GetRecentSaved(ctx, userID, savedCount)
		if err != nil {
			p.log.WithError(err).Warn("pipeline: failed to load recently saved batch for user %d", userID)
		} else {
			d, err := p.assembler.Assemble(ctx, userID, batch, isManualFetch, time.Now().UTC())
			if err != nil {
				p.log.WithError(err).Warn("pipeline: digest assembly failed for user %d", userID)
			} else if err := p.store.SaveDigest(ctx, d); err != nil {
				p.log.WithError(err).Warn("pipeline: digest save failed for user %d", userID)
			} else {
				digestSaved = true
				p.invalidate(ctx, userID, out.CacheScopeNewDigest)
			}
		}
	}

	p.notify(ctx, userID, domain.NotificationSuccess, "新邮件到达",
		fmt.Sprintf("本次共找到 %d 封邮件，保存 %d 封", foundCount, savedCount))

	return Result{FoundCount: foundCount, SavedCount: savedCount, DigestSaved: digestSaved}, nil
}

func (p *Pipeline) fetchAccount(ctx context.Context, account *domain.EmailAccount, rc runConfig) ([]*domain.Email, error) {
	return p.fetcher.Fetch(ctx, out.FetchRequest{
		Account:   account,
		SinceDays: rc.CheckDaysBack,
		MaxEmails: rc.MaxEmailsPerAccount,
	})
}

func (p *Pipeline) classifySummarizeAndPersist(ctx context.Context, userID int64, survivors []*domain.Email, rc runConfig) int {
	saved := 0
	for _, email := range survivors {
		email.Subject = truncate(email.Subject, rc.SubjectMaxLength)
		email.Body = truncate(email.Body, rc.BodyMaxLength)

		result, err := p.classifier.Classify(ctx, userID, email.Sender, email.Subject, email.Body)
		if err != nil {
			p.log.WithError(err).Warn("pipeline: classification failed for %s, using default", email.EmailID)
			result = classification.Result{Category: domain.CategoryGeneral, Importance: 1, Method: domain.ClassificationDefault}
		}
		email.Category = result.Category
		email.Importance = result.Importance
		email.ClassificationMethod = result.Method

		summary, err := p.summarizer.SummarizeOne(ctx, email, 200)
		p.sleep(interCallDelay)
		if err != nil || summary == "" {
			summary = summarize.FallbackOne(email)
		}
		email.Summary = summary
		email.Processed = true

		if err := p.store.UpsertEmail(ctx, email); err != nil {
			p.log.WithError(err).Warn("pipeline: persist failed for %s", email.EmailID)
			continue
		}
		p.invalidate(ctx, userID, out.CacheScopeNewEmail)
		saved++
	}
	return saved
}

func (p *Pipeline) notify(ctx context.Context, userID int64, kind domain.NotificationType, title, message string) {
	if err := p.store.SaveNotification(ctx, userID, title, message, kind); err != nil {
		p.log.WithError(err).Warn("pipeline: failed to save notification for user %d", userID)
		return
	}
	p.invalidate(ctx, userID, out.CacheScopeAll)
}

func (p *Pipeline) invalidate(ctx context.Context, userID int64, scope out.CacheScope) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Invalidate(ctx, userID, scope); err != nil {
		p.log.WithError(err).Warn("pipeline: cache invalidation failed for user %d scope %s", userID, scope)
	}
}
