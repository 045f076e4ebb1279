// Package dedupe implements the Dedupe Engine (§4.4): a content fingerprint
// and a filter against a user's stored history.
package dedupe

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"mailbrief/core/domain"
	"mailbrief/pkg/logger"
)

// nowUTC is a seam for tests to control the dedupe window's anchor time.
var nowUTC = func() time.Time { return time.Now().UTC() }

// HistoryStore is the narrow slice of the Store port the dedupe engine
// needs: the per-user email_id history and the windowed content_hash set.
type HistoryStore interface {
	HistoricalEmailIDs(ctx context.Context, userID int64) (map[string]struct{}, error)
	ContentHashesSince(ctx context.Context, userID int64, since time.Time) (map[string]struct{}, error)
}

const bodyPrefixLen = 2000

// Fingerprint computes the MD5 content hash per §4.4:
// md5(subject | sender | date_iso | recipients_joined | body_prefix_2000).
func Fingerprint(email *domain.Email) string {
	fields := []string{
		email.Subject,
		email.Sender,
		email.Date.UTC().Format("2006-01-02T15:04:05Z07:00"),
		strings.Join(email.Recipients, ","),
		truncate(email.Body, bodyPrefixLen),
	}
	sum := md5.Sum([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Tally counts how many candidates were dropped and why, for per-batch
// logging.
type Tally struct {
	Total            int
	EmailIDDuplicate int
	ContentDuplicate int
	Survived         int
}

// Engine filters a candidate batch against a user's stored history.
type Engine struct {
	store                HistoryStore
	defaultDuplicateDays int
	log                  *logger.Logger
}

// NewEngine builds a dedupe Engine. defaultDuplicateDays is the DB-wide
// default (7) used when the user hasn't configured duplicate_check_days.
func NewEngine(store HistoryStore, defaultDuplicateDays int, log *logger.Logger) *Engine {
	return &Engine{store: store, defaultDuplicateDays: defaultDuplicateDays, log: log}
}

// Filter implements §4.4's filter(candidates, user_id) → survivors contract.
// Each candidate's ContentHash is (re)computed before the history lookup,
// per the "recomputed on every candidate" rule. On internal failure it
// fails open: the full input is returned unchanged, since dedupe is a cost
// saver, not a correctness guarantee.
func (e *Engine) Filter(ctx context.Context, userID int64, duplicateCheckDays int, candidates []*domain.Email) ([]*domain.Email, Tally) {
	for _, c := range candidates {
		c.ContentHash = Fingerprint(c)
	}

	historicalIDs, err := e.store.HistoricalEmailIDs(ctx, userID)
	if err != nil {
		e.log.WithError(err).Warn("dedupe: historical email_id lookup failed, failing open for user %d", userID)
		return candidates, Tally{Total: len(candidates), Survived: len(candidates)}
	}

	window := duplicateCheckDays
	if window <= 0 {
		window = e.defaultDuplicateDays
	}
	since := nowUTC().AddDate(0, 0, -window)
	windowedHashes, err := e.store.ContentHashesSince(ctx, userID, since)
	if err != nil {
		e.log.WithError(err).Warn("dedupe: content_hash lookup failed, failing open for user %d", userID)
		return candidates, Tally{Total: len(candidates), Survived: len(candidates)}
	}

	seenIDs := make(map[string]struct{}, len(candidates))
	seenHashes := make(map[string]struct{}, len(candidates))

	survivors := make([]*domain.Email, 0, len(candidates))
	tally := Tally{Total: len(candidates)}

	for _, c := range candidates {
		if _, dup := historicalIDs[c.EmailID]; dup {
			tally.EmailIDDuplicate++
			continue
		}
		if _, dup := seenIDs[c.EmailID]; dup {
			tally.EmailIDDuplicate++
			continue
		}

		if _, dup := windowedHashes[c.ContentHash]; dup {
			tally.ContentDuplicate++
			continue
		}
		if _, dup := seenHashes[c.ContentHash]; dup {
			tally.ContentDuplicate++
			continue
		}

		seenIDs[c.EmailID] = struct{}{}
		seenHashes[c.ContentHash] = struct{}{}
		survivors = append(survivors, c)
	}

	tally.Survived = len(survivors)
	e.log.WithField("user_id", userID).WithField("total", tally.Total).
		WithField("email_id_dup", tally.EmailIDDuplicate).
		WithField("content_dup", tally.ContentDuplicate).
		WithField("survived", tally.Survived).
		Info("dedupe batch complete")

	return survivors, tally
}
