package out

import (
	"context"

	"mailbrief/core/domain"
)

// Summarizer is the external LLM capability. Both methods are expected to
// fail closed: on any error the caller falls back to a deterministic
// template rather than propagating.
type Summarizer interface {
	// SummarizeOne produces a short Chinese summary of a single email, at
	// most maxLen characters. Returns "" on failure.
	SummarizeOne(ctx context.Context, email *domain.Email, maxLen int) (string, error)

	// SummarizeDigest produces a digest-level summary (<=500 Chinese
	// words) across a batch's statistics and representative items.
	// isManualFetch biases tone: manual runs omit the time-of-day
	// greeting.
	SummarizeDigest(ctx context.Context, stats domain.DigestStats, topItems DigestTopItems, isManualFetch bool) (string, error)
}

// DigestTopItems carries the representative top-3 items per extracted list
// that the digest summary prompt enumerates.
type DigestTopItems struct {
	Meetings       []domain.DigestListItem
	Tasks          []domain.DigestListItem
	Deadlines      []domain.DigestListItem
	FinancialItems []domain.DigestListItem
}
