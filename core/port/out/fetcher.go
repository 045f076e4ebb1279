package out

import (
	"context"

	"mailbrief/core/domain"
)

// FetchRequest is the Fetcher's input contract (§4.1): one account, a
// lookback window, and an optional cap on how many messages to return.
type FetchRequest struct {
	Account   *domain.EmailAccount
	SinceDays int
	MaxEmails *int // nil means unlimited
}

// EmailFetcher connects to one account over IMAP and yields a finite
// sequence of parsed candidate messages newer than the cutoff. Candidates
// have every Email field populated except Summary, AISummary, ContentHash,
// ID, and Processed (false).
//
// Failure is always a typed *apperr.Error; the fetcher never retries
// internally, and the caller (User Pipeline) decides to skip the account
// and continue.
type EmailFetcher interface {
	Fetch(ctx context.Context, req FetchRequest) ([]*domain.Email, error)
}
