package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mailbrief/core/domain"
)

type accountRow struct {
	ID               int64         `db:"id"`
	UserID           int64         `db:"user_id"`
	Address          string        `db:"address"`
	ProviderTag      string        `db:"provider_tag"`
	CredentialSecret string        `db:"credential_secret"`
	Active           bool          `db:"active"`
	LastCheck        sql.NullTime  `db:"last_check"`
	TotalEmails      int64         `db:"total_emails"`
}

func (r accountRow) toDomain() *domain.EmailAccount {
	a := &domain.EmailAccount{
		ID:               r.ID,
		UserID:           r.UserID,
		Address:          r.Address,
		ProviderTag:      r.ProviderTag,
		CredentialSecret: r.CredentialSecret,
		Active:           r.Active,
		TotalEmails:      r.TotalEmails,
	}
	if r.LastCheck.Valid {
		t := r.LastCheck.Time.UTC()
		a.LastCheck = &t
	}
	return a
}

func (s *Store) ListActiveAccounts(ctx context.Context, userID int64) ([]*domain.EmailAccount, error) {
	const query = `
		SELECT id, user_id, address, provider_tag, credential_secret, active, last_check, total_emails
		FROM email_accounts
		WHERE user_id = $1 AND active = true
		ORDER BY id ASC`

	var rows []accountRow
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("persistence: list active accounts for user %d: %w", userID, err)
	}

	accounts := make([]*domain.EmailAccount, len(rows))
	for i, r := range rows {
		accounts[i] = r.toDomain()
	}
	return accounts, nil
}

func (s *Store) UpdateAccountStats(ctx context.Context, accountID int64, lastCheck time.Time, totalEmails int64) error {
	const query = `UPDATE email_accounts SET last_check = $1, total_emails = $2 WHERE id = $3`
	if _, err := s.db.ExecContext(ctx, query, lastCheck.UTC(), totalEmails, accountID); err != nil {
		return fmt.Errorf("persistence: update account stats for account %d: %w", accountID, err)
	}
	return nil
}

// ListSchedulableUsers returns every user with at least one active account,
// the population the Scheduler registers a trigger for.
func (s *Store) ListSchedulableUsers(ctx context.Context) ([]int64, error) {
	const query = `SELECT DISTINCT user_id FROM email_accounts WHERE active = true ORDER BY user_id ASC`

	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("persistence: list schedulable users: %w", err)
	}
	return ids, nil
}
