package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mailbrief/core/domain"
	"mailbrief/pkg/snowflake"
)

const emailColumns = `
	id, user_id, email_id, content_hash, subject, sender, recipients, date,
	account_address, provider_tag, body, body_html, body_chinese_translation,
	body_english_translation, summary, ai_summary, category, importance,
	classification_method, processed, deleted, is_forwarded, forward_level,
	original_sender, original_sender_email, forwarded_by, forwarded_by_email,
	forward_chain, attachments, created_at, updated_at`

// emailRow mirrors the emails table. Slice/struct fields are stored as JSON
// text rather than a native array type, since the shared pgx-stdlib/sqlx
// scan path has no array scanner wired in.
type emailRow struct {
	ID             int64     `db:"id"`
	UserID         int64     `db:"user_id"`
	EmailID        string    `db:"email_id"`
	ContentHash    string    `db:"content_hash"`
	Subject        string    `db:"subject"`
	Sender         string    `db:"sender"`
	Recipients     string    `db:"recipients"` // JSON []string
	Date           time.Time `db:"date"`
	AccountAddress string    `db:"account_address"`
	ProviderTag    string    `db:"provider_tag"`

	Body                   string `db:"body"`
	BodyHTML               string `db:"body_html"`
	BodyChineseTranslation string `db:"body_chinese_translation"`
	BodyEnglishTranslation string `db:"body_english_translation"`

	Summary              string `db:"summary"`
	AISummary            string `db:"ai_summary"`
	Category             string `db:"category"`
	Importance           int    `db:"importance"`
	ClassificationMethod string `db:"classification_method"`
	Processed            bool   `db:"processed"`
	Deleted              bool   `db:"deleted"`

	IsForwarded         bool   `db:"is_forwarded"`
	ForwardLevel        int    `db:"forward_level"`
	OriginalSender      string `db:"original_sender"`
	OriginalSenderEmail string `db:"original_sender_email"`
	ForwardedBy         string `db:"forwarded_by"`
	ForwardedByEmail    string `db:"forwarded_by_email"`
	ForwardChain        string `db:"forward_chain"` // JSON []domain.ForwardChainEntry
	Attachments         string `db:"attachments"`    // JSON []domain.Attachment

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func toRow(e *domain.Email) emailRow {
	if e.ID == 0 {
		e.ID = snowflake.ID()
	}
	return emailRow{
		ID:                     e.ID,
		UserID:                 e.UserID,
		EmailID:                e.EmailID,
		ContentHash:            e.ContentHash,
		Subject:                e.Subject,
		Sender:                 e.Sender,
		Recipients:             marshalJSON(e.Recipients),
		Date:                   e.Date.UTC(),
		AccountAddress:         e.AccountAddress,
		ProviderTag:            e.ProviderTag,
		Body:                   e.Body,
		BodyHTML:               e.BodyHTML,
		BodyChineseTranslation: e.BodyChineseTranslation,
		BodyEnglishTranslation: e.BodyEnglishTranslation,
		Summary:                e.Summary,
		AISummary:              e.AISummary,
		Category:               string(e.Category),
		Importance:             e.Importance,
		ClassificationMethod:   string(e.ClassificationMethod),
		Processed:              e.Processed,
		Deleted:                e.Deleted,
		IsForwarded:            e.IsForwarded,
		ForwardLevel:           e.ForwardLevel,
		OriginalSender:         e.OriginalSender,
		OriginalSenderEmail:    e.OriginalSenderEmail,
		ForwardedBy:            e.ForwardedBy,
		ForwardedByEmail:       e.ForwardedByEmail,
		ForwardChain:           marshalJSON(e.ForwardChain),
		Attachments:            marshalJSON(e.Attachments),
	}
}

func (r emailRow) toDomain() *domain.Email {
	e := &domain.Email{
		ID:                     r.ID,
		UserID:                 r.UserID,
		EmailID:                r.EmailID,
		ContentHash:            r.ContentHash,
		Subject:                r.Subject,
		Sender:                 r.Sender,
		Date:                   r.Date.UTC(),
		AccountAddress:         r.AccountAddress,
		ProviderTag:            r.ProviderTag,
		Body:                   r.Body,
		BodyHTML:               r.BodyHTML,
		BodyChineseTranslation: r.BodyChineseTranslation,
		BodyEnglishTranslation: r.BodyEnglishTranslation,
		Summary:                r.Summary,
		AISummary:              r.AISummary,
		Category:               domain.Category(r.Category),
		Importance:             r.Importance,
		ClassificationMethod:   domain.ClassificationMethod(r.ClassificationMethod),
		Processed:              r.Processed,
		Deleted:                r.Deleted,
		IsForwarded:            r.IsForwarded,
		ForwardLevel:           r.ForwardLevel,
		OriginalSender:         r.OriginalSender,
		OriginalSenderEmail:    r.OriginalSenderEmail,
		ForwardedBy:            r.ForwardedBy,
		ForwardedByEmail:       r.ForwardedByEmail,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
	_ = json.Unmarshal([]byte(r.Recipients), &e.Recipients)
	_ = json.Unmarshal([]byte(r.ForwardChain), &e.ForwardChain)
	_ = json.Unmarshal([]byte(r.Attachments), &e.Attachments)
	return e
}

// UpsertEmail implements out.Store's conflict-on-(user_id,email_id)-or-
// (user_id,content_hash) overwrite semantics: a row already keyed on either
// arbiter is overwritten in place rather than duplicated. Since Postgres
// ON CONFLICT only accepts one arbiter per statement, the content_hash
// arbiter is resolved first by an explicit lookup; only when it misses does
// the statement fall through to the email_id arbiter.
func (s *Store) UpsertEmail(ctx context.Context, email *domain.Email) error {
	row := toRow(email)

	var existingID int64
	err := s.db.GetContext(ctx, &existingID,
		`SELECT id FROM emails WHERE user_id = $1 AND content_hash = $2 AND email_id != $3`,
		row.UserID, row.ContentHash, row.EmailID)
	switch {
	case err == nil:
		row.ID = existingID
		email.ID = existingID
		if err := s.updateEmailByID(ctx, row); err != nil {
			return fmt.Errorf("persistence: upsert email %s (content_hash match): %w", email.EmailID, err)
		}
		return nil
	case err != sql.ErrNoRows:
		return fmt.Errorf("persistence: content_hash lookup for %s: %w", email.EmailID, err)
	}

	const query = `
		INSERT INTO emails (` + emailColumns + `)
		VALUES (:id, :user_id, :email_id, :content_hash, :subject, :sender, :recipients, :date,
			:account_address, :provider_tag, :body, :body_html, :body_chinese_translation,
			:body_english_translation, :summary, :ai_summary, :category, :importance,
			:classification_method, :processed, :deleted, :is_forwarded, :forward_level,
			:original_sender, :original_sender_email, :forwarded_by, :forwarded_by_email,
			:forward_chain, :attachments, now(), now())
		ON CONFLICT (user_id, email_id) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			subject = EXCLUDED.subject,
			sender = EXCLUDED.sender,
			recipients = EXCLUDED.recipients,
			date = EXCLUDED.date,
			body = EXCLUDED.body,
			body_html = EXCLUDED.body_html,
			summary = EXCLUDED.summary,
			ai_summary = EXCLUDED.ai_summary,
			category = EXCLUDED.category,
			importance = EXCLUDED.importance,
			classification_method = EXCLUDED.classification_method,
			processed = EXCLUDED.processed,
			is_forwarded = EXCLUDED.is_forwarded,
			forward_level = EXCLUDED.forward_level,
			original_sender = EXCLUDED.original_sender,
			original_sender_email = EXCLUDED.original_sender_email,
			forward_chain = EXCLUDED.forward_chain,
			attachments = EXCLUDED.attachments,
			updated_at = now()`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("persistence: upsert email %s: %w", email.EmailID, err)
	}
	return nil
}

// updateEmailByID overwrites every mutable column of an existing row
// matched by its content_hash, including the email_id itself — the new
// message's email_id supersedes whatever the row was keyed on before.
func (s *Store) updateEmailByID(ctx context.Context, row emailRow) error {
	const query = `
		UPDATE emails SET
			email_id = :email_id,
			subject = :subject,
			sender = :sender,
			recipients = :recipients,
			date = :date,
			body = :body,
			body_html = :body_html,
			summary = :summary,
			ai_summary = :ai_summary,
			category = :category,
			importance = :importance,
			classification_method = :classification_method,
			processed = :processed,
			is_forwarded = :is_forwarded,
			forward_level = :forward_level,
			original_sender = :original_sender,
			original_sender_email = :original_sender_email,
			forward_chain = :forward_chain,
			attachments = :attachments,
			updated_at = now()
		WHERE id = :id`

	_, err := s.db.NamedExecContext(ctx, query, row)
	return err
}

// GetRecentSaved returns a user's most recently saved, non-deleted emails.
func (s *Store) GetRecentSaved(ctx context.Context, userID int64, limit int) ([]*domain.Email, error) {
	const query = `
		SELECT ` + emailColumns + ` FROM emails
		WHERE user_id = $1 AND deleted = false
		ORDER BY date DESC
		LIMIT $2`

	var rows []emailRow
	if err := s.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("persistence: get recent saved for user %d: %w", userID, err)
	}

	emails := make([]*domain.Email, len(rows))
	for i, r := range rows {
		emails[i] = r.toDomain()
	}
	return emails, nil
}

func (s *Store) UpdateEmailSummary(ctx context.Context, userID int64, emailID, aiSummary string) error {
	const query = `UPDATE emails SET ai_summary = $1, updated_at = now() WHERE user_id = $2 AND email_id = $3`
	if _, err := s.db.ExecContext(ctx, query, aiSummary, userID, emailID); err != nil {
		return fmt.Errorf("persistence: update summary for %s: %w", emailID, err)
	}
	return nil
}

func (s *Store) UpdateEmailClassification(ctx context.Context, userID int64, emailID string, category domain.Category, importance int, method domain.ClassificationMethod) error {
	const query = `
		UPDATE emails SET category = $1, importance = $2, classification_method = $3, updated_at = now()
		WHERE user_id = $4 AND email_id = $5`
	if _, err := s.db.ExecContext(ctx, query, string(category), importance, string(method), userID, emailID); err != nil {
		return fmt.Errorf("persistence: update classification for %s: %w", emailID, err)
	}
	return nil
}

func (s *Store) SoftDeleteEmail(ctx context.Context, userID int64, emailID string) error {
	return s.setDeleted(ctx, userID, emailID, true)
}

func (s *Store) RestoreEmail(ctx context.Context, userID int64, emailID string) error {
	return s.setDeleted(ctx, userID, emailID, false)
}

func (s *Store) setDeleted(ctx context.Context, userID int64, emailID string, deleted bool) error {
	const query = `UPDATE emails SET deleted = $1, updated_at = now() WHERE user_id = $2 AND email_id = $3`
	if _, err := s.db.ExecContext(ctx, query, deleted, userID, emailID); err != nil {
		return fmt.Errorf("persistence: set deleted=%v for %s: %w", deleted, emailID, err)
	}
	return nil
}

func (s *Store) PurgeEmail(ctx context.Context, userID int64, emailID string) error {
	const query = `DELETE FROM emails WHERE user_id = $1 AND email_id = $2`
	if _, err := s.db.ExecContext(ctx, query, userID, emailID); err != nil {
		return fmt.Errorf("persistence: purge %s: %w", emailID, err)
	}
	return nil
}

func (s *Store) ClearAllEmails(ctx context.Context, userID int64) (int, error) {
	const query = `UPDATE emails SET deleted = true, updated_at = now() WHERE user_id = $1 AND deleted = false`
	res, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("persistence: clear all emails for user %d: %w", userID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) SaveTranslation(ctx context.Context, userID int64, emailID, language, text string) error {
	column := "body_chinese_translation"
	if language != "zh" {
		column = "body_english_translation"
	}
	query := fmt.Sprintf(`UPDATE emails SET %s = $1, updated_at = now() WHERE user_id = $2 AND email_id = $3`, column)
	if _, err := s.db.ExecContext(ctx, query, text, userID, emailID); err != nil {
		return fmt.Errorf("persistence: save translation for %s: %w", emailID, err)
	}
	return nil
}

func (s *Store) GetTranslation(ctx context.Context, userID int64, emailID, language string) (string, error) {
	column := "body_chinese_translation"
	if language != "zh" {
		column = "body_english_translation"
	}
	query := fmt.Sprintf(`SELECT %s FROM emails WHERE user_id = $1 AND email_id = $2`, column)

	var text sql.NullString
	if err := s.db.GetContext(ctx, &text, query, userID, emailID); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("persistence: get translation for %s: %w", emailID, err)
	}
	return text.String, nil
}

func (s *Store) ClearTranslations(ctx context.Context, userID int64, emailID string) error {
	const query = `
		UPDATE emails SET body_chinese_translation = '', body_english_translation = '', updated_at = now()
		WHERE user_id = $1 AND email_id = $2`
	if _, err := s.db.ExecContext(ctx, query, userID, emailID); err != nil {
		return fmt.Errorf("persistence: clear translations for %s: %w", emailID, err)
	}
	return nil
}

// HistoricalEmailIDs returns every email_id ever stored for a user,
// deleted or not.
func (s *Store) HistoricalEmailIDs(ctx context.Context, userID int64) (map[string]struct{}, error) {
	const query = `SELECT email_id FROM emails WHERE user_id = $1`

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("persistence: historical email_ids for user %d: %w", userID, err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// ContentHashesSince returns content_hash values within a window.
func (s *Store) ContentHashesSince(ctx context.Context, userID int64, since time.Time) (map[string]struct{}, error) {
	const query = `SELECT content_hash FROM emails WHERE user_id = $1 AND created_at >= $2`

	var hashes []string
	if err := s.db.SelectContext(ctx, &hashes, query, userID, since.UTC()); err != nil {
		return nil, fmt.Errorf("persistence: content hashes since %s for user %d: %w", since, userID, err)
	}

	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set, nil
}
