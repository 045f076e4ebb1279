package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mailbrief/core/domain"
	"mailbrief/pkg/snowflake"
)

type digestRow struct {
	ID         int64     `db:"id"`
	UserID     int64     `db:"user_id"`
	Date       time.Time `db:"date"`
	Title      string    `db:"title"`
	Content    string    `db:"content"` // JSON domain.DigestContent
	EmailCount int       `db:"email_count"`
	Summary    string    `db:"summary"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r digestRow) toDomain() *domain.Digest {
	d := &domain.Digest{
		ID:         r.ID,
		UserID:     r.UserID,
		Date:       r.Date.UTC(),
		Title:      r.Title,
		EmailCount: r.EmailCount,
		Summary:    r.Summary,
		CreatedAt:  r.CreatedAt,
	}
	_ = json.Unmarshal([]byte(r.Content), &d.Content)
	return d
}

// SaveDigest inserts one digest row; digests are append-only, one per run.
// The ID is assigned client-side via the Snowflake generator rather than a
// database sequence, so callers can reference d.ID before the row commits.
func (s *Store) SaveDigest(ctx context.Context, d *domain.Digest) error {
	const query = `
		INSERT INTO digests (id, user_id, date, title, content, email_count, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`

	d.ID = snowflake.ID()
	content := marshalJSON(d.Content)
	if _, err := s.db.ExecContext(ctx, query, d.ID, d.UserID, d.Date.UTC(), d.Title, content, d.EmailCount, d.Summary); err != nil {
		return fmt.Errorf("persistence: save digest for user %d: %w", d.UserID, err)
	}
	return nil
}

// ListDigests returns a user's digests newest-first, paginated.
func (s *Store) ListDigests(ctx context.Context, userID int64, page, pageSize int) ([]*domain.Digest, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const query = `
		SELECT id, user_id, date, title, content, email_count, summary, created_at
		FROM digests WHERE user_id = $1
		ORDER BY date DESC
		LIMIT $2 OFFSET $3`

	var rows []digestRow
	if err := s.db.SelectContext(ctx, &rows, query, userID, pageSize, offset); err != nil {
		return nil, fmt.Errorf("persistence: list digests for user %d: %w", userID, err)
	}

	digests := make([]*domain.Digest, len(rows))
	for i, r := range rows {
		digests[i] = r.toDomain()
	}
	return digests, nil
}

func (s *Store) GetDigest(ctx context.Context, userID int64, digestID int64) (*domain.Digest, error) {
	const query = `
		SELECT id, user_id, date, title, content, email_count, summary, created_at
		FROM digests WHERE user_id = $1 AND id = $2`

	var row digestRow
	if err := s.db.GetContext(ctx, &row, query, userID, digestID); err != nil {
		return nil, fmt.Errorf("persistence: get digest %d for user %d: %w", digestID, userID, err)
	}
	return row.toDomain(), nil
}
