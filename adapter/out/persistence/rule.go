package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mailbrief/core/domain"
)

type ruleRow struct {
	ID               int64          `db:"id"`
	UserID           int64          `db:"user_id"`
	RuleName         string         `db:"rule_name"`
	SenderPattern    string         `db:"sender_pattern"`
	HasSenderPattern bool           `db:"has_sender_pattern"`
	SenderMatchType  string         `db:"sender_match_type"`
	SubjectKeywords  string         `db:"subject_keywords"` // JSON []string
	SubjectLogic     string         `db:"subject_logic"`
	BodyKeywords     string         `db:"body_keywords"` // JSON []string
	TargetCategory   string         `db:"target_category"`
	TargetImportance int            `db:"target_importance"`
	Priority         int            `db:"priority"`
	IsActive         bool           `db:"is_active"`
	MatchCount       int64          `db:"match_count"`
	LastMatchedAt    sql.NullTime   `db:"last_matched_at"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r ruleRow) toDomain() *domain.ClassificationRule {
	rule := &domain.ClassificationRule{
		ID:               r.ID,
		UserID:           r.UserID,
		RuleName:         r.RuleName,
		SenderPattern:    r.SenderPattern,
		HasSenderPattern: r.HasSenderPattern,
		SenderMatchType:  domain.SenderMatchType(r.SenderMatchType),
		SubjectLogic:     domain.KeywordLogic(r.SubjectLogic),
		TargetCategory:   domain.Category(r.TargetCategory),
		TargetImportance: r.TargetImportance,
		Priority:         r.Priority,
		IsActive:         r.IsActive,
		MatchCount:       r.MatchCount,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	_ = json.Unmarshal([]byte(r.SubjectKeywords), &rule.SubjectKeywords)
	_ = json.Unmarshal([]byte(r.BodyKeywords), &rule.BodyKeywords)
	if r.LastMatchedAt.Valid {
		t := r.LastMatchedAt.Time.UTC()
		rule.LastMatchedAt = &t
	}
	return rule
}

const ruleColumns = `
	id, user_id, rule_name, sender_pattern, has_sender_pattern, sender_match_type,
	subject_keywords, subject_logic, body_keywords, target_category, target_importance,
	priority, is_active, match_count, last_matched_at, created_at, updated_at`

func (s *Store) ListActiveRules(ctx context.Context, userID int64) ([]*domain.ClassificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM classification_rules
		WHERE user_id = $1 AND is_active = true
		ORDER BY priority DESC, created_at DESC`

	var rows []ruleRow
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("persistence: list active rules for user %d: %w", userID, err)
	}

	rules := make([]*domain.ClassificationRule, len(rows))
	for i, r := range rows {
		rules[i] = r.toDomain()
	}
	return rules, nil
}

func (s *Store) CreateRule(ctx context.Context, rule *domain.ClassificationRule) error {
	const query = `
		INSERT INTO classification_rules (
			user_id, rule_name, sender_pattern, has_sender_pattern, sender_match_type,
			subject_keywords, subject_logic, body_keywords, target_category, target_importance,
			priority, is_active, match_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, now(), now())
		RETURNING id`

	err := s.db.QueryRowContext(ctx, query,
		rule.UserID, rule.RuleName, rule.SenderPattern, rule.HasSenderPattern, string(rule.SenderMatchType),
		marshalJSON(rule.SubjectKeywords), string(rule.SubjectLogic), marshalJSON(rule.BodyKeywords),
		string(rule.TargetCategory), rule.TargetImportance, rule.Priority, rule.IsActive,
	).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("persistence: create rule for user %d: %w", rule.UserID, err)
	}
	return nil
}

func (s *Store) UpdateRule(ctx context.Context, rule *domain.ClassificationRule) error {
	const query = `
		UPDATE classification_rules SET
			rule_name = $1, sender_pattern = $2, has_sender_pattern = $3, sender_match_type = $4,
			subject_keywords = $5, subject_logic = $6, body_keywords = $7, target_category = $8,
			target_importance = $9, priority = $10, is_active = $11, updated_at = now()
		WHERE id = $12 AND user_id = $13`

	_, err := s.db.ExecContext(ctx, query,
		rule.RuleName, rule.SenderPattern, rule.HasSenderPattern, string(rule.SenderMatchType),
		marshalJSON(rule.SubjectKeywords), string(rule.SubjectLogic), marshalJSON(rule.BodyKeywords),
		string(rule.TargetCategory), rule.TargetImportance, rule.Priority, rule.IsActive,
		rule.ID, rule.UserID,
	)
	if err != nil {
		return fmt.Errorf("persistence: update rule %d: %w", rule.ID, err)
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, userID int64, ruleID int64) error {
	const query = `DELETE FROM classification_rules WHERE user_id = $1 AND id = $2`
	if _, err := s.db.ExecContext(ctx, query, userID, ruleID); err != nil {
		return fmt.Errorf("persistence: delete rule %d: %w", ruleID, err)
	}
	return nil
}

func (s *Store) IncrementRuleMatch(ctx context.Context, ruleID int64, at time.Time) error {
	const query = `UPDATE classification_rules SET match_count = match_count + 1, last_matched_at = $1 WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, query, at.UTC(), ruleID); err != nil {
		return fmt.Errorf("persistence: increment rule match for rule %d: %w", ruleID, err)
	}
	return nil
}

func (s *Store) RecordManualReclassification(ctx context.Context, rec *domain.ManualClassificationRecord) error {
	const query = `
		INSERT INTO manual_classification_records (
			user_id, email_id, original_category, new_category,
			original_importance, new_importance, sender, subject, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`

	_, err := s.db.ExecContext(ctx, query,
		rec.UserID, rec.EmailID, string(rec.OriginalCategory), string(rec.NewCategory),
		rec.OriginalImportance, rec.NewImportance, rec.Sender, rec.Subject,
	)
	if err != nil {
		return fmt.Errorf("persistence: record manual reclassification for %s: %w", rec.EmailID, err)
	}
	return nil
}
