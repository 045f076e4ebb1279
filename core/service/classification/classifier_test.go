package classification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbrief/core/domain"
)

type fakeRuleRepo struct {
	rules     []*domain.ClassificationRule
	incremented []int64
}

func (f *fakeRuleRepo) ListActiveRules(ctx context.Context, userID int64) ([]*domain.ClassificationRule, error) {
	return f.rules, nil
}

func (f *fakeRuleRepo) IncrementRuleMatch(ctx context.Context, ruleID int64, at time.Time) error {
	f.incremented = append(f.incremented, ruleID)
	return nil
}

func TestClassify_RuleWinsOverKeyword(t *testing.T) {
	repo := &fakeRuleRepo{rules: []*domain.ClassificationRule{
		{
			ID:               42,
			SenderPattern:    "@billing.example.com",
			HasSenderPattern: true,
			SenderMatchType:  domain.SenderMatchDomain,
			TargetCategory:   domain.CategoryFinance,
			TargetImportance: 3,
			Priority:         10,
			IsActive:         true,
		},
	}}
	c := NewClassifier(repo)

	result, err := c.Classify(context.Background(), 7, "noreply@billing.example.com", "Invoice", "please review, 会议 notes attached")

	require.NoError(t, err)
	assert.Equal(t, domain.CategoryFinance, result.Category)
	assert.Equal(t, 3, result.Importance)
	assert.Equal(t, domain.ClassificationRule, result.Method)
	assert.Equal(t, []int64{42}, repo.incremented)
}

func TestClassify_KeywordFallback(t *testing.T) {
	c := NewClassifier(&fakeRuleRepo{})

	result, err := c.Classify(context.Background(), 7, "ops@shop.example.com", "Your order has shipped", "your 订单 is on its way")

	require.NoError(t, err)
	assert.Equal(t, domain.CategoryShopping, result.Category)
	assert.Equal(t, domain.ClassificationKeyword, result.Method)
}

func TestClassify_DefaultWhenNothingMatches(t *testing.T) {
	c := NewClassifier(&fakeRuleRepo{})

	result, err := c.Classify(context.Background(), 7, "someone@mysite.org", "hello", "just checking in")

	require.NoError(t, err)
	assert.Equal(t, domain.CategoryGeneral, result.Category)
	assert.Equal(t, 1, result.Importance)
	assert.Equal(t, domain.ClassificationDefault, result.Method)
}

func TestMatchSender_Domain(t *testing.T) {
	assert.True(t, MatchSender("noreply@example.com", "@example.com", domain.SenderMatchDomain))
	assert.False(t, MatchSender("noreply@other.com", "@example.com", domain.SenderMatchDomain))
}

func TestMatchKeywords_ANDRequiresAll(t *testing.T) {
	assert.True(t, MatchKeywords("weekly report on project status", []string{"report", "project"}, domain.LogicAND))
	assert.False(t, MatchKeywords("weekly report only", []string{"report", "project"}, domain.LogicAND))
}

func TestRuleMatches_InertWithNoPatterns(t *testing.T) {
	rule := &domain.ClassificationRule{}
	assert.False(t, Matches(rule, "a@b.com", "subject", "body"))
}
