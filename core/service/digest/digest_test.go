package digest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbrief/core/domain"
	"mailbrief/core/port/out"
)

type fakeSummarizer struct {
	digestSummary string
	digestErr     error
}

func (f *fakeSummarizer) SummarizeOne(ctx context.Context, email *domain.Email, maxLen int) (string, error) {
	return "", nil
}

func (f *fakeSummarizer) SummarizeDigest(ctx context.Context, stats domain.DigestStats, top out.DigestTopItems, isManualFetch bool) (string, error) {
	return f.digestSummary, f.digestErr
}

func sampleBatch() []*domain.Email {
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	return []*domain.Email{
		{EmailID: "a:1", Subject: "Weekly sync", Sender: "x@y.com", Category: domain.CategoryWork, Importance: 3, Date: now, ProviderTag: "gmail", AccountAddress: "a@gmail.com", Body: "会议 notes"},
		{EmailID: "a:2", Subject: "Invoice due", Sender: "billing@y.com", Category: domain.CategoryFinance, Importance: 2, Date: now, ProviderTag: "gmail", AccountAddress: "a@gmail.com", Body: "payment 截止 tomorrow"},
		{EmailID: "a:3", Subject: "Newsletter", Sender: "news@y.com", Category: domain.CategoryNews, Importance: 1, Date: now, ProviderTag: "gmail", AccountAddress: "a@gmail.com", Body: "weekly roundup"},
	}
}

func TestAssemble_StatsAndCountsAreConsistent(t *testing.T) {
	assembler := NewAssembler(&fakeSummarizer{digestSummary: "已总结"})
	batch := sampleBatch()

	d, err := assembler.Assemble(context.Background(), 7, batch, false, time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, 3, d.EmailCount)
	assert.Len(t, d.Content.Emails, d.EmailCount)

	sum := 0
	for _, count := range d.Content.Stats.ByCategory {
		sum += count
	}
	assert.Equal(t, d.EmailCount, sum)

	assert.Equal(t, 1, d.Content.Stats.UrgentCount)
	assert.Equal(t, 2, d.Content.Stats.ImportantCount)
	assert.Len(t, d.Content.Stats.Meetings, 1)
	assert.Len(t, d.Content.Stats.Deadlines, 1)
	assert.Len(t, d.Content.Stats.FinancialItems, 1)
	assert.Equal(t, "已总结", d.Summary)
}

func TestAssemble_FallsBackToDeterministicSummary(t *testing.T) {
	assembler := NewAssembler(&fakeSummarizer{digestSummary: ""})
	batch := sampleBatch()

	d, err := assembler.Assemble(context.Background(), 7, batch, true, time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.NotEmpty(t, d.Summary)
	assert.Contains(t, d.Summary, "3")
}

func TestTitle_Format(t *testing.T) {
	date := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	got := title(date, 5)
	assert.Equal(t, "2026-07-30 (Thursday) Email Digest - 5 emails", got)
}
