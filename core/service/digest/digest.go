// Package digest implements the Digest Assembler (§4.5): grouping a saved
// batch, computing statistics, and synthesizing the digest record.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mailbrief/core/domain"
	"mailbrief/core/port/out"
)

const listScratchLen = 500

var meetingKeywords = []string{"会议", "meeting", "例会", "讨论", "discussion", "面谈", "zoom", "腾讯会议"}
var taskKeywords = []string{"任务", "task", "todo", "待办", "需要完成", "请处理", "请完成"}
var deadlineKeywords = []string{"截止", "deadline", "最迹", "截至", "due date", "到期"}

// Assembler builds a Digest from a just-saved batch, delegating the prose
// summary to the Summarizer with a deterministic fallback.
type Assembler struct {
	summarizer out.Summarizer
}

// NewAssembler builds a digest Assembler.
func NewAssembler(summarizer out.Summarizer) *Assembler {
	return &Assembler{summarizer: summarizer}
}

// Assemble implements §4.5 end to end for one user's just-saved batch.
func (a *Assembler) Assemble(ctx context.Context, userID int64, batch []*domain.Email, isManualFetch bool, now time.Time) (*domain.Digest, error) {
	stats := computeStats(batch)
	groups := groupByBucket(batch)
	views := buildEmailViews(batch)

	summary, err := a.synthesizeSummary(ctx, stats, isManualFetch, now)
	if err != nil {
		return nil, err
	}

	date := now.UTC()
	digest := &domain.Digest{
		UserID: userID,
		Date:   date,
		Title:  title(date, len(batch)),
		Content: domain.DigestContent{
			Groups: groups,
			Stats:  stats,
			Emails: views,
		},
		EmailCount: len(batch),
		Summary:    summary,
		CreatedAt:  now,
	}

	return digest, nil
}

// groupByBucket assigns each email into as many buckets as apply:
// "important" when importance>=2, its category, and additionally "urgent"
// when importance>=3. Empty buckets are omitted.
func groupByBucket(batch []*domain.Email) map[string][]string {
	groups := make(map[string][]string)
	add := func(bucket, emailID string) {
		groups[bucket] = append(groups[bucket], emailID)
	}

	for _, e := range batch {
		if e.Importance >= 2 {
			add("important", e.EmailID)
		}
		if e.Importance >= 3 {
			add("urgent", e.EmailID)
		}
		add(string(e.Category), e.EmailID)
	}

	return groups
}

func computeStats(batch []*domain.Email) domain.DigestStats {
	stats := domain.DigestStats{
		ByCategory: make(map[domain.Category]int),
		ByProvider: make(map[string]int),
		ByAccount:  make(map[string]int),
		ByHour:     make(map[int]int),
	}

	for _, e := range batch {
		stats.Total++
		if e.Importance >= 3 {
			stats.UrgentCount++
		}
		if e.Importance >= 2 {
			stats.ImportantCount++
		}
		stats.ByCategory[e.Category]++
		stats.ByProvider[e.ProviderTag]++
		stats.ByAccount[e.AccountAddress]++
		stats.ByHour[e.Date.Hour()]++

		scratch := strings.ToLower(listScratch(e))

		if containsAny(scratch, meetingKeywords) {
			t := e.Date
			stats.Meetings = append(stats.Meetings, domain.DigestListItem{
				Subject: e.Subject, Sender: e.Sender, Time: &t,
			})
		}
		if containsAny(scratch, taskKeywords) {
			stats.Tasks = append(stats.Tasks, domain.DigestListItem{Subject: e.Subject, Sender: e.Sender})
		}
		if containsAny(scratch, deadlineKeywords) {
			stats.Deadlines = append(stats.Deadlines, domain.DigestListItem{Subject: e.Subject, Sender: e.Sender})
		}
		if e.Category == domain.CategoryFinance {
			stats.FinancialItems = append(stats.FinancialItems, domain.DigestListItem{Subject: e.Subject, Sender: e.Sender})
		}
	}

	return stats
}

func listScratch(e *domain.Email) string {
	body := e.Body
	if len(body) > listScratchLen {
		body = body[:listScratchLen]
	}
	return e.Subject + " " + body
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func buildEmailViews(batch []*domain.Email) []domain.DigestEmailView {
	views := make([]domain.DigestEmailView, 0, len(batch))
	for _, e := range batch {
		views = append(views, domain.DigestEmailView{
			EmailID:    e.EmailID,
			Subject:    e.Subject,
			Sender:     e.Sender,
			Time:       e.Date,
			Summary:    e.Summary,
			Category:   e.Category,
			Importance: e.Importance,
		})
	}
	return views
}

func title(date time.Time, count int) string {
	return fmt.Sprintf("%s (%s) Email Digest - %d emails", date.Format("2006-01-02"), date.Weekday().String(), count)
}

func topN(items []domain.DigestListItem, n int) []domain.DigestListItem {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func (a *Assembler) synthesizeSummary(ctx context.Context, stats domain.DigestStats, isManualFetch bool, now time.Time) (string, error) {
	top := out.DigestTopItems{
		Meetings:       topN(stats.Meetings, 3),
		Tasks:          topN(stats.Tasks, 3),
		Deadlines:      topN(stats.Deadlines, 3),
		FinancialItems: topN(stats.FinancialItems, 3),
	}

	summary, err := a.summarizer.SummarizeDigest(ctx, stats, top, isManualFetch)
	if err != nil || summary == "" {
		return deterministicSummary(stats, isManualFetch, now), nil
	}
	return summary, nil
}

// shanghaiHour loads the Asia/Shanghai zone on each call; if the tzdata isn't available the
// greeting falls back to UTC hour bucketing rather than failing the run.
func shanghaiHour(now time.Time) int {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return now.UTC().Hour()
	}
	return now.In(loc).Hour()
}

func deterministicSummary(stats domain.DigestStats, isManualFetch bool, now time.Time) string {
	var b strings.Builder

	if !isManualFetch {
		b.WriteString(greeting(shanghaiHour(now)))
		b.WriteString("，")
	}

	fmt.Fprintf(&b, "本次共收到邮件 %d 封", stats.Total)
	if stats.UrgentCount > 0 {
		fmt.Fprintf(&b, "，其中 %d 封紧急", stats.UrgentCount)
	}
	if stats.ImportantCount > 0 {
		fmt.Fprintf(&b, "，%d 封重要", stats.ImportantCount)
	}
	b.WriteString("。")

	if len(stats.Meetings) > 0 {
		fmt.Fprintf(&b, "有 %d 个会议待关注。", len(stats.Meetings))
	}
	if len(stats.Deadlines) > 0 {
		fmt.Fprintf(&b, "有 %d 项截止事项。", len(stats.Deadlines))
	}
	if len(stats.Tasks) > 0 {
		fmt.Fprintf(&b, "有 %d 项待办任务。", len(stats.Tasks))
	}

	return b.String()
}

func greeting(hour int) string {
	switch {
	case hour < 12:
		return "早上好"
	case hour < 18:
		return "下午好"
	default:
		return "晚上好"
	}
}
