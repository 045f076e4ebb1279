// Package llm adapts github.com/sashabaranov/go-openai to the Summarizer
// port, wrapped in a sony/gobreaker circuit breaker. Grounded on the
// teacher's core/agent/llm client (chat completion call shape) and the
// gobreaker settings used in adapter/out/provider's Gmail adapter — there
// the breaker protects the flaky Gmail REST dependency; here it protects
// the equally flaky LLM HTTP dependency.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"mailbrief/core/domain"
	"mailbrief/core/port/out"
	"mailbrief/pkg/logger"
)

// Config configures the Summarizer adapter.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

const defaultModel = "gpt-4o-mini"

// Summarizer implements out.Summarizer over a circuit-broken OpenAI chat
// completion client.
type Summarizer struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	cb          *gobreaker.CircuitBreaker
	log         *logger.Logger
}

// New builds a Summarizer adapter.
func New(cfg Config, log *logger.Logger) *Summarizer {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	cbSettings := gobreaker.Settings{
		Name:        "summarizer",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithField("breaker", name).WithField("from", from.String()).WithField("to", to.String()).
				Warn("summarizer circuit breaker state change")
		},
	}

	return &Summarizer{
		client:      openai.NewClient(cfg.APIKey),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
		log:         log,
	}
}

// SummarizeOne produces a short Chinese summary of one email. Any failure,
// including an open circuit, returns ("", err); callers fall back to the
// deterministic template per §7.
func (s *Summarizer) SummarizeOne(ctx context.Context, email *domain.Email, maxLen int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"用不超过%d个汉字的中文总结以下邮件，直接给出总结内容：\n主题：%s\n发件人：%s\n正文：%s",
		maxLen, email.Subject, email.Sender, truncateRunes(email.Body, 2000),
	)

	result, err := s.complete(ctx, "你是一个邮件摘要助手。", prompt)
	if err != nil {
		s.log.WithError(err).Warn("summarize_one failed for email %s", email.EmailID)
		return "", err
	}

	return truncateRunes(strings.TrimSpace(result), maxLen), nil
}

// SummarizeDigest produces a digest-level summary across a batch's
// statistics and representative items.
func (s *Summarizer) SummarizeDigest(ctx context.Context, stats domain.DigestStats, top out.DigestTopItems, isManualFetch bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := digestPrompt(stats, top, isManualFetch)
	result, err := s.complete(ctx, "你是一个邮件简报助手，用不超过500字的中文总结今天的邮件情况。", prompt)
	if err != nil {
		s.log.WithError(err).Warn("summarize_digest failed")
		return "", err
	}

	return strings.TrimSpace(result), nil
}

func (s *Summarizer) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.model,
			MaxTokens:   s.maxTokens,
			Temperature: s.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func digestPrompt(stats domain.DigestStats, top out.DigestTopItems, isManualFetch bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "今日共收到邮件%d封，紧急%d封，重要%d封。\n", stats.Total, stats.UrgentCount, stats.ImportantCount)
	if len(top.Meetings) > 0 {
		b.WriteString("会议：\n")
		for _, m := range top.Meetings {
			fmt.Fprintf(&b, "- %s (%s)\n", m.Subject, m.Sender)
		}
	}
	if len(top.Deadlines) > 0 {
		b.WriteString("截止事项：\n")
		for _, d := range top.Deadlines {
			fmt.Fprintf(&b, "- %s (%s)\n", d.Subject, d.Sender)
		}
	}
	if len(top.Tasks) > 0 {
		b.WriteString("待办任务：\n")
		for _, t := range top.Tasks {
			fmt.Fprintf(&b, "- %s (%s)\n", t.Subject, t.Sender)
		}
	}
	if len(top.FinancialItems) > 0 {
		b.WriteString("财务相关：\n")
		for _, f := range top.FinancialItems {
			fmt.Fprintf(&b, "- %s (%s)\n", f.Subject, f.Sender)
		}
	}
	if isManualFetch {
		b.WriteString("这是一次手动收取，请省略时段问候语。")
	} else {
		b.WriteString("请以合适的时段问候语开头。")
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
