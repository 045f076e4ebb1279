// Package classification implements the Rule Matcher and the four-layer
// Classifier (§4.3): a linear rule scan with a RuleMatcher helper,
// sender-match-type enum, AND/OR keyword logic, and an integer scoring
// formula.
package classification

import (
	"path"
	"regexp"
	"strings"

	"mailbrief/core/domain"
)

// MatchSender implements §4.3.1's match_sender primitive.
func MatchSender(sender, pattern string, matchType domain.SenderMatchType) bool {
	sender = strings.ToLower(sender)
	pattern = strings.ToLower(pattern)

	switch matchType {
	case domain.SenderMatchExact:
		return sender == pattern
	case domain.SenderMatchContains:
		return strings.Contains(sender, pattern)
	case domain.SenderMatchDomain:
		if strings.HasPrefix(pattern, "@") {
			return strings.HasSuffix(sender, pattern)
		}
		return strings.Contains(sender, pattern)
	case domain.SenderMatchWildcard:
		ok, err := path.Match(pattern, sender)
		return err == nil && ok
	case domain.SenderMatchRegex:
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return false
		}
		return re.MatchString(sender)
	default:
		return strings.Contains(sender, pattern)
	}
}

// MatchKeywords implements §4.3.1's match_keywords primitive. Empty
// keywords always matches; logic defaults to OR.
func MatchKeywords(text string, keywords []string, logic domain.KeywordLogic) bool {
	nonEmpty := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if strings.TrimSpace(kw) != "" {
			nonEmpty = append(nonEmpty, kw)
		}
	}
	if len(nonEmpty) == 0 {
		return true
	}

	textLower := strings.ToLower(text)
	and := logic == domain.LogicAND

	for _, kw := range nonEmpty {
		hit := strings.Contains(textLower, strings.ToLower(kw))
		if and && !hit {
			return false
		}
		if !and && hit {
			return true
		}
	}
	return and
}

// Matches reports whether rule matches email, per §4.3.1: every configured
// dimension must match; a rule with no configured pattern field never
// matches; sender failure short-circuits the other dimensions.
func Matches(rule *domain.ClassificationRule, sender, subject, body string) bool {
	configured := false

	if rule.HasSenderPattern {
		configured = true
		if !MatchSender(sender, rule.SenderPattern, rule.SenderMatchType) {
			return false
		}
	}
	if len(rule.SubjectKeywords) > 0 {
		configured = true
		if !MatchKeywords(subject, rule.SubjectKeywords, rule.SubjectLogic) {
			return false
		}
	}
	if len(rule.BodyKeywords) > 0 {
		configured = true
		if !MatchKeywords(body, rule.BodyKeywords, domain.LogicOR) {
			return false
		}
	}

	return configured
}

// Score implements §4.3.1's tie-break scoring for a matched rule.
func Score(rule *domain.ClassificationRule) int {
	score := rule.Priority

	switch rule.SenderMatchType {
	case domain.SenderMatchExact:
		score += 10
	case domain.SenderMatchDomain:
		score += 5
	}

	if rule.HasSenderPattern {
		score += 5
	}
	if len(rule.SubjectKeywords) > 0 {
		score += 5
	}
	if len(rule.BodyKeywords) > 0 {
		score += 5
	}

	return score
}

// RuleMatcher holds a user's active rules in the order given and scans all
// of them for each message; it does no grouping or pre-filtering.
type RuleMatcher struct {
	rules []*domain.ClassificationRule
}

// NewRuleMatcher builds a matcher from a user's active rule set, already
// ordered by priority DESC, created_at DESC per §4.3.2 step 1.
func NewRuleMatcher(rules []*domain.ClassificationRule) *RuleMatcher {
	return &RuleMatcher{rules: rules}
}

// Best returns the highest-scoring rule that matches (sender, subject,
// body), or nil if none match.
func (m *RuleMatcher) Best(sender, subject, body string) *domain.ClassificationRule {
	var best *domain.ClassificationRule
	bestScore := -1

	for _, rule := range m.rules {
		if !Matches(rule, sender, subject, body) {
			continue
		}
		s := Score(rule)
		if s > bestScore {
			best = rule
			bestScore = s
		}
	}

	return best
}
