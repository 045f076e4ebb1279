// Package forward implements the Forward Detector (§4.2): scoring a parsed
// message for forward signals and extracting the original sender chain.
//
// Grounded on original_source/services/forward_detector.py — the regex sets
// below reproduce its header/subject/body/HTML pattern lists and its
// priority-ordered sender extraction, expressed with Go's regexp package
// instead of Python's re.
package forward

import (
	"regexp"
	"strings"

	"mailbrief/core/domain"
)

// Message is the minimal input the detector needs: the parsed headers,
// subject, and both body renditions of one candidate email.
type Message struct {
	Headers  map[string][]string // header name -> values, as received
	Subject  string
	Body     string
	BodyHTML string
}

// Result is the detector's output contract.
type Result struct {
	IsForwarded         bool
	Confidence          int
	OriginalSender      string
	OriginalSenderEmail string
	ForwardLevel        int
	ForwardChain        []domain.ForwardChainEntry
}

var forwardedHeaders = []string{
	"X-Forwarded-For", "X-Forwarded-Message-Id", "Resent-From",
	"Resent-Sender", "X-Forwarded-To",
}

var forwardSubjectPattern = regexp.MustCompile(`(?i)^(re:\s*)?(fwd:|fw:|转发:|trans:|forward:|转:)`)

var forwardBodySeparatorPattern = regexp.MustCompile(`(?i)(-+\s*original message\s*-+|-+\s*forwarded message\s*-+|转发邮件)`)
var beginForwardedPattern = regexp.MustCompile(`(?i)begin forwarded message:`)
var gmailForwardBannerPattern = regexp.MustCompile(`(?i)-{10}\s*forwarded message\s*-{3,}`)
var fromToSubjectBlockPattern = regexp.MustCompile(`(?im)^from:.*\n^to:.*\n^subject:.*$`)
// chineseForwardBlockPattern matches the 发件人 line of the header block
// forwarded mail clients prepend to the quoted original; bodyLooksForwarded
// also requires a 主题 line (chineseForwardSubjectLinePattern). A 收件人 line
// is not checked.
var chineseForwardBlockPattern = regexp.MustCompile(`(?m)^发件人[:：].*$`)
var chineseForwardSubjectLinePattern = regexp.MustCompile(`(?m)^主题[:：]`)
var quotedFromPattern = regexp.MustCompile(`(?im)^>\s*from:`)
var onWrotePattern = regexp.MustCompile(`(?i)on\s.{1,80}wrote:`)

var htmlGmailQuotePattern = regexp.MustCompile(`(?i)class=["']?gmail_quote`)
var htmlOutlookBlockquotePattern = regexp.MustCompile(`(?is)<blockquote[^>]*>.{0,500}from:`)
var htmlGenericForwardedDivPattern = regexp.MustCompile(`(?i)<div[^>]*forwarded`)

// sender extraction patterns, tried in order; each captures a display name
// (may be empty) and an email address, except the bare-domestic and bare
// From forms, which capture the email alone, and the quoted form, which
// captures the raw "Name <email>" text.
var (
	senderPattern126      = regexp.MustCompile(`(?i)发件人[:：]\s*["“”'](.*?)["“”']?\s*<([^>]+)>`)
	senderPatternGeneric  = regexp.MustCompile(`(?i)from:\s*([^\n<]*?)\s*<([^>\n]+)>`)
	senderPatternOutlook  = regexp.MustCompile(`(?i)发件人[:：]\s*([^\n<]*?)\s*<([^>\n]+)>`)
	senderPatternDomestic = regexp.MustCompile(`(?i)发件人[:：]\s*([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
	senderPatternQuoted   = regexp.MustCompile(`(?im)^>\s*from:\s*([^\n]+)`)
	senderPatternZh       = regexp.MustCompile(`(?i)原始发件人[:：]\s*([^\n<]*?)\s*<([^>\n]+)>`)
	senderPatternBare     = regexp.MustCompile(`(?i)from:\s*([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
)

var emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)

// Detect scores a message for forward signals and, if any signal fires,
// extracts the original sender and forward chain.
func Detect(msg Message) Result {
	confidence := 0

	if hasAnyHeader(msg.Headers, forwardedHeaders) {
		confidence += 40
	}
	if forwardSubjectPattern.MatchString(strings.TrimSpace(msg.Subject)) {
		confidence += 25
	}
	if bodyLooksForwarded(msg.Body) {
		confidence += 20
	}
	if htmlLooksForwarded(msg.BodyHTML) {
		confidence += 15
	}

	res := Result{Confidence: confidence, IsForwarded: confidence > 0}
	if !res.IsForwarded {
		return res
	}

	name, email, chain := extractOriginalSender(msg)
	res.OriginalSender = name
	res.OriginalSenderEmail = email
	res.ForwardChain = chain

	separatorHits := countSeparatorMatches(msg.Body)
	switch {
	case separatorHits >= 1:
		res.ForwardLevel = separatorHits
	case email != "":
		res.ForwardLevel = 1
	default:
		res.ForwardLevel = 0
	}

	return res
}

func hasAnyHeader(headers map[string][]string, names []string) bool {
	for _, name := range names {
		for h := range headers {
			if strings.EqualFold(h, name) {
				return true
			}
		}
	}
	return false
}

func bodyLooksForwarded(body string) bool {
	return forwardBodySeparatorPattern.MatchString(body) ||
		beginForwardedPattern.MatchString(body) ||
		gmailForwardBannerPattern.MatchString(body) ||
		fromToSubjectBlockPattern.MatchString(body) ||
		(chineseForwardBlockPattern.MatchString(body) && chineseForwardSubjectLinePattern.MatchString(body)) ||
		quotedFromPattern.MatchString(body) ||
		onWrotePattern.MatchString(body)
}

func htmlLooksForwarded(html string) bool {
	if html == "" {
		return false
	}
	return htmlGmailQuotePattern.MatchString(html) ||
		htmlOutlookBlockquotePattern.MatchString(html) ||
		htmlGenericForwardedDivPattern.MatchString(html)
}

func countSeparatorMatches(body string) int {
	count := len(forwardBodySeparatorPattern.FindAllString(body, -1))
	count += len(beginForwardedPattern.FindAllString(body, -1))
	count += len(gmailForwardBannerPattern.FindAllString(body, -1))
	return count
}

// extractOriginalSender walks the priority list from §4.2: Resent-From
// header first, then the ordered regex set against the combined body, then
// HTML DOM probes. The first pattern yielding an email wins.
func extractOriginalSender(msg Message) (name, email string, chain []domain.ForwardChainEntry) {
	if v := headerValue(msg.Headers, "Resent-From"); v != "" {
		n, e := splitNameEmail(v)
		if e != "" {
			return n, normalizeEmail(e), []domain.ForwardChainEntry{{FromName: n, FromEmail: normalizeEmail(e)}}
		}
	}

	type candidate struct {
		re       *regexp.Regexp
		nameIdx  int // capture group index for name, 0 if none
		emailIdx int
	}
	candidates := []candidate{
		{senderPattern126, 1, 2},
		{senderPatternGeneric, 1, 2},
		{senderPatternOutlook, 1, 2},
		{senderPatternDomestic, 0, 1},
		{senderPatternQuoted, 0, 0}, // special: group 1 is a raw "Name <email>" string
		{senderPatternZh, 1, 2},
		{senderPatternBare, 0, 1},
	}

	for _, c := range candidates {
		m := c.re.FindStringSubmatch(msg.Body)
		if m == nil {
			continue
		}
		if c.re == senderPatternQuoted {
			n, e := splitNameEmail(m[1])
			if e == "" {
				e = firstEmail(m[1])
			}
			if e != "" {
				n = cleanDisplayName(n)
				return n, normalizeEmail(e), []domain.ForwardChainEntry{{FromName: n, FromEmail: normalizeEmail(e)}}
			}
			continue
		}
		var n, e string
		if c.nameIdx > 0 {
			n = cleanDisplayName(m[c.nameIdx])
		}
		if c.emailIdx > 0 {
			e = m[c.emailIdx]
		}
		if e != "" {
			return n, normalizeEmail(e), []domain.ForwardChainEntry{{FromName: n, FromEmail: normalizeEmail(e)}}
		}
	}

	if msg.BodyHTML != "" {
		if n, e := extractFromHTML(msg.BodyHTML); e != "" {
			return n, normalizeEmail(e), []domain.ForwardChainEntry{{FromName: n, FromEmail: normalizeEmail(e)}}
		}
	}

	return "", "", nil
}

func extractFromHTML(html string) (name, email string) {
	if m := htmlOutlookBlockquotePattern.FindString(html); m != "" {
		if e := firstEmail(m); e != "" {
			return "", e
		}
	}
	if idx := htmlGmailQuotePattern.FindStringIndex(html); idx != nil {
		window := html[idx[1]:]
		if len(window) > 500 {
			window = window[:500]
		}
		if e := firstEmail(window); e != "" {
			return "", e
		}
	}
	return "", ""
}

func headerValue(headers map[string][]string, name string) string {
	for h, values := range headers {
		if strings.EqualFold(h, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

var angleAddrPattern = regexp.MustCompile(`(?i)^(.*?)<([^>]+)>\s*$`)

func splitNameEmail(raw string) (name, email string) {
	raw = strings.TrimSpace(raw)
	if m := angleAddrPattern.FindStringSubmatch(raw); m != nil {
		return cleanDisplayName(m[1]), m[2]
	}
	return "", firstEmail(raw)
}

func firstEmail(s string) string {
	return emailPattern.FindString(s)
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

var quotePattern = regexp.MustCompile(`["'“”‘’]`)
var trailingAddrPattern = regexp.MustCompile(`(?i)\s*<[^>]*>\s*$`)
var leadingFromPrefixPattern = regexp.MustCompile(`(?i)^from:\s*`)
var whitespacePattern = regexp.MustCompile(`\s+`)

func cleanDisplayName(name string) string {
	name = quotePattern.ReplaceAllString(name, "")
	name = trailingAddrPattern.ReplaceAllString(name, "")
	name = leadingFromPrefixPattern.ReplaceAllString(name, "")
	name = whitespacePattern.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
