// Package summarize holds the deterministic fallback used when the
// Summarizer capability fails or returns empty (§4.7, §7 "Summarizer
// failure" policy: fall back to a template, still persist).
package summarize

import (
	"strings"

	"mailbrief/core/domain"
)

const previewLen = 100

// FallbackOne builds the per-email deterministic summary: "Email from
// <sender_name>: <subject>. Preview: <first 100 chars>".
func FallbackOne(email *domain.Email) string {
	name := senderName(email.Sender)
	preview := email.Body
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}
	return "Email from " + name + ": " + email.Subject + ". Preview: " + preview
}

// senderName extracts a display-friendly name from a "Name <email>" or bare
// email sender string.
func senderName(sender string) string {
	if i := strings.IndexByte(sender, '<'); i > 0 {
		return strings.TrimSpace(sender[:i])
	}
	if i := strings.IndexByte(sender, '@'); i > 0 {
		return sender[:i]
	}
	return sender
}
