package forward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_ForwardedWithChineseSenderBlock(t *testing.T) {
	msg := Message{
		Subject: "Fwd: Project status",
		Body: "发件人: \"Alice Zhou\" <alice@corp.com>\n" +
			"主题: Project status\n" +
			"发送日期: 2025-09-30",
	}

	res := Detect(msg)

	require.True(t, res.IsForwarded)
	assert.GreaterOrEqual(t, res.Confidence, 45)
	assert.Equal(t, "Alice Zhou", res.OriginalSender)
	assert.Equal(t, "alice@corp.com", res.OriginalSenderEmail)
	assert.GreaterOrEqual(t, res.ForwardLevel, 1)
	require.Len(t, res.ForwardChain, 1)
	assert.Equal(t, "alice@corp.com", res.ForwardChain[0].FromEmail)
}

func TestDetect_NotForwarded(t *testing.T) {
	msg := Message{
		Subject: "Your invoice is ready",
		Body:    "Thanks for your purchase, here is your receipt.",
	}

	res := Detect(msg)

	assert.False(t, res.IsForwarded)
	assert.Equal(t, 0, res.Confidence)
	assert.Equal(t, 0, res.ForwardLevel)
}

func TestDetect_HeaderOnlySignal(t *testing.T) {
	msg := Message{
		Headers: map[string][]string{"X-Forwarded-For": {"1.2.3.4"}},
		Subject: "Quarterly update",
		Body:    "Nothing special here.",
	}

	res := Detect(msg)

	assert.True(t, res.IsForwarded)
	assert.Equal(t, 40, res.Confidence)
}

func TestDetect_GenericFromAngleBrackets(t *testing.T) {
	msg := Message{
		Subject: "FW: Meeting notes",
		Body:    "---------- Forwarded message ---------\nFrom: Bob Lee <bob@example.com>\nDate: Mon\nSubject: Meeting notes\nTo: team@example.com",
	}

	res := Detect(msg)

	require.True(t, res.IsForwarded)
	assert.Equal(t, "Bob Lee", res.OriginalSender)
	assert.Equal(t, "bob@example.com", res.OriginalSenderEmail)
}
