package imapfetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveProvider_Gmail(t *testing.T) {
	cfg, ok := ResolveProvider("gmail", "alice@gmail.com")
	assert.True(t, ok)
	assert.Equal(t, "imap.gmail.com", cfg.IMAPHost)
	assert.Equal(t, 993, cfg.IMAPPort)
}

func TestResolveProvider_SinaByDomain(t *testing.T) {
	cfg, ok := ResolveProvider("sina", "bob@vip.sina.com")
	assert.True(t, ok)
	assert.Equal(t, "imap.vip.sina.com", cfg.IMAPHost)
	assert.Equal(t, "smtp.vip.sina.com", cfg.SMTPHost)
}

func TestResolveProvider_SinaUnknownDomainFails(t *testing.T) {
	_, ok := ResolveProvider("sina", "bob@example.com")
	assert.False(t, ok)
}

func TestResolveProvider_Unknown(t *testing.T) {
	_, ok := ResolveProvider("protonmail", "carol@proton.me")
	assert.False(t, ok)
}

func TestDetectTag(t *testing.T) {
	assert.Equal(t, "126", DetectTag("x@126.com"))
	assert.Equal(t, "qq", DetectTag("x@qq.com"))
	assert.Equal(t, "sina", DetectTag("x@sina.cn"))
	assert.Equal(t, "", DetectTag("x@example.org"))
}

func TestNeedsIMAPIDWorkaround(t *testing.T) {
	assert.True(t, needsIMAPIDWorkaround("126"))
	assert.True(t, needsIMAPIDWorkaround("163"))
	assert.False(t, needsIMAPIDWorkaround("gmail"))
}
