package imapfetch

import "strings"

// ProviderConfig is one row of the fixed Provider Registry (§6).
type ProviderConfig struct {
	IMAPHost string
	IMAPPort int
	SMTPHost string
	SMTPPort int
	UseTLS   bool
}

var providerRegistry = map[string]ProviderConfig{
	"gmail":   {IMAPHost: "imap.gmail.com", IMAPPort: 993, SMTPHost: "smtp.gmail.com", SMTPPort: 587, UseTLS: true},
	"126":     {IMAPHost: "imap.126.com", IMAPPort: 993, SMTPHost: "smtp.126.com", SMTPPort: 465, UseTLS: true},
	"163":     {IMAPHost: "imap.163.com", IMAPPort: 993, SMTPHost: "smtp.163.com", SMTPPort: 465, UseTLS: true},
	"qq":      {IMAPHost: "imap.qq.com", IMAPPort: 993, SMTPHost: "smtp.qq.com", SMTPPort: 587, UseTLS: true},
	"outlook": {IMAPHost: "imap-mail.outlook.com", IMAPPort: 993, SMTPHost: "smtp-mail.outlook.com", SMTPPort: 587, UseTLS: true},
	"hotmail": {IMAPHost: "imap-mail.outlook.com", IMAPPort: 993, SMTPHost: "smtp-mail.outlook.com", SMTPPort: 587, UseTLS: true},
	"yahoo":   {IMAPHost: "imap.mail.yahoo.com", IMAPPort: 993, SMTPHost: "smtp.mail.yahoo.com", SMTPPort: 587, UseTLS: true},
}

var sinaDomains = map[string]struct{}{
	"sina.com":     {},
	"sina.cn":      {},
	"vip.sina.com": {},
	"vip.sina.cn":  {},
}

// ResolveProvider maps a provider_tag (and, for "sina", the account address'
// domain) to its registry entry.
func ResolveProvider(tag, address string) (ProviderConfig, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "sina" {
		domain := domainOf(address)
		if _, ok := sinaDomains[domain]; !ok {
			return ProviderConfig{}, false
		}
		return ProviderConfig{
			IMAPHost: "imap." + domain,
			IMAPPort: 993,
			SMTPHost: "smtp." + domain,
			SMTPPort: 465,
			UseTLS:   true,
		}, true
	}
	cfg, ok := providerRegistry[tag]
	return cfg, ok
}

func domainOf(address string) string {
	i := strings.LastIndexByte(address, '@')
	if i < 0 {
		return ""
	}
	return strings.ToLower(address[i+1:])
}

// DetectTag guesses a provider_tag from an address' domain, mirroring the
// registry's auto-detection. Returns "" when no entry matches.
func DetectTag(address string) string {
	domain := domainOf(address)
	if _, ok := sinaDomains[domain]; ok {
		return "sina"
	}
	switch domain {
	case "gmail.com", "googlemail.com":
		return "gmail"
	case "126.com":
		return "126"
	case "163.com":
		return "163"
	case "qq.com":
		return "qq"
	case "outlook.com", "live.com", "msn.com":
		return "outlook"
	case "hotmail.com":
		return "hotmail"
	case "yahoo.com":
		return "yahoo"
	default:
		return ""
	}
}

// needsIMAPIDWorkaround reports whether the 126/163 "Unsafe Login"
// workaround applies to this provider tag.
func needsIMAPIDWorkaround(tag string) bool {
	return tag == "126" || tag == "163"
}
