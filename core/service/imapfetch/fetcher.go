// Package imapfetch implements the IMAP Fetcher (§4.1): one IMAP session per
// account, MIME parsing with a charset fallback chain, and attachment policy
// enforcement. Grounded on the IMAP client usage in
// kanocz-telegram-ai-bot/tools/imap.go, rebuilt around emersion/go-imap/v2's
// typed command API instead of that file's ad-hoc tool-call wrappers.
package imapfetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mailbrief/core/domain"
	"mailbrief/core/port/out"
	"mailbrief/core/service/forward"
	"mailbrief/pkg/apperr"
)

const socketTimeout = 30 * time.Second

// Fetcher implements out.EmailFetcher over a fresh IMAP session per call.
type Fetcher struct {
	attachmentRoot string
	log            zerolog.Logger
}

// New builds a Fetcher. attachmentRoot is the base directory attachments are
// written under, as "<attachmentRoot>/user_<user_id>/<stored_filename>". log
// is expected to already carry component="imap_fetcher".
func New(attachmentRoot string, log zerolog.Logger) *Fetcher {
	return &Fetcher{attachmentRoot: attachmentRoot, log: log}
}

// Fetch implements the §4.1 session protocol end to end for one account.
func (f *Fetcher) Fetch(ctx context.Context, req out.FetchRequest) ([]*domain.Email, error) {
	account := req.Account
	provider, ok := ResolveProvider(account.ProviderTag, account.Address)
	if !ok {
		return nil, apperr.New(apperr.KindProviderUnknown, fmt.Sprintf("unknown provider_tag %q for %s", account.ProviderTag, account.Address))
	}

	addr := fmt.Sprintf("%s:%d", provider.IMAPHost, provider.IMAPPort)
	c, err := f.dial(addr, provider)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIMAPTransport, fmt.Sprintf("dial %s (%s) failed", addr, account.ProviderTag), err)
	}
	defer c.Close()

	if err := c.Login(account.Address, account.CredentialSecret).Wait(); err != nil {
		return nil, apperr.Wrap(apperr.KindAuthFailure, fmt.Sprintf("login failed for %s via %s", account.Address, account.ProviderTag), err)
	}

	if needsIMAPIDWorkaround(account.ProviderTag) {
		f.sendID(c)
	}

	if _, err := c.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, apperr.Wrap(apperr.KindIMAPTransport, fmt.Sprintf("SELECT INBOX failed for %s", account.Address), err)
	}

	sinceDays := req.SinceDays
	if sinceDays <= 0 {
		sinceDays = 1
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -sinceDays)
	searchDay := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)

	searchData, err := c.UIDSearch(&imap.SearchCriteria{Since: searchDay}, nil).Wait()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIMAPTransport, fmt.Sprintf("SEARCH failed for %s", account.Address), err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	if req.MaxEmails != nil && len(uids) > *req.MaxEmails {
		uids = uids[len(uids)-*req.MaxEmails:]
	}

	var uidSet imap.UIDSet
	uidSet.AddNum(uids...)

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := c.Fetch(uidSet, fetchOpts)
	var emails []*domain.Email
	for {
		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		uid, raw, ok := collectRaw(msgData)
		if !ok {
			continue
		}
		email, err := f.parseMessage(account, uid, raw)
		if err != nil {
			f.log.Warn().Err(err).Uint32("uid", uid).Str("account", account.Address).Msg("failed to parse message")
			continue
		}
		emails = append(emails, email)
	}
	if err := fetchCmd.Close(); err != nil {
		return emails, apperr.Wrap(apperr.KindIMAPTransport, fmt.Sprintf("FETCH failed for %s", account.Address), err)
	}

	return emails, nil
}

// dial opens the IMAP connection with a 30s connect timeout, either over
// TLS or plaintext-then-STARTTLS depending on the provider registry. No read
// or write deadline is set on the connection after it is established.
func (f *Fetcher) dial(addr string, provider ProviderConfig) (*imapclient.Client, error) {
	dialer := &net.Dialer{Timeout: socketTimeout}
	if provider.UseTLS {
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: provider.IMAPHost})
		if err != nil {
			return nil, err
		}
		return imapclient.New(conn, nil), nil
	}

	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	c := imapclient.New(conn, nil)
	if err := c.StartTLS(&tls.Config{ServerName: provider.IMAPHost}).Wait(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (f *Fetcher) sendID(c *imapclient.Client) {
	fields := map[string]string{
		"name":          "mailbrief",
		"version":       "1.0",
		"vendor":        "mailbrief",
		"support-email": "support@mailbrief.local",
	}
	if _, err := c.ID(fields).Wait(); err != nil {
		f.log.Warn().Err(err).Msg("IMAP ID command rejected, proceeding to SELECT anyway")
	}
}

func collectRaw(msgData *imapclient.FetchMessageData) (uint32, []byte, bool) {
	var uid uint32
	var raw []byte
	found := false
	for {
		item := msgData.Next()
		if item == nil {
			break
		}
		switch v := item.(type) {
		case imapclient.FetchItemDataUID:
			uid = uint32(v.UID)
		case imapclient.FetchItemDataBodySection:
			b, err := io.ReadAll(v.Literal)
			if err == nil && len(b) > 0 {
				raw = b
				found = true
			}
		}
	}
	return uid, raw, found
}

func (f *Fetcher) parseMessage(account *domain.EmailAccount, uid uint32, raw []byte) (*domain.Email, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMIMEParse, "mail.CreateReader failed", err)
	}

	email := &domain.Email{
		UserID:         account.UserID,
		EmailID:        fmt.Sprintf("%s:%d", account.Address, uid),
		AccountAddress: account.Address,
		ProviderTag:    account.ProviderTag,
	}

	if subject, err := mr.Header.Subject(); err == nil {
		email.Subject = subject
	} else {
		email.Subject = decodeHeader(mr.Header.Get("Subject"))
	}

	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		email.Sender = formatAddress(from[0])
	} else {
		email.Sender = decodeHeader(mr.Header.Get("From"))
	}

	if to, err := mr.Header.AddressList("To"); err == nil {
		for _, a := range to {
			email.Recipients = append(email.Recipients, formatAddress(a))
		}
	}

	if date, err := mr.Header.Date(); err == nil {
		email.Date = date.UTC()
	} else {
		email.Date = time.Now().UTC()
	}

	var plain, html strings.Builder
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := mime.ParseMediaType(h.Get("Content-Type"))
			b, readErr := io.ReadAll(p.Body)
			if readErr != nil {
				continue
			}
			decoded := decodeBody(b)
			switch ct {
			case "text/html":
				html.WriteString(decoded)
			default:
				plain.WriteString(decoded)
			}
		case *mail.AttachmentHeader:
			name, _ := h.Filename()
			name = decodeHeader(name)
			b, readErr := io.ReadAll(p.Body)
			if readErr != nil {
				continue
			}
			att, err := f.storeAttachment(account.UserID, email.EmailID, name, h.Get("Content-Type"), b)
			if err != nil {
				f.log.Warn().Err(err).Str("filename", name).Str("email_id", email.EmailID).Msg("attachment rejected")
				continue
			}
			email.Attachments = append(email.Attachments, *att)
		}
	}

	email.Body = truncateBytes(plain.String(), domain.BodyMax)
	email.BodyHTML = truncateBytes(html.String(), domain.BodyMax)
	if email.Body == "" && email.BodyHTML == "" {
		email.Body = truncateBytes(decodeBody(extractRawBody(raw)), domain.BodyMax)
	}

	applyForwardDetection(email, collectHeaders(mr.Header.Header))

	return email, nil
}

// collectHeaders flattens a message.Header into the map[string][]string
// shape the forward detector expects.
func collectHeaders(h message.Header) map[string][]string {
	headers := make(map[string][]string)
	fields := h.Fields()
	for fields.Next() {
		key := fields.Key()
		headers[key] = append(headers[key], fields.Value())
	}
	return headers
}

func applyForwardDetection(email *domain.Email, headers map[string][]string) {
	result := forward.Detect(forward.Message{
		Headers:  headers,
		Subject:  email.Subject,
		Body:     email.Body,
		BodyHTML: email.BodyHTML,
	})
	email.IsForwarded = result.IsForwarded
	email.ForwardLevel = result.ForwardLevel
	email.OriginalSender = result.OriginalSender
	email.OriginalSenderEmail = result.OriginalSenderEmail
	email.ForwardChain = result.ForwardChain
}

// storeAttachment validates originalName against the attachment policy, then
// writes data to "<attachmentRoot>/user_<userID>/<safe_unique_name><ext>".
// The stored name's prefix is the message's own email_id (not the
// attachment's original filename), cleaned and capped, so every attachment
// on a message sorts and traces back to it on disk.
func (f *Fetcher) storeAttachment(userID int64, emailID, originalName, contentType string, data []byte) (*domain.Attachment, error) {
	if err := validateAttachmentPath(originalName); err != nil {
		return nil, err
	}
	if int64(len(data)) > maxAttachmentBytes {
		return nil, errTooLarge
	}

	ext := "." + extensionOf(originalName)
	storedName := fmt.Sprintf("%s_%s%s", cleanedEmailID(emailID), shortUUID(), ext)
	userDir := filepath.Join(f.attachmentRoot, fmt.Sprintf("user_%d", userID))
	storedPath := filepath.Join(userDir, storedName)

	if err := os.MkdirAll(userDir, 0o750); err != nil {
		return nil, apperr.Wrap(apperr.KindAttachmentPolicy, fmt.Sprintf("create attachment dir %s", userDir), err)
	}
	if err := os.WriteFile(storedPath, data, 0o640); err != nil {
		return nil, apperr.Wrap(apperr.KindAttachmentPolicy, fmt.Sprintf("write attachment %s", storedPath), err)
	}

	return &domain.Attachment{
		OriginalFilename: originalName,
		StoredFilename:   storedName,
		ContentType:      contentType,
		Size:             int64(len(data)),
		StoredPath:       storedPath,
	}, nil
}

// cleanedEmailID strips emailID (e.g. "user@host:123") down to the part
// after the last ':' and keeps only alphanumerics and '_', capped at 20
// runes — the same derivation the prior Python fetcher used to keep stored
// filenames short and filesystem-safe.
func cleanedEmailID(emailID string) string {
	id := emailID
	if i := strings.LastIndexByte(id, ':'); i >= 0 {
		id = id[i+1:]
	}

	var b strings.Builder
	for _, r := range id {
		if b.Len() >= 20 {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "attachment"
	}
	return b.String()
}

func shortUUID() string {
	id := uuid.New().String()
	return strings.ReplaceAll(id, "-", "")[:8]
}

func formatAddress(a *mail.Address) string {
	if a.Name != "" {
		return fmt.Sprintf("%s <%s>", decodeHeader(a.Name), a.Address)
	}
	return a.Address
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// extractRawBody is the last-resort fallback when MIME parsing produces no
// text part: split on the first blank line.
func extractRawBody(raw []byte) []byte {
	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return raw[idx+4:]
	}
	if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		return raw[idx+2:]
	}
	return raw
}
