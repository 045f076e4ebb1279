package domain

import "time"

// ClassificationMethod records which layer of the Classifier produced an
// email's (category, importance) pair.
type ClassificationMethod string

const (
	ClassificationRule    ClassificationMethod = "rule"
	ClassificationKeyword ClassificationMethod = "keyword"
	ClassificationDefault ClassificationMethod = "default"
)

// Category is one of the 12 fixed classification tags.
type Category string

const (
	CategoryWork         Category = "work"
	CategoryFinance      Category = "finance"
	CategorySocial       Category = "social"
	CategoryShopping     Category = "shopping"
	CategoryNews         Category = "news"
	CategoryEducation    Category = "education"
	CategoryTravel       Category = "travel"
	CategoryHealth       Category = "health"
	CategorySystem       Category = "system"
	CategoryAdvertising  Category = "advertising"
	CategorySpam         Category = "spam"
	CategoryGeneral      Category = "general"
)

// ForwardChainEntry is one hop harvested while extracting a forwarded
// message's original sender.
type ForwardChainEntry struct {
	FromName  string
	FromEmail string
	Subject   string
	Date      *time.Time
}

// Attachment describes one file extracted from a message and persisted to
// the attachment store.
type Attachment struct {
	OriginalFilename string
	StoredFilename   string
	ContentType      string
	Size             int64
	StoredPath       string
}

// Email is the enriched, stored message. Fields are grouped per §3 of the
// processing contract: identity, envelope, body, derived, forward, and
// attachments.
type Email struct {
	ID          int64
	UserID      int64
	EmailID     string // stable "<account_address>:<imap_uid>"
	ContentHash string // md5 fingerprint, see dedupe package

	Subject        string
	Sender         string
	Recipients     []string
	Date           time.Time // always UTC naive
	AccountAddress string
	ProviderTag    string

	Body                   string
	BodyHTML               string
	BodyChineseTranslation string
	BodyEnglishTranslation string

	Summary              string
	AISummary            string
	Category             Category
	Importance           int
	ClassificationMethod ClassificationMethod
	Processed            bool
	Deleted              bool

	IsForwarded         bool
	ForwardLevel        int
	OriginalSender      string
	OriginalSenderEmail string
	ForwardedBy         string
	ForwardedByEmail    string
	ForwardChain        []ForwardChainEntry

	Attachments []Attachment

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BodyMax is the hard cap on Email.Body length in bytes; longer bodies are
// truncated before storage.
const BodyMax = 20000
