package domain

import "time"

// SenderMatchType selects the comparison semantics for a rule's
// sender_pattern, see core/service/classification.
type SenderMatchType string

const (
	SenderMatchExact    SenderMatchType = "exact"
	SenderMatchContains SenderMatchType = "contains"
	SenderMatchDomain   SenderMatchType = "domain"
	SenderMatchWildcard SenderMatchType = "wildcard"
	SenderMatchRegex    SenderMatchType = "regex"
)

// KeywordLogic combines multiple keywords in a rule's subject/body match.
type KeywordLogic string

const (
	LogicAND KeywordLogic = "AND"
	LogicOR  KeywordLogic = "OR"
)

// ClassificationRule is one user-defined matching rule. A rule with all
// three pattern fields unset is inert and never matches.
type ClassificationRule struct {
	ID     int64
	UserID int64

	RuleName string

	SenderPattern   string
	HasSenderPattern bool
	SenderMatchType SenderMatchType

	SubjectKeywords []string
	SubjectLogic    KeywordLogic

	BodyKeywords []string

	TargetCategory   Category
	TargetImportance int
	Priority         int

	IsActive bool

	MatchCount    int64
	LastMatchedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ManualClassificationRecord is an append-only log of user corrections,
// appended through Store.RecordManualReclassification; the pipeline does not
// write it, and the rule-suggestion analyzer that reads it is not part of
// this repository.
type ManualClassificationRecord struct {
	ID               int64
	UserID           int64
	EmailID          string
	OriginalCategory Category
	NewCategory      Category
	OriginalImportance int
	NewImportance      int
	Sender           string
	Subject          string
	CreatedAt        time.Time
}

// NotificationType is one of the four kinds consumed by the UI.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification is a per-user message written by the pipeline at terminal
// run states.
type Notification struct {
	ID        int64
	UserID    int64
	Type      NotificationType
	Title     string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}
