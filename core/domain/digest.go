package domain

import "time"

// DigestEmailView is the compact per-email projection stored inside a
// digest's content block.
type DigestEmailView struct {
	EmailID    string
	Subject    string
	Sender     string
	Time       time.Time
	Summary    string
	Category   Category
	Importance int
}

// DigestListItem is one entry in a digest's meetings/tasks/deadlines/
// financial_items extracted lists.
type DigestListItem struct {
	Subject string
	Sender  string
	Time    *time.Time // populated for meetings only
}

// DigestStats is the statistics block assembled alongside the grouping.
type DigestStats struct {
	Total           int
	UrgentCount     int
	ImportantCount  int
	ByCategory      map[Category]int
	ByProvider      map[string]int
	ByAccount       map[string]int
	ByHour          map[int]int
	Meetings        []DigestListItem
	Tasks           []DigestListItem
	Deadlines       []DigestListItem
	FinancialItems  []DigestListItem
}

// DigestContent is the structured payload of a Digest: grouping by bucket,
// the stats block, and the compact per-email view.
type DigestContent struct {
	Groups map[string][]string // bucket name -> email_ids in that bucket
	Stats  DigestStats
	Emails []DigestEmailView
}

// Digest is the per-run rollup artifact produced once per pipeline run that
// saved at least one email.
type Digest struct {
	ID         int64
	UserID     int64
	Date       time.Time // UTC
	Title      string
	Content    DigestContent
	EmailCount int
	Summary    string
	CreatedAt  time.Time
}
