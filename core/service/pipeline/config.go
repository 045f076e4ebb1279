package pipeline

import (
	"strconv"

	"mailbrief/core/domain"
)

// runConfig is the pipeline's coerced view of a user's string-keyed config
// (§6), with defaults applied for any missing or unparsable key.
type runConfig struct {
	CheckDaysBack      int
	MaxEmailsPerAccount *int
	DuplicateCheckDays int
	BodyMaxLength      int
	SubjectMaxLength   int
}

const (
	defaultCheckDaysBack      = 1
	defaultMaxEmailsPerAccount = 20
	defaultDuplicateCheckDays = 30
	defaultBodyMaxLength      = domain.BodyMax
	defaultSubjectMaxLength   = 500
)

func coerceConfig(cfg domain.UserConfig) runConfig {
	rc := runConfig{
		CheckDaysBack:      defaultCheckDaysBack,
		DuplicateCheckDays: defaultDuplicateCheckDays,
		BodyMaxLength:      defaultBodyMaxLength,
		SubjectMaxLength:   defaultSubjectMaxLength,
	}

	if v, ok := cfg.Get("check_days_back"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rc.CheckDaysBack = n
		}
	}
	if v, ok := cfg.Get("duplicate_check_days"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rc.DuplicateCheckDays = n
		}
	}
	if v, ok := cfg.Get("email_body_max_length"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rc.BodyMaxLength = n
		}
	}
	if v, ok := cfg.Get("email_subject_max_length"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rc.SubjectMaxLength = n
		}
	}
	if v, ok := cfg.Get("max_emails_per_account"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rc.MaxEmailsPerAccount = &n
		} else {
			n := defaultMaxEmailsPerAccount
			rc.MaxEmailsPerAccount = &n
		}
	} else {
		n := defaultMaxEmailsPerAccount
		rc.MaxEmailsPerAccount = &n
	}

	return rc
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
