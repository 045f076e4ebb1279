package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mailbrief/core/domain"
)

// scheduleKind is one of §6's three recognized schedule_type values.
type scheduleKind string

const (
	scheduleInterval scheduleKind = "interval"
	scheduleCron     scheduleKind = "cron"
	scheduleCustom   scheduleKind = "custom"

	defaultIntervalMinutes = 30
	defaultCustomMinute    = 0
)

// triggerSpec is the resolved shape for one user's trigger: a robfig/cron
// parser-compatible spec string, either a standard 5-field cron expression
// or an "@every" interval expression.
type triggerSpec struct {
	kind     scheduleKind
	cronSpec string
}

// parseTrigger reads the §6 schedule_* keys out of a user's config and
// resolves them into a triggerSpec. Unrecognized or missing schedule_type
// defaults to interval with the default 30-minute period.
func parseTrigger(userID int64, cfg domain.UserConfig) (triggerSpec, error) {
	kind := scheduleKind(strings.ToLower(firstOr(cfg, "schedule_type", string(scheduleInterval))))

	switch kind {
	case scheduleCron:
		hours := parseIntList(firstOr(cfg, "cron_hours", "6"))
		minutes := parseIntList(firstOr(cfg, "cron_minutes", "0"))
		if len(hours) == 0 || len(minutes) == 0 {
			return triggerSpec{}, fmt.Errorf("scheduler: empty cron_hours/cron_minutes for user %d", userID)
		}
		return triggerSpec{kind: scheduleCron, cronSpec: cronSpecFromHoursMinutes(hours, minutes)}, nil

	case scheduleCustom:
		rule := strings.ToLower(firstOr(cfg, "custom_rule", "hourly"))
		minute := parseIntOr(firstOr(cfg, "custom_minute", "0"), defaultCustomMinute)
		spec, err := customCronSpec(rule, minute, cfg)
		if err != nil {
			return triggerSpec{}, fmt.Errorf("scheduler: user %d: %w", userID, err)
		}
		return triggerSpec{kind: scheduleCustom, cronSpec: spec}, nil

	default:
		minutes := parseIntOr(firstOr(cfg, "check_interval_minutes", ""), defaultIntervalMinutes)
		if minutes <= 0 {
			minutes = defaultIntervalMinutes
		}
		return triggerSpec{kind: scheduleInterval, cronSpec: fmt.Sprintf("@every %dm", minutes)}, nil
	}
}

// staggerOffset is the §4.8 interval-trigger startup offset in minutes:
// (user_id * 3) mod 30.
func staggerOffset(userID int64) int {
	return int((userID * 3) % 30)
}

func customCronSpec(rule string, minute int, cfg domain.UserConfig) (string, error) {
	switch rule {
	case "hourly":
		return fmt.Sprintf("%d * * * *", minute), nil
	case "even_hours":
		return fmt.Sprintf("%d %s * * *", minute, joinInts(hoursByStep(0, 2))), nil
	case "odd_hours":
		return fmt.Sprintf("%d %s * * *", minute, joinInts(hoursByStep(1, 2))), nil
	case "every_n_hours":
		n := parseIntOr(firstOr(cfg, "n_hours", "4"), 4)
		if n <= 0 {
			n = 4
		}
		return fmt.Sprintf("%d %s * * *", minute, joinInts(hoursByStep(0, n))), nil
	default:
		return "", fmt.Errorf("unrecognized custom_rule %q", rule)
	}
}

func hoursByStep(start, step int) []int {
	var hours []int
	for h := start; h < 24; h += step {
		hours = append(hours, h)
	}
	return hours
}

func cronSpecFromHoursMinutes(hours, minutes []int) string {
	return fmt.Sprintf("%s %s * * *", joinInts(minutes), joinInts(hours))
}

func joinInts(vals []int) string {
	sort.Ints(vals)
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func parseIntList(raw string) []int {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func parseIntOr(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func firstOr(cfg domain.UserConfig, key, fallback string) string {
	if v, ok := cfg.Get(key); ok && v != "" {
		return v
	}
	return fallback
}
