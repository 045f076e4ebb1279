package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbrief/core/domain"
)

func TestParseTrigger_DefaultsToInterval(t *testing.T) {
	spec, err := parseTrigger(7, domain.UserConfig{})
	require.NoError(t, err)
	assert.Equal(t, scheduleInterval, spec.kind)
	assert.Equal(t, "@every 30m", spec.cronSpec)
}

func TestParseTrigger_IntervalHonorsConfiguredMinutes(t *testing.T) {
	spec, err := parseTrigger(7, domain.UserConfig{"schedule_type": "interval", "check_interval_minutes": "15"})
	require.NoError(t, err)
	assert.Equal(t, "@every 15m", spec.cronSpec)
}

func TestParseTrigger_Cron(t *testing.T) {
	spec, err := parseTrigger(1, domain.UserConfig{
		"schedule_type": "cron",
		"cron_hours":    "18,6",
		"cron_minutes":  "0",
	})
	require.NoError(t, err)
	assert.Equal(t, scheduleCron, spec.kind)
	assert.Equal(t, "0 6,18 * * *", spec.cronSpec)
}

func TestParseTrigger_CustomHourly(t *testing.T) {
	spec, err := parseTrigger(1, domain.UserConfig{"schedule_type": "custom", "custom_rule": "hourly", "custom_minute": "5"})
	require.NoError(t, err)
	assert.Equal(t, "5 * * * *", spec.cronSpec)
}

func TestParseTrigger_CustomEvenHours(t *testing.T) {
	spec, err := parseTrigger(1, domain.UserConfig{"schedule_type": "custom", "custom_rule": "even_hours"})
	require.NoError(t, err)
	assert.Equal(t, "0 0,2,4,6,8,10,12,14,16,18,20,22 * * *", spec.cronSpec)
}

func TestParseTrigger_CustomEveryNHours(t *testing.T) {
	spec, err := parseTrigger(1, domain.UserConfig{"schedule_type": "custom", "custom_rule": "every_n_hours", "n_hours": "6"})
	require.NoError(t, err)
	assert.Equal(t, "0 0,6,12,18 * * *", spec.cronSpec)
}

func TestParseTrigger_UnknownCustomRuleFails(t *testing.T) {
	_, err := parseTrigger(1, domain.UserConfig{"schedule_type": "custom", "custom_rule": "nonsense"})
	assert.Error(t, err)
}

func TestStaggerOffset(t *testing.T) {
	assert.Equal(t, 0, staggerOffset(0))
	assert.Equal(t, 3, staggerOffset(1))
	assert.Equal(t, 0, staggerOffset(10))
	assert.Equal(t, 9, staggerOffset(13))
}
