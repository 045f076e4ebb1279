package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbrief/core/domain"
	"mailbrief/core/service/pipeline"
)

type fakeUserSource struct {
	ids    []int64
	config map[int64]domain.UserConfig
}

func (f *fakeUserSource) ListSchedulableUsers(ctx context.Context) ([]int64, error) {
	return f.ids, nil
}
func (f *fakeUserSource) GetUserConfig(ctx context.Context, userID int64) (domain.UserConfig, error) {
	return f.config[userID], nil
}

type fakeRunner struct {
	err error
}

func (f *fakeRunner) RunScheduled(ctx context.Context, userID int64) (pipeline.Result, error) {
	return pipeline.Result{}, f.err
}

func TestRegisterUser_CronTriggerRegistersImmediately(t *testing.T) {
	users := &fakeUserSource{config: map[int64]domain.UserConfig{
		5: {"schedule_type": "cron", "cron_hours": "6", "cron_minutes": "0"},
	}}
	s := New(testGate(3), &fakeRunner{}, users, zerolog.Nop())

	require.NoError(t, s.RegisterUser(context.Background(), 5))

	s.mu.Lock()
	st, ok := s.states[5]
	s.mu.Unlock()
	require.True(t, ok)
	assert.True(t, st.hasEntry)
	assert.Equal(t, jobID(5), st.jobID)
}

func TestRegisterUser_RejectsBadConfig(t *testing.T) {
	users := &fakeUserSource{config: map[int64]domain.UserConfig{
		5: {"schedule_type": "custom", "custom_rule": "bogus"},
	}}
	s := New(testGate(3), &fakeRunner{}, users, zerolog.Nop())

	err := s.RegisterUser(context.Background(), 5)
	assert.Error(t, err)
}

func TestRemoveUser_ClearsState(t *testing.T) {
	users := &fakeUserSource{config: map[int64]domain.UserConfig{
		5: {"schedule_type": "cron", "cron_hours": "6", "cron_minutes": "0"},
	}}
	s := New(testGate(3), &fakeRunner{}, users, zerolog.Nop())
	require.NoError(t, s.RegisterUser(context.Background(), 5))

	s.RemoveUser(5)

	s.mu.Lock()
	_, ok := s.states[5]
	s.mu.Unlock()
	assert.False(t, ok)
}

func TestFireFunc_SuspendsAfterFiveConsecutiveFailures(t *testing.T) {
	users := &fakeUserSource{config: map[int64]domain.UserConfig{
		5: {"schedule_type": "cron", "cron_hours": "6", "cron_minutes": "0"},
	}}
	s := New(testGate(3), &fakeRunner{err: errors.New("boom")}, users, zerolog.Nop())
	require.NoError(t, s.RegisterUser(context.Background(), 5))

	fire := s.fireFunc(5)
	for i := 0; i < maxConsecutiveFailures; i++ {
		fire()
	}

	s.mu.Lock()
	_, ok := s.states[5]
	s.mu.Unlock()
	assert.False(t, ok, "trigger should be removed after reaching the consecutive-failure budget")
}

func TestFireFunc_SuccessResetsFailureCounter(t *testing.T) {
	users := &fakeUserSource{config: map[int64]domain.UserConfig{
		5: {"schedule_type": "cron", "cron_hours": "6", "cron_minutes": "0"},
	}}
	runner := &fakeRunner{err: errors.New("boom")}
	s := New(testGate(3), runner, users, zerolog.Nop())
	require.NoError(t, s.RegisterUser(context.Background(), 5))

	fire := s.fireFunc(5)
	fire()
	fire()

	runner.err = nil
	fire()

	s.mu.Lock()
	st := s.states[5]
	s.mu.Unlock()
	assert.Equal(t, 0, st.consecutiveFail)
}
