package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"mailbrief/core/domain"
	"mailbrief/core/service/pipeline"
	"mailbrief/pkg/apperr"
)

// maxConsecutiveFailures is the §4.8 per-user failure budget before the
// scheduler removes a user's trigger.
const maxConsecutiveFailures = 5

// Runner executes one user's pipeline. *pipeline.Pipeline satisfies this
// directly via its RunScheduled method.
type Runner interface {
	RunScheduled(ctx context.Context, userID int64) (pipeline.Result, error)
}

// UserSource is the narrow slice of Store the scheduler needs: the
// schedulable population and each user's schedule_* config keys.
type UserSource interface {
	ListSchedulableUsers(ctx context.Context) ([]int64, error)
	GetUserConfig(ctx context.Context, userID int64) (domain.UserConfig, error)
}

// userState tracks one user's registered trigger and failure streak.
type userState struct {
	jobID           string
	cronEntryID     cron.EntryID
	hasEntry        bool
	consecutiveFail int
	staggerTimer    *time.Timer
}

// Scheduler owns exactly one trigger per user (§4.8) and wraps every firing
// in the Concurrency Gate: a zerolog component sub-logger, a single lock
// guarding shared per-tenant state, and explicit Start/Stop lifecycle
// methods.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	gate   *Gate
	runner Runner
	users  UserSource
	log    zerolog.Logger

	states map[int64]*userState
}

// New builds a Scheduler. gate bounds concurrent pipeline runs; runner
// executes one; users resolves the schedulable population and their config.
func New(gate *Gate, runner Runner, users UserSource, log zerolog.Logger) *Scheduler {
	sublog := log.With().Str("component", "scheduler").Logger()
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{sublog})))
	return &Scheduler{
		cron:   c,
		gate:   gate,
		runner: runner,
		users:  users,
		log:    sublog,
		states: make(map[int64]*userState),
	}
}

// cronLogger adapts zerolog to cron.Logger so panics recovered by
// cron.Recover land in the structured log stream.
type cronLogger struct{ log zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Fields(pairsToMap(keysAndValues)).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(pairsToMap(keysAndValues)).Msg(msg)
}

// pairsToMap converts cron's alternating key/value variadic log args into
// the map zerolog's Fields expects.
func pairsToMap(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}

// Start loads the schedulable population and registers one trigger per
// user, then starts the underlying cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	userIDs, err := s.users.ListSchedulableUsers(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: list schedulable users: %w", err)
	}
	for _, id := range userIDs {
		if err := s.RegisterUser(ctx, id); err != nil {
			s.log.Warn().Err(err).Int64("user_id", id).Msg("failed to register trigger at startup")
		}
	}
	s.cron.Start()
	s.log.Info().Int("users", len(userIDs)).Msg("scheduler started")
	return nil
}

// Stop drains in-flight pipelines (bounded by the caller's context deadline)
// and stops admitting new firings.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop deadline exceeded, abandoning in-flight pipelines")
	}
	s.log.Info().Msg("scheduler stopped")
}

// jobID is §4.8's fixed naming: "user_<id>_email_processing".
func jobID(userID int64) string {
	return fmt.Sprintf("user_%d_email_processing", userID)
}

// RegisterUser (re)creates userID's trigger from its current config,
// replacing any prior entry (replace_existing semantics).
func (s *Scheduler) RegisterUser(ctx context.Context, userID int64) error {
	cfg, err := s.users.GetUserConfig(ctx, userID)
	if err != nil {
		return fmt.Errorf("scheduler: load config for user %d: %w", userID, err)
	}
	spec, err := parseTrigger(userID, cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.removeEntryLocked(userID)

	state := &userState{jobID: jobID(userID)}
	s.states[userID] = state

	register := func() {
		entryID, err := s.cron.AddFunc(spec.cronSpec, s.fireFunc(userID))
		if err != nil {
			s.log.Error().Err(err).Int64("user_id", userID).Str("spec", spec.cronSpec).Msg("failed to register trigger")
			return
		}
		s.mu.Lock()
		if st, ok := s.states[userID]; ok {
			st.cronEntryID = entryID
			st.hasEntry = true
		}
		s.mu.Unlock()
	}

	if spec.kind == scheduleInterval {
		offset := time.Duration(staggerOffset(userID)) * time.Minute
		state.staggerTimer = time.AfterFunc(offset, register)
		s.mu.Unlock()
	} else {
		s.mu.Unlock()
		register()
	}

	return nil
}

// RemoveUser removes userID's trigger entirely (the manual suspend path and
// the admin-facing "disable scheduling" operation both route here).
func (s *Scheduler) RemoveUser(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeEntryLocked(userID)
	delete(s.states, userID)
}

func (s *Scheduler) removeEntryLocked(userID int64) {
	st, ok := s.states[userID]
	if !ok {
		return
	}
	if st.staggerTimer != nil {
		st.staggerTimer.Stop()
	}
	if st.hasEntry {
		s.cron.Remove(st.cronEntryID)
	}
}

// fireFunc builds the per-firing closure: gate admission, run, error
// accounting, and suspension on 5 consecutive failures.
func (s *Scheduler) fireFunc(userID int64) func() {
	return func() {
		runID := uuid.NewString()
		log := s.log.With().Int64("user_id", userID).Str("run_id", runID).Logger()

		ran, err := s.gate.Run(context.Background(), userID, func(ctx context.Context) error {
			_, runErr := s.runner.RunScheduled(ctx, userID)
			return runErr
		})
		if !ran {
			return
		}

		if err != nil {
			log.Warn().Err(err).Msg("pipeline run failed")
			s.recordFailure(userID, log)
			return
		}
		s.recordSuccess(userID)
	}
}

func (s *Scheduler) recordSuccess(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[userID]; ok {
		st.consecutiveFail = 0
	}
}

func (s *Scheduler) recordFailure(userID int64, log zerolog.Logger) {
	s.mu.Lock()
	st, ok := s.states[userID]
	if !ok {
		s.mu.Unlock()
		return
	}
	st.consecutiveFail++
	suspend := st.consecutiveFail >= maxConsecutiveFailures
	s.mu.Unlock()

	if suspend {
		s.RemoveUser(userID)
		log.Warn().Int("consecutive_failures", maxConsecutiveFailures).
			Str("kind", string(apperr.KindSchedulerSuspend)).
			Msg("trigger suspended after consecutive failures; manual re-enable required")
	}
}
