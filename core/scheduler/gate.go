// Package scheduler implements the Scheduler and Concurrency Gate (§4.8):
// one trigger per user via robfig/cron, and a process-wide admission gate
// bounding how many user pipelines run at once. A small value type guards
// shared counters behind one lock, with a zerolog component sub-logger and
// atomic-style bookkeeping rather than a generic job queue.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// defaultMaxConcurrentUsers is the §4.8 default for max_concurrent_users.
const defaultMaxConcurrentUsers = 3

// gateCooldown is the minimum pause after a slot frees, per §4.8 step 4.
const gateCooldown = 1 * time.Second

// Gate is the process-wide Concurrency Gate: a bounded set of user IDs
// currently running a pipeline, plus a per-user single-flight guard baked
// into the same set (admission and single-flight share one lock by design,
// per the redesign note unifying the two into the Gate alone).
type Gate struct {
	mu         sync.Mutex
	processing map[int64]struct{}
	max        int
	cooldown   time.Duration
	sleep      func(time.Duration)
	log        zerolog.Logger
}

// NewGate builds a Gate. maxConcurrent <= 0 falls back to the §4.8 default.
func NewGate(maxConcurrent int, log zerolog.Logger) *Gate {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentUsers
	}
	return &Gate{
		processing: make(map[int64]struct{}),
		max:        maxConcurrent,
		cooldown:   gateCooldown,
		sleep:      time.Sleep,
		log:        log.With().Str("component", "concurrency_gate").Logger(),
	}
}

// Admit implements §4.8 steps 1-2: admits userID unless the global cap is
// full or the user already has a run in flight. The bool return reports
// whether the caller may proceed.
func (g *Gate) Admit(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.processing) >= g.max {
		g.log.Warn().Int64("user_id", userID).Int("in_flight", len(g.processing)).Msg("firing skipped: concurrency cap reached")
		return false
	}
	if _, inFlight := g.processing[userID]; inFlight {
		g.log.Warn().Int64("user_id", userID).Msg("firing skipped: user already in flight")
		return false
	}

	g.processing[userID] = struct{}{}
	return true
}

// Release implements §4.8 step 4: always removes userID, then holds the
// caller for the cool-down before returning, so a released slot can't be
// immediately re-admitted in a tight retry loop.
func (g *Gate) Release(userID int64) {
	g.mu.Lock()
	delete(g.processing, userID)
	g.mu.Unlock()

	g.sleep(g.cooldown)
}

// InFlight reports how many users are currently admitted, for metrics/tests.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.processing)
}

// Run wraps fn with Admit/Release. It returns false without calling fn when
// the firing was skipped.
func (g *Gate) Run(ctx context.Context, userID int64, fn func(context.Context) error) (ran bool, err error) {
	if !g.Admit(userID) {
		return false, nil
	}
	defer g.Release(userID)
	return true, fn(ctx)
}
