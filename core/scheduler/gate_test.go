package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGate(max int) *Gate {
	g := NewGate(max, zerolog.Nop())
	g.sleep = func(time.Duration) {}
	return g
}

func TestGate_AdmitsUpToMax(t *testing.T) {
	g := testGate(2)
	assert.True(t, g.Admit(1))
	assert.True(t, g.Admit(2))
	assert.False(t, g.Admit(3))
	assert.Equal(t, 2, g.InFlight())
}

func TestGate_RejectsSameUserTwice(t *testing.T) {
	g := testGate(3)
	require.True(t, g.Admit(1))
	assert.False(t, g.Admit(1))
}

func TestGate_ReleaseFreesSlot(t *testing.T) {
	g := testGate(1)
	require.True(t, g.Admit(1))
	g.Release(1)
	assert.Equal(t, 0, g.InFlight())
	assert.True(t, g.Admit(2))
}

func TestGate_Run_SkipsWhenNotAdmitted(t *testing.T) {
	g := testGate(1)
	require.True(t, g.Admit(1))

	called := false
	ran, err := g.Run(context.Background(), 1, func(context.Context) error {
		called = true
		return nil
	})
	assert.False(t, ran)
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestGate_Run_ExecutesAndReleases(t *testing.T) {
	g := testGate(1)
	ran, err := g.Run(context.Background(), 1, func(context.Context) error { return nil })
	assert.True(t, ran)
	assert.NoError(t, err)
	assert.Equal(t, 0, g.InFlight())
}

func TestGate_ConcurrentAdmitNeverExceedsMax(t *testing.T) {
	g := testGate(3)
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := int64(0); i < 10; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if g.Admit(id) {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, admitted, 3)
}
