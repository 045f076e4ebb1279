// Package snowflake assigns primary keys to rows this process inserts
// (emails, digests) without round-tripping a Postgres sequence first. Every
// worker process mints its own IDs from a local, lock-protected counter;
// uniqueness across concurrently deployed workers comes entirely from each
// one being initialized with a distinct node ID (§ snowflakeWorkerID in
// internal/bootstrap), not from any coordination between them.
//
// Bit layout (64 bits total, fits an int64 column with room to spare):
//
//	┌─────────┬─────────────────────┬────────────┬──────────────┐
//	│ 1 bit   │      41 bits        │  10 bits   │   12 bits    │
//	│ unused  │ ms since nodeEpoch  │  node id   │  sequence    │
//	└─────────┴─────────────────────┴────────────┴──────────────┘
//
// 41 timestamp bits cover ~69 years past nodeEpoch; 10 node bits allow 1024
// concurrently running workers; 12 sequence bits allow 4096 IDs per node
// per millisecond before the generator blocks waiting for the clock to
// advance.
package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// nodeEpoch anchors the timestamp component; any fixed point before the
	// system's first insert works, it only needs to never change once rows
	// exist, since Parse/Timestamp reconstruct real time from it.
	nodeEpoch int64 = 1704067200000 // 2024-01-01T00:00:00Z

	timestampBits = 41
	nodeIDBits    = 10
	sequenceBits  = 12

	maxNodeID   = (1 << nodeIDBits) - 1 // 1023
	maxSequence = (1 << sequenceBits) - 1 // 4095

	timestampShift = nodeIDBits + sequenceBits // 22
	nodeIDShift    = sequenceBits              // 12
)

var (
	ErrInvalidNodeID  = errors.New("snowflake: node id must be between 0 and 1023")
	ErrClockMovedBack = errors.New("snowflake: system clock moved backwards")
)

// Generator mints IDs for one node. Safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	nodeID   int64
	sequence int64
	lastTime int64
}

// NewGenerator builds a Generator for nodeID, which must be in [0, 1023].
func NewGenerator(nodeID int64) (*Generator, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, ErrInvalidNodeID
	}
	return &Generator{nodeID: nodeID}, nil
}

// Generate mints one new ID, blocking briefly if this node's 4096-per-ms
// sequence budget is exhausted within the current millisecond.
func (g *Generator) Generate() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := currentTimeMillis()
	if now < g.lastTime {
		return 0, ErrClockMovedBack
	}

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			now = waitNextMillis(g.lastTime)
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now

	id := ((now - nodeEpoch) << timestampShift) |
		(g.nodeID << nodeIDShift) |
		g.sequence
	return id, nil
}

// MustGenerate generates an ID and panics on error (only ErrClockMovedBack
// is possible, and only under active clock skew).
func (g *Generator) MustGenerate() int64 {
	id, err := g.Generate()
	if err != nil {
		panic(err)
	}
	return id
}

// Parse decomposes id back into its issuing node and sequence, and the
// wall-clock time (to millisecond precision) it was minted at.
func Parse(id int64) (timestamp time.Time, nodeID int64, sequence int64) {
	ts := (id >> timestampShift) + nodeEpoch
	timestamp = time.UnixMilli(ts)
	nodeID = (id >> nodeIDShift) & maxNodeID
	sequence = id & maxSequence
	return
}

// Timestamp extracts just the minting time from id.
func Timestamp(id int64) time.Time {
	ts := (id >> timestampShift) + nodeEpoch
	return time.UnixMilli(ts)
}

func currentTimeMillis() int64 {
	return time.Now().UnixMilli()
}

func waitNextMillis(lastTime int64) int64 {
	now := currentTimeMillis()
	for now <= lastTime {
		time.Sleep(100 * time.Microsecond)
		now = currentTimeMillis()
	}
	return now
}

// Process-wide generator, set up once by bootstrap.NewDependencies so every
// Store method that needs an ID can call ID() without threading a Generator
// through every call site.

var (
	globalGen  *Generator
	globalOnce sync.Once
	globalErr  error
)

// Init sets up the process-wide generator. Only the first call's nodeID
// takes effect; later calls are no-ops that return the first call's error,
// so it's safe to call defensively from more than one init path.
func Init(nodeID int64) error {
	globalOnce.Do(func() {
		globalGen, globalErr = NewGenerator(nodeID)
	})
	return globalErr
}

// ID mints a new ID from the process-wide generator. Panics if Init hasn't
// run yet — every entrypoint calls Init before constructing anything that
// can reach ID().
func ID() int64 {
	if globalGen == nil {
		panic("snowflake: global generator not initialized, call Init() first")
	}
	return globalGen.MustGenerate()
}

// NextID is an alias for ID().
func NextID() int64 {
	return ID()
}
