// Package checkpoint defines the incremental-mode checkpoint store: the one
// artifact the pipeline persists directly, keyed by an opaque dataset id.
//
// Concurrent runs against the same dataset id are resolved by optimistic
// versioning: Save carries the version the caller loaded, and a stale
// version is rejected with ErrVersionConflict instead of silently
// last-writer-wins.
//
// Backends register themselves from init() (mirroring the storage factory
// pattern): "memory" is built in; "sqlite", "postgres", and "mssql" live in
// subpackages and are linked in via the all package.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrVersionConflict reports a stale Save against a newer checkpoint.
var ErrVersionConflict = errors.New("checkpoint: version conflict")

// Checkpoint is the persisted resume marker for one dataset.
type Checkpoint struct {
	Dataset   string    `json:"dataset"`
	LastKey   string    `json:"last_key"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists checkpoints. Implementations must be safe for concurrent
// use within one process.
type Store interface {
	// Load returns the checkpoint for dataset and whether one exists.
	Load(ctx context.Context, dataset string) (Checkpoint, bool, error)

	// Save persists cp if cp.Version matches the stored version (0 for a
	// new dataset). On success it returns the checkpoint with the bumped
	// version; a stale version returns ErrVersionConflict.
	Save(ctx context.Context, cp Checkpoint) (Checkpoint, error)

	// Close releases backend resources. Call once at shutdown.
	Close()
}

// WriteError wraps a checkpoint persistence failure. The in-memory run
// result is kept; the error is surfaced on the result instead of aborting.
type WriteError struct {
	Dataset string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("checkpoint: save dataset %q: %v", e.Dataset, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Config selects and configures a checkpoint backend.
type Config struct {
	Kind string
	DSN  string
}

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Registering a duplicate kind
// panics to fail fast on ambiguous backend selection.
func Register(kind string, f factory) {
	if kind == "" {
		panic("checkpoint: Register called with empty kind")
	}
	if f == nil {
		panic("checkpoint: Register called with nil factory")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[kind]; dup {
		panic(fmt.Sprintf("checkpoint: backend %q already registered", kind))
	}
	factories[kind] = f
}

// New creates a Store for the configured kind. Empty kind means memory.
func New(ctx context.Context, cfg Config) (Store, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = "memory"
	}
	mu.RLock()
	f, ok := factories[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("checkpoint: unknown backend %q", kind)
	}
	return f(ctx, cfg)
}

// ---- in-memory store (default, and the test double) ----

// Memory is an in-process Store.
type Memory struct {
	mu  sync.Mutex
	cps map[string]Checkpoint

	// now is a seam for deterministic tests.
	now func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{cps: map[string]Checkpoint{}, now: time.Now}
}

func init() {
	Register("memory", func(ctx context.Context, cfg Config) (Store, error) {
		return NewMemory(), nil
	})
}

func (m *Memory) Load(ctx context.Context, dataset string) (Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.cps[dataset]
	return cp, ok, nil
}

func (m *Memory) Save(ctx context.Context, cp Checkpoint) (Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.cps[cp.Dataset]
	if ok && cur.Version != cp.Version {
		return Checkpoint{}, ErrVersionConflict
	}
	if !ok && cp.Version != 0 {
		return Checkpoint{}, ErrVersionConflict
	}

	cp.Version++
	cp.UpdatedAt = m.now()
	m.cps[cp.Dataset] = cp
	return cp, nil
}

func (m *Memory) Close() {}
