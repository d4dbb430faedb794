package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestMemoryLoadMissing verifies an unknown dataset reports not-found
// without an error.
func TestMemoryLoadMissing(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	defer s.Close()

	_, found, err := s.Load(context.Background(), "orders")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found {
		t.Fatal("expected not found for unseen dataset")
	}
}

// TestMemorySaveLoad verifies a first save claims version 1 and a
// subsequent save against that version advances it.
func TestMemorySaveLoad(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	defer s.Close()
	s.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	ctx := context.Background()

	cp, err := s.Save(ctx, Checkpoint{Dataset: "orders", LastKey: "1000"})
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if cp.Version != 1 {
		t.Fatalf("first Save version = %d, want 1", cp.Version)
	}

	cp.LastKey = "2000"
	cp, err = s.Save(ctx, cp)
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if cp.Version != 2 {
		t.Fatalf("second Save version = %d, want 2", cp.Version)
	}

	got, found, err := s.Load(ctx, "orders")
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}
	if got.LastKey != "2000" || got.Version != 2 {
		t.Fatalf("Load = %+v, want last_key=2000 version=2", got)
	}
	if !got.UpdatedAt.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("UpdatedAt = %v, want fixed clock value", got.UpdatedAt)
	}
}

// TestMemoryVersionConflict verifies a save carrying a stale version is
// rejected and the stored checkpoint is untouched.
func TestMemoryVersionConflict(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	defer s.Close()

	ctx := context.Background()

	first, err := s.Save(ctx, Checkpoint{Dataset: "orders", LastKey: "1000"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Save(ctx, Checkpoint{Dataset: "orders", LastKey: "1500", Version: first.Version}); err != nil {
		t.Fatalf("concurrent winner Save: %v", err)
	}

	_, err = s.Save(ctx, Checkpoint{Dataset: "orders", LastKey: "9999", Version: first.Version})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale Save error = %v, want ErrVersionConflict", err)
	}

	got, _, err := s.Load(ctx, "orders")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LastKey != "1500" {
		t.Fatalf("LastKey = %q, want winner's 1500", got.LastKey)
	}
}

// TestNewUnknownKind verifies the factory rejects unregistered kinds.
func TestNewUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "etcd"})
	if err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}

// TestNewDefaultsToMemory verifies an empty kind selects the in-process
// store.
func TestNewDefaultsToMemory(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, ok := s.(*Memory); !ok {
		t.Fatalf("default store = %T, want *Memory", s)
	}
}
