package presence

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last-seen.json")
	s := Open(path)

	t1 := time.Date(2026, 6, 9, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 6, 9, 11, 30, 0, 0, time.UTC)
	s.RecordSeen("alice", t1)
	s.RecordSeen("bob", t2)
	s.Flush()

	reloaded := Open(path)
	if got, ok := reloaded.Get("alice"); !ok || !got.Equal(t1) {
		t.Errorf("alice last-seen = %v (%v), want %v", got, ok, t1)
	}
	if got, ok := reloaded.Get("bob"); !ok || !got.Equal(t2) {
		t.Errorf("bob last-seen = %v (%v), want %v", got, ok, t2)
	}
	if got, ok := reloaded.LastGreetingTime(); !ok || !got.Equal(t2) {
		t.Errorf("last greeting = %v (%v), want %v", got, ok, t2)
	}
	if reloaded.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reloaded.Len())
	}
}

func TestRecordSeenReturnsPreviousValues(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "last-seen.json"))

	t1 := time.Date(2026, 6, 8, 10, 0, 0, 0, time.UTC)
	prevSeen, prevGreeting := s.RecordSeen("alice", t1)
	if prevSeen != nil || prevGreeting != nil {
		t.Errorf("first record should have no previous values: %v %v", prevSeen, prevGreeting)
	}

	t2 := t1.Add(24 * time.Hour)
	prevSeen, prevGreeting = s.RecordSeen("alice", t2)
	if prevSeen == nil || !prevSeen.Equal(t1) {
		t.Errorf("previous seen = %v, want %v", prevSeen, t1)
	}
	if prevGreeting == nil || !prevGreeting.Equal(t1) {
		t.Errorf("previous greeting = %v, want %v", prevGreeting, t1)
	}
	s.Flush()
}

func TestOpenMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	s := Open(filepath.Join(dir, "does-not-exist.json"))
	if s.Len() != 0 {
		t.Errorf("missing file should yield empty state")
	}
	if _, ok := s.LastGreetingTime(); ok {
		t.Errorf("missing file should have no last greeting")
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s = Open(corrupt)
	if s.Len() != 0 {
		t.Errorf("corrupt file should yield empty state, got %d members", s.Len())
	}
}

func TestConcurrentRecordSeenPersistsNewestSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last-seen.json")
	s := Open(path)
	base := time.Date(2026, 6, 9, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.RecordSeen(fmt.Sprintf("member-%02d", i), base.Add(time.Duration(i)*time.Minute))
		}(i)
	}
	wg.Wait()
	s.Flush()

	// The file must hold the final in-memory state, not an older snapshot
	// written by a slower goroutine.
	reloaded := Open(path)
	if reloaded.Len() != 50 {
		t.Fatalf("reloaded %d members, want 50", reloaded.Len())
	}
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("member-%02d", i)
		want, _ := s.Get(id)
		if got, ok := reloaded.Get(id); !ok || !got.Equal(want) {
			t.Errorf("%s: reloaded %v (%v), want %v", id, got, ok, want)
		}
	}
	memGreeting, _ := s.LastGreetingTime()
	if got, ok := reloaded.LastGreetingTime(); !ok || !got.Equal(memGreeting) {
		t.Errorf("reloaded last greeting = %v (%v), want %v", got, ok, memGreeting)
	}
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	// Point the store at a path whose parent doesn't exist so writes fail.
	s := Open(filepath.Join(t.TempDir(), "missing-dir", "state.json"))
	now := time.Date(2026, 6, 9, 10, 0, 0, 0, time.UTC)
	s.RecordSeen("alice", now)
	s.Flush()
	if got, ok := s.Get("alice"); !ok || !got.Equal(now) {
		t.Errorf("in-memory state must survive persistence failure: %v %v", got, ok)
	}
}
