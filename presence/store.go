// Package presence tracks when members were last seen in the watched voice
// channel and detects join/leave transitions from raw voice-state updates.
//
// Durable state is a single JSON document overwritten wholesale on every
// update. Load failures yield an empty state; write failures leave the
// in-memory state authoritative for the rest of the process lifetime.
package presence

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// stateFile is the on-disk shape of the store.
type stateFile struct {
	Members      map[string]time.Time `json:"members"`
	LastGreeting *time.Time           `json:"lastGreeting,omitempty"`
}

// Store holds per-member last-seen timestamps plus the timestamp of the most
// recent greeting sent to anyone. Mutations are serialized; persistence is
// asynchronous and best-effort, funneled through a single writer so the
// newest snapshot is always the one that lands last on disk.
type Store struct {
	path string

	mu           sync.Mutex
	members      map[string]time.Time
	lastGreeting *time.Time
	pending      []byte
	writing      bool

	wg sync.WaitGroup
}

// Open loads the store from path. A missing or corrupt file is logged and
// treated as empty state; it is never fatal.
func Open(path string) *Store {
	s := &Store{path: path, members: make(map[string]time.Time)}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("unable to read last-seen state file", slog.String("path", path), slog.Any("err", err))
		}
		return s
	}
	var sf stateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		slog.Error("unable to parse last-seen state file; starting empty", slog.String("path", path), slog.Any("err", err))
		return s
	}
	if sf.Members != nil {
		s.members = sf.Members
	}
	s.lastGreeting = sf.LastGreeting
	return s
}

// Get returns the last-seen timestamp for a member, if any.
func (s *Store) Get(memberID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.members[memberID]
	return t, ok
}

// LastGreetingTime returns the timestamp of the most recent greeting sent to
// any member, if one has been sent.
func (s *Store) LastGreetingTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastGreeting == nil {
		return time.Time{}, false
	}
	return *s.lastGreeting, true
}

// Len returns the number of members with a recorded last-seen timestamp.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// RecordSeen marks a member as seen now and stamps the global last-greeting
// time, then persists asynchronously. It returns the previous last-seen and
// last-greeting values (nil when absent); callers need these to reason about
// "how long since" without racing the update they just applied.
func (s *Store) RecordSeen(memberID string, now time.Time) (prevSeen, prevGreeting *time.Time) {
	s.mu.Lock()
	if t, ok := s.members[memberID]; ok {
		seen := t
		prevSeen = &seen
	}
	if s.lastGreeting != nil {
		g := *s.lastGreeting
		prevGreeting = &g
	}
	s.members[memberID] = now.UTC()
	g := now.UTC()
	s.lastGreeting = &g
	data, err := json.Marshal(stateFile{Members: s.members, LastGreeting: s.lastGreeting})
	if err != nil {
		s.mu.Unlock()
		slog.Error("unable to encode last-seen state", slog.String("member", memberID), slog.Any("err", err))
		return prevSeen, prevGreeting
	}

	// Hand the snapshot to the single writer. A newer snapshot replaces an
	// unwritten older one, so the disk never ends up behind memory.
	s.pending = data
	if !s.writing {
		s.writing = true
		s.wg.Add(1)
		go s.persist()
	}
	s.mu.Unlock()
	return prevSeen, prevGreeting
}

// persist writes pending snapshots until none remain, then exits. At most
// one persist goroutine runs at a time.
func (s *Store) persist() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		data := s.pending
		s.pending = nil
		if data == nil {
			s.writing = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		if err := os.WriteFile(s.path, data, 0o644); err != nil {
			// In-memory state stays authoritative; the lost update biases
			// later days-since-last-seen math upward after a restart.
			slog.Error("unable to persist last-seen state", slog.String("path", s.path), slog.Any("err", err))
			continue
		}
		slog.Debug("persisted last-seen state", slog.String("path", s.path))
	}
}

// Flush waits for in-flight persistence writes. Used on shutdown and in tests.
func (s *Store) Flush() {
	s.wg.Wait()
}
