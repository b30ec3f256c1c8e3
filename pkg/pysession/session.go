// Package pysession persists a named debugger session's breakpoint table
// across separate `pyvym debug --session NAME` invocations. It never
// persists the VM's execution state itself -- a reset always rebuilds the
// Interpreter from scratch, exactly as an unpersisted run would.
package pysession

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Snapshot is everything a session remembers between invocations.
type Snapshot struct {
	Breakpoints []int `json:"breakpoints"`
}

// Store loads and saves Snapshots, backed by Redis when an address is
// configured or an in-memory map for the lifetime of the process
// otherwise.
type Store struct {
	redisClient *redis.Client
	mem         map[string]Snapshot
	mu          sync.Mutex
}

// Open builds a Store. An empty addr selects the in-memory fallback.
func Open(addr string) (*Store, error) {
	if addr == "" {
		return &Store{mem: make(map[string]Snapshot)}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Store{redisClient: client}, nil
}

// NewID mints a fresh session identifier.
func NewID() string { return uuid.NewString() }

func key(sessionID string) string { return "pyvym:session:" + sessionID }

// Load returns the saved Snapshot for sessionID, if any.
func (s *Store) Load(sessionID string) (Snapshot, bool) {
	if s.redisClient == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		snap, ok := s.mem[sessionID]
		return snap, ok
	}
	raw, err := s.redisClient.Get(context.Background(), key(sessionID)).Bytes()
	if err != nil {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

// Save persists snap under sessionID.
func (s *Store) Save(sessionID string, snap Snapshot) {
	if s.redisClient == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.mem[sessionID] = snap
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	s.redisClient.Set(context.Background(), key(sessionID), raw, 30*24*time.Hour)
}
