// Package store holds the synchronized local data store: three collections
// persisted as whole JSON arrays, a broadcast post and a local notification
// cycle after every write, and the repositories that are the only sanctioned
// way to mutate them.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/famsched/internal/broadcast"
	"github.com/dukerupert/famsched/internal/model"
	"github.com/google/uuid"
)

type Collection string

const (
	Members       Collection = "members"
	Events        Collection = "events"
	Notifications Collection = "notifications"
)

// Collections lists the three slots in a stable order.
var Collections = []Collection{Members, Events, Notifications}

// ErrCorrupt is returned when a stored slot cannot be decoded.
var ErrCorrupt = errors.New("corrupt collection payload")

// Store is one context's view of the shared medium. Writes from the same
// Store are serialized; writes from different Stores over the same medium
// race and the last one to reach the medium wins.
type Store struct {
	mu       sync.Mutex
	medium   Medium
	channel  broadcast.Channel
	registry *Registry
	logger   *slog.Logger
	newID    func() string

	clockMu sync.RWMutex
	clock   func() time.Time
}

// New creates a Store and routes signals received on channel into its
// change notification registry.
func New(medium Medium, channel broadcast.Channel, logger *slog.Logger) *Store {
	s := &Store{
		medium:   medium,
		channel:  channel,
		registry: NewRegistry(logger),
		logger:   logger,
		newID:    uuid.NewString,
		clock:    time.Now,
	}
	channel.OnReceive(s.registry.NotifyAll)
	return s
}

// SetClock replaces the clock used for timestamps. It is safe to call while
// other goroutines are writing.
func (s *Store) SetClock(now func() time.Time) {
	s.clockMu.Lock()
	s.clock = now
	s.clockMu.Unlock()
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

func (s *Store) now() time.Time {
	s.clockMu.RLock()
	clock := s.clock
	s.clockMu.RUnlock()
	return clock()
}

// Subscribe registers a callback run after every local or remote write.
func (s *Store) Subscribe(fn func()) func() {
	return s.registry.Subscribe(fn)
}

// Get returns the raw records of a collection, or an empty sequence when the
// slot has never been written.
func (s *Store) Get(c Collection) ([]json.RawMessage, error) {
	return load[json.RawMessage](s, c)
}

// Set overwrites a collection with records, which must encode as a JSON array.
// The write is followed by a broadcast post and a local notification cycle.
func (s *Store) Set(c Collection, records any) error {
	payload, err := encode(c, records)
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = s.save(c, payload)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish()
	return nil
}

// Seed writes members only when the members collection is empty. It reports
// whether anything was written.
func (s *Store) Seed(members []model.Member) (bool, error) {
	s.mu.Lock()
	current, err := load[model.Member](s, Members)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	if len(current) > 0 {
		s.mu.Unlock()
		return false, nil
	}

	payload, err := encode(Members, members)
	if err == nil {
		err = s.save(Members, payload)
	}
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	s.publish()
	return true, nil
}

// Snapshot returns the encoded contents of every collection.
func (s *Store) Snapshot() (map[Collection]json.RawMessage, error) {
	snap := make(map[Collection]json.RawMessage, len(Collections))
	for _, c := range Collections {
		records, err := s.Get(c)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", c, err)
		}
		snap[c] = data
	}
	return snap, nil
}

// Restore writes every collection present in snap through Set.
func (s *Store) Restore(snap map[Collection]json.RawMessage) error {
	for _, c := range Collections {
		data, ok := snap[c]
		if !ok {
			continue
		}
		var records []json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorrupt, c, err)
		}
		if err := s.Set(c, records); err != nil {
			return fmt.Errorf("restore %s: %w", c, err)
		}
	}
	return nil
}

// Close detaches the store from its broadcast channel.
func (s *Store) Close() error {
	return s.channel.Close()
}

func (s *Store) save(c Collection, payload []byte) error {
	if err := s.medium.Save(string(c), payload); err != nil {
		return fmt.Errorf("write %s: %w", c, err)
	}
	return nil
}

func (s *Store) publish() {
	if err := s.channel.Post(); err != nil {
		s.logger.Warn("broadcast update", "error", err)
	}
	s.registry.NotifyAll()
}

func encode(c Collection, records any) ([]byte, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c, err)
	}
	if bytes.Equal(payload, []byte("null")) {
		return []byte("[]"), nil
	}
	if len(payload) == 0 || payload[0] != '[' {
		return nil, fmt.Errorf("encode %s: records must be a sequence", c)
	}
	return payload, nil
}

func load[T any](s *Store, c Collection) ([]T, error) {
	payload, ok, err := s.medium.Load(string(c))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c, err)
	}
	records := []T{}
	if !ok {
		return records, nil
	}
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, c, err)
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

// modify runs a read-modify-write of one collection. fn reports whether the
// result should be written; nothing is published when it returns false.
func modify[T any](s *Store, c Collection, fn func([]T) ([]T, bool)) error {
	s.mu.Lock()
	current, err := load[T](s, c)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	next, write := fn(current)
	if !write {
		s.mu.Unlock()
		return nil
	}

	payload, err := encode(c, next)
	if err == nil {
		err = s.save(c, payload)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish()
	return nil
}
