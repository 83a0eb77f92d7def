// Package store persists schedule events in a YAML file.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"journalcal/internal/config"
	appLog "journalcal/internal/log"
	"journalcal/internal/model"
	"journalcal/internal/recurrence"
)

// ErrNotFound is returned when an event id is unknown.
var ErrNotFound = errors.New("store: event not found")

type document struct {
	Events []model.Event `yaml:"events"`
}

// Load reads the events file. A missing file is an empty schedule.
func Load(path string) ([]model.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.Event{}, nil
		}
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}
	if doc.Events == nil {
		doc.Events = []model.Event{}
	}
	return doc.Events, nil
}

// Save writes events atomically.
func Save(path string, events []model.Event) error {
	if path == "" {
		return errors.New("store: path is empty")
	}
	if events == nil {
		events = []model.Event{}
	}
	data, err := yaml.Marshal(&document{Events: events})
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(path, data, ".journalcal-events-*.tmp")
}

// Store is the in-memory view of one events file. It is safe for
// concurrent use; every mutation is written through to disk.
type Store struct {
	path string

	mu     sync.RWMutex
	events []model.Event
}

// Open loads path into a new Store.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Reload re-reads the file, replacing the in-memory events. On error the
// previous events are kept.
func (s *Store) Reload() error {
	events, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.events = events
	s.mu.Unlock()
	appLog.Debug("store reloaded", "path", s.path, "events", len(events))
	return nil
}

// Events returns a copy of all events ordered by start time.
func (s *Store) Events() []model.Event {
	s.mu.RLock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Get returns the event with the given id.
func (s *Store) Get(id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ev := range s.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return model.Event{}, ErrNotFound
}

// Put inserts or replaces ev by id. An empty id gets a fresh UUID and the
// recurrence rule is stored in canonical form. The stored event is
// returned.
func (s *Store) Put(ev model.Event) (model.Event, error) {
	if ev.StartTime.IsZero() {
		return ev, errors.New("store: event has no start time")
	}
	if strings.TrimSpace(ev.ID) == "" {
		ev.ID = uuid.NewString()
	}
	ev.RRule = recurrence.Canonicalize(ev.RRule)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.Event, 0, len(s.events)+1)
	replaced := false
	for _, cur := range s.events {
		if cur.ID == ev.ID {
			next = append(next, ev)
			replaced = true
			continue
		}
		next = append(next, cur)
	}
	if !replaced {
		next = append(next, ev)
	}

	if err := Save(s.path, next); err != nil {
		return ev, err
	}
	s.events = next
	return ev, nil
}

// PutAll stores events in one write, e.g. after an import.
func (s *Store) PutAll(events []model.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[string]int, len(s.events))
	next := make([]model.Event, len(s.events), len(s.events)+len(events))
	copy(next, s.events)
	for i, ev := range next {
		index[ev.ID] = i
	}

	n := 0
	for _, ev := range events {
		if ev.StartTime.IsZero() {
			continue
		}
		if strings.TrimSpace(ev.ID) == "" {
			ev.ID = uuid.NewString()
		}
		ev.RRule = recurrence.Canonicalize(ev.RRule)
		if i, ok := index[ev.ID]; ok {
			next[i] = ev
		} else {
			index[ev.ID] = len(next)
			next = append(next, ev)
		}
		n++
	}

	if err := Save(s.path, next); err != nil {
		return 0, err
	}
	s.events = next
	return n, nil
}

// Delete removes the event with the given id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.Event, 0, len(s.events))
	for _, ev := range s.events {
		if ev.ID != id {
			next = append(next, ev)
		}
	}
	if len(next) == len(s.events) {
		return ErrNotFound
	}

	if err := Save(s.path, next); err != nil {
		return err
	}
	s.events = next
	return nil
}
