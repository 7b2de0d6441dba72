package session

import (
	"fmt"
	"sort"
	"time"

	"github.com/bowerhall/tourcam/internal/logger"
)

// TryAcquire attempts to take the slot.
// Returns true if acquired, false if a session is already running.
func (s *Slot) TryAcquire() bool {
	return s.active.TryLock()
}

// Release frees the slot.
func (s *Slot) Release() {
	s.active.Unlock()
}

// Sessions counts the sessions that have held this slot.
func (s *Slot) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

func (s *Slot) current() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID, s.startedAt
}

func NewStore() *Store {
	return &Store{slots: make(map[string]*Slot)}
}

func (s *Store) Get(listingID string) *Slot {
	s.mu.RLock()

	slot, ok := s.slots[listingID]
	s.mu.RUnlock()

	if ok {
		return slot
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slot, ok = s.slots[listingID]; ok {
		return slot
	}

	slot = &Slot{}
	s.slots[listingID] = slot

	return slot
}

// Begin registers sessionID as the active capture for listingID.
func (s *Store) Begin(listingID, sessionID string) (*Lease, error) {
	slot := s.Get(listingID)
	if !slot.TryAcquire() {
		running, _ := slot.current()
		return nil, fmt.Errorf("%w: listing %s, session %s", ErrSessionActive, listingID, running)
	}

	now := time.Now()
	slot.mu.Lock()
	slot.sessionID = sessionID
	slot.startedAt = now
	slot.sessions++
	slot.mu.Unlock()

	logger.Debug("capture session registered", "listing", listingID, "session", sessionID)

	return &Lease{
		ListingID: listingID,
		SessionID: sessionID,
		StartedAt: now,
		slot:      slot,
	}, nil
}

// End releases the lease. Safe to call more than once.
func (l *Lease) End() {
	l.once.Do(func() {
		l.slot.mu.Lock()
		l.slot.sessionID = ""
		l.slot.startedAt = time.Time{}
		l.slot.mu.Unlock()
		l.slot.Release()

		logger.Debug("capture session ended", "listing", l.ListingID, "session", l.SessionID, "duration", time.Since(l.StartedAt).Round(time.Millisecond))
	})
}

// Current returns the session running for listingID.
func (s *Store) Current(listingID string) (string, error) {
	s.mu.RLock()
	slot, ok := s.slots[listingID]
	s.mu.RUnlock()

	if ok {
		if id, _ := slot.current(); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, listingID)
}

// Active lists listings with a running session, sorted.
func (s *Store) Active() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for listing, slot := range s.slots {
		if id, _ := slot.current(); id != "" {
			out = append(out, listing)
		}
	}
	sort.Strings(out)
	return out
}
