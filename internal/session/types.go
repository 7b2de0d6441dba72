package session

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrSessionActive = errors.New("a capture session is already active for this listing")
	ErrNotFound      = errors.New("no active capture session for listing")
)

// Slot guards capture for one listing. At most one session holds it.
type Slot struct {
	mu        sync.Mutex
	active    sync.Mutex
	sessionID string
	startedAt time.Time
	sessions  int
}

// Lease is held by the running session and ends it in the registry.
type Lease struct {
	ListingID string
	SessionID string
	StartedAt time.Time

	slot *Slot
	once sync.Once
}

type Store struct {
	mu    sync.RWMutex
	slots map[string]*Slot
}
