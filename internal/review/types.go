package review

import (
	"context"
	"errors"

	"github.com/bowerhall/tourcam/internal/capture"
	"github.com/bowerhall/tourcam/internal/ledger"
)

var (
	ErrInvalidAction     = errors.New("action not allowed in current review state")
	ErrPublishInProgress = errors.New("publish already in progress")
)

type State int

const (
	StateReviewing State = iota
	StatePublishing
	StatePublished
	StatePublishFailed
	StateDiscarded
)

var stateNames = map[State]string{
	StateReviewing:     "reviewing",
	StatePublishing:    "publishing",
	StatePublished:     "published",
	StatePublishFailed: "publish_failed",
	StateDiscarded:     "discarded",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// RemoteStore uploads an artifact and returns a reference URL for it.
type RemoteStore interface {
	Upload(ctx context.Context, artifact capture.Artifact, listingID string) (string, error)
}

type Recorder interface {
	Record(a ledger.Attempt) (int64, error)
}

type Announcer interface {
	Announce(ctx context.Context, artifact capture.Artifact, url string) error
}

type Alerter interface {
	PublishFailed(listingID string, err error)
}

type Options struct {
	// ReuseKey means the store writes every attempt to the same object, so a
	// success after a failure cannot leave a duplicate behind.
	ReuseKey  bool
	Recorder  Recorder
	Announcer Announcer
	Alerter   Alerter
}
