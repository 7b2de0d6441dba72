package review

import (
	"context"
	"fmt"
	"sync"

	"github.com/bowerhall/tourcam/internal/capture"
	"github.com/bowerhall/tourcam/internal/ledger"
	"github.com/bowerhall/tourcam/internal/logger"
)

// Coordinator drives publishing of one assembled panorama. The artifact is
// held in memory until Retry or Close so a failed publish can be repeated
// without capturing or assembling again.
type Coordinator struct {
	store     RemoteStore
	opts      Options
	listingID string

	mu       sync.Mutex
	artifact *capture.Artifact
	state    State
	url      string
	attempts int
	failures int
	lastErr  error
}

func New(artifact capture.Artifact, store RemoteStore, opts Options) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("review: remote store is required")
	}
	if artifact.ListingID == "" {
		return nil, fmt.Errorf("review: artifact has no listing id")
	}

	return &Coordinator{
		store:     store,
		opts:      opts,
		listingID: artifact.ListingID,
		artifact:  &artifact,
		state:     StateReviewing,
	}, nil
}

func (c *Coordinator) ListingID() string {
	return c.listingID
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Artifact returns the retained panorama, if any.
func (c *Coordinator) Artifact() (capture.Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.artifact == nil {
		return capture.Artifact{}, false
	}
	return *c.artifact, true
}

func (c *Coordinator) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

func (c *Coordinator) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Publish uploads the artifact. Allowed from Reviewing and PublishFailed.
func (c *Coordinator) Publish(ctx context.Context) (string, error) {
	c.mu.Lock()
	switch c.state {
	case StateReviewing, StatePublishFailed:
	case StatePublishing:
		c.mu.Unlock()
		return "", ErrPublishInProgress
	default:
		state := c.state
		c.mu.Unlock()
		return "", fmt.Errorf("%w: publish from %s", ErrInvalidAction, state)
	}
	if c.artifact == nil {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: artifact released", ErrInvalidAction)
	}

	c.state = StatePublishing
	c.attempts++
	attempt := c.attempts
	duplicateRisk := c.failures > 0 && !c.opts.ReuseKey
	artifact := *c.artifact
	c.mu.Unlock()

	log := logger.With("listing", artifact.ListingID, "artifact", artifact.ID, "attempt", attempt)
	log.Info("publishing panorama", "bytes", len(artifact.Image))

	url, err := c.store.Upload(ctx, artifact, artifact.ListingID)

	c.mu.Lock()
	if err != nil {
		c.state = StatePublishFailed
		c.failures++
		c.lastErr = err
	} else {
		c.state = StatePublished
		c.url = url
		c.lastErr = nil
	}
	c.mu.Unlock()

	rec := ledger.Attempt{
		ListingID:  artifact.ListingID,
		ArtifactID: artifact.ID,
		Number:     attempt,
	}

	if err != nil {
		log.Error("publish failed", "error", err)
		rec.Status = ledger.StatusFailed
		rec.Error = err.Error()
		c.record(rec)
		if c.opts.Alerter != nil {
			c.opts.Alerter.PublishFailed(artifact.ListingID, err)
		}
		return "", fmt.Errorf("publish listing %s: %w", artifact.ListingID, err)
	}

	if duplicateRisk {
		log.Warn("published after a failed attempt; remote may hold a duplicate", "url", url)
	} else {
		log.Info("panorama published", "url", url)
	}

	rec.Status = ledger.StatusPublished
	rec.URL = url
	rec.DuplicateRisk = duplicateRisk
	c.record(rec)

	if c.opts.Announcer != nil {
		if err := c.opts.Announcer.Announce(ctx, artifact, url); err != nil {
			log.Warn("publish announcement failed", "error", err)
		}
	}

	return url, nil
}

// Retry abandons the artifact so the listing can be captured again.
// Allowed from Reviewing and PublishFailed.
func (c *Coordinator) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateReviewing, StatePublishFailed:
	case StatePublishing:
		return ErrPublishInProgress
	default:
		return fmt.Errorf("%w: retry from %s", ErrInvalidAction, c.state)
	}

	logger.Info("panorama discarded for recapture", "listing", c.listingID)
	c.state = StateDiscarded
	c.artifact = nil
	return nil
}

// Close releases the retained artifact. A publish in flight still completes
// with its own copy.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifact = nil
}

func (c *Coordinator) record(a ledger.Attempt) {
	if c.opts.Recorder == nil {
		return
	}
	if _, err := c.opts.Recorder.Record(a); err != nil {
		logger.Warn("failed to record publish attempt", "listing", a.ListingID, "error", err)
	}
}
