package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bowerhall/tourcam/internal/capture"
	"github.com/bowerhall/tourcam/internal/logger"
	"github.com/bowerhall/tourcam/internal/review"
	"github.com/bowerhall/tourcam/internal/session"
)

// Alerter receives session-level failures.
type Alerter interface {
	SensorUnavailable(listingID string, err error)
	AssemblyFailed(listingID string, err error)
}

type Config struct {
	Settings capture.Settings
	Devices  capture.Deps // Listener is ignored; set Runner.Listener instead
	Store    review.RemoteStore
	Review   review.Options
	Sessions *session.Store
	Alerter  Alerter
	// Listener receives every session event, after alerting.
	Listener capture.Listener
}

// Runner builds a fresh capture session per listing and hands the result
// to a review coordinator.
type Runner struct {
	cfg Config
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Store == nil {
		return nil, errors.New("workflow: remote store is required")
	}
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewStore()
	}
	return &Runner{cfg: cfg}, nil
}

func (r *Runner) Sessions() *session.Store {
	return r.cfg.Sessions
}

// Capture runs one guided capture for listingID to its terminal outcome.
// On success the returned coordinator owns the assembled panorama. Assembly
// failure is returned as is; the caller decides whether to capture again.
func (r *Runner) Capture(ctx context.Context, listingID string) (*review.Coordinator, error) {
	// alerts must be out before the error reaches the caller, which may exit
	var alerts sync.WaitGroup
	defer alerts.Wait()

	deps := r.cfg.Devices
	deps.Listener = r.listen(listingID, &alerts)

	s, err := capture.NewSession(listingID, r.cfg.Settings, deps)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", listingID, err)
	}

	lease, err := r.cfg.Sessions.Begin(listingID, s.ID())
	if err != nil {
		return nil, err
	}
	defer lease.End()

	if err := s.Start(ctx); err != nil {
		return nil, fmt.Errorf("capture %s: %w", listingID, err)
	}
	defer s.Stop()

	artifact, err := s.Wait(ctx)
	stats := s.Stats()
	logger.Info("capture session finished",
		"listing", listingID,
		"session", s.ID(),
		"requests", stats.Requests,
		"accepted", stats.Accepted,
		"rejected", stats.Rejected,
		"discarded", stats.Discarded)

	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", listingID, err)
	}

	return review.New(artifact, r.cfg.Store, r.cfg.Review)
}

// listen runs on the session control goroutine; alerts go out on their own
// goroutine since senders make network calls. Capture waits on sent.
func (r *Runner) listen(listingID string, sent *sync.WaitGroup) capture.Listener {
	alert := func(fn func()) {
		sent.Add(1)
		go func() {
			defer sent.Done()
			fn()
		}()
	}

	return func(e capture.Event) {
		if r.cfg.Alerter != nil {
			switch e.Kind {
			case capture.EventSensorUnavailable:
				err := e.Err
				alert(func() { r.cfg.Alerter.SensorUnavailable(listingID, err) })
			case capture.EventAssemblyFailed:
				err := e.Err
				alert(func() { r.cfg.Alerter.AssemblyFailed(listingID, err) })
			}
		}
		if r.cfg.Listener != nil {
			r.cfg.Listener(e)
		}
	}
}
