package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/bowerhall/tourcam/internal/capture"
	"github.com/bowerhall/tourcam/internal/logger"
)

// maxPhotoSize is the largest panorama attached inline; bigger ones are
// announced by link only.
const maxPhotoSize = 10 * 1024 * 1024

// Sender posts to one fixed destination (a chat or channel).
type Sender interface {
	Name() string
	Send(message string) error
	SendPhoto(data []byte, caption string) error
}

// Announcer fans publish announcements and alerts out to every sender.
type Announcer struct {
	senders []Sender
}

func NewAnnouncer(senders ...Sender) *Announcer {
	return &Announcer{senders: senders}
}

func (a *Announcer) Enabled() bool {
	return len(a.senders) > 0
}

// Announce posts a published panorama with its reference URL.
func (a *Announcer) Announce(ctx context.Context, artifact capture.Artifact, url string) error {
	caption := fmt.Sprintf("Panorama published for listing %s (%d shots)\n%s", artifact.ListingID, artifact.ShotCount, url)

	var errs []error
	for _, s := range a.senders {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		if len(artifact.Image) > 0 && len(artifact.Image) <= maxPhotoSize {
			err = s.SendPhoto(artifact.Image, caption)
		} else {
			err = s.Send(caption)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}

	return errors.Join(errs...)
}

// Notify sends a plain message to every sender, logging failures.
func (a *Announcer) Notify(message string) {
	for _, s := range a.senders {
		if err := s.Send(message); err != nil {
			logger.Error("notify failed", "sender", s.Name(), "error", err)
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max] + "..."
}
