package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bowerhall/tourcam/internal/alerts"
	"github.com/bowerhall/tourcam/internal/capture"
	"github.com/bowerhall/tourcam/internal/config"
	"github.com/bowerhall/tourcam/internal/ledger"
	"github.com/bowerhall/tourcam/internal/logger"
	"github.com/bowerhall/tourcam/internal/notify"
	"github.com/bowerhall/tourcam/internal/operational"
	"github.com/bowerhall/tourcam/internal/review"
	"github.com/bowerhall/tourcam/internal/storage"
	"github.com/bowerhall/tourcam/internal/vision"
)

// services holds the long-lived collaborators shared by capture and publish.
type services struct {
	db        *operational.Store
	ledger    *ledger.Store
	janitor   *ledger.Janitor
	store     *storage.Client
	announcer *notify.Announcer
	alerter   *alerts.Alerter
}

func openServices(ctx context.Context) (*services, error) {
	if !cfg.Storage.Enabled {
		return nil, errors.New("remote storage is not configured (set MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY)")
	}

	store, err := storage.NewClient(storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		PublicURL: cfg.Storage.PublicURL,
		ReuseKey:  cfg.Publish.ReuseKey,
	})
	if err != nil {
		return nil, err
	}

	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}

	s := &services{store: store}

	if err := s.openLedger(); err != nil {
		return nil, err
	}

	s.announcer = notify.NewAnnouncer(senders(cfg.Notify)...)
	s.alerter = alerts.New(s.announcer.Notify, cfg.Notify.AlertCooldown)

	return s, nil
}

func (s *services) openLedger() error {
	db, err := operational.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}

	store, err := ledger.NewStore(db.DB())
	if err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.ledger = store
	return nil
}

// startJanitor prunes the ledger on schedule while a long command runs.
func (s *services) startJanitor() error {
	j, err := ledger.NewJanitor(s.ledger, cfg.Ledger.PruneSchedule, retention())
	if err != nil {
		return err
	}
	j.Start()
	s.janitor = j
	return nil
}

func (s *services) Close() {
	if s.janitor != nil {
		s.janitor.Stop()
	}
	if s.db != nil {
		s.db.Close()
	}
}

func (s *services) reviewOptions() review.Options {
	opts := review.Options{
		ReuseKey: cfg.Publish.ReuseKey,
		Recorder: s.ledger,
		Alerter:  s.alerter,
	}
	if s.announcer.Enabled() {
		opts.Announcer = s.announcer
	}
	return opts
}

func retention() time.Duration {
	return time.Duration(cfg.Ledger.RetentionDays) * 24 * time.Hour
}

func senders(nc config.NotifyConfig) []notify.Sender {
	var out []notify.Sender

	if nc.Telegram.Enabled {
		s, err := notify.NewTelegram(nc.Telegram.Token, nc.Telegram.ChatID)
		if err != nil {
			logger.Warn("telegram disabled", "error", err)
		} else {
			out = append(out, s)
		}
	}

	if nc.Discord.Enabled {
		s, err := notify.NewDiscord(nc.Discord.Token, nc.Discord.ChannelID)
		if err != nil {
			logger.Warn("discord disabled", "error", err)
		} else {
			out = append(out, s)
		}
	}

	return out
}

func captureSettings(p config.Profile) capture.Settings {
	return capture.Settings{
		Step:               p.Step(),
		Epsilon:            p.AlignmentEpsilon,
		Cooldown:           p.Cooldown,
		ExpectedShots:      p.ExpectedShots,
		MaxRetries:         p.MaxRetries,
		SharpnessThreshold: p.SharpnessThreshold,
		StallTimeout:       p.StallTimeout,
	}
}

func stitchConfig(p config.Profile) vision.StitchConfig {
	return vision.StitchConfig{
		ConfidenceThreshold: p.Stitcher.ConfidenceThreshold,
		BlendStrength:       p.Stitcher.BlendStrength,
		WaveCorrection:      p.Stitcher.WaveCorrection,
		JPEGQuality:         p.Stitcher.JPEGQuality,
	}
}
