package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/bowerhall/tourcam/internal/logger"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityCritical
)

type NotifyFunc func(message string)

// Alerter sends operator alerts, suppressing repeats of the same
// component/message pair within the cooldown.
type Alerter struct {
	mu        sync.Mutex
	notify    NotifyFunc
	cooldowns map[string]time.Time
	cooldown  time.Duration
}

func New(notify NotifyFunc, cooldown time.Duration) *Alerter {
	return &Alerter{
		notify:    notify,
		cooldowns: make(map[string]time.Time),
		cooldown:  cooldown,
	}
}

func (a *Alerter) Alert(severity Severity, component, message string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := fmt.Sprintf("%s:%s", component, message)

	if lastSent, ok := a.cooldowns[key]; ok {
		if time.Since(lastSent) < a.cooldown {
			logger.Debug("alert suppressed (cooldown)", "component", component, "message", message)
			return
		}
	}

	var text string
	switch severity {
	case SeverityCritical:
		text = fmt.Sprintf("🚨 %s: %s", component, message)
	case SeverityWarn:
		text = fmt.Sprintf("⚠️ %s: %s", component, message)
	default:
		text = fmt.Sprintf("ℹ️ %s: %s", component, message)
	}

	if err != nil {
		text += fmt.Sprintf("\n\nError: %v", err)
	}

	if a.notify != nil {
		a.notify(text)
		a.cooldowns[key] = time.Now()
		logger.Info("alert sent", "component", component, "severity", severity)
	}
}

func (a *Alerter) Critical(component, message string, err error) {
	a.Alert(SeverityCritical, component, message, err)
}

func (a *Alerter) Warn(component, message string, err error) {
	a.Alert(SeverityWarn, component, message, err)
}

// The helpers below key the cooldown by listing, so one flaky listing does
// not hide alerts for another.

func (a *Alerter) SensorUnavailable(listingID string, err error) {
	a.Warn("orientation", "sensor unavailable for listing "+listingID, err)
}

func (a *Alerter) AssemblyFailed(listingID string, err error) {
	a.Critical("assembly", "panorama assembly failed for listing "+listingID, err)
}

func (a *Alerter) PublishFailed(listingID string, err error) {
	a.Warn("publish", "publish failed for listing "+listingID, err)
}
