package orientation

import (
	"context"
	"fmt"
	"time"

	"github.com/bowerhall/tourcam/internal/capture"
	"github.com/bowerhall/tourcam/internal/logger"
)

// Replay plays a trace at a fixed interval.
type Replay struct {
	samples  []float64
	loop     bool
	interval time.Duration
}

func NewReplay(trace *Trace, interval time.Duration) *Replay {
	return &Replay{
		samples:  trace.Radians(),
		loop:     trace.Loop,
		interval: interval,
	}
}

func (r *Replay) Samples(ctx context.Context) (<-chan capture.Sample, error) {
	if len(r.samples) == 0 {
		return nil, fmt.Errorf("%w: empty trace", capture.ErrSensorUnavailable)
	}

	values := r.samples
	loop := r.loop

	return stream(ctx, r.interval, func(i int) (float64, bool) {
		if i >= len(values) {
			if !loop {
				return 0, false
			}
			i %= len(values)
		}
		return values[i], true
	}), nil
}

// Sweep simulates an operator turning at a constant rate, starting at Start
// radians. Rate is in radians per second.
type Sweep struct {
	Start    float64
	Rate     float64
	Interval time.Duration
}

func (s Sweep) Samples(ctx context.Context) (<-chan capture.Sample, error) {
	if s.Interval <= 0 || s.Rate == 0 {
		return nil, fmt.Errorf("%w: sweep needs a positive interval and non-zero rate", capture.ErrSensorUnavailable)
	}

	perTick := s.Rate * s.Interval.Seconds()

	return stream(ctx, s.Interval, func(i int) (float64, bool) {
		return capture.Normalize(s.Start + float64(i)*perTick), true
	}), nil
}

func stream(ctx context.Context, interval time.Duration, next func(i int) (float64, bool)) <-chan capture.Sample {
	ch := make(chan capture.Sample, 1)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			yaw, ok := next(i)
			if !ok {
				logger.Debug("orientation stream ended", "samples", i)
				return
			}

			select {
			case <-ctx.Done():
				return
			case ch <- capture.Sample{Yaw: yaw, At: time.Now()}:
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return ch
}
