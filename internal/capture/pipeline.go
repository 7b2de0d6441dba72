package capture

import (
	"fmt"
	"time"
)

// Request asks the device for one frame at the current target.
type Request struct {
	Attempt uint64
	Slot    int
	Target  float64
	Retry   int
}

// Result is a finished capture attempt, already scored off-loop.
type Result struct {
	Attempt    uint64
	Image      []byte
	CapturedAt time.Time
	Sharp      bool
	Err        error
}

// Outcome is what the pipeline decided about a Result.
type Outcome struct {
	Stale   bool
	Verdict Verdict
	Shot    Shot
	Retry   *Request
	Ready   *ShotSet
}

// Pipeline is the synchronous capture state: tracker, trigger, retry policy
// and accumulator. It owns no goroutines or timers; Session drives it from a
// single control goroutine.
type Pipeline struct {
	settings Settings
	tracker  *Tracker
	trigger  Trigger
	retries  *RetryCounter
	shots    *Accumulator

	attempt  uint64
	inflight uint64
	requests int
}

func NewPipeline(listingID string, settings Settings) *Pipeline {
	return &Pipeline{
		settings: settings,
		tracker:  NewTracker(settings.Step, settings.Epsilon),
		retries:  NewRetryCounter(settings.MaxRetries),
		shots:    NewAccumulator(listingID, settings.ExpectedShots),
	}
}

func (p *Pipeline) Start() error {
	return p.trigger.Start()
}

func (p *Pipeline) Stop() {
	p.trigger.Stop()
	p.inflight = 0
}

// OnSample feeds one yaw reading and returns a capture request when the
// device has just lined up with the target.
func (p *Pipeline) OnSample(yaw float64) (AngularProgress, *Request) {
	if p.trigger.State() == StateIdle {
		return AngularProgress{}, nil
	}

	progress := p.tracker.Observe(yaw)
	if !p.trigger.Fire(progress.Aligned) {
		return progress, nil
	}

	req := p.request()
	return progress, &req
}

func (p *Pipeline) OnCaptureResult(res Result) (Outcome, error) {
	if p.trigger.State() != StateCapturing || res.Attempt != p.inflight {
		return Outcome{Stale: true}, nil
	}
	p.inflight = 0

	verdict := p.retries.Record(res.Err == nil && res.Sharp)
	out := Outcome{Verdict: verdict}

	switch verdict {
	case VerdictRetry:
		req := p.request()
		out.Retry = &req
		return out, nil

	case VerdictDiscard:
		p.tracker.Advance()
		return out, p.trigger.BeginCooldown()
	}

	out.Shot = Shot{
		Slot:       p.tracker.Slot(),
		Target:     p.tracker.Target(),
		Image:      res.Image,
		CapturedAt: res.CapturedAt,
	}

	status, err := p.shots.Append(out.Shot)
	if err != nil {
		return out, fmt.Errorf("append shot: %w", err)
	}

	p.tracker.Advance()

	if status.Ready {
		p.trigger.Stop()
		out.Ready = &status.Set
		return out, nil
	}

	return out, p.trigger.BeginCooldown()
}

func (p *Pipeline) OnCooldownElapsed() error {
	return p.trigger.CooldownElapsed()
}

func (p *Pipeline) request() Request {
	p.attempt++
	p.inflight = p.attempt
	p.requests++

	return Request{
		Attempt: p.attempt,
		Slot:    p.tracker.Slot(),
		Target:  p.tracker.Target(),
		Retry:   p.retries.Count(),
	}
}

func (p *Pipeline) State() State {
	return p.trigger.State()
}

func (p *Pipeline) Target() float64 {
	return p.tracker.Target()
}

func (p *Pipeline) Reference() float64 {
	return p.tracker.Reference()
}

func (p *Pipeline) Retries() int {
	return p.retries.Count()
}

func (p *Pipeline) Requests() int {
	return p.requests
}

func (p *Pipeline) Collected() int {
	return p.shots.Len()
}
