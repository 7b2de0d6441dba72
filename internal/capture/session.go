package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bowerhall/tourcam/internal/logger"
)

var (
	ErrSensorUnavailable = errors.New("orientation sensor unavailable")
	ErrSessionStopped    = errors.New("capture session stopped")
	ErrAlreadyStarted    = errors.New("capture session already started")
)

// Deps are the external collaborators a session drives. Fuser, Source and
// Listener are optional.
type Deps struct {
	Camera    Camera
	Evaluator SharpnessEvaluator
	Fuser     Fuser
	Assembler Assembler
	Source    OrientationSource
	Listener  Listener
}

// Stats are counters maintained by the control goroutine.
type Stats struct {
	Requests    uint64
	Accepted    uint64
	Rejected    uint64
	Discarded   uint64
	SampleDrops uint64
}

type captureDone struct {
	result Result
}

type cooldownDone struct {
	seq uint64
}

type assemblyDone struct {
	artifact Artifact
	err      error
}

type sensorFailed struct {
	err error
}

// Session runs one guided capture for one listing. All pipeline state is
// touched only by the control goroutine; devices, validation and assembly
// report back through the command queue.
type Session struct {
	id        string
	listingID string
	settings  Settings
	deps      Deps
	pipeline  *Pipeline
	validator *Validator
	log       *slog.Logger

	samples chan Sample
	cmds    chan command

	requests    atomic.Uint64
	accepted    atomic.Uint64
	rejected    atomic.Uint64
	discarded   atomic.Uint64
	sampleDrops atomic.Uint64

	// control goroutine only
	cooldownSeq   uint64
	cooldownTimer *time.Timer
	stallTimer    *time.Timer
	sensorDown    bool

	mu      sync.Mutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	finishOnce sync.Once
	done       chan struct{}
	artifact   Artifact
	err        error
}

type command any

func NewSession(listingID string, settings Settings, deps Deps) (*Session, error) {
	if listingID == "" {
		return nil, errors.New("listing id is required")
	}
	if deps.Camera == nil || deps.Evaluator == nil || deps.Assembler == nil {
		return nil, errors.New("camera, evaluator and assembler are required")
	}
	if settings.Step <= 0 || settings.Epsilon <= 0 || settings.ExpectedShots <= 0 || settings.MaxRetries < 0 {
		return nil, fmt.Errorf("invalid capture settings: %+v", settings)
	}

	id := uuid.New().String()

	return &Session{
		id:        id,
		listingID: listingID,
		settings:  settings,
		deps:      deps,
		pipeline:  NewPipeline(listingID, settings),
		validator: NewValidator(deps.Evaluator, settings.SharpnessThreshold),
		log:       logger.With("session", id[:8], "listing", listingID),
		samples:   make(chan Sample, 1),
		cmds:      make(chan command, 16),
		done:      make(chan struct{}),
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) ListingID() string {
	return s.listingID
}

func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSessionStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}

	if err := s.pipeline.Start(); err != nil {
		return err
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	if s.deps.Source != nil {
		ch, err := s.deps.Source.Samples(s.ctx)
		if err != nil {
			s.cmds <- sensorFailed{err: err}
		} else {
			s.wg.Add(1)
			go s.pump(ch)
		}
	}

	s.wg.Add(1)
	go s.run()

	s.log.Info("capture session started", "shots", s.settings.ExpectedShots, "step", s.settings.Step)
	return nil
}

// Stop tears the session down. When it returns the control goroutine has
// exited, so late device or assembly completions can no longer change state.
//
// Stop does not wait for an in-flight camera capture or assembly. Those
// workers see the cancelled context, finish on their own and have their
// results dropped. An assembler that ignores cancellation, such as a stitch
// already inside the vision library, stays busy until it returns.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	if started {
		s.cancel()
		s.wg.Wait()
	}

	s.finish(Artifact{}, ErrSessionStopped)
	s.log.Info("capture session stopped")
}

// Feed pushes a yaw sample. The inbox holds one sample; an unconsumed one is
// replaced by the newer reading.
func (s *Session) Feed(yaw float64) {
	sample := Sample{Yaw: yaw, At: time.Now()}
	for {
		select {
		case s.samples <- sample:
			return
		default:
		}

		select {
		case <-s.samples:
			s.sampleDrops.Add(1)
		default:
		}
	}
}

// Done is closed once the session reaches a terminal outcome or is stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks for the terminal outcome: the assembled artifact, the assembly
// error, or ErrSessionStopped.
func (s *Session) Wait(ctx context.Context) (Artifact, error) {
	select {
	case <-ctx.Done():
		return Artifact{}, ctx.Err()
	case <-s.done:
		return s.artifact, s.err
	}
}

func (s *Session) Stats() Stats {
	return Stats{
		Requests:    s.requests.Load(),
		Accepted:    s.accepted.Load(),
		Rejected:    s.rejected.Load(),
		Discarded:   s.discarded.Load(),
		SampleDrops: s.sampleDrops.Load(),
	}
}

func (s *Session) finish(artifact Artifact, err error) {
	s.finishOnce.Do(func() {
		s.artifact = artifact
		s.err = err
		close(s.done)
	})
}

func (s *Session) post(cmd command) {
	select {
	case <-s.ctx.Done():
	case s.cmds <- cmd:
	}
}

func (s *Session) pump(ch <-chan Sample) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case sample, ok := <-ch:
			if !ok {
				s.post(sensorFailed{err: fmt.Errorf("%w: orientation stream closed", ErrSensorUnavailable)})
				return
			}
			s.Feed(sample.Yaw)
		}
	}
}

func (s *Session) run() {
	defer s.wg.Done()
	defer s.stopTimers()

	var stallC <-chan time.Time
	if s.settings.StallTimeout > 0 {
		s.stallTimer = time.NewTimer(s.settings.StallTimeout)
		stallC = s.stallTimer.C
	}

	for {
		select {
		case <-s.ctx.Done():
			return

		case sample := <-s.samples:
			s.handleSample(sample)

		case <-stallC:
			if s.pipeline.State() == StateAligning {
				s.log.Warn("no alignment reached", "target", s.pipeline.Target(), "after", s.settings.StallTimeout)
				s.emit(Event{Kind: EventStalled, State: StateAligning})
			}
			s.stallTimer.Reset(s.settings.StallTimeout)

		case cmd := <-s.cmds:
			if terminal := s.handle(cmd); terminal {
				// nothing left to sample for; release the pump
				s.cancel()
				return
			}
		}
	}
}

func (s *Session) handleSample(sample Sample) {
	progress, req := s.pipeline.OnSample(sample.Yaw)
	if s.pipeline.State() == StateIdle {
		return
	}

	s.emit(Event{Kind: EventProgress, State: s.pipeline.State(), Progress: progress})

	if req != nil {
		s.dispatch(*req)
	}
}

func (s *Session) handle(cmd command) bool {
	switch c := cmd.(type) {
	case captureDone:
		s.handleCapture(c.result)

	case cooldownDone:
		if c.seq != s.cooldownSeq {
			return false
		}
		if err := s.pipeline.OnCooldownElapsed(); err != nil {
			s.log.Debug("cooldown ignored", "error", err)
		}

	case assemblyDone:
		s.emit(Event{Kind: EventAssemblyFinished})

		if c.err != nil {
			s.log.Error("assembly failed", "error", c.err)
			s.emit(Event{Kind: EventAssemblyFailed, Err: c.err})
			s.finish(Artifact{}, c.err)
			return true
		}

		s.log.Info("panorama assembled", "artifact", c.artifact.ID, "bytes", len(c.artifact.Image))
		s.emit(Event{Kind: EventAssembled, Artifact: c.artifact})
		s.finish(c.artifact, nil)
		return true

	case sensorFailed:
		if s.sensorDown {
			return false
		}
		s.sensorDown = true
		s.log.Error("orientation unavailable", "error", c.err)
		s.emit(Event{Kind: EventSensorUnavailable, State: s.pipeline.State(), Err: c.err})
	}

	return false
}

func (s *Session) handleCapture(res Result) {
	out, err := s.pipeline.OnCaptureResult(res)
	if out.Stale {
		s.log.Debug("stale capture result dropped", "attempt", res.Attempt)
		return
	}
	if err != nil {
		s.log.Error("capture state", "error", err)
	}

	switch out.Verdict {
	case VerdictRetry:
		s.rejected.Add(1)
		s.log.Info("shot rejected, retrying", "attempt", res.Attempt, "retry", out.Retry.Retry, "error", res.Err)
		s.emit(Event{Kind: EventShotRejected, State: s.pipeline.State(), Request: *out.Retry, Err: res.Err})
		s.dispatch(*out.Retry)
		return

	case VerdictDiscard:
		s.rejected.Add(1)
		s.discarded.Add(1)
		s.log.Warn("shot discarded after retries", "attempt", res.Attempt, "next_target", s.pipeline.Target())
		s.emit(Event{Kind: EventShotDiscarded, State: s.pipeline.State(), Err: res.Err})
		s.startCooldown()
		return
	}

	s.accepted.Add(1)
	collected := int(s.accepted.Load())
	s.log.Info("shot accepted", "slot", out.Shot.Slot, "target", out.Shot.Target, "collected", collected)
	s.emit(Event{Kind: EventShotAccepted, State: s.pipeline.State(), Shot: out.Shot, Collected: collected})

	if out.Ready != nil {
		s.assemble(*out.Ready)
		return
	}

	s.startCooldown()
}

func (s *Session) dispatch(req Request) {
	s.requests.Add(1)
	s.emit(Event{Kind: EventCaptureRequested, State: StateCapturing, Request: req})

	if s.stallTimer != nil {
		s.stallTimer.Reset(s.settings.StallTimeout)
	}

	go func() {
		frame, err := s.deps.Camera.Capture(s.ctx)
		res := Result{Attempt: req.Attempt, Err: err}

		if err == nil {
			res.CapturedAt = frame.CapturedAt
			res.Image, res.Err = s.prepare(frame)
			if res.Err == nil {
				res.Sharp = s.validator.Validate(res.Image)
			}
		}

		s.post(captureDone{result: res})
	}()
}

func (s *Session) prepare(frame Frame) ([]byte, error) {
	if len(frame.Brackets) > 1 && s.deps.Fuser != nil {
		fused, err := s.deps.Fuser.Fuse(frame.Brackets)
		if err != nil {
			return nil, fmt.Errorf("fuse brackets: %w", err)
		}
		return fused, nil
	}

	if len(frame.Data) == 0 && len(frame.Brackets) > 0 {
		return frame.Brackets[len(frame.Brackets)/2], nil
	}

	return frame.Data, nil
}

func (s *Session) startCooldown() {
	s.cooldownSeq++
	seq := s.cooldownSeq

	if s.cooldownTimer != nil {
		s.cooldownTimer.Stop()
	}
	s.cooldownTimer = time.AfterFunc(s.settings.Cooldown, func() {
		s.post(cooldownDone{seq: seq})
	})
}

func (s *Session) assemble(set ShotSet) {
	s.log.Info("shot set complete, assembling", "shots", set.Len())
	s.emit(Event{Kind: EventAssemblyStarted, Collected: set.Len()})

	go func() {
		artifact, err := s.deps.Assembler.Assemble(s.ctx, set)
		s.post(assemblyDone{artifact: artifact, err: err})
	}()
}

func (s *Session) stopTimers() {
	if s.cooldownTimer != nil {
		s.cooldownTimer.Stop()
	}
	if s.stallTimer != nil {
		s.stallTimer.Stop()
	}
}

func (s *Session) emit(ev Event) {
	if s.deps.Listener == nil {
		return
	}
	ev.SessionID = s.id
	ev.ListingID = s.listingID
	s.deps.Listener(ev)
}
