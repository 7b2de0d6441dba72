package capture

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type scriptCamera struct {
	mu     sync.Mutex
	script []string
	calls  int
	block  chan struct{}
}

func (c *scriptCamera) Capture(ctx context.Context) (Frame, error) {
	c.mu.Lock()
	i := c.calls
	c.calls++
	c.mu.Unlock()

	if c.block != nil {
		<-c.block
	}

	kind := "sharp"
	if i < len(c.script) {
		kind = c.script[i]
	}

	if kind == "error" {
		return Frame{}, errors.New("device busy")
	}

	return Frame{Data: []byte(kind), CapturedAt: time.Now()}, nil
}

func (c *scriptCamera) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type bytesEvaluator struct{}

func (bytesEvaluator) IsSharp(image []byte, threshold float64) bool {
	return string(image) == "sharp" || string(image) == "fused"
}

type fakeAssembler struct {
	calls atomic.Int32
	err   error
}

func (a *fakeAssembler) Assemble(ctx context.Context, set ShotSet) (Artifact, error) {
	a.calls.Add(1)
	if a.err != nil {
		return Artifact{}, a.err
	}
	return Artifact{ID: "pano-1", ListingID: set.ListingID, Image: []byte("pano"), ShotCount: set.Len()}, nil
}

type fakeFuser struct {
	calls atomic.Int32
}

func (f *fakeFuser) Fuse(brackets [][]byte) ([]byte, error) {
	f.calls.Add(1)
	return []byte("fused"), nil
}

type failingSource struct{}

func (failingSource) Samples(ctx context.Context) (<-chan Sample, error) {
	return nil, ErrSensorUnavailable
}

type recorder struct {
	events chan Event
}

func newRecorder() *recorder {
	return &recorder{events: make(chan Event, 8192)}
}

func (r *recorder) listen(ev Event) {
	select {
	case r.events <- ev:
	default:
	}
}

func sessionSettings(shots int) Settings {
	s := DefaultSettings()
	s.ExpectedShots = shots
	s.Cooldown = time.Millisecond
	return s
}

func newTestSession(t *testing.T, settings Settings, deps Deps) (*Session, *recorder) {
	t.Helper()

	rec := newRecorder()
	deps.Listener = rec.listen
	if deps.Evaluator == nil {
		deps.Evaluator = bytesEvaluator{}
	}

	s, err := NewSession("listing-42", settings, deps)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(s.Stop)

	return s, rec
}

// feedUntil keeps the device pointed at yaw until the wanted event shows up.
func feedUntil(t *testing.T, s *Session, rec *recorder, yaw float64, want EventKind) Event {
	t.Helper()

	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(2 * time.Millisecond)
	defer tick.Stop()

	s.Feed(yaw)
	for {
		select {
		case ev := <-rec.events:
			if ev.Kind == want {
				return ev
			}
		case <-tick.C:
			s.Feed(yaw)
		case <-deadline:
			t.Fatalf("timed out waiting for %s at yaw %v", want, yaw)
			return Event{}
		}
	}
}

func waitEvent(t *testing.T, rec *recorder, want EventKind) Event {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-rec.events:
			if ev.Kind == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
			return Event{}
		}
	}
}

func slotYaw(slot int) float64 {
	return Normalize(float64(slot+1) * math.Pi / 12)
}

func TestSessionCapturesAndAssembles(t *testing.T) {
	shots := 4
	cam := &scriptCamera{}
	asm := &fakeAssembler{}

	s, rec := newTestSession(t, sessionSettings(shots), Deps{Camera: cam, Assembler: asm})

	feedUntil(t, s, rec, 0, EventProgress)
	for slot := 0; slot < shots; slot++ {
		ev := feedUntil(t, s, rec, slotYaw(slot), EventShotAccepted)
		if ev.Shot.Slot != slot {
			t.Errorf("expected slot %d, got %d", slot, ev.Shot.Slot)
		}
	}

	started := waitEvent(t, rec, EventAssemblyStarted)
	if started.Collected != shots {
		t.Errorf("expected %d shots handed to assembly, got %d", shots, started.Collected)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	artifact, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if artifact.ShotCount != shots || artifact.ListingID != "listing-42" {
		t.Errorf("unexpected artifact %+v", artifact)
	}

	stats := s.Stats()
	if stats.Requests != uint64(shots) {
		t.Errorf("expected %d capture requests, got %d", shots, stats.Requests)
	}
	if cam.Calls() != shots {
		t.Errorf("expected %d camera calls, got %d", shots, cam.Calls())
	}
	if asm.calls.Load() != 1 {
		t.Errorf("expected exactly one assembly, got %d", asm.calls.Load())
	}
}

func TestSessionRetriesBlurryShot(t *testing.T) {
	cam := &scriptCamera{script: []string{"blurry", "blurry", "sharp"}}
	s, rec := newTestSession(t, sessionSettings(24), Deps{Camera: cam, Assembler: &fakeAssembler{}})

	feedUntil(t, s, rec, 0, EventProgress)
	ev := feedUntil(t, s, rec, slotYaw(0), EventShotAccepted)

	if ev.Collected != 1 {
		t.Errorf("expected 1 collected shot, got %d", ev.Collected)
	}

	stats := s.Stats()
	if stats.Requests != 3 {
		t.Errorf("expected 3 capture requests for one target, got %d", stats.Requests)
	}
	if stats.Rejected != 2 || stats.Accepted != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestSessionDiscardsAfterRetriesAndMovesOn(t *testing.T) {
	cam := &scriptCamera{script: []string{"blurry", "error", "blurry"}}
	s, rec := newTestSession(t, sessionSettings(24), Deps{Camera: cam, Assembler: &fakeAssembler{}})

	feedUntil(t, s, rec, 0, EventProgress)
	feedUntil(t, s, rec, slotYaw(0), EventShotDiscarded)

	ev := feedUntil(t, s, rec, slotYaw(1), EventShotAccepted)
	if ev.Shot.Slot != 1 {
		t.Errorf("expected the next slot after a gap, got %d", ev.Shot.Slot)
	}
	if math.Abs(ev.Shot.Target-slotYaw(1)) > 1e-9 {
		t.Errorf("expected target %v, got %v", slotYaw(1), ev.Shot.Target)
	}

	stats := s.Stats()
	if stats.Discarded != 1 || stats.Requests != 4 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestSessionAssemblyFailureIsTerminal(t *testing.T) {
	asm := &fakeAssembler{err: errors.New("not enough overlap")}
	s, rec := newTestSession(t, sessionSettings(2), Deps{Camera: &scriptCamera{}, Assembler: asm})

	feedUntil(t, s, rec, 0, EventProgress)
	feedUntil(t, s, rec, slotYaw(0), EventShotAccepted)
	feedUntil(t, s, rec, slotYaw(1), EventShotAccepted)

	failed := waitEvent(t, rec, EventAssemblyFailed)
	if failed.Err == nil {
		t.Error("expected failure reason on event")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := s.Wait(ctx); err == nil || err.Error() != "not enough overlap" {
		t.Errorf("expected assembly error from Wait, got %v", err)
	}

	// keep pointing the device around; nothing restarts assembly
	for i := 0; i < 10; i++ {
		s.Feed(slotYaw(2))
		time.Sleep(2 * time.Millisecond)
	}

	if asm.calls.Load() != 1 {
		t.Errorf("assembly must not be retried automatically, got %d calls", asm.calls.Load())
	}
}

func TestSessionStopSuppressesLateCapture(t *testing.T) {
	cam := &scriptCamera{block: make(chan struct{})}
	s, rec := newTestSession(t, sessionSettings(24), Deps{Camera: cam, Assembler: &fakeAssembler{}})

	feedUntil(t, s, rec, 0, EventProgress)
	feedUntil(t, s, rec, slotYaw(0), EventCaptureRequested)

	s.Stop()

	// drain whatever was emitted before teardown
	for len(rec.events) > 0 {
		<-rec.events
	}

	close(cam.block)
	time.Sleep(20 * time.Millisecond)

	select {
	case ev := <-rec.events:
		t.Errorf("no events expected after stop, got %s", ev.Kind)
	default:
	}

	if s.Stats().Accepted != 0 {
		t.Error("late capture must not be accepted")
	}

	_, err := s.Wait(context.Background())
	if !errors.Is(err, ErrSessionStopped) {
		t.Errorf("expected ErrSessionStopped, got %v", err)
	}
}

type blockingAssembler struct {
	release  chan struct{}
	returned chan struct{}
}

func (a *blockingAssembler) Assemble(ctx context.Context, set ShotSet) (Artifact, error) {
	defer close(a.returned)
	<-a.release
	return Artifact{ID: "late", ListingID: set.ListingID, ShotCount: set.Len()}, nil
}

func TestSessionStopDoesNotWaitForAssembly(t *testing.T) {
	shots := 2
	asm := &blockingAssembler{release: make(chan struct{}), returned: make(chan struct{})}
	s, rec := newTestSession(t, sessionSettings(shots), Deps{Camera: &scriptCamera{}, Assembler: asm})

	feedUntil(t, s, rec, 0, EventProgress)
	for slot := 0; slot < shots; slot++ {
		feedUntil(t, s, rec, slotYaw(slot), EventShotAccepted)
	}
	waitEvent(t, rec, EventAssemblyStarted)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		close(asm.release)
		t.Fatal("stop blocked on a running assembly")
	}

	for len(rec.events) > 0 {
		<-rec.events
	}

	close(asm.release)
	<-asm.returned
	time.Sleep(20 * time.Millisecond)

	select {
	case ev := <-rec.events:
		t.Errorf("no events expected after stop, got %s", ev.Kind)
	default:
	}

	_, err := s.Wait(context.Background())
	if !errors.Is(err, ErrSessionStopped) {
		t.Errorf("expected ErrSessionStopped, got %v", err)
	}
}

func TestSessionFusesBrackets(t *testing.T) {
	fuser := &fakeFuser{}
	cam := bracketCamera{}
	s, rec := newTestSession(t, sessionSettings(24), Deps{Camera: cam, Assembler: &fakeAssembler{}, Fuser: fuser})

	feedUntil(t, s, rec, 0, EventProgress)
	ev := feedUntil(t, s, rec, slotYaw(0), EventShotAccepted)

	if string(ev.Shot.Image) != "fused" {
		t.Errorf("expected fused image on shot, got %q", ev.Shot.Image)
	}
	if fuser.calls.Load() != 1 {
		t.Errorf("expected one fuse call, got %d", fuser.calls.Load())
	}
}

type bracketCamera struct{}

func (bracketCamera) Capture(ctx context.Context) (Frame, error) {
	return Frame{Brackets: [][]byte{[]byte("under"), []byte("mid"), []byte("over")}}, nil
}

func TestSessionSensorUnavailableReportedOnce(t *testing.T) {
	s, rec := newTestSession(t, sessionSettings(24), Deps{
		Camera:    &scriptCamera{},
		Assembler: &fakeAssembler{},
		Source:    failingSource{},
	})

	ev := waitEvent(t, rec, EventSensorUnavailable)
	if !errors.Is(ev.Err, ErrSensorUnavailable) {
		t.Errorf("expected ErrSensorUnavailable, got %v", ev.Err)
	}
	if ev.State != StateAligning {
		t.Errorf("session should remain aligning, got %s", ev.State)
	}

	select {
	case <-s.Done():
		t.Error("sensor loss must not end the session")
	case <-time.After(20 * time.Millisecond):
	}
}

type closingSource struct{}

func (closingSource) Samples(ctx context.Context) (<-chan Sample, error) {
	ch := make(chan Sample)
	close(ch)
	return ch, nil
}

func TestSessionClosedStreamReportsSensorLoss(t *testing.T) {
	_, rec := newTestSession(t, sessionSettings(24), Deps{
		Camera:    &scriptCamera{},
		Assembler: &fakeAssembler{},
		Source:    closingSource{},
	})

	waitEvent(t, rec, EventSensorUnavailable)
}

func TestSessionStallHint(t *testing.T) {
	settings := sessionSettings(24)
	settings.StallTimeout = 10 * time.Millisecond

	_, rec := newTestSession(t, settings, Deps{Camera: &scriptCamera{}, Assembler: &fakeAssembler{}})

	ev := waitEvent(t, rec, EventStalled)
	if ev.State != StateAligning {
		t.Errorf("expected stall while aligning, got %s", ev.State)
	}
}

func TestSessionStartTwice(t *testing.T) {
	s, _ := newTestSession(t, sessionSettings(24), Deps{Camera: &scriptCamera{}, Assembler: &fakeAssembler{}})

	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestSessionStopBeforeStart(t *testing.T) {
	s, err := NewSession("listing-1", sessionSettings(24), Deps{
		Camera:    &scriptCamera{},
		Evaluator: bytesEvaluator{},
		Assembler: &fakeAssembler{},
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	s.Stop()

	if _, err := s.Wait(context.Background()); !errors.Is(err, ErrSessionStopped) {
		t.Errorf("expected ErrSessionStopped, got %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrSessionStopped) {
		t.Errorf("expected start after stop to fail, got %v", err)
	}
}

func TestSessionFeedKeepsLatest(t *testing.T) {
	s, err := NewSession("listing-1", sessionSettings(24), Deps{
		Camera:    &scriptCamera{},
		Evaluator: bytesEvaluator{},
		Assembler: &fakeAssembler{},
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	s.Feed(0.1)
	s.Feed(0.2)
	s.Feed(0.3)

	if drops := s.Stats().SampleDrops; drops != 2 {
		t.Errorf("expected 2 dropped samples, got %d", drops)
	}

	sample := <-s.samples
	if sample.Yaw != 0.3 {
		t.Errorf("expected latest sample 0.3, got %v", sample.Yaw)
	}
}

func TestNewSessionValidation(t *testing.T) {
	deps := Deps{Camera: &scriptCamera{}, Evaluator: bytesEvaluator{}, Assembler: &fakeAssembler{}}

	if _, err := NewSession("", sessionSettings(24), deps); err == nil {
		t.Error("expected error for empty listing id")
	}

	bad := sessionSettings(24)
	bad.Step = 0
	if _, err := NewSession("listing-1", bad, deps); err == nil {
		t.Error("expected error for zero step")
	}

	if _, err := NewSession("listing-1", sessionSettings(24), Deps{Camera: &scriptCamera{}}); err == nil {
		t.Error("expected error for missing collaborators")
	}
}
