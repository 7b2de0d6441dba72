package capture

type EventKind int

const (
	EventProgress EventKind = iota
	EventCaptureRequested
	EventShotAccepted
	EventShotRejected
	EventShotDiscarded
	EventAssemblyStarted
	EventAssemblyFinished
	EventAssembled
	EventAssemblyFailed
	EventSensorUnavailable
	EventStalled
)

var eventNames = map[EventKind]string{
	EventProgress:          "progress",
	EventCaptureRequested:  "capture_requested",
	EventShotAccepted:      "shot_accepted",
	EventShotRejected:      "shot_rejected",
	EventShotDiscarded:     "shot_discarded",
	EventAssemblyStarted:   "assembly_started",
	EventAssemblyFinished:  "assembly_finished",
	EventAssembled:         "assembled",
	EventAssemblyFailed:    "assembly_failed",
	EventSensorUnavailable: "sensor_unavailable",
	EventStalled:           "stalled",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is delivered to the session listener on the control goroutine.
// Listeners must return quickly.
type Event struct {
	Kind      EventKind
	SessionID string
	ListingID string
	State     State
	Progress  AngularProgress
	Request   Request
	Shot      Shot
	Collected int
	Artifact  Artifact
	Err       error
}

type Listener func(Event)
