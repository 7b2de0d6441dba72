package capture

import "math"

const twoPi = 2 * math.Pi

// Normalize wraps an angle into (−π, π]. Non-finite input yields NaN.
func Normalize(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return math.NaN()
	}

	// keep the stepping loops short for far-out inputs
	if math.Abs(a) > 8*math.Pi {
		a = math.Mod(a, twoPi)
	}

	for a > math.Pi {
		a -= twoPi
	}
	for a <= -math.Pi {
		a += twoPi
	}

	return a
}

// Distance is the shortest signed rotation from one angle to another.
func Distance(from, to float64) float64 {
	return Normalize(to - from)
}

// AngularProgress is the tracker's report for one sample.
type AngularProgress struct {
	Yaw      float64
	Target   float64
	Delta    float64
	Progress float64
	Aligned  bool
	Slot     int
}

// Tracker follows the device yaw against a target that moves one step at a
// time from the reference recorded on the first sample.
type Tracker struct {
	step    float64
	epsilon float64

	started   bool
	reference float64
	target    float64
	slot      int
}

func NewTracker(step, epsilon float64) *Tracker {
	return &Tracker{step: step, epsilon: epsilon}
}

func (t *Tracker) Observe(yaw float64) AngularProgress {
	yaw = Normalize(yaw)
	if math.IsNaN(yaw) {
		return AngularProgress{Yaw: yaw, Target: t.target, Delta: math.NaN(), Slot: t.slot}
	}

	if !t.started {
		t.started = true
		t.reference = yaw
		t.target = Normalize(yaw + t.step)
	}

	delta := Distance(yaw, t.target)
	abs := math.Abs(delta)

	return AngularProgress{
		Yaw:      yaw,
		Target:   t.target,
		Delta:    delta,
		Progress: math.Min(1, math.Max(0, 1-abs/t.step)),
		Aligned:  abs < t.epsilon,
		Slot:     t.slot,
	}
}

// Advance moves the target one step on and opens the next slot.
func (t *Tracker) Advance() {
	t.target = Normalize(t.target + t.step)
	t.slot++
}

func (t *Tracker) Started() bool {
	return t.started
}

func (t *Tracker) Reference() float64 {
	return t.reference
}

func (t *Tracker) Target() float64 {
	return t.target
}

func (t *Tracker) Slot() int {
	return t.slot
}
