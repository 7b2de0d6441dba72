package capture

import (
	"context"
	"math"
	"time"
)

// Sample is one orientation reading. Yaw is in radians, (−π, π].
type Sample struct {
	Yaw float64
	At  time.Time
}

// Frame is what the capture device hands back for one request. Brackets,
// when present, are exposure variants of the same view to be fused.
type Frame struct {
	Data       []byte
	Brackets   [][]byte
	CapturedAt time.Time
}

// Shot is a validated frame bound to the target slot it was taken for.
type Shot struct {
	Slot       int
	Target     float64
	Image      []byte
	CapturedAt time.Time
}

// ShotSet is the ordered, complete set handed to assembly.
type ShotSet struct {
	ListingID string
	Shots     []Shot
}

func (s ShotSet) Len() int {
	return len(s.Shots)
}

func (s ShotSet) Images() [][]byte {
	images := make([][]byte, len(s.Shots))
	for i, shot := range s.Shots {
		images[i] = shot.Image
	}
	return images
}

// Artifact is an assembled panorama awaiting review.
type Artifact struct {
	ID          string
	ListingID   string
	Image       []byte
	ContentType string
	ShotCount   int
	AssembledAt time.Time
}

type Camera interface {
	Capture(ctx context.Context) (Frame, error)
}

type SharpnessEvaluator interface {
	IsSharp(image []byte, threshold float64) bool
}

type Fuser interface {
	Fuse(brackets [][]byte) ([]byte, error)
}

type Assembler interface {
	Assemble(ctx context.Context, set ShotSet) (Artifact, error)
}

type OrientationSource interface {
	Samples(ctx context.Context) (<-chan Sample, error)
}

type Settings struct {
	Step               float64
	Epsilon            float64
	Cooldown           time.Duration
	ExpectedShots      int
	MaxRetries         int
	SharpnessThreshold float64
	StallTimeout       time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Step:               math.Pi / 12,
		Epsilon:            0.05,
		Cooldown:           1200 * time.Millisecond,
		ExpectedShots:      24,
		MaxRetries:         2,
		SharpnessThreshold: 100,
	}
}
