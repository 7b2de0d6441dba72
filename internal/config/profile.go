package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultProfile is a full turn of 24 shots at 15°
// steps, 1.2s cooldown, 50ms sampling and two sharpness retries per angle.
func DefaultProfile() Profile {
	return Profile{
		StepDegrees:        15,
		AlignmentEpsilon:   0.05,
		Cooldown:           1200 * time.Millisecond,
		SampleInterval:     50 * time.Millisecond,
		ExpectedShots:      24,
		MaxRetries:         2,
		SharpnessThreshold: 100,
		Stitcher: StitcherProfile{
			ConfidenceThreshold: 0.8,
			BlendStrength:       8,
			WaveCorrection:      true,
			JPEGQuality:         80,
		},
		HDR: HDRProfile{Enabled: true},
	}
}

// LoadProfile reads a YAML capture profile over the defaults.
// A missing file is not an error.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return profile, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}

	if err := profile.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}

	return profile, nil
}

// Step returns the angular step in radians.
func (p Profile) Step() float64 {
	return p.StepDegrees * math.Pi / 180
}

func (p Profile) Validate() error {
	switch {
	case p.StepDegrees <= 0 || p.StepDegrees >= 180:
		return fmt.Errorf("step_degrees must be in (0, 180), got %v", p.StepDegrees)
	case p.AlignmentEpsilon <= 0:
		return fmt.Errorf("alignment_epsilon must be positive, got %v", p.AlignmentEpsilon)
	case p.ExpectedShots <= 0:
		return fmt.Errorf("expected_shots must be positive, got %d", p.ExpectedShots)
	case p.MaxRetries < 0:
		return fmt.Errorf("max_retries must not be negative, got %d", p.MaxRetries)
	case p.Cooldown < 0:
		return fmt.Errorf("cooldown must not be negative, got %s", p.Cooldown)
	case p.SampleInterval <= 0:
		return fmt.Errorf("sample_interval must be positive, got %s", p.SampleInterval)
	case p.StallTimeout < 0:
		return fmt.Errorf("stall_timeout must not be negative, got %s", p.StallTimeout)
	case p.Stitcher.JPEGQuality < 0 || p.Stitcher.JPEGQuality > 100:
		return fmt.Errorf("stitcher.jpeg_quality must be in [0, 100], got %d", p.Stitcher.JPEGQuality)
	}

	return nil
}
