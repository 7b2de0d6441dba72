package orientation

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Trace is a recorded yaw stream. Either Yaw (radians) or YawDegrees is set.
type Trace struct {
	Yaw        []float64 `yaml:"yaw"`
	YawDegrees []float64 `yaml:"yaw_degrees"`
	Loop       bool      `yaml:"loop"`
}

func LoadTrace(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace %s: %w", path, err)
	}

	var t Trace
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse trace %s: %w", path, err)
	}

	if len(t.Yaw) > 0 && len(t.YawDegrees) > 0 {
		return nil, fmt.Errorf("trace %s: set either yaw or yaw_degrees, not both", path)
	}

	return &t, nil
}

// Radians returns the trace samples in radians.
func (t *Trace) Radians() []float64 {
	if len(t.Yaw) > 0 {
		return t.Yaw
	}

	out := make([]float64, len(t.YawDegrees))
	for i, d := range t.YawDegrees {
		out[i] = d * math.Pi / 180
	}
	return out
}
