package capture

import "fmt"

// Validator scores frames with the sharpness evaluator. It holds no state
// and is called from capture workers.
type Validator struct {
	evaluator SharpnessEvaluator
	threshold float64
}

func NewValidator(evaluator SharpnessEvaluator, threshold float64) *Validator {
	return &Validator{evaluator: evaluator, threshold: threshold}
}

func (v *Validator) Validate(image []byte) bool {
	if len(image) == 0 {
		return false
	}
	return v.evaluator.IsSharp(image, v.threshold)
}

type Verdict int

const (
	VerdictAccept Verdict = iota
	VerdictRetry
	VerdictDiscard
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictRetry:
		return "retry"
	case VerdictDiscard:
		return "discard"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// RetryCounter bounds recaptures for a single target slot.
type RetryCounter struct {
	max   int
	count int
}

func NewRetryCounter(max int) *RetryCounter {
	return &RetryCounter{max: max}
}

func (r *RetryCounter) Record(sharp bool) Verdict {
	if sharp {
		r.count = 0
		return VerdictAccept
	}

	if r.count < r.max {
		r.count++
		return VerdictRetry
	}

	r.count = 0
	return VerdictDiscard
}

func (r *RetryCounter) Count() int {
	return r.count
}

func (r *RetryCounter) Max() int {
	return r.max
}
