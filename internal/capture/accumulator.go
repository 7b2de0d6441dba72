package capture

import "errors"

var ErrAccumulatorSealed = errors.New("shot set already handed off")

type Status struct {
	Ready bool
	Set   ShotSet
}

// Accumulator collects accepted shots until the quota is met, then hands the
// set off exactly once.
type Accumulator struct {
	listingID string
	quota     int
	shots     []Shot
	sealed    bool
}

func NewAccumulator(listingID string, quota int) *Accumulator {
	return &Accumulator{
		listingID: listingID,
		quota:     quota,
		shots:     make([]Shot, 0, quota),
	}
}

func (a *Accumulator) Append(shot Shot) (Status, error) {
	if a.sealed {
		return Status{}, ErrAccumulatorSealed
	}

	a.shots = append(a.shots, shot)
	if len(a.shots) < a.quota {
		return Status{}, nil
	}

	set := ShotSet{ListingID: a.listingID, Shots: a.shots}
	a.shots = nil
	a.sealed = true

	return Status{Ready: true, Set: set}, nil
}

func (a *Accumulator) Len() int {
	return len(a.shots)
}

func (a *Accumulator) Sealed() bool {
	return a.sealed
}
