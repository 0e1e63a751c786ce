package gridmap

import "fmt"

// Policy decides the new state of a cell given its current state and the
// evidence from one update. Evidence is always Freespace or Occupied.
//
// Within a single update Occupied evidence is applied after all Freespace
// evidence, so a cell that is both crossed by one ray and hit by another ends
// the update Occupied regardless of policy.
type Policy interface {
	Name() string
	Apply(current, evidence CellState) CellState
}

// Policy names accepted by PolicyByName.
const (
	PolicySticky = "sticky"
	PolicyLatest = "latest"
)

// StickyOccupied never demotes an Occupied cell. This is the default.
type StickyOccupied struct{}

func (StickyOccupied) Name() string { return PolicySticky }

func (StickyOccupied) Apply(current, evidence CellState) CellState {
	if current == Occupied {
		return Occupied
	}
	return evidence
}

// LatestEvidence lets Freespace from a later update demote an Occupied cell.
type LatestEvidence struct{}

func (LatestEvidence) Name() string { return PolicyLatest }

func (LatestEvidence) Apply(_, evidence CellState) CellState { return evidence }

// PolicyByName resolves a configured policy name. An empty name selects the
// sticky default.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", PolicySticky:
		return StickyOccupied{}, nil
	case PolicyLatest:
		return LatestEvidence{}, nil
	default:
		return nil, fmt.Errorf("unknown occupancy policy %q (want %q or %q)", name, PolicySticky, PolicyLatest)
	}
}
