package sync

import "time"

// Plan is the action the detector chose for an object.
type Plan int

const (
	PlanNoop Plan = iota
	PlanCreate
	PlanUpdateContent
	PlanUpdateMetadata
	PlanSkip // an update suppressed by NoUpdate
)

func (p Plan) String() string {
	switch p {
	case PlanCreate:
		return "create"
	case PlanUpdateContent:
		return "update-content"
	case PlanUpdateMetadata:
		return "update-metadata"
	case PlanSkip:
		return "skip"
	default:
		return "noop"
	}
}

// Decide classifies an object against the destination probe. Containers only
// track metadata changes; leaves compare the content clock first and then the
// metadata clock. Equal timestamps are not newer.
func Decide(src SystemMetadata, target Probe, container bool, cfg *Config) Plan {
	if !target.Found {
		return PlanCreate
	}

	plan := PlanNoop
	switch {
	case container:
		if cfg.Force || newer(src.changeTime(), target.Meta.ChangeTime) {
			plan = PlanUpdateMetadata
		}
	case cfg.Force || newer(src.MTime, target.Meta.ModTime):
		plan = PlanUpdateContent
	case newer(src.changeTime(), target.Meta.ChangeTime):
		plan = PlanUpdateMetadata
	}

	if plan != PlanNoop && cfg.NoUpdate {
		return PlanSkip
	}
	return plan
}

// newer reports whether src is strictly after dst. Unknown clocks never
// count as newer.
func newer(src, dst time.Time) bool {
	if src.IsZero() || dst.IsZero() {
		return false
	}
	return src.After(dst)
}
