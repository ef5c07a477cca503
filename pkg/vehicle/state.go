package vehicle

import (
	"time"

	"github.com/backkem/teslable/pkg/protocol"
	"github.com/backkem/teslable/pkg/wire/carserver"
	"github.com/backkem/teslable/pkg/wire/vcsec"
)

// State is the latest known vehicle state assembled from parsed results.
// Nil fields have not been reported yet. Values are replaced, never
// modified, so a State copy can be read without locking.
type State struct {
	Locked      *bool
	SleepStatus vcsec.SleepStatus
	UserPresent *bool
	Closures    *vcsec.ClosureStatuses

	Charge        *carserver.ChargeState
	Climate       *carserver.ClimateState
	ClosuresState *carserver.ClosuresState

	UpdatedAt time.Time
}

// apply merges res into the state. It reports whether anything changed.
func (s *State) apply(res *protocol.Result, now time.Time) bool {
	switch res.Kind {
	case protocol.KindVehicleStatus:
		vs := res.VehicleStatus
		locked := vs.VehicleLockState.IsLocked()
		s.Locked = &locked
		s.SleepStatus = vs.VehicleSleepStatus
		if vs.UserPresence != vcsec.UserPresenceUnknown {
			present := vs.UserPresence == vcsec.UserPresencePresent
			s.UserPresent = &present
		}
		if vs.ClosureStatuses != nil {
			s.Closures = vs.ClosureStatuses
		}
	case protocol.KindVehicleData:
		vd := res.VehicleData
		if vd.ChargeState != nil {
			s.Charge = vd.ChargeState
		}
		if vd.ClimateState != nil {
			s.Climate = vd.ClimateState
		}
		if vd.ClosuresState != nil {
			s.ClosuresState = vd.ClosuresState
			if vd.ClosuresState.Locked != nil {
				locked := *vd.ClosuresState.Locked
				s.Locked = &locked
			}
		}
	default:
		return false
	}
	s.UpdatedAt = now
	return true
}
