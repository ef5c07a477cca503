package vehiclesim

import (
	"github.com/backkem/teslable/pkg/wire/carserver"
	"github.com/backkem/teslable/pkg/wire/vcsec"
)

// VehicleState is the simulated vehicle.
type VehicleState struct {
	Locked bool
	Asleep bool

	RearTrunkOpen  bool
	FrontTrunkOpen bool
	ChargePortOpen bool

	ClimateOn   bool
	InsideTemp  float32
	OutsideTemp float32

	Charging     bool
	BatteryLevel int32
	RangeMiles   float32
	ChargeLimit  int32
	ChargingAmps int32
}

// DefaultVehicleState is a parked, locked vehicle.
func DefaultVehicleState() VehicleState {
	return VehicleState{
		Locked:       true,
		InsideTemp:   19.5,
		OutsideTemp:  12,
		BatteryLevel: 64,
		RangeMiles:   201.5,
		ChargeLimit:  80,
		ChargingAmps: 16,
	}
}

func closure(open bool) vcsec.ClosureState {
	if open {
		return vcsec.ClosureStateOpen
	}
	return vcsec.ClosureStateClosed
}

func (s *VehicleState) vehicleStatus() *vcsec.VehicleStatus {
	lock := vcsec.VehicleLockStateUnlocked
	if s.Locked {
		lock = vcsec.VehicleLockStateLocked
	}
	sleep := vcsec.SleepStatusAwake
	if s.Asleep {
		sleep = vcsec.SleepStatusAsleep
	}
	return &vcsec.VehicleStatus{
		ClosureStatuses: &vcsec.ClosureStatuses{
			RearTrunk:  closure(s.RearTrunkOpen),
			FrontTrunk: closure(s.FrontTrunkOpen),
			ChargePort: closure(s.ChargePortOpen),
		},
		VehicleLockState:   lock,
		VehicleSleepStatus: sleep,
		UserPresence:       vcsec.UserPresenceNotPresent,
	}
}

func (s *VehicleState) vehicleData(req *carserver.GetVehicleData) *carserver.VehicleData {
	vd := &carserver.VehicleData{}
	if req.ChargeState {
		state := carserver.ChargingStateStopped
		if s.Charging {
			state = carserver.ChargingStateCharging
		}
		level, limit, amps := s.BatteryLevel, s.ChargeLimit, s.ChargingAmps
		rng := s.RangeMiles
		port := s.ChargePortOpen
		vd.ChargeState = &carserver.ChargeState{
			ChargingState:        &state,
			BatteryLevel:         &level,
			EstBatteryRange:      &rng,
			ChargeLimitSOC:       &limit,
			ChargerActualCurrent: &amps,
			ChargePortDoorOpen:   &port,
		}
	}
	if req.ClimateState {
		on := s.ClimateOn
		inside, outside := s.InsideTemp, s.OutsideTemp
		vd.ClimateState = &carserver.ClimateState{
			InsideTempCelsius:  &inside,
			OutsideTempCelsius: &outside,
			IsClimateOn:        &on,
		}
	}
	if req.ClosuresState {
		front, rear, locked := s.FrontTrunkOpen, s.RearTrunkOpen, s.Locked
		vd.ClosuresState = &carserver.ClosuresState{
			DoorOpenTrunkFront: &front,
			DoorOpenTrunkRear:  &rear,
			Locked:             &locked,
		}
	}
	return vd
}

// applyRKE applies a remote keyless entry action. It reports false for
// unsupported actions.
func (s *VehicleState) applyRKE(action vcsec.RKEAction) bool {
	switch action {
	case vcsec.RKEActionUnlock:
		s.Locked = false
	case vcsec.RKEActionLock:
		s.Locked = true
	case vcsec.RKEActionOpenTrunk:
		s.RearTrunkOpen = true
	case vcsec.RKEActionOpenFrunk:
		s.FrontTrunkOpen = true
	case vcsec.RKEActionOpenChargePort:
		s.ChargePortOpen = true
	case vcsec.RKEActionCloseChargePort:
		s.ChargePortOpen = false
	case vcsec.RKEActionWakeVehicle:
	default:
		return false
	}
	s.Asleep = false
	return true
}

// applyClosureMove applies req and reports whether the vehicle accepted it.
// The front trunk has no motor to close it, and the charge port door stays
// open while charging.
func (s *VehicleState) applyClosureMove(req *vcsec.ClosureMoveRequest) bool {
	if req.FrontTrunk == vcsec.ClosureMoveTypeClose {
		return false
	}
	closingPort := req.ChargePort == vcsec.ClosureMoveTypeClose ||
		(req.ChargePort == vcsec.ClosureMoveTypeMove && s.ChargePortOpen)
	if s.Charging && closingPort {
		return false
	}

	move := func(open *bool, m vcsec.ClosureMoveType) {
		switch m {
		case vcsec.ClosureMoveTypeOpen:
			*open = true
		case vcsec.ClosureMoveTypeClose:
			*open = false
		case vcsec.ClosureMoveTypeMove:
			*open = !*open
		}
	}
	move(&s.RearTrunkOpen, req.RearTrunk)
	move(&s.FrontTrunkOpen, req.FrontTrunk)
	move(&s.ChargePortOpen, req.ChargePort)
	s.Asleep = false
	return true
}
