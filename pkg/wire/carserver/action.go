// Package carserver implements the infotainment sub-protocol: vehicle
// actions sent to the infotainment domain and the responses it returns.
package carserver

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/backkem/teslable/pkg/wire/pbutil"
)

// ChargingStartStop selects the variant of a ChargingStartStopAction.
type ChargingStartStop int

const (
	ChargingUnknown ChargingStartStop = iota + 1
	ChargingStart
	ChargingStartStandard
	ChargingStartMaxRange
	ChargingStop
)

// String returns the variant name.
func (c ChargingStartStop) String() string {
	switch c {
	case ChargingUnknown:
		return "unknown"
	case ChargingStart:
		return "start"
	case ChargingStartStandard:
		return "start_standard"
	case ChargingStartMaxRange:
		return "start_max_range"
	case ChargingStop:
		return "stop"
	default:
		return fmt.Sprintf("ChargingStartStop(%d)", int(c))
	}
}

// GetVehicleData selects which state groups to return.
type GetVehicleData struct {
	ChargeState   bool
	ClimateState  bool
	ClosuresState bool
}

// HvacAutoAction turns climate control on or off.
type HvacAutoAction struct {
	PowerOn        bool
	ManualOverride bool
}

// VehicleAction is a single infotainment action. Exactly one field is set.
type VehicleAction struct {
	GetVehicleData    *GetVehicleData
	ChargingSetLimit  *int32
	ChargingStartStop *ChargingStartStop
	HvacAuto          *HvacAutoAction
	SetChargingAmps   *int32
}

// Field numbers of VehicleAction.
const (
	fieldGetVehicleData    protowire.Number = 1
	fieldChargingSetLimit  protowire.Number = 5
	fieldChargingStartStop protowire.Number = 6
	fieldHvacAuto          protowire.Number = 10
	fieldSetChargingAmps   protowire.Number = 43
)

// Field numbers of GetVehicleData.
const (
	fieldGetChargeState   protowire.Number = 2
	fieldGetClimateState  protowire.Number = 3
	fieldGetClosuresState protowire.Number = 8
)

func (a *VehicleAction) marshal() []byte {
	switch {
	case a.GetVehicleData != nil:
		var inner []byte
		if a.GetVehicleData.ChargeState {
			inner = pbutil.AppendMessage(inner, fieldGetChargeState, nil)
		}
		if a.GetVehicleData.ClimateState {
			inner = pbutil.AppendMessage(inner, fieldGetClimateState, nil)
		}
		if a.GetVehicleData.ClosuresState {
			inner = pbutil.AppendMessage(inner, fieldGetClosuresState, nil)
		}
		return pbutil.AppendMessage(nil, fieldGetVehicleData, inner)
	case a.ChargingSetLimit != nil:
		return pbutil.AppendMessage(nil, fieldChargingSetLimit, pbutil.AppendVarint(nil, 1, uint64(*a.ChargingSetLimit)))
	case a.ChargingStartStop != nil:
		inner := pbutil.AppendMessage(nil, protowire.Number(*a.ChargingStartStop), nil)
		return pbutil.AppendMessage(nil, fieldChargingStartStop, inner)
	case a.HvacAuto != nil:
		var inner []byte
		inner = pbutil.AppendBool(inner, 1, a.HvacAuto.PowerOn)
		inner = pbutil.AppendBool(inner, 2, a.HvacAuto.ManualOverride)
		return pbutil.AppendMessage(nil, fieldHvacAuto, inner)
	case a.SetChargingAmps != nil:
		return pbutil.AppendMessage(nil, fieldSetChargingAmps, pbutil.AppendVarint(nil, 1, uint64(*a.SetChargingAmps)))
	}
	return nil
}

func (a *VehicleAction) unmarshal(b []byte) error {
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case fieldGetVehicleData, fieldChargingSetLimit, fieldChargingStartStop, fieldHvacAuto, fieldSetChargingAmps:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
		default:
			return nil
		}

		*a = VehicleAction{}
		switch f.Num {
		case fieldGetVehicleData:
			g := &GetVehicleData{}
			a.GetVehicleData = g
			return pbutil.Walk(f.Bytes, func(inner pbutil.Field) error {
				switch inner.Num {
				case fieldGetChargeState:
					g.ChargeState = true
				case fieldGetClimateState:
					g.ClimateState = true
				case fieldGetClosuresState:
					g.ClosuresState = true
				}
				return nil
			})
		case fieldChargingSetLimit, fieldSetChargingAmps:
			v, err := decodeInt32Field(f.Bytes, 1)
			if err != nil {
				return err
			}
			if f.Num == fieldChargingSetLimit {
				a.ChargingSetLimit = &v
			} else {
				a.SetChargingAmps = &v
			}
		case fieldChargingStartStop:
			return pbutil.Walk(f.Bytes, func(inner pbutil.Field) error {
				if inner.Num >= 1 && inner.Num <= protowire.Number(ChargingStop) {
					op := ChargingStartStop(inner.Num)
					a.ChargingStartStop = &op
				}
				return nil
			})
		case fieldHvacAuto:
			h := &HvacAutoAction{}
			a.HvacAuto = h
			return pbutil.Walk(f.Bytes, func(inner pbutil.Field) error {
				if inner.Type != protowire.VarintType {
					return nil
				}
				switch inner.Num {
				case 1:
					h.PowerOn = inner.Varint != 0
				case 2:
					h.ManualOverride = inner.Varint != 0
				}
				return nil
			})
		}
		return nil
	})
}

func decodeInt32Field(b []byte, num protowire.Number) (int32, error) {
	var v int32
	err := pbutil.Walk(b, func(f pbutil.Field) error {
		if f.Num != num {
			return nil
		}
		if err := pbutil.Expect(f, protowire.VarintType); err != nil {
			return err
		}
		v = pbutil.Int32(f)
		return nil
	})
	return v, err
}

// Action is the top-level message sent to the infotainment domain.
type Action struct {
	VehicleAction *VehicleAction
}

// Marshal encodes the action.
func (a *Action) Marshal() []byte {
	if a.VehicleAction == nil {
		return nil
	}
	return pbutil.AppendMessage(nil, 2, a.VehicleAction.marshal())
}

// Unmarshal decodes an action.
func (a *Action) Unmarshal(b []byte) error {
	*a = Action{}
	return pbutil.Walk(b, func(f pbutil.Field) error {
		if f.Num != 2 {
			return nil
		}
		if err := pbutil.Expect(f, protowire.BytesType); err != nil {
			return err
		}
		a.VehicleAction = &VehicleAction{}
		return a.VehicleAction.unmarshal(f.Bytes)
	})
}
