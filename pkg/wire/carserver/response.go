package carserver

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/backkem/teslable/pkg/wire/pbutil"
)

// ActionResult is the outcome of an infotainment action.
type ActionResult int32

const (
	ActionResultOK    ActionResult = 0
	ActionResultError ActionResult = 1
)

// String returns the result name.
func (r ActionResult) String() string {
	switch r {
	case ActionResultOK:
		return "OK"
	case ActionResultError:
		return "ERROR"
	default:
		return fmt.Sprintf("ActionResult(%d)", int32(r))
	}
}

// ActionStatus accompanies every infotainment response.
type ActionStatus struct {
	Result ActionResult
	// Reason is the plain-text failure reason, if any.
	Reason string
}

// ChargingState is the charger state machine position.
type ChargingState int

const (
	ChargingStateUnknown ChargingState = iota + 1
	ChargingStateDisconnected
	ChargingStateNoPower
	ChargingStateStarting
	ChargingStateCharging
	ChargingStateComplete
	ChargingStateStopped
	ChargingStateCalibrating
)

// String returns the state name.
func (s ChargingState) String() string {
	switch s {
	case ChargingStateUnknown:
		return "Unknown"
	case ChargingStateDisconnected:
		return "Disconnected"
	case ChargingStateNoPower:
		return "NoPower"
	case ChargingStateStarting:
		return "Starting"
	case ChargingStateCharging:
		return "Charging"
	case ChargingStateComplete:
		return "Complete"
	case ChargingStateStopped:
		return "Stopped"
	case ChargingStateCalibrating:
		return "Calibrating"
	default:
		return fmt.Sprintf("ChargingState(%d)", int(s))
	}
}

// ChargeState is the charging snapshot. Nil fields were not reported.
type ChargeState struct {
	ChargingState        *ChargingState
	BatteryLevel         *int32
	EstBatteryRange      *float32
	ChargeLimitSOC       *int32
	ChargerPower         *int32
	ChargeRateMPH        *float32
	ChargerActualCurrent *int32
	ChargePortDoorOpen   *bool
}

// Field numbers of ChargeState.
const (
	fieldChargingState        protowire.Number = 1
	fieldBatteryLevel         protowire.Number = 11
	fieldEstBatteryRange      protowire.Number = 12
	fieldChargeLimitSOC       protowire.Number = 14
	fieldChargerPower         protowire.Number = 15
	fieldChargeRateMPH        protowire.Number = 17
	fieldChargerActualCurrent protowire.Number = 19
	fieldChargePortDoorOpen   protowire.Number = 22
)

func (c *ChargeState) marshal() []byte {
	var b []byte
	if c.ChargingState != nil {
		b = pbutil.AppendMessage(b, fieldChargingState, pbutil.AppendMessage(nil, protowire.Number(*c.ChargingState), nil))
	}
	b = appendOptionalInt32(b, fieldBatteryLevel, c.BatteryLevel)
	b = appendOptionalFloat(b, fieldEstBatteryRange, c.EstBatteryRange)
	b = appendOptionalInt32(b, fieldChargeLimitSOC, c.ChargeLimitSOC)
	b = appendOptionalInt32(b, fieldChargerPower, c.ChargerPower)
	b = appendOptionalFloat(b, fieldChargeRateMPH, c.ChargeRateMPH)
	b = appendOptionalInt32(b, fieldChargerActualCurrent, c.ChargerActualCurrent)
	b = appendOptionalBool(b, fieldChargePortDoorOpen, c.ChargePortDoorOpen)
	return b
}

func (c *ChargeState) unmarshal(b []byte) error {
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case fieldChargingState:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			return pbutil.Walk(f.Bytes, func(inner pbutil.Field) error {
				if inner.Num >= 1 && inner.Num <= protowire.Number(ChargingStateCalibrating) {
					s := ChargingState(inner.Num)
					c.ChargingState = &s
				}
				return nil
			})
		case fieldBatteryLevel:
			return readInt32(f, &c.BatteryLevel)
		case fieldEstBatteryRange:
			return readFloat(f, &c.EstBatteryRange)
		case fieldChargeLimitSOC:
			return readInt32(f, &c.ChargeLimitSOC)
		case fieldChargerPower:
			return readInt32(f, &c.ChargerPower)
		case fieldChargeRateMPH:
			return readFloat(f, &c.ChargeRateMPH)
		case fieldChargerActualCurrent:
			return readInt32(f, &c.ChargerActualCurrent)
		case fieldChargePortDoorOpen:
			return readBool(f, &c.ChargePortDoorOpen)
		}
		return nil
	})
}

// ClimateState is the HVAC snapshot. Nil fields were not reported.
type ClimateState struct {
	InsideTempCelsius  *float32
	OutsideTempCelsius *float32
	IsClimateOn        *bool
}

// Field numbers of ClimateState.
const (
	fieldInsideTempCelsius  protowire.Number = 3
	fieldOutsideTempCelsius protowire.Number = 4
	fieldIsClimateOn        protowire.Number = 13
)

func (c *ClimateState) marshal() []byte {
	var b []byte
	b = appendOptionalFloat(b, fieldInsideTempCelsius, c.InsideTempCelsius)
	b = appendOptionalFloat(b, fieldOutsideTempCelsius, c.OutsideTempCelsius)
	b = appendOptionalBool(b, fieldIsClimateOn, c.IsClimateOn)
	return b
}

func (c *ClimateState) unmarshal(b []byte) error {
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case fieldInsideTempCelsius:
			return readFloat(f, &c.InsideTempCelsius)
		case fieldOutsideTempCelsius:
			return readFloat(f, &c.OutsideTempCelsius)
		case fieldIsClimateOn:
			return readBool(f, &c.IsClimateOn)
		}
		return nil
	})
}

// ClosuresState is the doors and trunks snapshot. Nil fields were not
// reported.
type ClosuresState struct {
	DoorOpenDriverFront    *bool
	DoorOpenDriverRear     *bool
	DoorOpenPassengerFront *bool
	DoorOpenPassengerRear  *bool
	DoorOpenTrunkFront     *bool
	DoorOpenTrunkRear      *bool
	Locked                 *bool
}

func (c *ClosuresState) fields() []**bool {
	return []**bool{
		&c.DoorOpenDriverFront, &c.DoorOpenDriverRear, &c.DoorOpenPassengerFront,
		&c.DoorOpenPassengerRear, &c.DoorOpenTrunkFront, &c.DoorOpenTrunkRear,
	}
}

// fieldLocked follows the door fields 1-6 in ClosuresState.
const fieldLocked protowire.Number = 11

func (c *ClosuresState) marshal() []byte {
	var b []byte
	for i, v := range c.fields() {
		b = appendOptionalBool(b, protowire.Number(i+1), *v)
	}
	b = appendOptionalBool(b, fieldLocked, c.Locked)
	return b
}

func (c *ClosuresState) unmarshal(b []byte) error {
	fields := c.fields()
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch {
		case f.Num >= 1 && int(f.Num) <= len(fields):
			return readBool(f, fields[f.Num-1])
		case f.Num == fieldLocked:
			return readBool(f, &c.Locked)
		}
		return nil
	})
}

// VehicleData groups the requested state snapshots.
type VehicleData struct {
	ChargeState   *ChargeState
	ClimateState  *ClimateState
	ClosuresState *ClosuresState
}

// Field numbers of VehicleData.
const (
	fieldVDChargeState   protowire.Number = 3
	fieldVDClimateState  protowire.Number = 4
	fieldVDClosuresState protowire.Number = 8
)

func (v *VehicleData) marshal() []byte {
	var b []byte
	if v.ChargeState != nil {
		b = pbutil.AppendMessage(b, fieldVDChargeState, v.ChargeState.marshal())
	}
	if v.ClimateState != nil {
		b = pbutil.AppendMessage(b, fieldVDClimateState, v.ClimateState.marshal())
	}
	if v.ClosuresState != nil {
		b = pbutil.AppendMessage(b, fieldVDClosuresState, v.ClosuresState.marshal())
	}
	return b
}

func (v *VehicleData) unmarshal(b []byte) error {
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case fieldVDChargeState, fieldVDClimateState, fieldVDClosuresState:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
		default:
			return nil
		}
		switch f.Num {
		case fieldVDChargeState:
			v.ChargeState = &ChargeState{}
			return v.ChargeState.unmarshal(f.Bytes)
		case fieldVDClimateState:
			v.ClimateState = &ClimateState{}
			return v.ClimateState.unmarshal(f.Bytes)
		default:
			v.ClosuresState = &ClosuresState{}
			return v.ClosuresState.unmarshal(f.Bytes)
		}
	})
}

// Response is the top-level message received from the infotainment domain.
type Response struct {
	ActionStatus *ActionStatus
	VehicleData  *VehicleData
}

// Marshal encodes the response.
func (r *Response) Marshal() []byte {
	var b []byte
	if r.ActionStatus != nil {
		var inner []byte
		inner = pbutil.AppendVarint(inner, 1, uint64(r.ActionStatus.Result))
		if r.ActionStatus.Reason != "" {
			inner = pbutil.AppendMessage(inner, 2, pbutil.AppendString(nil, 1, r.ActionStatus.Reason))
		}
		b = pbutil.AppendMessage(b, 1, inner)
	}
	if r.VehicleData != nil {
		b = pbutil.AppendMessage(b, 2, r.VehicleData.marshal())
	}
	return b
}

// Unmarshal decodes a response.
func (r *Response) Unmarshal(b []byte) error {
	*r = Response{}
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case 1:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			s := &ActionStatus{}
			r.ActionStatus = s
			return pbutil.Walk(f.Bytes, func(inner pbutil.Field) error {
				switch inner.Num {
				case 1:
					if err := pbutil.Expect(inner, protowire.VarintType); err != nil {
						return err
					}
					s.Result = ActionResult(pbutil.Int32(inner))
				case 2:
					if err := pbutil.Expect(inner, protowire.BytesType); err != nil {
						return err
					}
					return pbutil.Walk(inner.Bytes, func(reason pbutil.Field) error {
						if reason.Num == 1 && reason.Type == protowire.BytesType {
							s.Reason = string(reason.Bytes)
						}
						return nil
					})
				}
				return nil
			})
		case 2:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			r.VehicleData = &VehicleData{}
			return r.VehicleData.unmarshal(f.Bytes)
		}
		return nil
	})
}

func appendOptionalInt32(b []byte, num protowire.Number, v *int32) []byte {
	if v == nil {
		return b
	}
	return pbutil.ForceVarint(b, num, uint64(int64(*v)))
}

func appendOptionalFloat(b []byte, num protowire.Number, v *float32) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, pbutil.FloatBits(*v))
}

func appendOptionalBool(b []byte, num protowire.Number, v *bool) []byte {
	if v == nil {
		return b
	}
	return pbutil.ForceVarint(b, num, protowire.EncodeBool(*v))
}

func readInt32(f pbutil.Field, dst **int32) error {
	if err := pbutil.Expect(f, protowire.VarintType); err != nil {
		return err
	}
	v := pbutil.Int32(f)
	*dst = &v
	return nil
}

func readFloat(f pbutil.Field, dst **float32) error {
	if err := pbutil.Expect(f, protowire.Fixed32Type); err != nil {
		return err
	}
	v := pbutil.Float(f)
	*dst = &v
	return nil
}

func readBool(f pbutil.Field, dst **bool) error {
	if err := pbutil.Expect(f, protowire.VarintType); err != nil {
		return err
	}
	v := f.Varint != 0
	*dst = &v
	return nil
}
