package carserver

import (
	"encoding/hex"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func i32(v int32) *int32                         { return &v }
func f32(v float32) *float32                     { return &v }
func boolp(v bool) *bool                         { return &v }
func op(v ChargingStartStop) *ChargingStartStop { return &v }

func TestAction_KnownEncoding(t *testing.T) {
	tests := []struct {
		name   string
		action *VehicleAction
		want   string
	}{
		{"poll charge state", &VehicleAction{GetVehicleData: &GetVehicleData{ChargeState: true}}, "12040a021200"},
		{"climate on", &VehicleAction{HvacAuto: &HvacAutoAction{PowerOn: true}}, "120452020801"},
		{"charge start", &VehicleAction{ChargingStartStop: op(ChargingStart)}, "120432021200"},
		{"charging amps", &VehicleAction{SetChargingAmps: i32(32)}, "1205da02020820"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := &Action{VehicleAction: tc.action}
			if got := hex.EncodeToString(a.Marshal()); got != tc.want {
				t.Errorf("Marshal = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestAction_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		action *VehicleAction
	}{
		{"poll all", &VehicleAction{GetVehicleData: &GetVehicleData{ChargeState: true, ClimateState: true, ClosuresState: true}}},
		{"climate off", &VehicleAction{HvacAuto: &HvacAutoAction{}}},
		{"charge stop", &VehicleAction{ChargingStartStop: op(ChargingStop)}},
		{"charge limit", &VehicleAction{ChargingSetLimit: i32(80)}},
		{"charging amps", &VehicleAction{SetChargingAmps: i32(16)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			want := &Action{VehicleAction: tc.action}
			var got Action
			if err := got.Unmarshal(want.Marshal()); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if diff := cmp.Diff(want, &got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResponse_RoundTrip(t *testing.T) {
	charging := ChargingStateCharging
	tests := []struct {
		name string
		resp *Response
	}{
		{"ok", &Response{ActionStatus: &ActionStatus{}}},
		{"error with reason", &Response{ActionStatus: &ActionStatus{Result: ActionResultError, Reason: "already_set"}}},
		{"vehicle data", &Response{
			ActionStatus: &ActionStatus{},
			VehicleData: &VehicleData{
				ChargeState: &ChargeState{
					ChargingState:        &charging,
					BatteryLevel:         i32(0),
					EstBatteryRange:      f32(212.5),
					ChargeLimitSOC:       i32(80),
					ChargerPower:         i32(11),
					ChargeRateMPH:        f32(0),
					ChargerActualCurrent: i32(16),
					ChargePortDoorOpen:   boolp(true),
				},
				ClimateState: &ClimateState{
					InsideTempCelsius:  f32(21.5),
					OutsideTempCelsius: f32(-3),
					IsClimateOn:        boolp(false),
				},
				ClosuresState: &ClosuresState{
					DoorOpenTrunkFront: boolp(false),
					DoorOpenTrunkRear:  boolp(true),
					Locked:             boolp(true),
				},
			},
		}},
		{"partial charge state", &Response{VehicleData: &VehicleData{ChargeState: &ChargeState{BatteryLevel: i32(55)}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got Response
			if err := got.Unmarshal(tc.resp.Marshal()); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if diff := cmp.Diff(tc.resp, &got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResponse_Malformed(t *testing.T) {
	// actionStatus encoded with a varint wire type.
	var r Response
	if err := r.Unmarshal([]byte{0x08, 0x01}); err == nil {
		t.Error("expected error for wrong wire type")
	}
}
