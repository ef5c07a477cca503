package vcsec

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func rke(a RKEAction) *RKEAction { return &a }

func TestUnsignedMessage_KnownEncoding(t *testing.T) {
	tests := []struct {
		name string
		msg  *UnsignedMessage
		want string
	}{
		{"lock", &UnsignedMessage{RKEAction: rke(RKEActionLock)}, "1001"},
		// UNLOCK is the zero value but lives in a oneof, so it is emitted.
		{"unlock", &UnsignedMessage{RKEAction: rke(RKEActionUnlock)}, "1000"},
		{"wake", &UnsignedMessage{RKEAction: rke(RKEActionWakeVehicle)}, "101e"},
		{"status poll", &UnsignedMessage{InformationRequest: &InformationRequest{Type: InformationRequestTypeGetStatus}}, "0a00"},
		{"open trunk", &UnsignedMessage{ClosureMoveRequest: &ClosureMoveRequest{RearTrunk: ClosureMoveTypeOpen}}, "22022803"},
		{"open frunk", &UnsignedMessage{ClosureMoveRequest: &ClosureMoveRequest{FrontTrunk: ClosureMoveTypeOpen}}, "22023003"},
		{"close charge port", &UnsignedMessage{ClosureMoveRequest: &ClosureMoveRequest{ChargePort: ClosureMoveTypeClose}}, "22023804"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := hex.EncodeToString(tc.msg.Marshal()); got != tc.want {
				t.Errorf("Marshal = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNewUnsignedRequest(t *testing.T) {
	req := NewUnsignedRequest(&UnsignedMessage{RKEAction: rke(RKEActionLock)})
	// signedMessage{protobufMessageAsBytes = 10 01}, signature type NONE omitted.
	if got, want := hex.EncodeToString(req.Marshal()), "0a0412021001"; got != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}

	var decoded ToVCSECMessage
	if err := decoded.Unmarshal(req.Marshal()); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.SignedMessage == nil || decoded.SignedMessage.SignatureType != SignatureTypeNone {
		t.Fatalf("unexpected signed message: %+v", decoded.SignedMessage)
	}

	var inner UnsignedMessage
	if err := inner.Unmarshal(decoded.SignedMessage.ProtobufMessageAsBytes); err != nil {
		t.Fatalf("Unmarshal inner failed: %v", err)
	}
	if inner.RKEAction == nil || *inner.RKEAction != RKEActionLock {
		t.Errorf("inner action = %v, want LOCK", inner.RKEAction)
	}
}

func TestUnsignedMessage_RoundTrip(t *testing.T) {
	pub := bytes.Repeat([]byte{0x04}, 65)
	tests := []struct {
		name string
		msg  *UnsignedMessage
	}{
		{"unlock", &UnsignedMessage{RKEAction: rke(RKEActionUnlock)}},
		{"information request", &UnsignedMessage{InformationRequest: &InformationRequest{}}},
		{"closure move", &UnsignedMessage{ClosureMoveRequest: &ClosureMoveRequest{FrontTrunk: ClosureMoveTypeOpen, Tonneau: ClosureMoveTypeStop}}},
		{"whitelist add", &UnsignedMessage{WhitelistOperation: &WhitelistOperation{
			AddPublicKey:   pub,
			MetadataForKey: &KeyMetadata{KeyFormFactor: KeyFormFactorCloudKey},
		}}},
		{"whitelist remove", &UnsignedMessage{WhitelistOperation: &WhitelistOperation{RemovePublicKey: pub}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got UnsignedMessage
			if err := got.Unmarshal(tc.msg.Marshal()); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if diff := cmp.Diff(tc.msg, &got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromVCSECMessage_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *FromVCSECMessage
	}{
		{"vehicle status", &FromVCSECMessage{VehicleStatus: &VehicleStatus{
			ClosureStatuses: &ClosureStatuses{
				FrontDriverDoor: ClosureStateAjar,
				RearTrunk:       ClosureStateOpen,
				ChargePort:      ClosureStateOpen,
			},
			VehicleLockState:   VehicleLockStateLocked,
			VehicleSleepStatus: SleepStatusAwake,
			UserPresence:       UserPresencePresent,
		}}},
		{"all closed", &FromVCSECMessage{VehicleStatus: &VehicleStatus{ClosureStatuses: &ClosureStatuses{}}}},
		{"command ok", &FromVCSECMessage{CommandStatus: &CommandStatus{}}},
		{"whitelist wait", &FromVCSECMessage{CommandStatus: &CommandStatus{
			OperationStatus: OperationStatusWait,
			WhitelistOperationStatus: &WhitelistOperationStatus{
				SignerOfOperation: []byte{0x01, 0x02, 0x03, 0x04},
				OperationStatus:   OperationStatusWait,
			},
		}}},
		{"signed message fault", &FromVCSECMessage{CommandStatus: &CommandStatus{
			OperationStatus:     OperationStatusError,
			SignedMessageStatus: &SignedMessageStatus{Counter: 5, SignedMessageInformation: SignedMessageInfoFaultInvalidToken},
		}}},
		{"whitelist info", &FromVCSECMessage{WhitelistInfo: &WhitelistInfo{
			NumberOfEntries:  2,
			WhitelistEntries: [][]byte{{0xAA, 0xBB, 0xCC, 0xDD}, {0x11, 0x22, 0x33, 0x44}},
			SlotMask:         3,
		}}},
		{"whitelist entry", &FromVCSECMessage{WhitelistEntryInfo: &WhitelistEntryInfo{
			KeyID:          []byte{0xAA, 0xBB, 0xCC, 0xDD},
			PublicKey:      bytes.Repeat([]byte{0x04}, 65),
			MetadataForKey: &KeyMetadata{KeyFormFactor: KeyFormFactorCloudKey},
			Slot:           1,
		}}},
		{"nominal error", &FromVCSECMessage{NominalError: &NominalError{GenericError: GenericErrorClosuresOpen}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got FromVCSECMessage
			if err := got.Unmarshal(tc.msg.Marshal()); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if diff := cmp.Diff(tc.msg, &got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromVCSECMessage_UnknownSubMessage(t *testing.T) {
	// Field 99, empty embedded message.
	var got FromVCSECMessage
	if err := got.Unmarshal([]byte{0x9a, 0x06, 0x00}); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if diff := cmp.Diff(&FromVCSECMessage{}, &got); diff != "" {
		t.Errorf("expected empty message, diff:\n%s", diff)
	}
}

func TestVehicleLockState_IsLocked(t *testing.T) {
	tests := []struct {
		state VehicleLockState
		want  bool
	}{
		{VehicleLockStateUnlocked, false},
		{VehicleLockStateLocked, true},
		{VehicleLockStateInternalLocked, true},
		{VehicleLockStateSelectiveUnlocked, false},
	}
	for _, tc := range tests {
		if got := tc.state.IsLocked(); got != tc.want {
			t.Errorf("%v.IsLocked() = %v, want %v", tc.state, got, tc.want)
		}
	}
}

func TestClosureState_IsOpen(t *testing.T) {
	if ClosureStateClosed.IsOpen() || ClosureStateUnknown.IsOpen() {
		t.Error("closed/unknown reported as open")
	}
	if !ClosureStateOpen.IsOpen() || !ClosureStateAjar.IsOpen() {
		t.Error("open/ajar reported as closed")
	}
}
