package session

import "testing"

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUnauthenticated, "Unauthenticated"},
		{StateHandshaking, "Handshaking"},
		{StateAuthenticated, "Authenticated"},
		{State(9), "State(9)"},
	}
	for _, tc := range tests {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tc.state), got, tc.want)
		}
		if tc.state.IsValid() != (tc.want != "State(9)") {
			t.Errorf("State(%d).IsValid() = %v", int(tc.state), tc.state.IsValid())
		}
	}
}
