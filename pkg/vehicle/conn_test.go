package vehicle_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/backkem/teslable/pkg/framing"
	"github.com/backkem/teslable/pkg/pairing"
	"github.com/backkem/teslable/pkg/protocol"
	"github.com/backkem/teslable/pkg/session"
	"github.com/backkem/teslable/pkg/transport"
	"github.com/backkem/teslable/pkg/vehicle"
	"github.com/backkem/teslable/pkg/vehiclesim"
	"github.com/backkem/teslable/pkg/wire/universal"
	"github.com/backkem/teslable/pkg/wire/vcsec"
)

const testAddress = "5YJ3E1EA7KF000001"

type harness struct {
	link    *transport.Link
	sim     *vehiclesim.Simulator
	conn    *vehicle.Conn
	metrics *vehicle.Metrics
}

type harnessConfig struct {
	whitelisted bool
	pairing     vehiclesim.PairingMode
	timeout     time.Duration
	onResult    func(*protocol.Result)
}

func newHarness(t *testing.T, hc harnessConfig) *harness {
	t.Helper()
	t.Cleanup(test.CheckRoutines(t))
	link := transport.NewLink(transport.LinkConfig{Address: testAddress})
	t.Cleanup(func() { _ = link.Close() })

	sessions, err := session.NewManager(session.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	simConfig := vehiclesim.Config{
		Transport:    link.Peripheral(),
		Pairing:      hc.pairing,
		ConfirmDelay: 20 * time.Millisecond,
	}
	if hc.whitelisted {
		simConfig.Whitelist = [][]byte{sessions.PublicKey()}
	}
	sim, err := vehiclesim.New(simConfig)
	if err != nil {
		t.Fatalf("vehiclesim.New failed: %v", err)
	}
	if err := sim.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(sim.Stop)

	metrics, err := vehicle.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	timeout := hc.timeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	conn, err := vehicle.New(vehicle.Config{
		Transport:      link.Central(),
		Sessions:       sessions,
		Address:        testAddress,
		WriteInterval:  -1,
		RequestTimeout: timeout,
		Metrics:        metrics,
		OnResult:       hc.onResult,
	})
	if err != nil {
		t.Fatalf("vehicle.New failed: %v", err)
	}
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &harness{link: link, sim: sim, conn: conn, metrics: metrics}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNewMissingDependency(t *testing.T) {
	if _, err := vehicle.New(vehicle.Config{}); !errors.Is(err, vehicle.ErrMissingDependency) {
		t.Fatalf("expected ErrMissingDependency, got %v", err)
	}
}

func TestConnectWrongAddress(t *testing.T) {
	defer test.CheckRoutines(t)()

	link := transport.NewLink(transport.LinkConfig{Address: testAddress})
	defer link.Close()
	sessions, err := session.NewManager(session.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	conn, err := vehicle.New(vehicle.Config{Transport: link.Central(), Sessions: sessions, Address: "elsewhere"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer conn.Close()
	if err := conn.Connect(context.Background()); !errors.Is(err, vehicle.ErrConnectFailed) {
		t.Fatalf("expected ErrConnectFailed, got %v", err)
	}
	if _, err := conn.Lock(context.Background()); !errors.Is(err, vehicle.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestPairThenCommand(t *testing.T) {
	h := newHarness(t, harnessConfig{pairing: vehiclesim.PairingAccept})
	ctx := testContext(t)

	if err := h.conn.EnsureSession(ctx, universal.DomainVehicleSecurity); !errors.Is(err, session.ErrKeyNotOnWhitelist) {
		t.Fatalf("expected ErrKeyNotOnWhitelist before pairing, got %v", err)
	}

	res, err := h.conn.Pair(ctx, time.Second)
	if err != nil {
		t.Fatalf("Pair failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("Pair result = %+v, want success", res)
	}

	if err := h.conn.EnsureSessions(ctx); err != nil {
		t.Fatalf("EnsureSessions failed: %v", err)
	}
	if _, err := h.conn.Unlock(ctx); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if h.sim.State().Locked {
		t.Fatal("vehicle still locked")
	}
}

func TestPairRejected(t *testing.T) {
	h := newHarness(t, harnessConfig{pairing: vehiclesim.PairingReject})
	ctx := testContext(t)

	res, err := h.conn.Pair(ctx, time.Second)
	if err != nil {
		t.Fatalf("Pair failed: %v", err)
	}
	if res.Success || !errors.Is(res.Err, pairing.ErrPairingFailed) {
		t.Fatalf("Pair result = %+v, want ErrPairingFailed", res)
	}
}

func TestPairTimeout(t *testing.T) {
	h := newHarness(t, harnessConfig{pairing: vehiclesim.PairingIgnore})
	ctx := testContext(t)

	res, err := h.conn.Pair(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Pair failed: %v", err)
	}
	if res.Success || !errors.Is(res.Err, pairing.ErrTimeout) {
		t.Fatalf("Pair result = %+v, want ErrTimeout", res)
	}
	if h.sim.IsWhitelisted(h.conn.Sessions().PublicKey()) {
		t.Fatal("key whitelisted without confirmation")
	}
}

func TestCommandsAndPoll(t *testing.T) {
	h := newHarness(t, harnessConfig{whitelisted: true})
	ctx := testContext(t)

	steps := []struct {
		name string
		run  func(context.Context) (*protocol.Result, error)
	}{
		{"unlock", h.conn.Unlock},
		{"open trunk", h.conn.OpenTrunk},
		{"open frunk", h.conn.OpenFrunk},
		{"open charge port", h.conn.OpenChargePort},
		{"climate", func(ctx context.Context) (*protocol.Result, error) { return h.conn.SetClimate(ctx, true) }},
		{"limit", func(ctx context.Context) (*protocol.Result, error) { return h.conn.SetChargeLimit(ctx, 90) }},
		{"amps", func(ctx context.Context) (*protocol.Result, error) { return h.conn.SetChargingAmps(ctx, 24) }},
		{"charge", func(ctx context.Context) (*protocol.Result, error) { return h.conn.SetCharging(ctx, true) }},
	}
	for _, step := range steps {
		if _, err := step.run(ctx); err != nil {
			t.Fatalf("%s failed: %v", step.name, err)
		}
	}

	st, err := h.conn.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if st.Locked == nil || *st.Locked {
		t.Error("state reports locked")
	}
	if st.Closures == nil || !st.Closures.RearTrunk.IsOpen() || !st.Closures.FrontTrunk.IsOpen() {
		t.Errorf("closures = %+v, want both trunks open", st.Closures)
	}
	if st.Charge == nil || *st.Charge.ChargeLimitSOC != 90 || *st.Charge.ChargerActualCurrent != 24 {
		t.Errorf("charge = %+v", st.Charge)
	}
	if st.Climate == nil || !*st.Climate.IsClimateOn {
		t.Errorf("climate = %+v, want on", st.Climate)
	}
	if st.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}

	stats := h.conn.Stats()
	if stats.ParseErrors != 0 || stats.Unmatched != 0 {
		t.Errorf("stats = %+v, want no errors", stats)
	}
	if got := testutil.ToFloat64(h.metrics.Requests.WithLabelValues("Infotainment", "ok")); got < 5 {
		t.Errorf("infotainment ok requests = %v, want at least 5", got)
	}
	if got := testutil.CollectAndCount(h.metrics.HandshakeLatency); got != 2 {
		t.Errorf("handshake latency series = %d, want 2", got)
	}
}

func TestActionFailed(t *testing.T) {
	h := newHarness(t, harnessConfig{whitelisted: true})
	ctx := testContext(t)

	res, err := h.conn.SetChargeLimit(ctx, 30)
	if !errors.Is(err, vehicle.ErrActionFailed) {
		t.Fatalf("expected ErrActionFailed, got %v", err)
	}
	if res == nil || res.ActionStatus == nil || res.ActionStatus.Reason == "" {
		t.Fatalf("result = %+v, want failure reason", res)
	}
	if _, err := h.conn.SetCharging(ctx, false); !errors.Is(err, vehicle.ErrActionFailed) {
		t.Fatalf("expected ErrActionFailed stopping idle charger, got %v", err)
	}
}

func TestCommandStatusError(t *testing.T) {
	h := newHarness(t, harnessConfig{whitelisted: true})
	ctx := testContext(t)
	h.sim.Update(func(st *vehiclesim.VehicleState) {
		st.Charging = true
		st.ChargePortOpen = true
	})

	res, err := h.conn.CloseChargePort(ctx)
	if !errors.Is(err, vehicle.ErrActionFailed) {
		t.Fatalf("expected ErrActionFailed, got %v", err)
	}
	if res == nil || res.CommandStatus == nil || res.CommandStatus.OperationStatus != vcsec.OperationStatusError {
		t.Fatalf("result = %+v, want ERROR command status", res)
	}
	if !h.sim.State().ChargePortOpen {
		t.Error("vehicle closed the charge port")
	}
}

func TestEpochRotationRecovers(t *testing.T) {
	h := newHarness(t, harnessConfig{whitelisted: true})
	ctx := testContext(t)

	if _, err := h.conn.Lock(ctx); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if err := h.sim.RotateEpochs(); err != nil {
		t.Fatalf("RotateEpochs failed: %v", err)
	}

	_, err := h.conn.Unlock(ctx)
	var serr *session.StatusError
	if !errors.As(err, &serr) || serr.Fault != universal.MessageFaultIncorrectEpoch || !serr.Invalidated {
		t.Fatalf("expected invalidating incorrect epoch, got %v", err)
	}
	if h.conn.Sessions().IsAuthenticated(universal.DomainVehicleSecurity) {
		t.Fatal("session still authenticated")
	}

	if _, err := h.conn.Unlock(ctx); err != nil {
		t.Fatalf("Unlock after rotation failed: %v", err)
	}
	if h.sim.State().Locked {
		t.Fatal("vehicle still locked")
	}
}

func TestRequestTimeout(t *testing.T) {
	h := newHarness(t, harnessConfig{whitelisted: true, timeout: 100 * time.Millisecond})
	ctx := testContext(t)

	if err := h.conn.EnsureSession(ctx, universal.DomainVehicleSecurity); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	h.link.SetCondition(transport.Condition{DropRate: 1})

	if _, err := h.conn.Lock(ctx); !errors.Is(err, vehicle.ErrRequestTimeout) {
		t.Fatalf("expected ErrRequestTimeout, got %v", err)
	}
	if got := testutil.ToFloat64(h.metrics.Requests.WithLabelValues("VehicleSecurity", "timeout")); got != 1 {
		t.Errorf("timeouts = %v, want 1", got)
	}
}

func TestConcurrentCommands(t *testing.T) {
	h := newHarness(t, harnessConfig{whitelisted: true})
	ctx := testContext(t)

	const n = 8
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := h.conn.Wake(ctx)
			errs <- err
		}()
		go func() {
			_, err := h.conn.SetClimate(ctx, true)
			errs <- err
		}()
	}
	for i := 0; i < 2*n; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent command failed: %v", err)
		}
	}
	if got := h.conn.Sessions().Session(universal.DomainVehicleSecurity).Counter; got != n {
		t.Fatalf("security counter = %d, want %d", got, n)
	}
}

func TestOnResultPanicRecovered(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, harnessConfig{
		whitelisted: true,
		onResult: func(*protocol.Result) {
			calls.Add(1)
			panic("boom")
		},
	})
	ctx := testContext(t)

	if _, err := h.conn.Lock(ctx); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if _, err := h.conn.Unlock(ctx); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if calls.Load() < 3 {
		t.Fatalf("OnResult called %d times, want at least 3", calls.Load())
	}
	if got := h.conn.Stats().HandlerPanics; got < 3 {
		t.Fatalf("HandlerPanics = %d, want at least 3", got)
	}
}

func TestClose(t *testing.T) {
	h := newHarness(t, harnessConfig{whitelisted: true})
	if err := h.conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := h.conn.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if err := h.conn.Connect(context.Background()); !errors.Is(err, vehicle.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

// scriptedTransport hands the test direct control over notifications.
type scriptedTransport struct {
	mu        sync.Mutex
	handler   transport.NotificationHandler
	connected bool
}

func (s *scriptedTransport) Connect(context.Context, string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return true
}

func (s *scriptedTransport) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

func (s *scriptedTransport) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *scriptedTransport) Write(context.Context, []byte) error {
	return nil
}

func (s *scriptedTransport) RegisterNotificationCallback(handler transport.NotificationHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

func (s *scriptedTransport) notify(chunk []byte) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	h(chunk)
}

func statusFrame(t *testing.T) []byte {
	t.Helper()
	msg := &universal.RoutableMessage{
		ToDestination:   &universal.Destination{Domain: universal.DomainBroadcast},
		FromDestination: &universal.Destination{Domain: universal.DomainVehicleSecurity},
		ProtobufMessageAsBytes: (&vcsec.FromVCSECMessage{
			VehicleStatus: &vcsec.VehicleStatus{VehicleLockState: vcsec.VehicleLockStateLocked},
		}).Marshal(),
	}
	frame, err := framing.Encode(msg.Marshal())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return frame
}

func newScriptedConn(t *testing.T) (*scriptedTransport, *vehicle.Conn, chan *protocol.Result) {
	t.Helper()
	t.Cleanup(test.CheckRoutines(t))
	tr := &scriptedTransport{}
	sessions, err := session.NewManager(session.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	results := make(chan *protocol.Result, 4)
	conn, err := vehicle.New(vehicle.Config{
		Transport: tr,
		Sessions:  sessions,
		Address:   testAddress,
		OnResult:  func(res *protocol.Result) { results <- res },
	})
	if err != nil {
		t.Fatalf("vehicle.New failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return tr, conn, results
}

func waitResult(t *testing.T, results chan *protocol.Result) *protocol.Result {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
		return nil
	}
}

func TestEmptyNotificationKeepsPartialFrame(t *testing.T) {
	tr, conn, results := newScriptedConn(t)
	frame := statusFrame(t)

	tr.notify(frame[:3])
	tr.notify(nil)
	tr.notify([]byte{})
	tr.notify(frame[3:])

	res := waitResult(t, results)
	if res.Kind != protocol.KindVehicleStatus || !res.VehicleStatus.VehicleLockState.IsLocked() {
		t.Fatalf("result = %s, want locked vehicle status", res.Kind)
	}
	if stats := conn.Stats(); stats.ParseErrors != 0 || stats.ChunksReceived != 2 {
		t.Errorf("stats = %+v, want two chunks and no parse errors", stats)
	}
}

func TestReconnectDropsPartialFrame(t *testing.T) {
	tr, conn, results := newScriptedConn(t)
	frame := statusFrame(t)

	tr.notify(frame[:3])
	conn.Disconnect()
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	tr.notify(frame)

	res := waitResult(t, results)
	if res.Kind != protocol.KindVehicleStatus {
		t.Fatalf("result = %s, want vehicle status", res.Kind)
	}
	if stats := conn.Stats(); stats.ParseErrors != 0 || stats.FramesReceived != 1 {
		t.Errorf("stats = %+v, want one frame and no parse errors", stats)
	}
}
