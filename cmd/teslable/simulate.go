package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/backkem/teslable/pkg/keystore"
	"github.com/backkem/teslable/pkg/protocol"
	"github.com/backkem/teslable/pkg/session"
	"github.com/backkem/teslable/pkg/transport"
	"github.com/backkem/teslable/pkg/vehicle"
	"github.com/backkem/teslable/pkg/vehiclesim"
)

const simulatedAddress = "SIMULATED"

type simulateOptions struct {
	ephemeral    bool
	confirmDelay time.Duration
	metricsAddr  string
}

func (a *app) simulateCmd() *cobra.Command {
	var opts simulateOptions
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Pair with and command a simulated vehicle over an in-memory link",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.simulate(ctx, cmd.OutOrStdout(), opts)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&opts.ephemeral, "ephemeral", false, "use a throwaway key instead of the key file")
	flags.DurationVar(&opts.confirmDelay, "confirm-delay", 2*time.Second, "time until the simulated driver taps the keycard")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func (a *app) simulate(ctx context.Context, out io.Writer, opts simulateOptions) error {
	cfg := a.cfg
	loggerFactory := cfg.LoggerFactory()

	var store keystore.Store = a.keyStore()
	if opts.ephemeral {
		store = keystore.NewMemoryStore()
	}
	kp, created, err := keystore.LoadOrCreate(store)
	if err != nil {
		return err
	}
	if created && !opts.ephemeral {
		fmt.Fprintf(out, "Generated a new key pair in %s\n", cfg.Keys.Path)
	}

	address := cfg.Vehicle.Address
	if address == "" {
		address = simulatedAddress
	}
	link := transport.NewLink(transport.LinkConfig{
		Address:       address,
		MTU:           cfg.Transport.MTU,
		LoggerFactory: loggerFactory,
	})
	defer link.Close()

	sim, err := vehiclesim.New(vehiclesim.Config{
		Transport:     link.Peripheral(),
		ConfirmDelay:  opts.confirmDelay,
		MTU:           cfg.Transport.MTU,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		return err
	}
	if err := sim.Start(ctx); err != nil {
		return err
	}
	defer sim.Stop()

	registry := prometheus.NewRegistry()
	metrics, err := vehicle.NewMetrics(registry)
	if err != nil {
		return err
	}
	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()
		defer srv.Close()
	}

	sessions, err := session.NewManager(session.Config{
		PrivateKey:    kp.PrivateKey(),
		ExpiresIn:     cfg.Session.ExpiresIn,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		return err
	}
	conn, err := vehicle.New(vehicle.Config{
		Transport:             link.Central(),
		Sessions:              sessions,
		Address:               address,
		MTU:                   cfg.Transport.MTU,
		WriteInterval:         cfg.Transport.WriteInterval,
		NotificationQueueSize: cfg.Transport.NotificationQueueSize,
		RequestTimeout:        cfg.Transport.RequestTimeout,
		Metrics:               metrics,
		LoggerFactory:         loggerFactory,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Connect(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s\n", address)

	fmt.Fprintln(out, "Pairing, waiting for keycard confirmation...")
	res, err := conn.Pair(ctx, cfg.Pairing.Timeout)
	if err != nil {
		return err
	}
	if !res.Success {
		return res.Err
	}
	fmt.Fprintln(out, "Paired")

	if err := conn.EnsureSessions(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Sessions established")

	steps := []struct {
		name string
		run  func(context.Context) (*protocol.Result, error)
	}{
		{"unlock", conn.Unlock},
		{"open trunk", conn.OpenTrunk},
		{"close trunk", conn.CloseTrunk},
		{"lock", conn.Lock},
		{"climate on", func(ctx context.Context) (*protocol.Result, error) { return conn.SetClimate(ctx, true) }},
		{"charge limit 90%", func(ctx context.Context) (*protocol.Result, error) { return conn.SetChargeLimit(ctx, 90) }},
	}
	for _, step := range steps {
		if _, err := step.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		fmt.Fprintf(out, "%-18s ok\n", step.name)
	}

	st, err := conn.Poll(ctx)
	if err != nil {
		return err
	}
	printState(out, st)

	stats := conn.Stats()
	fmt.Fprintf(out, "Frames: %d received, %d delivered, %d parse errors, %d unmatched\n",
		stats.FramesReceived, stats.ResultsDelivered, stats.ParseErrors, stats.Unmatched)

	if opts.metricsAddr != "" {
		fmt.Fprintf(out, "Serving metrics on %s, interrupt to exit\n", opts.metricsAddr)
		<-ctx.Done()
	}
	return nil
}

func printState(out io.Writer, st vehicle.State) {
	if st.Locked != nil {
		fmt.Fprintf(out, "Locked:       %v\n", *st.Locked)
	}
	if st.Closures != nil {
		fmt.Fprintf(out, "Rear trunk:   %s\n", st.Closures.RearTrunk)
		fmt.Fprintf(out, "Front trunk:  %s\n", st.Closures.FrontTrunk)
	}
	if c := st.Charge; c != nil {
		if c.BatteryLevel != nil {
			fmt.Fprintf(out, "Battery:      %d%%\n", *c.BatteryLevel)
		}
		if c.ChargeLimitSOC != nil {
			fmt.Fprintf(out, "Charge limit: %d%%\n", *c.ChargeLimitSOC)
		}
		if c.ChargingState != nil {
			fmt.Fprintf(out, "Charging:     %s\n", *c.ChargingState)
		}
	}
	if c := st.Climate; c != nil && c.IsClimateOn != nil {
		fmt.Fprintf(out, "Climate on:   %v\n", *c.IsClimateOn)
		if c.InsideTempCelsius != nil {
			fmt.Fprintf(out, "Inside:       %.1f C\n", *c.InsideTempCelsius)
		}
	}
}
