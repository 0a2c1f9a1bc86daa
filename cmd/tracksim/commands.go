package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tracksim/tracksim/internal/config"
	"github.com/tracksim/tracksim/internal/plot"
	"github.com/tracksim/tracksim/internal/replication"
	"github.com/tracksim/tracksim/internal/storage/memory"
	"github.com/tracksim/tracksim/pkg/streaming"
	"github.com/tracksim/tracksim/pkg/vehicle"
)

// run plays the configured scenario as fast as the config allows.
func runCommand(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setupApp(ctx, configDir(args))
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.buildPipeline(ctx, false)
	if err != nil {
		a.Logger.Error("Failed to build pipeline", "error", err)
		return err
	}
	return p.execute(ctx, a)
}

// serve runs the vehicle in real time and accepts replication peers until
// interrupted.
func serveCommand(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setupApp(ctx, configDir(args))
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.buildPipeline(ctx, true)
	if err != nil {
		a.Logger.Error("Failed to build pipeline", "error", err)
		return err
	}

	rcfg := config.GetReplicationConfig()
	srv := replication.NewServer(replication.ServerConfig{
		Vehicle: rcfg.Vehicle,
		Secret:  rcfg.Secret,
	}, p.d, a.Logger)
	p.runner.OnSleepChange(srv.OnSleepChange)

	httpSrv := &http.Server{
		Addr:              rcfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.Logger.Info("Replication server listening", "addr", rcfg.Listen, "path", replication.Path)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("Replication server failed", "error", err)
			stop()
		}
	}()

	runErr := p.execute(ctx, a)

	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("Replication server shutdown", "error", err)
	}
	return runErr
}

// control sends a single control state to a running authority.
func controlCommand(args []string) error {
	if len(args) < 3 {
		return errors.New("usage: tracksim control <configDir> <throttle> <steer> [gear] [handbrake]")
	}
	throttle, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("throttle: %w", err)
	}
	steer, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("steer: %w", err)
	}

	ctx := context.Background()
	a, err := setupApp(ctx, args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	vcfg, err := config.GetVehicleConfig()
	if err != nil {
		return err
	}
	cs := vehicle.ControlState{Throttle: throttle, Steering: steer, Gear: firstForwardGear(vcfg)}
	if len(args) > 3 {
		if cs.Gear, err = strconv.Atoi(args[3]); err != nil {
			return fmt.Errorf("gear: %w", err)
		}
	}
	if len(args) > 4 {
		if cs.Handbrake, err = strconv.ParseBool(args[4]); err != nil {
			return fmt.Errorf("handbrake: %w", err)
		}
	}
	if err := vehicle.ValidateControlState(cs, len(vcfg.Gearbox.Gears)); err != nil {
		return err
	}

	rcfg := config.GetReplicationConfig()
	c := replication.NewClient(replication.ClientConfig{
		URL:     rcfg.URL,
		Secret:  rcfg.Secret,
		Vehicle: rcfg.Vehicle,
		Role:    streaming.RoleController,
	}, nil, a.Logger)
	if err := c.Connect(); err != nil {
		return fmt.Errorf("connecting to %s: %w", rcfg.URL, err)
	}
	defer c.Close()

	if err := c.SendControl(cs); err != nil {
		return err
	}
	fmt.Printf("sent throttle=%.2f steer=%.2f gear=%d handbrake=%v to %s\n",
		cs.Throttle, cs.Steering, cs.Gear, cs.Handbrake, rcfg.Vehicle)
	return nil
}

// firstForwardGear is the gear after neutral.
func firstForwardGear(cfg vehicle.Config) int {
	for i, g := range cfg.Gearbox.Gears {
		if g.Ratio == 0 && i+1 < len(cfg.Gearbox.Gears) {
			return i + 1
		}
	}
	return 0
}

// plot renders charts of an exported session.
func plotCommand(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: tracksim plot <export.json[.gz]> <out.png> [track.png]")
	}
	if len(args) == 2 {
		return plot.File(args[0], args[1])
	}

	exp, err := memory.ReadExport(args[0])
	if err != nil {
		return err
	}
	if err := plot.Drive(exp, args[1]); err != nil {
		return err
	}
	return plot.Track(exp, args[2])
}
