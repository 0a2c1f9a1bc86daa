package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/tracksim/tracksim/internal/api"
	"github.com/tracksim/tracksim/internal/cache"
	"github.com/tracksim/tracksim/internal/config"
	"github.com/tracksim/tracksim/internal/dispatcher"
	"github.com/tracksim/tracksim/internal/logging"
	"github.com/tracksim/tracksim/internal/monitor"
	"github.com/tracksim/tracksim/internal/runner"
	"github.com/tracksim/tracksim/internal/storage"
	wsstorage "github.com/tracksim/tracksim/internal/storage/websocket"
	"github.com/tracksim/tracksim/internal/worker"
	"github.com/tracksim/tracksim/pkg/core"
)

// pipeline is a runner wired to its recorder, storage and monitor.
type pipeline struct {
	ctx      context.Context
	backend  storage.Backend
	d        *dispatcher.Dispatcher
	worker   *worker.Manager
	runner   *runner.Runner
	monitor  *monitor.Service
	vehicle  string
	scenario config.ScenarioConfig
}

// buildPipeline creates the storage backend, dispatcher, worker, runner and
// monitor. serve forces real-time pacing with no duration limit.
func (a *app) buildPipeline(ctx context.Context, serve bool) (*pipeline, error) {
	vcfg, err := config.GetVehicleConfig()
	if err != nil {
		return nil, err
	}
	sc, err := config.GetScenarioConfig()
	if err != nil {
		return nil, err
	}
	if serve {
		sc.Realtime = true
		sc.Duration = 0
	}

	backend, err := a.newStorageBackend()
	if err != nil {
		return nil, err
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("initializing %T: %w", backend, err)
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(a.zlog))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	apiCfg := config.GetAPIConfig()
	wdeps := worker.Dependencies{Logger: a.Logger, Influx: a.influx}
	if apiCfg.Upload && apiCfg.ServerURL != "" {
		wdeps.Uploader = api.New(apiCfg.ServerURL, apiCfg.APIKey)
		a.Logger.Info("Uploads enabled", "server", apiCfg.ServerURL)
	}
	w := worker.NewManager(wdeps, backend)
	w.RegisterHandlers(d)

	vehicleName := config.GetReplicationConfig().Vehicle
	poses := cache.NewPoseCache()
	r, err := runner.New(runner.Config{
		TickRate: sc.TickRate,
		Duration: sc.Duration,
		Realtime: sc.Realtime,
		Mass:     config.GetMass(),
		Steps:    sc.Steps,
		Session: core.Session{
			Name:        sc.Name,
			VehicleName: vehicleName,
			TickRate:    sc.TickRate,
			Tag:         viper.GetString("defaultTag"),
			Origin: core.GeoOrigin{
				Latitude:  sc.Origin.Latitude,
				Longitude: sc.Origin.Longitude,
				Altitude:  sc.Origin.Altitude,
			},
		},
	}, vcfg, runner.Dependencies{Logger: a.Logger, Recorder: d, Poses: poses})
	if err != nil {
		d.Close()
		_ = backend.Close()
		return nil, err
	}
	r.RegisterHandlers(d)

	mdeps := monitor.Dependencies{
		Logger:    a.Logger,
		Loop:      r,
		Worker:    w,
		Influx:    a.influx,
		Poses:     poses,
		StatusDir: a.logsDir,
		Interval:  viper.GetDuration("monitor.interval"),
	}
	if db, ok := backend.(interface{ DB() *gorm.DB }); ok {
		mdeps.DB = db.DB()
	}
	if dr, ok := backend.(interface{ Dropped() uint64 }); ok {
		mdeps.Dropped = dr.Dropped
	}

	return &pipeline{
		ctx:      logging.WithSession(ctx, sc.Name),
		backend:  backend,
		d:        d,
		worker:   w,
		runner:   r,
		monitor:  monitor.NewService(mdeps),
		vehicle:  vehicleName,
		scenario: sc,
	}, nil
}

func (a *app) newStorageBackend() (storage.Backend, error) {
	cfg := config.GetStorageConfig()
	apiCfg := config.GetAPIConfig()
	b, err := storage.NewBackend(cfg, storage.Dependencies{
		Logger: a.Logger,
		Mass:   config.GetMass(),
		WebSocket: wsstorage.Config{
			URL:    httpToWS(apiCfg.ServerURL) + "/api",
			Secret: apiCfg.APIKey,
		},
	})
	if err != nil {
		return nil, err
	}
	a.Logger.Info("Storage backend initialized", "type", cfg.Type)
	return b, nil
}

// execute runs the loop until it finishes or ctx ends, then shuts the
// pipeline down in dependency order.
func (p *pipeline) execute(ctx context.Context, a *app) error {
	if err := p.monitor.Start(); err != nil {
		a.Logger.Warn("Failed to start monitor", "error", err)
	}

	a.Logger.InfoContext(p.ctx, "Scenario starting",
		"vehicle", p.vehicle, "tickRate", p.scenario.TickRate,
		"duration", p.scenario.Duration, "realtime", p.scenario.Realtime)
	start := time.Now()
	runErr := p.runner.Run(ctx)

	p.monitor.Stop()
	p.d.Close()
	if err := p.backend.Close(); err != nil {
		a.Logger.Error("Failed to close storage backend", "error", err)
	}

	samples, events := p.worker.Recorded()
	st := p.runner.Status()
	a.Logger.InfoContext(p.ctx, "Scenario finished",
		"ticks", st.Tick, "simTime", st.SimTime, "wall", time.Since(start),
		"samples", samples, "events", events, "error", runErr)

	fmt.Printf("%s: %d ticks, %.2fs simulated, %d samples, %d events\n",
		p.scenario.Name, st.Tick, st.SimTime, samples, events)
	fmt.Printf("final: x=%.2f y=%.2f speed=%.2f m/s gear=%d sleeping=%v\n",
		st.Position.X, st.Position.Y, st.Speed, st.Gear, st.Sleeping)
	if up, ok := p.backend.(storage.Uploadable); ok && up.GetExportedFilePath() != "" {
		fmt.Println("export:", up.GetExportedFilePath())
	}
	return runErr
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
