package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/tracksim/tracksim/internal/config"
	"github.com/tracksim/tracksim/internal/influx"
	"github.com/tracksim/tracksim/internal/logging"
	intOtel "github.com/tracksim/tracksim/internal/otel"
)

// app holds the ambient services every command shares.
type app struct {
	start   time.Time
	logsDir string

	SlogManager *logging.SlogManager
	Logger      *slog.Logger
	// zlog feeds the dispatcher and influx, which log through zerolog.
	zlog zerolog.Logger

	logFile *os.File
	otel    *intOtel.Provider
	influx  *influx.Manager
}

// setupApp loads the config from dir and brings up logging, OTel and influx.
func setupApp(ctx context.Context, dir string) (*app, error) {
	a := &app{start: time.Now(), SlogManager: logging.NewSlogManager()}
	a.SlogManager.Setup("info", logging.Sinks{Console: os.Stderr})
	a.Logger = a.SlogManager.Logger()

	if err := config.Load(dir); err != nil {
		a.Logger.Warn("Failed to load config, using defaults!", "error", err, "dir", dir)
	} else {
		a.Logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}

	a.logsDir = viper.GetString("logsDir")
	if err := os.MkdirAll(a.logsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating logs directory: %w", err)
	}
	logPath := logging.LogFilePath(a.logsDir, AppName, a.start)
	if _, err := os.Stat(logPath); err == nil {
		_ = os.Rename(logPath, logPath+".old")
	}
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("creating log file: %w", err)
	}
	a.logFile = f

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		a.otel, err = intOtel.New(intOtel.Config{
			Enabled:        true,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: Version,
			Vehicle:        viper.GetString("replication.vehicle"),
			Session:        viper.GetString("scenario.name"),
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      a.logFile,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			a.Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			a.Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	level := viper.GetString("logLevel")
	sinks := logging.Sinks{
		File:    a.logFile,
		Console: os.Stderr,
		Context: logging.SessionAttrs,
	}
	if a.otel != nil {
		sinks.Provider = a.otel.LoggerProvider()
	}
	if viper.GetBool("graylog.enabled") {
		gelf, err := logging.NewGelfHandler(viper.GetString("graylog.address"), AppName, logging.ParseLevel(level))
		if err != nil {
			a.Logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			sinks.Gelf = gelf
		}
	}
	a.SlogManager.Setup(level, sinks)
	a.Logger = a.SlogManager.Logger()
	a.Logger.Info("Logging to file", "path", logPath, "version", Version, "buildDate", BuildDate)

	zlevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zlevel = zerolog.InfoLevel
	}
	a.zlog = zerolog.New(a.logFile).Level(zlevel).With().Timestamp().Str("app", AppName).Logger()

	if viper.GetBool("influx.enabled") {
		backup := filepath.Join(a.logsDir, fmt.Sprintf("%s_influx_%s.lp.gz", AppName, a.start.Format("20060102_150405")))
		m := influx.NewManager(a.zlog, backup)
		if err := m.Connect(ctx); err != nil {
			a.Logger.Error("Failed to set up InfluxDB", "error", err)
		} else {
			a.influx = m
		}
	}
	return a, nil
}

// Close flushes and releases everything setupApp opened.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			a.Logger.Error("Failed to close InfluxDB", "error", err)
		}
	}
	if err := a.SlogManager.Flush(ctx); err != nil {
		a.Logger.Warn("Failed to flush logs", "error", err)
	}
	if a.otel != nil {
		_ = a.otel.Shutdown(ctx)
	}
	_ = a.SlogManager.Close()
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
