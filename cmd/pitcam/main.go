package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/irtelemetry/pitcam/internal/camera"
	"github.com/irtelemetry/pitcam/internal/config"
	"github.com/irtelemetry/pitcam/internal/database"
	"github.com/irtelemetry/pitcam/internal/dispatcher"
	"github.com/irtelemetry/pitcam/internal/influx"
	"github.com/irtelemetry/pitcam/internal/logging"
	"github.com/irtelemetry/pitcam/internal/monitor"
	intOtel "github.com/irtelemetry/pitcam/internal/otel"
	"github.com/irtelemetry/pitcam/internal/poll"
	"github.com/irtelemetry/pitcam/internal/recording"
	"github.com/irtelemetry/pitcam/internal/roster"
	"github.com/irtelemetry/pitcam/internal/session"
	"github.com/irtelemetry/pitcam/internal/supervisor"
	"github.com/irtelemetry/pitcam/internal/telemetry"
	"github.com/irtelemetry/pitcam/internal/worker"
)

const (
	AppName        = "pitcam"
	configFileHint = config.FileName
)

var (
	BuildVersion = "dev"
	BuildDate    = "unknown"

	SessionStartTime = time.Now()

	LogFilePath string
	LogFile     *os.File

	SlogManager  = logging.NewSlogManager()
	Logger       = SlogManager.Logger()
	OTelProvider *intOtel.Provider

	// zerolog feeds the database, recording, influx and dispatcher layers
	zlog zerolog.Logger
)

// Services
var (
	sessionContext  *session.Context
	eventDispatcher *dispatcher.Dispatcher
	workerManager   *worker.Manager
	monitorService  *monitor.Service
	dbManager       *database.Manager
	recordWriter    *recording.Writer
	influxManager   *influx.Manager
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs, cli := newFlagSet(os.Stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if cli.Version {
		fmt.Printf("%s %s (%s)\n", AppName, BuildVersion, BuildDate)
		return 0
	}

	SlogManager.Setup(logging.Options{Level: "info"})
	Logger = SlogManager.Logger()

	if err := loadConfig(cli.ConfigDir, fs); err != nil {
		Logger.Error("Invalid configuration", "error", err)
		return 1
	}

	if err := setupLogging(); err != nil {
		Logger.Error("Failed to set up logging", "error", err)
		return 1
	}
	defer closeLogging()

	Logger.Info("Starting up", "version", BuildVersion, "build", BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := start(ctx, cli); err != nil {
		Logger.Error("Fatal error, shutting down", "error", err)
		return 1
	}
	Logger.Info("Shut down cleanly")
	return 0
}

// loadConfig reads the config file and layers explicit flags over it. A
// missing file leaves the defaults in effect.
func loadConfig(dir string, fs *pflag.FlagSet) error {
	err := config.Load(dir)
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		Logger.Info("Config loaded", "path", viper.ConfigFileUsed())
	case errors.As(err, &notFound):
		Logger.Warn("No config file found, using defaults", "dir", dir)
	default:
		return err
	}
	return config.BindFlags(fs)
}

func setupLogging() error {
	lf, err := logging.OpenLogFile(config.GetString("logsDir"), AppName, SessionStartTime)
	if err != nil {
		return err
	}
	LogFile, LogFilePath = lf.File, lf.Path

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    LogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		}
	}

	var gelfHandler *logging.GELFHandler
	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		gelfHandler, err = logging.NewGELFHandler(graylogCfg.Address, AppName)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err, "address", graylogCfg.Address)
			gelfHandler = nil
		}
	}

	opts := logging.Options{
		Level:   config.GetString("logLevel"),
		File:    LogFile,
		GELF:    gelfHandler,
		Session: logSessionAttrs,
	}
	if OTelProvider != nil {
		opts.Provider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)

	zlog = logging.NewZerolog(LogFile, AppName, config.GetString("logLevel"))

	Logger.Info("Logging to file", "path", LogFilePath)
	if lf.Rotated != "" {
		Logger.Info("Kept previous log file", "path", lf.Rotated)
	}
	return nil
}

// logSessionAttrs stamps every record with the source and connection state.
func logSessionAttrs() []slog.Attr {
	if sessionContext == nil {
		return nil
	}
	snap := sessionContext.Snapshot()
	return []slog.Attr{
		slog.String("source", snap.Source),
		slog.Bool("connected", snap.Connected),
	}
}

func closeLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "log flush:", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "otel shutdown:", err)
		}
	}
	if err := SlogManager.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "gelf close:", err)
	}
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

// start builds the store and its collaborators and runs the poll loop
// until ctx is cancelled or the supervisor gives up.
func start(ctx context.Context, cli *cliOptions) error {
	pollCfg := config.GetPollConfig()
	playbackCfg := config.GetPlaybackConfig()
	recordCfg := config.GetRecordConfig()

	policy, err := telemetry.ParseSkipPolicy(playbackCfg.SkipPolicy)
	if err != nil {
		return err
	}

	store, err := telemetry.New(telemetry.Options{
		File:          playbackCfg.File,
		Speed:         playbackCfg.Speed,
		SkipTo:        playbackCfg.SkipTo,
		SkipPolicy:    policy,
		ReferenceRate: pollCfg.ReferenceRate,
		Logger:        Logger,
		Recording: recording.NewReader(recording.ReaderOptions{
			Logger: zlog.With().Str("component", "reader").Logger(),
		}),
	})
	if err != nil {
		return err
	}
	Logger.Info("Telemetry source selected", "source", store.Name())

	sup, err := supervisor.New(store, supervisor.Options{
		RetryCeiling: pollCfg.RetryCeiling,
		Logger:       Logger.With("component", "supervisor"),
	})
	if err != nil {
		return err
	}

	sessionContext = session.NewContext(store.Name())

	eventDispatcher, err = dispatcher.New(logging.NewEventLogger(zlog.With().Str("component", "dispatcher").Logger()))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	defer eventDispatcher.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sinks := worker.Dependencies{Logger: Logger.With("component", "worker")}

	flushDone := make(chan error, 1)
	if recordCfg.Enabled && playbackCfg.File == "" {
		if err := openRecorder(store.Name(), pollCfg, recordCfg); err != nil {
			return err
		}
		defer closeRecorder()
		sinks.Recorder = recordWriter
		if recordCfg.FlushInterval <= 0 {
			recordCfg.FlushInterval = 5 * time.Second
		}
		go func() { flushDone <- recordWriter.Run(runCtx, recordCfg.FlushInterval) }()
	} else {
		if recordCfg.Enabled {
			Logger.Warn("Recording is only available for the live source, ignoring")
		}
		close(flushDone)
	}

	influxManager = influx.NewManager(zlog.With().Str("component", "influx").Logger(), config.GetInfluxConfig())
	switch err := influxManager.Connect(runCtx); {
	case errors.Is(err, influx.ErrDisabled):
		Logger.Debug("InfluxDB sink disabled")
	case err != nil:
		Logger.Error("Failed to connect to InfluxDB", "error", err)
	default:
		sinks.Points = influxManager
		defer func() {
			if err := influxManager.Close(); err != nil {
				Logger.Error("Failed to close InfluxDB sink", "error", err)
			}
		}()
	}

	workerManager = worker.NewManager(sinks)
	workerManager.RegisterHandlers(eventDispatcher)

	var vars []string
	if sinks.Recorder != nil || sinks.Points != nil {
		vars = recordCfg.Vars
	}

	rosters := roster.NewTracker()
	cameras := camera.NewManager(store, rosters, nil, Logger.With("component", "camera"))
	loop, err := poll.New(poll.Dependencies{
		Store:      store,
		Supervisor: sup,
		Rosters:    rosters,
		Cameras:    cameras,
		Session:    sessionContext,
		Dispatcher: eventDispatcher,
		Logger:     Logger.With("component", "poll"),
	}, poll.Options{
		Interval:   pollCfg.Interval,
		Camera:     config.GetCameraConfig(),
		RecordVars: vars,
	})
	if err != nil {
		return err
	}

	monitorService = monitor.NewService(monitor.Dependencies{
		Session:    sessionContext,
		Logger:     Logger.With("component", "monitor"),
		Console:    os.Stdout,
		StatusPath: config.GetString("statusFile"),
		Debug:      cli.Debug,
		Sinks:      workerManager,
	})
	if err := monitorService.Start(runCtx); err != nil {
		Logger.Error("Failed to start status monitor", "error", err)
	} else {
		defer monitorService.Stop()
	}

	err = loop.Run(runCtx)
	cancel()
	eventDispatcher.Close()
	if ferr := <-flushDone; ferr != nil {
		Logger.Error("Final recording flush failed", "error", ferr)
	}
	return err
}

// tickRate is the number of frames a recording holds per second of the
// poll interval, at least one.
func tickRate(interval time.Duration) int {
	if interval <= 0 {
		interval = poll.DefaultInterval
	}
	return int(math.Max(1, math.Round(float64(time.Second)/float64(interval))))
}

// pollRate is the reference rate stored with a capture. It matches tickRate
// so that replay advances one frame per poll at normal speed.
func pollRate(interval time.Duration) float64 {
	return float64(tickRate(interval))
}

func openRecorder(source string, pollCfg config.PollConfig, recordCfg config.RecordConfig) error {
	storageCfg := config.GetStorageConfig()
	if storageCfg.Type == database.TypeSQLite && storageCfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(storageCfg.Path), 0o755); err != nil {
			return fmt.Errorf("creating recording directory: %w", err)
		}
	}

	dbManager = database.NewManager(zlog.With().Str("component", "database").Logger())
	if err := dbManager.Connect(database.Config{
		Type: storageCfg.Type,
		Path: storageCfg.Path,
		DSN:  storageCfg.DSN,
	}); err != nil {
		return fmt.Errorf("connecting to recording database: %w", err)
	}
	if err := dbManager.Setup(); err != nil {
		_ = dbManager.Close()
		return fmt.Errorf("migrating recording database: %w", err)
	}

	var err error
	recordWriter, err = recording.NewWriter(dbManager.DB, recording.WriterOptions{
		Name:      fmt.Sprintf("%s %s", AppName, SessionStartTime.Format("20060102_150405")),
		Source:    source,
		TickRate:  tickRate(pollCfg.Interval),
		PollRate:  pollRate(pollCfg.Interval),
		Vars:      recordCfg.Vars,
		BatchSize: recordCfg.BatchSize,
		Logger:    zlog.With().Str("component", "recording").Logger(),
	})
	if err != nil {
		_ = dbManager.Close()
		return err
	}
	Logger.Info("Recording live telemetry", "storage", storageCfg.Type, "session", recordWriter.Session().UUID)
	return nil
}

func closeRecorder() {
	if err := recordWriter.Close(); err != nil {
		Logger.Error("Failed to close recording", "error", err)
	}
	// an in-memory sqlite recording only survives as a dump
	if dbManager.Kind == database.TypeSQLite && dbManager.Path == "" {
		path := filepath.Join(config.GetString("logsDir"),
			fmt.Sprintf("%s_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
		if err := dbManager.DumpToDisk(path); err != nil {
			Logger.Error("Failed to dump in-memory recording", "error", err, "path", path)
		} else {
			Logger.Info("Recording saved", "path", path)
		}
	}
	if err := dbManager.Close(); err != nil {
		Logger.Error("Failed to close recording database", "error", err)
	}
}
