// MQTT Monitor
//
// mqttmon connects to an MQTT broker, subscribes to every topic and prints
// each message it receives to the console. Connection loss is never fatal:
// the monitor reconnects with exponential backoff until interrupted.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/nerrad567/mqttmon/internal/display"
	"github.com/nerrad567/mqttmon/internal/infrastructure/config"
	"github.com/nerrad567/mqttmon/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqttmon/internal/infrastructure/logging"
	"github.com/nerrad567/mqttmon/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqttmon/internal/monitor"
)

// Version information - overridden at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.date=2026-11-01"
var (
	version = "0.1.0"      // Semantic version
	commit  = "unknown"    // Git commit hash
	date    = "2026-10-18" // Release date
)

// Process exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitPanic = 2
)

// uniqueSuffixLen keeps generated client ids within the 23 bytes every
// MQTT 3.1 broker accepts.
const uniqueSuffixLen = 8

// cliArgs holds the command line overrides.
type cliArgs struct {
	ConfigFile string
	Host       string
	Port       int
	NoColor    bool
	LogLevel   string
}

// runMonitor is the application body; replaced in tests.
var runMonitor = run

func main() {
	os.Exit(runMain(os.Args, os.Stdout))
}

// runMain runs the CLI and converts its outcome into an exit code.
// A panic on the main goroutine is reported with its stack trace.
func runMain(args []string, stdout io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stdout, "Exception: %v\n%s", r, debug.Stack())
			code = exitPanic
		}
	}()

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp(stdout).RunContext(ctx, args); err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

// newApp defines the command line interface.
func newApp(stdout io.Writer) *cli.App {
	var args cliArgs

	return &cli.App{
		Name:        "mqttmon",
		Version:     version,
		Usage:       "print every message published on an MQTT broker",
		Description: "Subscribes to all topics and keeps reconnecting until interrupted",
		Writer:      stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "YAML config file. Built-in defaults if not specified.",
				Aliases:     []string{"c"},
				EnvVars:     []string{"MQTTMON_CONFIG"},
				Destination: &args.ConfigFile,
			},
			&cli.StringFlag{
				Name:        "host",
				Usage:       "Broker host, overrides the config file",
				Destination: &args.Host,
			},
			&cli.IntFlag{
				Name:        "port",
				Usage:       "Broker port, overrides the config file",
				Aliases:     []string{"p"},
				Destination: &args.Port,
			},
			&cli.BoolFlag{
				Name:        "no-color",
				Usage:       "Disable ANSI colors",
				Destination: &args.NoColor,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Logging level: [debug info warn error]",
				Aliases:     []string{"l"},
				Destination: &args.LogLevel,
			},
		},
		Action: func(c *cli.Context) error {
			return runMonitor(c.Context, args, stdout)
		},
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command line overrides
//   - stdout: Destination of the banner and the message stream
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args cliArgs, stdout io.Writer) error {
	fmt.Fprintf(stdout, "MQTT Monitor v%s (%s)\n", version, date)

	cfg, err := config.Load(args.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyFlags(cfg, args)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating flags: %w", err)
	}

	console := &lockedWriter{w: stdout}

	log := logging.New(cfg.Logging, version, console)
	log.Debug("configuration loaded",
		"path", args.ConfigFile,
		"commit", commit,
	)

	jitter, err := monitor.ParseJitterMode(cfg.MQTT.Reconnect.Jitter)
	if err != nil {
		return err
	}

	formatter := display.NewFormatter(useColor(cfg.Display.Color, stdout))

	handler := monitor.NewSubscriptionHandler(monitor.SubscriptionConfig{
		Topic:      cfg.MQTT.Subscription.Topic,
		QoS:        byte(cfg.MQTT.Subscription.QoS), // #nosec G115 -- validated 0..2
		WindowSize: cfg.MQTT.WindowSize,
	}, formatter, console)
	handler.SetLogger(log.With("component", "subscription"))

	dialer := mqtt.NewDialer(cfg.MQTT)
	dialer.SetLogger(log.With("component", "mqtt"))

	manager := monitor.NewManager(monitor.ManagerConfig{
		Target:       cfg.MQTT.BrokerTarget(),
		ClientID:     resolveClientID(cfg.MQTT.Broker),
		KeepAlive:    cfg.MQTT.GetKeepAlive(),
		InitialDelay: cfg.MQTT.Reconnect.GetInitialDelay(),
		MaxDelay:     cfg.MQTT.Reconnect.GetMaxDelay(),
		Jitter:       jitter,
	}, dialer, handler)
	manager.SetLogger(log.With("component", "manager"))

	var wg sync.WaitGroup
	if cfg.InfluxDB.Enabled {
		startReporter(ctx, &wg, cfg.InfluxDB, manager, log)
	}

	err = manager.Run(ctx)
	wg.Wait()
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Program terminated.")
	return nil
}

// applyFlags overlays command line values on the loaded configuration.
func applyFlags(cfg *config.Config, args cliArgs) {
	if args.Host != "" {
		cfg.MQTT.Broker.Host = args.Host
	}
	if args.Port != 0 {
		cfg.MQTT.Broker.Port = args.Port
	}
	if args.LogLevel != "" {
		cfg.Logging.Level = args.LogLevel
	}
	if args.NoColor {
		cfg.Display.Color = "never"
	}
}

// useColor resolves the display color mode. "auto" colors only when out
// is a terminal and NO_COLOR is unset.
func useColor(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}

	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// resolveClientID returns the configured client id, with a random suffix
// when unique ids are requested.
func resolveClientID(broker config.MQTTBrokerConfig) string {
	if !broker.UniqueClientID {
		return broker.ClientID
	}
	return broker.ClientID + "-" + uuid.NewString()[:uniqueSuffixLen]
}

// startReporter exports traffic statistics until ctx is cancelled. An
// unreachable InfluxDB is logged and the monitor runs without export.
func startReporter(ctx context.Context, wg *sync.WaitGroup, cfg config.InfluxDBConfig, manager *monitor.Manager, log *logging.Logger) {
	exp, err := influxdb.Dial(ctx, cfg)
	if err != nil {
		log.Warn("traffic statistics export disabled", "error", err)
		return
	}
	exp.OnError(func(err error) {
		log.Warn("traffic export", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)

	tags := map[string]string{
		"broker":    manager.Target().URL(),
		"client_id": manager.ClientID(),
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		exp.Run(ctx, tags, func() influxdb.TrafficSample {
			return trafficSample(manager)
		})
		if err := exp.Close(); err != nil {
			log.Error("error closing InfluxDB", "error", err)
		}
		written, skipped := exp.Counts()
		log.Info("traffic export stopped", "written", written, "skipped", skipped)
	}()
}

// trafficSample reads the manager's counters for export.
func trafficSample(manager *monitor.Manager) influxdb.TrafficSample {
	s := manager.Stats()
	return influxdb.TrafficSample{
		State:              manager.State().String(),
		Messages:           s.Messages,
		PayloadBytes:       s.PayloadBytes,
		DecodeFailures:     s.DecodeFailures,
		ConnectAttempts:    s.ConnectAttempts,
		FailedAttempts:     s.FailedAttempts,
		Disconnects:        s.Disconnects,
		Subscriptions:      s.Subscriptions,
		SubscriptionErrors: s.SubscriptionErrors,
	}
}

// lockedWriter serialises writes from the message stream and the logger
// onto one console.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
