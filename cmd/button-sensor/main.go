// Command button-sensor polls push buttons, classifies presses and publishes
// the resulting events to MQTT, Redis and a live status page.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/button-sensor/internal/button"
	"github.com/sweeney/button-sensor/internal/config"
	"github.com/sweeney/button-sensor/internal/events"
	"github.com/sweeney/button-sensor/internal/input"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
	"github.com/sweeney/button-sensor/internal/store"
	"github.com/sweeney/button-sensor/internal/web"
)

const shutdownTimeout = 2 * time.Second

type options struct {
	configPath string
	printState bool
	overrides  config.FlagOverrides
}

// parseFlags parses args. Only flags present on the command line become
// overrides, so a config file value is not clobbered by a flag default.
func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("button-sensor", flag.ContinueOnError)

	configPath := fs.String("config", "", "YAML config file (defaults are used when empty)")
	pollMs := fs.Int("poll-ms", 5, "Polling interval in milliseconds")
	heartbeatMs := fs.Int("heartbeat-ms", 900000, "Heartbeat interval in milliseconds (0 to disable)")
	debounceMs := fs.Uint("debounce-ms", 30, "Global debounce time in milliseconds")
	backend := fs.String("backend", input.BackendGPIOCdev, "Input backend: gpiocdev, periph or rpio")
	chip := fs.String("chip", input.DefaultChip, "GPIO chip for the gpiocdev backend")
	buttons := fs.String("buttons", "", `Buttons as "name:pin,name:pin" (replaces the config file list)`)
	broker := fs.String("broker", "tcp://localhost:1883", "MQTT broker address")
	format := fs.String("format", mqtt.FormatJSON, "MQTT payload format: json or cbor")
	redisAddr := fs.String("redis", "", "Redis address (empty disables the Redis mirror)")
	httpAddr := fs.String("http", ":80", "HTTP status address (empty to disable)")
	logLevel := fs.String("log-level", "info", "Log level: error, warn, info or debug")
	printState := fs.Bool("print-state", false, "Print current button state and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	o := options{configPath: *configPath, printState: *printState}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "poll-ms":
			o.overrides.PollMs = pollMs
		case "heartbeat-ms":
			o.overrides.HeartbeatMs = heartbeatMs
		case "debounce-ms":
			d := uint32(*debounceMs)
			o.overrides.DebounceMs = &d
		case "backend":
			o.overrides.Backend = backend
		case "chip":
			o.overrides.Chip = chip
		case "buttons":
			o.overrides.Buttons = buttons
		case "broker":
			o.overrides.Broker = broker
		case "format":
			o.overrides.Format = format
		case "redis":
			o.overrides.RedisAddr = redisAddr
		case "http":
			o.overrides.HTTPAddr = httpAddr
		case "log-level":
			o.overrides.LogLevel = logLevel
		}
	})
	return o, nil
}

// loadConfig layers defaults, the config file and flag overrides, then
// validates the result.
func loadConfig(o options) (config.Config, []string, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return config.Config{}, nil, err
		}
	}
	if err := o.overrides.Apply(&cfg); err != nil {
		return config.Config{}, nil, err
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, warnings, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, warnings, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := setupLogger(level, os.Stdout)
	slog.SetDefault(logger)

	for _, w := range warnings {
		logger.Warn("config warning", "detail", w)
	}

	if err := run(cfg, opts.printState, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, printState bool, logger *slog.Logger) error {
	reader, err := input.Open(cfg.Input.Backend, cfg.Input.Chip, cfg.Lines())
	if err != nil {
		return fmt.Errorf("init input: %w", err)
	}
	defer reader.Close()

	if printState {
		return printButtons(os.Stdout, cfg, reader)
	}

	start := time.Now()

	sampler := input.NewSampler(reader, logger)
	bank := button.NewBank(cfg.Pins(), sampler, cfg.GlobalTiming())
	infos := make([]status.ButtonInfo, len(cfg.Buttons))
	for i, b := range cfg.Buttons {
		cc := cfg.ChannelConfig(i)
		bank.SetChannelConfig(i, cc)
		infos[i] = status.ButtonInfo{Name: b.Name, Pin: b.Pin, Enabled: cc.Enabled}
	}

	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		Format:      cfg.MQTT.Format,
		BufferSize:  cfg.MQTT.BufferSize,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	sinks := events.Multi{publisher}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Warn("close publishers", "error", err)
		}
	}()

	l := &loop{
		bank:      bank,
		clock:     button.NewMonotonicClock(start),
		names:     cfg.Names(),
		mqtt:      publisher,
		reads:     sampler,
		heartbeat: time.Duration(cfg.HeartbeatMs) * time.Millisecond,
		now:       time.Now,
		logger:    logger,
	}

	statusCfg := status.Config{
		PollMs:      int64(cfg.PollMs),
		HeartbeatMs: int64(cfg.HeartbeatMs),
		Timing:      cfg.GlobalTiming(),
		Backend:     cfg.Input.Backend,
		Broker:      cfg.MQTT.Broker,
		Format:      cfg.MQTT.Format,
		HTTPAddr:    cfg.HTTP.Addr,
	}

	if cfg.Redis.Enabled {
		rp, err := store.NewRedisPublisher(context.Background(), store.Options{
			Addr:      cfg.Redis.Addr,
			KeyPrefix: cfg.Redis.KeyPrefix,
			Logger:    logger,
		})
		if err != nil {
			logger.Warn("redis mirror disabled", "error", err)
		} else {
			sinks = append(sinks, rp)
			l.redis = rp
			statusCfg.RedisAddr = cfg.Redis.Addr
		}
	}

	tracker := status.NewTracker(start, statusCfg, infos)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	l.tracker = tracker

	var (
		hub *web.Hub
		srv *web.Server
	)
	if cfg.HTTP.Addr != "" {
		hub = web.NewHub(logger, web.HubConfig{})
		srv = web.New(cfg.HTTP.Addr, tracker, hub, logger)
		sinks = append(sinks, hub)
		l.live = hub
	}
	l.publisher = sinks

	l.announce(start, "STARTUP", "", true)

	logger.Info("started",
		"buttons", len(cfg.Buttons),
		"backend", cfg.Input.Backend,
		"poll_ms", cfg.PollMs,
		"broker", cfg.MQTT.Broker,
		"format", cfg.MQTT.Format,
		"redis", statusCfg.RedisAddr,
		"http", cfg.HTTP.Addr,
	)

	ticker := time.NewTicker(time.Duration(cfg.PollMs) * time.Millisecond)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if srv != nil {
		g.Go(func() error {
			hub.Run(ctx)
			return nil
		})
		g.Go(func() error {
			logger.Info("http status server listening", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return l.run(ctx, ticker.C, sigCh)
	})

	return g.Wait()
}

// printButtons reads every configured line once and prints its
// polarity-corrected state.
func printButtons(w io.Writer, cfg config.Config, reader input.Reader) error {
	for i, b := range cfg.Buttons {
		level, err := reader.Read(b.Pin)
		if err != nil {
			return fmt.Errorf("read %s (pin %d): %w", b.Name, b.Pin, err)
		}
		pressed := level
		if !cfg.ChannelConfig(i).ActiveLow {
			pressed = !level
		}
		fmt.Fprintf(w, "%s (pin %d): %s\n", b.Name, b.Pin, stateString(pressed))
	}
	return nil
}

func stateString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
