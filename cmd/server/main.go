package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	osSignal "os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hperssn/pulse/internal/config"
	"github.com/hperssn/pulse/internal/display"
	httpapi "github.com/hperssn/pulse/internal/http"
	"github.com/hperssn/pulse/internal/logging"
	"github.com/hperssn/pulse/internal/metrics"
	"github.com/hperssn/pulse/internal/runner"
	"github.com/hperssn/pulse/internal/sensor"
)

var version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pulse",
		Short:   "Heart-rate experience session server",
		Version: version,
		Long: `pulse measures a resting heart rate, then watches for the first reading
that rises above it and ends the experience after a countdown.

Settings come from PULSE_* environment variables; flags override them.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			applyFlags(cmd, env)
			if err := env.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return serve(cmd.Context(), env)
		},
	}

	f := cmd.Flags()
	f.String("addr", ":8080", "http listen address")
	f.String("sensor", config.SensorSim, "sample source: sim, nats or mqtt")
	f.String("nats", "nats://127.0.0.1:4222", "NATS url")
	f.String("subject", "hr.samples", "NATS subject carrying samples")
	f.String("broker", "tcp://127.0.0.1:1883", "MQTT broker")
	f.String("topic", "", "MQTT topic carrying samples (default wearable/<wearer>/heartrate)")
	f.String("wearer", "", "wearer id; also drops readings addressed to other wearers")
	f.Int("rest", 30, "resting window in seconds")
	f.Int("end-delay", 60, "seconds between crossing and the end")
	f.Float64("ratio", 1.1, "threshold ratio over the resting mean")
	f.Bool("console", false, "echo the display to stdout")

	return cmd
}

// applyFlags copies every flag given on the command line over env.
func applyFlags(cmd *cobra.Command, env *config.Env) {
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	str("addr", &env.Addr)
	str("sensor", &env.Sensor)
	str("nats", &env.NATSURL)
	str("subject", &env.NATSSubject)
	str("broker", &env.MQTTBroker)
	str("topic", &env.MQTTTopic)
	str("wearer", &env.WearerID)

	if f.Changed("rest") {
		env.RestSec, _ = f.GetInt("rest")
	}
	if f.Changed("end-delay") {
		env.EndDelaySec, _ = f.GetInt("end-delay")
	}
	if f.Changed("ratio") {
		env.ThresholdRatio, _ = f.GetFloat64("ratio")
	}
	if f.Changed("console") {
		env.Console, _ = f.GetBool("console")
	}
}

func serve(parent context.Context, env *config.Env) error {
	log := logging.Init(env.IsProduction())

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := osSignal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := connect(env, log)
	if err != nil {
		return err
	}
	defer stack.Close()

	board := display.NewBoard()
	var sink display.Sink = board
	if env.Console {
		sink = display.Tee(board, display.NewConsole(os.Stdout))
	}

	stats := metrics.New()
	machine := runner.New(runnerConfig(env), stack.source, sink, stack.scheduler,
		runner.WithMetrics(stats),
	)

	done := make(chan error, 1)
	go func() { done <- machine.Run(ctx) }()

	grants := sensor.Grants{
		Sensor:       env.SensorAccess,
		Notification: env.NotifyAccess,
		Probe:        stack.source.Available,
	}
	if err := machine.Load(ctx, grants); err != nil {
		return fmt.Errorf("load: %w", err)
	}

	api := httpapi.NewServer(machine, board, stats.Handler()).
		WithDefaultWearer(env.WearerID).
		WithAllowedOrigins(env.WSOrigins...)
	server := &http.Server{
		Addr:              env.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server running", "addr", env.Addr, "sensor", env.Sensor)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		stop()
		<-done
		return fmt.Errorf("http: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	<-done

	log.Info("server stopped")
	return nil
}

func runnerConfig(env *config.Env) runner.Config {
	cfg := runner.DefaultConfig()
	cfg.RestDuration = env.RestSec
	cfg.EndDelay = env.EndDelaySec
	cfg.ThresholdRatio = env.ThresholdRatio
	cfg.TickInterval = env.Tick
	cfg.NotificationTitle = env.NotifyTitle
	cfg.NotificationBody = env.NotifyBody
	return cfg
}
