package main

import (
	"context"
	"fmt"
	"os"
	osSignal "os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hperssn/pulse/internal/domain"
	"github.com/hperssn/pulse/internal/logging"
	"github.com/hperssn/pulse/internal/sensor"
)

type publishFunc func(subject string, data []byte) error

type options struct {
	transport string
	url       string
	subject   string
	id        string
	wearer    sensor.Wearer
	interval  time.Duration
	quiet     bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := options{wearer: sensor.DefaultWearer()}

	cmd := &cobra.Command{
		Use:   "pulse-sim",
		Short: "Publish simulated wearer heart rate",
		Long: `pulse-sim plays a wearer that rests, then exercises until the heart rate
reaches its peak. Readings are published as JSON on NATS or MQTT.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Init(false)
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.transport, "transport", "nats", "nats or mqtt")
	f.StringVar(&opts.url, "url", "nats://127.0.0.1:4222", "NATS url or MQTT broker")
	f.StringVar(&opts.subject, "subject", "", "subject or topic (default hr.samples or wearable/<id>/heartrate)")
	f.StringVar(&opts.id, "id", "wearer-1", "wearer id carried by every reading")
	f.DurationVar(&opts.interval, "interval", time.Second, "time between readings")
	f.Float64Var(&opts.wearer.Resting, "rest", opts.wearer.Resting, "resting heart rate")
	f.Float64Var(&opts.wearer.Peak, "peak", opts.wearer.Peak, "peak heart rate")
	f.DurationVar(&opts.wearer.ExerciseAfter, "exercise-after", opts.wearer.ExerciseAfter, "time spent resting")
	f.DurationVar(&opts.wearer.RampTime, "ramp", opts.wearer.RampTime, "time from resting to peak")
	f.Float64Var(&opts.wearer.Noise, "noise", opts.wearer.Noise, "jitter amplitude in bpm")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "do not echo readings")

	return cmd
}

func run(parent context.Context, opts options) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := osSignal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts.subject = channel(opts)

	publish, closeFn, err := dial(opts)
	if err != nil {
		return err
	}
	defer closeFn()

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	start := time.Now()
	bpm := color.New(color.FgRed, color.Bold)

	for {
		select {
		case <-ctx.Done():
			fmt.Println("simulator: stopping")
			return nil

		case now := <-ticker.C:
			sample := domain.Sample{Value: opts.wearer.At(now.Sub(start)), Timestamp: now}
			data, err := sensor.Encode(opts.id, sample)
			if err != nil {
				return err
			}
			if err := publish(opts.subject, data); err != nil {
				color.Yellow("publish failed: %v", err)
				continue
			}
			if !opts.quiet {
				bpm.Printf("♥ %.0f", sample.Value)
				fmt.Printf("  %s\n", now.Format("15:04:05"))
			}
		}
	}
}

// channel is the subject or topic readings go out on.
func channel(opts options) string {
	switch {
	case opts.subject != "":
		return opts.subject
	case opts.transport == "mqtt":
		return "wearable/" + opts.id + "/heartrate"
	default:
		return "hr.samples"
	}
}

func dial(opts options) (publishFunc, func(), error) {
	switch opts.transport {
	case "nats":
		nc, err := sensor.Connect(opts.url)
		if err != nil {
			return nil, nil, fmt.Errorf("nats: %w", err)
		}
		return nc.Publish, func() { _ = nc.Drain() }, nil

	case "mqtt":
		client, err := sensor.InitClient(opts.url, "", nil)
		if err != nil {
			return nil, nil, fmt.Errorf("mqtt: %w", err)
		}
		publish := func(topic string, data []byte) error {
			return waitToken(client.Publish(topic, 0, false, data))
		}
		return publish, func() { client.Disconnect(250) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown transport %q", opts.transport)
	}
}

func waitToken(t mqtt.Token) error {
	if !t.WaitTimeout(3 * time.Second) {
		return fmt.Errorf("publish timed out")
	}
	return t.Error()
}
