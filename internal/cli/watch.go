package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/energynexus/nexus-cli/internal/encoding"
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/energynexus/nexus-cli/internal/monitor"
	"github.com/energynexus/nexus-cli/internal/recorder"
	"github.com/energynexus/nexus-cli/internal/sink"
	"github.com/energynexus/nexus-cli/internal/transport"
	"github.com/spf13/cobra"
)

var (
	watchView        viewFlags
	watchRecord      string
	watchRelayHost   string
	watchRelayPort   int
	watchRelayFormat string
	watchInflux      bool
	watchKafka       bool
	watchDuration    string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of readings, statistics and insights",
	Long: `Loads the current report, opens the live stream and redraws the dashboard
on every change. The stream reconnects with backoff; weekly statistics are
polled in the background.

Live frames can be mirrored to other consumers while watching:
  --relay-port   rebroadcast frames over WebSocket (json or protobuf)
  --influx       write each new reading to InfluxDB
  --kafka        publish each new reading to Kafka
  --record       append raw stream events to an NDJSON file

Examples:
  nexus watch
  nexus watch --attr hvac --value On --limit 10
  nexus watch --relay-port 8787 --relay-format protobuf --record session.ndjson`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchView.register(watchCmd, 15)
	watchCmd.Flags().StringVar(&watchRecord, "record", "", "Record stream events to file")
	watchCmd.Flags().StringVar(&watchRelayHost, "relay-host", "127.0.0.1", "Host for the WebSocket relay")
	watchCmd.Flags().IntVar(&watchRelayPort, "relay-port", 0, "Port for the WebSocket relay (disabled when 0)")
	watchCmd.Flags().StringVar(&watchRelayFormat, "relay-format", "json", "Relay frame encoding: json|protobuf")
	watchCmd.Flags().BoolVar(&watchInflux, "influx", false, "Mirror readings to InfluxDB (influx.* config)")
	watchCmd.Flags().BoolVar(&watchKafka, "kafka", false, "Mirror readings to Kafka (kafka.* config)")
	watchCmd.Flags().StringVar(&watchDuration, "duration", "", "Stop after this long (e.g. 10m)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	sel, err := watchView.selection()
	if err != nil {
		return err
	}
	var encoder encoding.Encoder
	if watchRelayPort > 0 {
		format, err := encoding.ParseFormat(watchRelayFormat)
		if err != nil {
			return err
		}
		encoder = encoding.NewEncoder(format)
	}

	a := newApp()
	defer a.close()
	if _, err := a.requireSession(); err != nil {
		return err
	}

	baseCtx, stop := signalContext(cmd)
	defer stop()
	if watchDuration != "" {
		d, err := time.ParseDuration(watchDuration)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		var cancel context.CancelFunc
		baseCtx, cancel = context.WithTimeout(baseCtx, d)
		defer cancel()
	}
	ctx, cancel := context.WithCancelCause(baseCtx)
	defer cancel(nil)
	unhook := a.store.OnTeardown(func(reason error) { cancel(fmt.Errorf("session ended: %w", reason)) })
	defer unhook()

	var rec *recorder.Recorder
	if watchRecord != "" {
		rec, err = recorder.NewRecorder(watchRecord)
		if err != nil {
			return fmt.Errorf("failed to create recorder: %w", err)
		}
		defer rec.Close()
	}

	opts := monitor.Options{
		BufferSize:     globalOpts.Config.Live.BufferSize,
		WeeklyInterval: globalOpts.Config.Live.WeeklyInterval,
		Reconnect:      reconnectOptions(),
		OnGiveUp:       func(err error) { cancel(fmt.Errorf("stream unavailable: %w", err)) },
	}
	if rec != nil {
		opts.OnEvent = func(ev models.StreamEvent) {
			if err := rec.Record(ev); err != nil {
				slog.Warn("failed to record event", "error", err)
			}
		}
	}
	m := monitor.New(a.client, a.store, opts)
	defer m.Close()

	if err := m.Mount(ctx); err != nil {
		if a.store.Current() == nil {
			return a.sessionError(err)
		}
		slog.Warn("initial load incomplete", "error", err)
	}

	dispatcher := transport.NewDispatcher(m.Frames(), 64)
	render := dispatcher.Subscribe()

	var wg sync.WaitGroup
	if encoder != nil {
		relay := transport.NewWebSocketServer(watchRelayHost, watchRelayPort, encoder)
		frames := dispatcher.Subscribe()
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("relay stopped", "error", err)
			}
		}()
		go func() {
			defer wg.Done()
			relay.BroadcastFromChannel(ctx, frames)
		}()
		defer relay.Shutdown()
		select {
		case <-relay.Ready():
			fmt.Fprintf(cmd.ErrOrStderr(), "Relay:     %s (%s)\n", relay.GetAddress(), encoder.ContentType())
		case <-time.After(2 * time.Second):
			slog.Warn("relay did not start in time")
		}
	}

	sinks, err := openSinks(ctx)
	if err != nil {
		return err
	}
	for _, s := range sinks {
		frames := dispatcher.Subscribe()
		wg.Add(1)
		go func(s sink.Sink) {
			defer wg.Done()
			defer s.Close()
			written, failed := sink.Forward(ctx, s, frames)
			slog.Info("sink finished", "sink", s.Name(), "written", written, "failed", failed)
		}(s)
	}

	go dispatcher.Run(ctx)
	go m.Run(ctx)
	if err := m.StartLive(ctx); err != nil {
		return err
	}

	ui := NewUI(cmd.OutOrStdout(), globalOpts.NoColor)
	redraw := time.NewTicker(globalOpts.Config.Live.WeeklyInterval)
	defer redraw.Stop()
	ui.Dashboard(m.Snapshot(), sel, watchView.limit)

loop:
	for {
		select {
		case _, ok := <-render:
			if !ok {
				break loop
			}
			ui.Dashboard(m.Snapshot(), sel, watchView.limit)
		case <-redraw.C:
			ui.Dashboard(m.Snapshot(), sel, watchView.limit)
		case <-ctx.Done():
			break loop
		}
	}

	m.StopLive()
	cancel(nil)
	wg.Wait()

	if rec != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Recorded %d events to %s\n", rec.Count(), watchRecord)
	}
	if dropped := dispatcher.GetDroppedCount() + m.Dropped(); dropped > 0 {
		slog.Info("frames dropped by slow consumers", "count", dropped)
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) && !errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}
	return nil
}

// openSinks connects the sinks enabled by flags
func openSinks(ctx context.Context) ([]sink.Sink, error) {
	cfg := globalOpts.Config
	var sinks []sink.Sink
	if watchInflux {
		s, err := sink.NewInflux(ctx, sink.InfluxConfig{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open influx sink: %w", err)
		}
		sinks = append(sinks, s)
	}
	if watchKafka {
		s, err := sink.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			for _, open := range sinks {
				open.Close()
			}
			return nil, fmt.Errorf("failed to open kafka sink: %w", err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}
