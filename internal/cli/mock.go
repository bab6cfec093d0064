package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/energynexus/nexus-cli/internal/api"
	"github.com/energynexus/nexus-cli/internal/encoding"
	"github.com/energynexus/nexus-cli/internal/live"
	"github.com/energynexus/nexus-cli/internal/mockapi"
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/energynexus/nexus-cli/internal/recorder"
	"github.com/energynexus/nexus-cli/internal/transport"
	"github.com/spf13/cobra"
)

var (
	serveHost     string
	servePort     int
	serveRate     string
	serveBurst    int
	serveReplay   string
	serveSpeed    float64
	serveSecret   string
	serveScenario string
	serveRows     int
	serveSeed     int64

	replayIn     string
	replaySpeed  float64
	replayLoop   bool
	replayHost   string
	replayPort   int
	replayFormat string
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Local development backend and recordings",
	Long:  `Commands for running a local backend and working with stream recordings.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local backend",
	Long: `Runs a backend that speaks the same HTTP and stream contract as the real
service. It seeds an ADMIN and a USER account, accepts CSV datasets through
'nexus admin upload', and streams one reading per tick once started.

Examples:
  nexus mock serve
  nexus mock serve --port 9090 --rate 2hz
  nexus mock serve --scenario office --rows 336
  nexus mock serve --replay session.ndjson --speed 4`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Relay a recording as live frames",
	Long: `Plays back a recording made with 'nexus record' or 'nexus watch --record'
and broadcasts the resulting live frames over WebSocket, without a backend.

Examples:
  nexus mock replay --in session.ndjson
  nexus mock replay --in session.ndjson --speed 2.0 --loop --format protobuf`,
	Args: cobra.NoArgs,
	RunE: runReplay,
}

var describeCmd = &cobra.Command{
	Use:   "describe <recording>",
	Short: "Describe a recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func init() {
	def := mockapi.DefaultConfig()
	serveCmd.Flags().StringVar(&serveHost, "host", def.Host, "Host to bind to")
	serveCmd.Flags().IntVar(&servePort, "port", def.Port, "Port to listen on")
	serveCmd.Flags().StringVar(&serveRate, "rate", "", "Simulation tick rate, e.g. 0.5hz (mock.rate config)")
	serveCmd.Flags().IntVar(&serveBurst, "burst", def.Burst, "Readings emitted at once when a simulation starts")
	serveCmd.Flags().StringVar(&serveReplay, "replay", "", "Stream a recording instead of the ingested dataset")
	serveCmd.Flags().Float64Var(&serveSpeed, "speed", def.ReplaySpeed, "Replay speed multiplier")
	serveCmd.Flags().StringVar(&serveSecret, "secret", "", "Token signing secret (mock.secret config)")
	serveCmd.Flags().StringVar(&serveScenario, "scenario", "", "Queue a synthetic dataset from this building profile at startup")
	serveCmd.Flags().IntVar(&serveRows, "rows", 168, "Readings to generate for --scenario")
	serveCmd.Flags().Int64Var(&serveSeed, "seed", time.Now().UnixNano(), "Random seed for --scenario")

	replayCmd.Flags().StringVar(&replayIn, "in", "", "Recording to replay (required)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayLoop, "loop", false, "Loop playback continuously")
	replayCmd.Flags().StringVar(&replayHost, "host", "127.0.0.1", "Host to bind to")
	replayCmd.Flags().IntVar(&replayPort, "port", 8787, "Port to listen on")
	replayCmd.Flags().StringVar(&replayFormat, "format", "json", "Frame encoding: json|protobuf")
	replayCmd.MarkFlagRequired("in")

	mockCmd.AddCommand(serveCmd)
	mockCmd.AddCommand(replayCmd)
	mockCmd.AddCommand(describeCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := mockapi.DefaultConfig()
	cfg.Host = serveHost
	cfg.Port = servePort
	cfg.Burst = serveBurst
	cfg.Replay = serveReplay
	cfg.ReplaySpeed = serveSpeed

	if !cmd.Flags().Changed("port") && globalOpts.Config.Mock.Port != 0 {
		cfg.Port = globalOpts.Config.Mock.Port
	}
	if !cmd.Flags().Changed("host") && globalOpts.Config.Mock.Host != "" {
		cfg.Host = globalOpts.Config.Mock.Host
	}
	cfg.Secret = serveSecret
	if cfg.Secret == "" {
		cfg.Secret = globalOpts.Config.Mock.Secret
	}
	rate := serveRate
	if rate == "" {
		rate = globalOpts.Config.Mock.Rate
	}
	tick, err := parseTickRate(rate)
	if err != nil {
		return fmt.Errorf("invalid rate: %w", err)
	}
	cfg.Tick = tick
	cfg.Accounts = mockapi.DefaultAccounts()
	if serveScenario != "" {
		if cfg.Dataset, err = generateDataset(serveScenario, serveRows, serveSeed); err != nil {
			return err
		}
	}

	srv, err := mockapi.NewServer(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "Nexus Mock Backend Started\n\n")
	fmt.Fprintf(out, "API:        %s\n", srv.GetAddress())
	fmt.Fprintf(out, "Tick:       %s\n", tick)
	if serveReplay != "" {
		fmt.Fprintf(out, "Replay:     %s (%.1fx)\n", serveReplay, serveSpeed)
	}
	if serveScenario != "" {
		fmt.Fprintf(out, "Dataset:    %d %s readings queued (seed %d)\n", len(cfg.Dataset), serveScenario, serveSeed)
	}
	fmt.Fprintf(out, "\nAccounts:\n")
	for _, acct := range cfg.Accounts {
		fmt.Fprintf(out, "  %-20s %-10s %s\n", acct.Email, acct.Password, acct.Role)
	}
	fmt.Fprintf(out, "\nPress Ctrl+C to stop\n")

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	fmt.Fprintln(out, "\nShutdown complete")
	return nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	format, err := encoding.ParseFormat(replayFormat)
	if err != nil {
		return err
	}

	rep := recorder.NewReplayer(replayIn, replaySpeed, replayLoop)
	count, err := rep.CountEvents()
	if err != nil {
		return fmt.Errorf("failed to read recording: %w", err)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	wsServer := transport.NewWebSocketServer(replayHost, replayPort, encoding.NewEncoder(format))
	go func() {
		if err := wsServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("websocket server error", "error", err)
		}
	}()
	defer wsServer.Shutdown()

	select {
	case <-wsServer.Ready():
	case <-time.After(2 * time.Second):
		return fmt.Errorf("websocket server did not start on %s:%d", replayHost, replayPort)
	}

	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "Replay Session Started\n\n")
	fmt.Fprintf(out, "File:         %s\n", replayIn)
	fmt.Fprintf(out, "Events:       %d\n", count)
	fmt.Fprintf(out, "Speed:        %.1fx\n", replaySpeed)
	fmt.Fprintf(out, "Loop:         %v\n", replayLoop)
	fmt.Fprintf(out, "WebSocket:    %s\n\n", wsServer.GetAddress())

	events := make(chan models.StreamEvent, 100)
	frames := make(chan models.LiveFrame, 100)
	go func() {
		defer close(frames)
		conv := newFrameConverter(globalOpts.Config.Live.BufferSize)
		for ev := range events {
			for _, frame := range conv.convert(ev) {
				select {
				case frames <- frame:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	broadcastDone := make(chan struct{})
	go func() {
		defer close(broadcastDone)
		if err := wsServer.BroadcastFromChannel(ctx, frames); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("broadcast error", "error", err)
		}
	}()

	fmt.Fprintln(out, "Press Ctrl+C to stop")
	err = rep.Replay(ctx, events)
	close(events)
	<-broadcastDone
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("replay error: %w", err)
	}

	fmt.Fprintln(out, "\nReplay complete")
	return nil
}

func runDescribe(cmd *cobra.Command, args []string) error {
	rep := recorder.NewReplayer(args[0], 1, false)
	count, err := rep.CountEvents()
	if err != nil {
		return fmt.Errorf("failed to read recording: %w", err)
	}
	first, err := rep.GetFirstEvent()
	if err != nil {
		return fmt.Errorf("failed to read first event: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Recording: %s\n", args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "Events:    %d\n", count)
	if first != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Started:   %s\n", first.ReceivedAt.Local().Format(time.RFC1123))
		fmt.Fprintf(cmd.OutOrStdout(), "First:     %s (id %s)\n", first.Name, first.ID)
	}
	return nil
}

// frameConverter turns recorded stream events into live frames, dropping
// readings it has already seen
type frameConverter struct {
	seq    int64
	buffer *live.Buffer
}

func newFrameConverter(capacity int) *frameConverter {
	return &frameConverter{buffer: live.NewBuffer(capacity)}
}

func (c *frameConverter) next(kind models.FrameKind) models.LiveFrame {
	c.seq++
	return models.NewLiveFrame(c.seq, kind)
}

func (c *frameConverter) convert(ev models.StreamEvent) []models.LiveFrame {
	switch ev.Name {
	case models.EventStatus:
		status, err := models.ParseSystemStatus(ev.Data)
		if err != nil {
			slog.Debug("skipping status event", "error", err)
			return nil
		}
		frame := c.next(models.FrameStatus)
		frame.Status = status
		return []models.LiveFrame{frame}
	case models.EventUpdate:
		update, err := api.DecodeUpdate([]byte(ev.Data))
		if err != nil {
			slog.Debug("skipping update event", "error", err)
			return nil
		}
		stats := c.next(models.FrameStats)
		stats.Stats, stats.Insight = &update.Stats, &update.AIInsights
		frames := []models.LiveFrame{stats}
		if update.Newest != nil && c.buffer.Push(*update.Newest) {
			frame := c.next(models.FrameReading)
			frame.Reading = update.Newest
			frames = append(frames, frame)
		}
		return frames
	}
	return nil
}
