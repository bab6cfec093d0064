package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/energynexus/nexus-cli/internal/live"
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/energynexus/nexus-cli/internal/recorder"
	"github.com/spf13/cobra"
)

var (
	recordOut      string
	recordDuration string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the live stream to a file",
	Long: `Subscribes to the live stream without a dashboard and appends every event
to an NDJSON file. Recordings can be served again with 'nexus mock serve --replay'
or relayed with 'nexus mock replay'.

Examples:
  nexus record --out session.ndjson
  nexus record --out session.ndjson --duration 10m`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVar(&recordOut, "out", "", "Output file (required)")
	recordCmd.Flags().StringVar(&recordDuration, "duration", "", "Stop after this long (e.g. 5m)")
	recordCmd.MarkFlagRequired("out")
}

func runRecord(cmd *cobra.Command, args []string) error {
	a := newApp()
	defer a.close()
	if _, err := a.requireSession(); err != nil {
		return err
	}

	baseCtx, stop := signalContext(cmd)
	defer stop()
	if recordDuration != "" {
		d, err := time.ParseDuration(recordDuration)
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

	rec, err := recorder.NewRecorder(recordOut)
	if err != nil {
		return fmt.Errorf("failed to create recorder: %w", err)
	}
	defer rec.Close()

	events := make(chan models.StreamEvent, 100)
	sub := live.NewSubscriber(a.client, live.Handlers{
		OnEvent: func(ev models.StreamEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		},
		OnConnect:    func() { slog.Info("stream connected", "url", a.client.StreamURL()) },
		OnDisconnect: func(err error) { slog.Warn("stream disconnected", "error", err) },
		OnGiveUp:     func(err error) { cancel(fmt.Errorf("stream unavailable: %w", err)) },
	}, reconnectOptions())

	fmt.Fprintf(cmd.ErrOrStderr(), "Recording Session Started\n\n")
	fmt.Fprintf(cmd.ErrOrStderr(), "Stream:     %s\n", a.client.StreamURL())
	fmt.Fprintf(cmd.ErrOrStderr(), "Output:     %s\n\n", recordOut)

	sub.Start(ctx)
	defer sub.Stop()

	progress := func() {
		fmt.Fprintf(cmd.ErrOrStderr(), "\rRecorded %d events...", rec.Count())
	}
	if err := rec.RecordFromChannel(ctx, events, progress); err != nil {
		return fmt.Errorf("recording error: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\n\nRecording complete: %d events in %s\n", rec.Count(), recordOut)
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) && !errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}
	return nil
}
