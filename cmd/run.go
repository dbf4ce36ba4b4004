package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"facelens/internal/journal"
	log "facelens/internal/log"
	"facelens/internal/ui"
	"facelens/processing/capture"
	processing "facelens/processing/detector"
)

var headless bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the configured source and analyse faces until the window is closed",
	RunE:  runLive,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(c *cobra.Command) {
	c.Flags().BoolVar(&headless, "headless", false, "run without a window; stop with Ctrl+C")
}

func runLive(cmd *cobra.Command, args []string) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid config %s:\n  %s", configPath, strings.Join(problems, "\n  "))
	}

	ctx := cmd.Context()

	streamer, err := capture.NewStreamer(cfg)
	if err != nil {
		return err
	}

	analyzer, err := processing.NewAnalyzer(cfg.GetAnalyzer())
	if err != nil {
		return err
	}
	defer analyzer.Close()

	sessionID := uuid.New()
	opts := []processing.Option{processing.WithSessionID(sessionID)}

	if store := openJournal(ctx, sessionID); store != nil {
		defer closeJournal(store, sessionID)
		opts = append(opts, processing.WithRecorder(store))
	}

	proc := processing.NewProcessor(cfg, streamer, analyzer, opts...)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	done := make(chan error, 1)
	go func() {
		err := proc.Run(runCtx)
		stop()
		done <- err
	}()

	if headless {
		<-runCtx.Done()
	} else {
		ui.CreateApp(proc, cfg, configPath, stop).Run(runCtx)
		stop()
	}

	err = <-done
	var ce *capture.CaptureError
	if errors.As(err, &ce) {
		return fmt.Errorf("video source failed: %w", err)
	}
	return err
}

// openJournal returns nil when no database is configured or it cannot be
// reached. The run goes on without a journal in both cases.
func openJournal(ctx context.Context, sessionID uuid.UUID) *journal.Store {
	if cfg.Journal.DatabaseURL == "" {
		return nil
	}

	store, err := journal.New(ctx, cfg.Journal.DatabaseURL)
	if err != nil {
		log.Warn("journal disabled", "err", err)
		return nil
	}

	if err := store.StartSession(ctx, sessionID, time.Now()); err != nil {
		log.Warn("journal disabled", "err", err)
		store.Close(context.Background())
		return nil
	}

	log.Info("journal enabled", "session", sessionID.String())
	return store
}

func closeJournal(store *journal.Store, sessionID uuid.UUID) {
	// The run context may already be cancelled here.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	defer store.Close(ctx)

	if err := store.EndSession(ctx, sessionID, time.Now()); err != nil {
		log.Warn("journal: end session failed", "err", err)
		return
	}

	sum, err := store.Summary(ctx, sessionID)
	if err != nil {
		log.Warn("journal: summary failed", "err", err)
		return
	}
	log.Info("session recorded",
		"session", sessionID.String(),
		"observations", sum.Observations,
		"distinct_emotions", sum.Distinct)
}
