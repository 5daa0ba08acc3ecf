package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/session"
	"github.com/Zachkp/portfolio/internal/store"
	"github.com/Zachkp/portfolio/internal/tui"
)

// introRunner holds what the intro command needs from the terminal: the
// per-terminal gate and the player.
type introRunner struct {
	gate func(logrus.FieldLogger) session.Gate
	play func(context.Context, tui.RunOptions) (bool, error)
}

func newIntroCmd() *cobra.Command {
	return introRunner{
		gate: func(logger logrus.FieldLogger) session.Gate { return session.TerminalGate(logger) },
		play: tui.Run,
	}.command()
}

func (ir introRunner) command() *cobra.Command {
	var replay, mute bool
	var logFile string

	cmd := &cobra.Command{
		Use:   "intro",
		Short: "Play the terminal intro",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := cfg.Logger()
			// the TUI owns the terminal; logs go to a file or nowhere
			logger.SetOutput(io.Discard)
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logger.SetOutput(f)
			}

			site, err := content.Load()
			if err != nil {
				return err
			}

			gate := ir.gate(logger)
			if replay {
				gate.Reset()
			}
			if gate.HasPlayed() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "intro already played in this terminal session (use --replay)")
				return nil
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			revealOpts := site.Intro.Options()
			revealOpts.AudioEnabled = !mute
			revealOpts.Logger = logger

			skipped, err := ir.play(ctx, tui.RunOptions{
				Title:  fmt.Sprintf("~/%s · %s", site.Profile.Name, site.Profile.Title),
				Blocks: site.Intro.Script(),
				Reveal: revealOpts,
				Bell:   os.Stderr,
			})
			if err != nil {
				return err
			}
			gate.MarkPlayed()
			recordTerminalPlay(ctx, cfg, skipped, logger)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replay, "replay", false, "play even if already shown in this terminal session")
	cmd.Flags().BoolVar(&mute, "mute", false, "start with audio cues off")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")
	return cmd
}

// recordTerminalPlay is best-effort; a missing or locked database only logs.
func recordTerminalPlay(ctx context.Context, cfg config.Config, skipped bool, logger logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	st, err := store.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.WithError(err).Warn("intro play not recorded")
		return
	}
	defer st.Close()
	outcome := store.IntroCompleted
	if skipped {
		outcome = store.IntroSkipped
	}
	if err := st.RecordIntroPlay(ctx, outcome, store.SourceTerminal); err != nil {
		logger.WithError(err).Warn("intro play not recorded")
	}
}
