package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/replay"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/engine"
)

type replayOptions struct {
	start         string
	timezone      string
	bufferWindow  time.Duration
	consolidation time.Duration
	asJSON        bool
}

func newReplayCmd() *cobra.Command {
	opts := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay <captions.jsonl>",
		Short: "Run a recorded caption log through the engine offline",
		Long: `Replays a JSON Lines caption log ({"offsetMs":0,"speaker":"...","text":"..."} per
line) through a fresh engine on a simulated clock and prints the final
transcript. Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.InOrStdin(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.start, "start", "", "recording start time (RFC3339), default the Unix epoch")
	cmd.Flags().StringVar(&opts.timezone, "tz", "UTC", "time zone for printed timestamps")
	cmd.Flags().DurationVar(&opts.bufferWindow, "buffer-window", 0, "override the buffer window")
	cmd.Flags().DurationVar(&opts.consolidation, "consolidation-interval", 0, "override the consolidation interval")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the final state as JSON")
	return cmd
}

func runReplay(stdin io.Reader, out io.Writer, path string, opts *replayOptions) error {
	in := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	events, err := replay.Parse(in)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return fmt.Errorf("time zone: %w", err)
	}
	var start time.Time
	if opts.start != "" {
		if start, err = time.Parse(time.RFC3339, opts.start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}

	state := replay.Run(events, replay.Options{
		Start: start,
		Engine: engine.Config{
			BufferWindow:          opts.bufferWindow,
			ConsolidationInterval: opts.consolidation,
		},
	})

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}
	_, err = fmt.Fprint(out, replay.Format(state.Transcript, loc))
	return err
}
