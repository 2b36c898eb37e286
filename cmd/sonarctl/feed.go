package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	grpcapi "github.com/pedrobernardi/sonara-meet-transcriber/internal/api/grpc"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/replay"
)

func newFeedCmd(opts *rootOptions) *cobra.Command {
	var speed float64
	cmd := &cobra.Command{
		Use:   "feed <captions.jsonl>",
		Short: "Push a recorded caption log to a running transcriber in real time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if speed <= 0 {
				return fmt.Errorf("speed must be positive, got %v", speed)
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			events, err := replay.Parse(f)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			sort.SliceStable(events, func(i, j int) bool { return events[i].OffsetMs < events[j].OffsetMs })

			return opts.withClient(func(c *grpcapi.Client) error {
				ctx := cmd.Context()
				began := time.Now()
				sent := 0
				for _, ev := range events {
					if strings.TrimSpace(ev.Text) == "" {
						continue
					}
					due := began.Add(time.Duration(float64(ev.OffsetMs)/speed) * time.Millisecond)
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(time.Until(due)):
					}

					callCtx, cancel := opts.callContext(ctx)
					err := c.PushFragment(callCtx, models.Fragment{Speaker: ev.Speaker, Text: ev.Text})
					cancel()
					if err != nil {
						return fmt.Errorf("push fragment at %dms: %w", ev.OffsetMs, err)
					}
					sent++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "fed %d fragments\n", sent)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 1, "playback speed multiplier")
	return cmd
}
