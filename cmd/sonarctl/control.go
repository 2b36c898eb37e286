package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	grpcapi "github.com/pedrobernardi/sonara-meet-transcriber/internal/api/grpc"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/replay"
)

type stateCall func(*grpcapi.Client, context.Context) (models.State, error)

func newControlCmd(opts *rootOptions, use, short string, call stateCall) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(func(c *grpcapi.Client) error {
				ctx, cancel := opts.callContext(cmd.Context())
				defer cancel()
				state, err := call(c, ctx)
				if err != nil {
					return fmt.Errorf("%s: %w", use, err)
				}
				printSummary(cmd.OutOrStdout(), state)
				return nil
			})
		},
	}
}

func newStateCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the current transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(func(c *grpcapi.Client) error {
				ctx, cancel := opts.callContext(cmd.Context())
				defer cancel()
				state, err := c.GetState(ctx)
				if err != nil {
					return fmt.Errorf("state: %w", err)
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(state)
				}
				printSummary(cmd.OutOrStdout(), state)
				fmt.Fprint(cmd.OutOrStdout(), replay.Format(state.Transcript, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw state as JSON")
	return cmd
}

func printSummary(w io.Writer, s models.State) {
	start := "-"
	if s.MeetingStartTime != nil {
		start = *s.MeetingStartTime
	}
	fmt.Fprintf(w, "meeting %s  recording=%t  started=%s  entries=%d\n",
		s.MeetingID, s.IsRecording, start, len(s.Transcript))
}
