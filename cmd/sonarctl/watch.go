package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpcapi "github.com/pedrobernardi/sonara-meet-transcriber/internal/api/grpc"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream change notifications until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return opts.withClient(func(c *grpcapi.Client) error {
				err := c.Watch(cmd.Context(), func(n models.Notification) error {
					if asJSON {
						return json.NewEncoder(out).Encode(n)
					}
					line := fmt.Sprintf("#%d %s", n.Sequence, n.EventType)
					if n.IsRecording != nil {
						line += fmt.Sprintf(" recording=%t", *n.IsRecording)
					}
					if n.EventType != models.EventRecordingStatusChanged {
						line += fmt.Sprintf(" entries=%d", len(n.Transcript))
						if len(n.Transcript) > 0 {
							last := n.Transcript[len(n.Transcript)-1]
							line += fmt.Sprintf(" last=%q", last.Speaker+": "+last.Text)
						}
					}
					_, err := fmt.Fprintln(out, line)
					return err
				})
				if errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print notifications as JSON lines")
	return cmd
}
