package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	grpcapi "github.com/pedrobernardi/sonara-meet-transcriber/internal/api/grpc"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/logging"
)

type rootOptions struct {
	addr     string
	timeout  time.Duration
	logLevel string
}

// newRootCmd creates the root command for sonarctl.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "sonarctl",
		Short:         "Control and inspect the Sonara meeting transcriber",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(logging.Config{Level: opts.logLevel, Format: "console"})
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.addr, "addr", "localhost:50051", "transcriber gRPC address")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "timeout for unary calls")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newFeedCmd(opts))
	rootCmd.AddCommand(newWatchCmd(opts))
	rootCmd.AddCommand(newStateCmd(opts))
	rootCmd.AddCommand(newControlCmd(opts, "start", "Start recording", (*grpcapi.Client).StartRecording))
	rootCmd.AddCommand(newControlCmd(opts, "stop", "Stop recording and flush buffered captions", (*grpcapi.Client).StopRecording))
	rootCmd.AddCommand(newControlCmd(opts, "clear", "Clear the transcript", (*grpcapi.Client).ClearTranscript))

	return rootCmd
}

// withClient dials the service and runs fn.
func (o *rootOptions) withClient(fn func(*grpcapi.Client) error) error {
	client, err := grpcapi.Dial(o.addr)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (o *rootOptions) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, o.timeout)
}
