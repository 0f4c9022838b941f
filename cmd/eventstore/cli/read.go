package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"eventstore/internal/reader"
)

// channelSink is a bounded asynchronous queue sink: Send blocks once the
// channel is full, modeling the suspension point the reader's
// cooperative scheduling design expects at each emit. A drained
// consumer goroutine prints each envelope as it arrives.
type channelSink struct {
	ch chan reader.Envelope
}

func newChannelSink(capacity int) *channelSink {
	return &channelSink{ch: make(chan reader.Envelope, capacity)}
}

func (s *channelSink) Send(ctx context.Context, env reader.Envelope) error {
	select {
	case s.ch <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *channelSink) close() { close(s.ch) }

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <stream>",
		Short: "Stream a stream's events from a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetUint64("from")
			streamName := args[0]

			e, closeFn, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			sink := newChannelSink(16)

			readErrCh := make(chan error, 1)
			go func() {
				readErrCh <- e.ReadStream(ctx, streamName, from, sink)
				sink.close()
			}()

			out := cmd.OutOrStdout()
			for env := range sink.ch {
				fmt.Fprintf(out, "%d\t%s\n", env.StreamPosition, env.Event)
			}

			return <-readErrCh
		},
	}
	cmd.Flags().Uint64("from", 0, "stream position to start reading from")
	return cmd
}
