package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAppendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "append <stream> <payload>...",
		Short: "Append one or more payloads to a stream",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			streamName := args[0]
			payloads := args[1:]

			e, closeFn, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			nextID, err := e.Append(streamName, payloads)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "appended %d event(s); next id %d\n", len(payloads), nextID)
			return nil
		},
	}
}
