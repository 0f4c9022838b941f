package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"eventstore/internal/backup"
	"eventstore/internal/chunk"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export and inspect zstd-compressed chunk archives",
	}
	cmd.AddCommand(newBackupExportCmd(), newBackupListCmd())
	return cmd
}

func newBackupExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <archive>",
		Short: "Compress every sealed chunk into an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveChunkDir(cmd)
			if err != nil {
				return err
			}
			archivePath := args[0]

			ids, err := chunk.ListIDs(dir)
			if err != nil {
				return err
			}
			var activeID uint32
			if len(ids) > 0 {
				activeID = ids[len(ids)-1]
			}

			entries, err := backup.Export(archivePath, dir, activeID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d chunk(s) to %s\n", len(entries), archivePath)
			return nil
		},
	}
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <archive>",
		Short: "List the chunks recorded in an archive's manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := backup.List(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s\t%s\t%s\n",
					strconv.FormatUint(uint64(e.ChunkID), 10),
					strconv.FormatUint(e.OriginalSize, 10),
					strconv.FormatUint(e.CompressedSize, 10))
			}
			return nil
		},
	}
}
