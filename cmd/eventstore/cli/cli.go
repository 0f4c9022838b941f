// Package cli implements the "eventstore" command tree: a thin driver
// over the storage engine for local append/read/backup operations. It
// never opens a network listener except for the metrics endpoint; it
// drives the engine in-process, the same way a test would.
package cli

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"eventstore/internal/engine"
	"eventstore/internal/store"
)

// NewRootCommand returns the "eventstore" command with every subcommand
// wired in.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eventstore",
		Short: "Append-only event store",
		Long:  "Append batches of opaque payloads to named streams and read them back, backed by an integrity-checked chunked log on disk.",
	}

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	cmd.PersistentFlags().String("dir", "chunks", "chunk directory to use when --store is not given")
	cmd.PersistentFlags().String("base", "stores", "base directory for multi-store commands")
	cmd.PersistentFlags().String("store", "", "uuid or alias of a registered store; overrides --dir for append/read/backup export")

	cmd.AddCommand(
		newAppendCmd(),
		newReadCmd(),
		newStoresCmd(),
		newBackupCmd(),
		newMetricsServeCmd(),
	)

	return cmd
}

func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// openEngine opens the engine an append/read command should operate on:
// the registered store named by --store if set, otherwise the bare
// --dir directory. The returned close func must be called when done.
func openEngine(cmd *cobra.Command) (*engine.Engine, func() error, error) {
	storeRef, _ := cmd.Flags().GetString("store")
	if storeRef == "" {
		dir, _ := cmd.Flags().GetString("dir")
		e, err := engine.New(engine.Config{Dir: dir, Logger: logger()})
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil
	}

	base, _ := cmd.Flags().GetString("base")
	r, err := store.New(base, nil, logger(), nil)
	if err != nil {
		return nil, nil, err
	}
	entry, err := r.Resolve(storeRef)
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	return entry.Engine, r.Close, nil
}

// resolveChunkDir returns the on-disk chunk directory a backup command
// should read from: the registered store named by --store if set,
// otherwise the bare --dir directory.
func resolveChunkDir(cmd *cobra.Command) (string, error) {
	storeRef, _ := cmd.Flags().GetString("store")
	if storeRef == "" {
		dir, _ := cmd.Flags().GetString("dir")
		return dir, nil
	}

	base, _ := cmd.Flags().GetString("base")
	r, err := store.New(base, nil, logger(), nil)
	if err != nil {
		return "", err
	}
	defer r.Close()

	entry, err := r.Resolve(storeRef)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, entry.ID.String(), "chunks"), nil
}
