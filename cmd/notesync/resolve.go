package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/bassista/notesync/internal/backup"
	"github.com/bassista/notesync/internal/engine"
	"github.com/bassista/notesync/internal/logger"
	"github.com/bassista/notesync/internal/notes"
	"github.com/bassista/notesync/internal/remote"
	"github.com/containerd/errdefs"
	"github.com/spf13/cobra"
)

func newResolveCmd(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <path>",
		Short: "Resolve a local backup against the server copy without the daemon",
		Long: `Compare the local backup of a note with the server copy.
With --keep=backup the backup is uploaded; with --keep=server it is discarded.
Without --keep only the difference is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keep, _ := cmd.Flags().GetString("keep")
			return d.withStore(cmd, func(store *backup.Store) error {
				return resolveBackup(cmd, store, d.client, args[0], engine.Source(keep))
			})
		},
	}
	cmd.Flags().String("keep", "", "Copy to keep: backup or server")
	return cmd
}

func resolveBackup(cmd *cobra.Command, store *backup.Store, client remote.Client, notePath string, keep engine.Source) error {
	ctx := commandContext(cmd)
	if keep != "" && keep != engine.SourceBackup && keep != engine.SourceServer {
		return errors.New("--keep must be backup or server")
	}
	clean, err := notes.CleanPath(notePath)
	if err != nil {
		return err
	}

	serverContent := ""
	note, err := client.Fetch(ctx, clean)
	switch {
	case err == nil:
		serverContent = note.Content
	case errdefs.IsNotFound(err):
	default:
		return fmt.Errorf("fetch %s: %w", clean, err)
	}

	rec, err := store.Check(ctx, clean, serverContent)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if rec == nil {
		fmt.Fprintf(out, "%s: nothing to recover\n", clean)
		return nil
	}

	switch keep {
	case "":
		sum := engine.Summarize(serverContent, rec.Content)
		fmt.Fprintf(out, "%s: backup from %s differs from the server (+%d/-%d chars)\n%s\n",
			clean, rec.Time().Local().Format(time.DateTime), sum.Inserted, sum.Deleted, sum.Pretty)
		return nil
	case engine.SourceBackup:
		if err := client.Patch(ctx, clean, rec.Content); err != nil {
			return fmt.Errorf("upload backup %s: %w", clean, err)
		}
	}

	if err := store.Clear(ctx, clean); err != nil {
		return fmt.Errorf("clear backup %s: %w", clean, err)
	}
	logger.WithDocument("cli", clean).Infof("kept %s copy", keep)
	fmt.Fprintf(out, "%s: kept %s copy\n", clean, keep)
	return nil
}
