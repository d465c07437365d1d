package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/bassista/notesync/internal/backup"
	"github.com/spf13/cobra"
)

func newBackupsCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List local backups of unsaved notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return d.withStore(cmd, func(store *backup.Store) error {
				records, err := store.List(commandContext(cmd))
				if err != nil {
					return fmt.Errorf("list backups: %w", err)
				}
				return printBackups(cmd, records)
			})
		},
	}
}

func printBackups(cmd *cobra.Command, records []backup.Record) error {
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "no local backups")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tCAPTURED\tSIZE")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\n", rec.Path, rec.Time().Local().Format(time.DateTime), len(rec.Content))
	}
	return w.Flush()
}
