package main

import (
	"context"
	"fmt"
	"io"

	"github.com/bassista/notesync/internal/backup"
	"github.com/bassista/notesync/internal/config"
	"github.com/bassista/notesync/internal/logger"
	"github.com/bassista/notesync/internal/remote"
	"github.com/spf13/cobra"
)

// deps are built once per invocation by the root command and shared by subcommands.
// The backup repository is not in closers: the backup.Store wrapping it owns it.
type deps struct {
	cfg     *config.Config
	repo    backup.Repository
	client  remote.Client
	closers []io.Closer
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i].Close()
	}
}

// withStore runs fn against a backup store over the repository and closes it,
// which also closes the repository.
func (d *deps) withStore(cmd *cobra.Command, fn func(*backup.Store) error) error {
	store := backup.NewStore(d.repo, nil, backup.DefaultDebounce)
	err := fn(store)
	if closeErr := store.Close(context.WithoutCancel(commandContext(cmd))); closeErr != nil {
		logger.WithComponent("cli").Warnf("close backups: %v", closeErr)
	}
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newRootCmd() *cobra.Command {
	d := &deps{}

	root := &cobra.Command{
		Use:          "notesync",
		Short:        "Local-first sync client for the notes service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				cfg.Misc.LogLevel = lvl
			}
			if err := logger.SetLevel(cfg.Misc.LogLevel); err != nil {
				logger.WithComponent("cli").Warnf("invalid log level '%s': %v", cfg.Misc.LogLevel, err)
			}
			if closer := logger.EnableFileOutput(cfg.Misc.LogFile, 10, 3); closer != nil {
				d.closers = append(d.closers, closer)
			}
			if url, _ := cmd.Flags().GetString("remote"); url != "" {
				cfg.Remote.BaseURL = url
			}

			repo, err := backup.NewRepositoryFromConfig(cfg.Backup)
			if err != nil {
				return fmt.Errorf("cannot init backup repository: %w", err)
			}
			d.cfg = cfg
			d.repo = repo
			d.client = remote.NewHTTPClient(cfg.Remote.BaseURL, cfg.Remote.Token, nil)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			d.close()
		},
	}
	root.PersistentFlags().String("log-level", "", "Override the configured log level")
	root.PersistentFlags().String("remote", "", "Override the notes service base URL")

	root.AddCommand(newRunCmd(d), newBackupsCmd(d), newResolveCmd(d))
	return root
}
