package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	route "github.com/bassista/notesync/internal/api/route"
	appctx "github.com/bassista/notesync/internal/app"
	"github.com/bassista/notesync/internal/editor"
	"github.com/bassista/notesync/internal/httpserver"
	"github.com/bassista/notesync/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newRunCmd(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon and its control API",
		Long: `Run the sync daemon. The working copy of the open note lives under the
workspace directory; edits to it are saved to the notes service after a short
pause, backed up locally while offline, and offered for recovery on reopen.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			open, _ := cmd.Flags().GetString("open")
			return runDaemon(d, open)
		},
	}
	cmd.Flags().String("open", "", "Note to open on start")
	return cmd
}

func runDaemon(d *deps, open string) error {
	log := logger.WithComponent("main")

	// the app's backup store owns the repository from here on
	ed, err := editor.NewFileEditor(d.cfg.Control.WorkspaceDir)
	if err != nil {
		_ = d.repo.Close()
		return fmt.Errorf("cannot init workspace: %w", err)
	}
	app, err := appctx.New(d.cfg, d.repo, d.client, ed, nil)
	if err != nil {
		_ = d.repo.Close()
		return fmt.Errorf("cannot init app: %w", err)
	}
	defer func() {
		if err := app.Shutdown(context.Background()); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}()

	if err := app.StartWatchers(); err != nil {
		return err
	}

	if open != "" {
		conflict, err := app.Workspace.Open(app.BaseCtx, open)
		if err != nil {
			return fmt.Errorf("cannot open %s: %w", open, err)
		}
		if conflict != nil {
			log.Warnf("%s has an unsaved local backup (+%d/-%d chars), resolve it via POST /api/recovery/resolve",
				conflict.Path, conflict.Diff.Inserted, conflict.Diff.Deleted)
		}
		log.Infof("editing %s", ed.File())
	}

	httpserver.ConfigureGin(d.cfg.Misc.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	route.SetupSyncRoutes(r, app)

	log.Infof("Control API will run on port: %d", d.cfg.Control.Port)
	srv := httpserver.New(app.BaseCtx, "control", d.cfg.Server, r)
	if err := srv.ListenAndServe(fmt.Sprintf("127.0.0.1:%d", d.cfg.Control.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
