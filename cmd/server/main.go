package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	route "github.com/bassista/notesync/internal/api/route"
	"github.com/bassista/notesync/internal/config"
	"github.com/bassista/notesync/internal/httpserver"
	"github.com/bassista/notesync/internal/logger"
	"github.com/bassista/notesync/internal/notes"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}

	if err := logger.SetLevel(cfg.Misc.LogLevel); err != nil {
		logger.WithComponent("main").Warnf("invalid log level '%s', using '%s': %v", cfg.Misc.LogLevel, logger.Logger.GetLevel(), err)
	}
	if closer := logger.EnableFileOutput(cfg.Misc.LogFile, 10, 3); closer != nil {
		defer closer.Close()
	}
	logger.WithComponent("main").Infof("Notes service will run on port: %d, storing notes in %s", cfg.Server.Port, cfg.Notes.Dir)

	r, err := newNotesEngine(cfg)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init notes storage: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httpserver.New(ctx, "notes", cfg.Server, r)
	if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithComponent("main").Fatal(err)
	}
}

func newNotesEngine(cfg *config.Config) (*gin.Engine, error) {
	repo, err := notes.NewFileRepository(cfg.Notes.Dir)
	if err != nil {
		return nil, err
	}
	httpserver.ConfigureGin(cfg.Misc.GinMode)

	r := gin.New()
	r.Use(gin.Recovery())
	return route.SetupNotesRoutes(r, cfg.Server, repo), nil
}
