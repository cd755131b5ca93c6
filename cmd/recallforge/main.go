package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/recallforge/recallforge/internal/config"
	"github.com/recallforge/recallforge/internal/importer"
	"github.com/recallforge/recallforge/internal/progress"
	"github.com/recallforge/recallforge/internal/review"
	"github.com/recallforge/recallforge/internal/storage"
	"github.com/recallforge/recallforge/internal/web"
)

func main() {
	flags := config.Flags()
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	params, err := cfg.SchedulerParams()
	if err != nil {
		slog.Error("invalid scheduler configuration", "error", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DB.Path)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DB.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DB.Path)

	imp := importer.New(db, cfg.Import.ReposDir)
	if err := imp.SyncAll(context.Background()); err != nil {
		slog.Warn("initial deck sync failed", "error", err)
	}

	server := web.NewServer(
		db,
		review.NewService(db, params),
		progress.NewService(db, params),
		imp,
		cfg.HTTP.CORSOrigins,
	)

	slog.Info("starting server", "addr", cfg.HTTP.Addr)
	if err := http.ListenAndServe(cfg.HTTP.Addr, server); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
