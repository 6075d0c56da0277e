package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"blueprint-annotator/internal/annotator/handlers"
	"blueprint-annotator/internal/annotator/pagecache"
	"blueprint-annotator/internal/annotator/repository"
	"blueprint-annotator/internal/annotator/service"
	"blueprint-annotator/internal/common/config"
	"blueprint-annotator/internal/common/middleware"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// Blueprint Annotator Service
// ============================================================

func main() {
	cfg := config.Load()

	db, err := repository.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	repo := repository.New(db)
	if err := repo.Init(context.Background(), cfg.MigrationsPath); err != nil {
		log.Fatalf("init db: %v", err)
	}

	fetchTimeout := time.Duration(cfg.FetchTimeout) * time.Second
	cache := pagecache.New(&pagecache.MultiFetcher{
		Remote: pagecache.NewHTTPFetcher(fetchTimeout),
		Local:  pagecache.NewFileFetcher(cfg.BlueprintRoot),
	}, cfg.DocumentAspectRatio)
	fileStorage := service.NewFileStorage(cfg.BlueprintRoot)
	sessions := service.NewManager(cache, cfg.DocumentAspectRatio, time.Duration(cfg.SessionTTLMinutes)*time.Minute)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:    pagecache.MaxSourceSize + 1<<20,
		AppName:      "Blueprint Annotator",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger())
	if cfg.CORSEnabled {
		app.Use(middleware.CORS())
	}

	handlers.Register(app, handlers.Handlers{
		Repo:        repo,
		Pages:       handlers.NewPageHandler(repo, cache, fileStorage, fetchTimeout),
		Annotations: handlers.NewAnnotationHandler(repo, cache, cfg.DocumentAspectRatio, fetchTimeout),
		Sessions:    handlers.NewSessionHandler(sessions, repo, fetchTimeout),
	})

	// ============================================================
	// Session Sweeper
	// ============================================================

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			sessions.Sweep()
		}
	}()

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Starting Blueprint Annotator on %s (env: %s)", addr, cfg.Environment)
	log.Printf("Blueprint root: %s", cfg.BlueprintRoot)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
