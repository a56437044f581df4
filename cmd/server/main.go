package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/terrainkit/internal/auth"
	"github.com/freeeve/terrainkit/internal/config"
	"github.com/freeeve/terrainkit/internal/handler"
	"github.com/freeeve/terrainkit/internal/logger"
	"github.com/freeeve/terrainkit/internal/service"
	"github.com/freeeve/terrainkit/internal/store"
	"github.com/freeeve/terrainkit/pkg/terrain"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log.Info().Str("store", cfg.Store).Str("mapsDir", cfg.MapsDir).Msg("Config loaded")

	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Tuning file invalid")
	}

	// Artifact store
	artifacts, closeStore, err := store.Open(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Store connection failed")
	}
	defer closeStore()

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)

	// WebSocket hub
	wsHub := handler.NewHub()

	// Services
	mapSvc := service.NewMapService(artifacts, tuning, wsHub)

	// Handlers
	root := handler.NewRouter(
		handler.NewMapHandler(mapSvc),
		handler.NewAuthHandler(jwtMgr),
		handler.NewWSHandler(wsHub, mapSvc, jwtMgr),
		jwtMgr,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // analysis of a large map blocks the request
		IdleTimeout:  60 * time.Second,
	}

	// Analyze the bundled maps before accepting queries
	preloadMaps(context.Background(), mapSvc, cfg.MapsDir)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}

// preloadMaps opens every *.yaml map in dir and returns how many opened.
// Failures are logged and skipped.
func preloadMaps(ctx context.Context, mapSvc *service.MapService, dir string) int {
	paths, _ := filepath.Glob(filepath.Join(dir, "*.yaml"))
	opened := 0
	for _, path := range paths {
		mf, err := terrain.LoadFile(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Skipping unreadable map")
			continue
		}
		info, err := mapSvc.Open(ctx, mf)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Map analysis failed (non-fatal)")
			continue
		}
		log.Info().Str("map", info.ID).Int("regions", info.Regions).Bool("restored", info.Restored).Msg("Map preloaded")
		opened++
	}
	return opened
}
