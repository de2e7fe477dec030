package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/palafeltre/matchcast/internal/config"
	"github.com/palafeltre/matchcast/internal/httpapi"
	"github.com/palafeltre/matchcast/internal/match"
	"github.com/palafeltre/matchcast/internal/rooms"
	"github.com/palafeltre/matchcast/internal/settings"
	"github.com/palafeltre/matchcast/internal/skating"
	"github.com/palafeltre/matchcast/internal/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Init(cfg.LogLevel)
	telemetry.Infof("Starting matchcast")

	// ── Venue defaults ──────────────────────────────────────────
	venue, err := config.LoadVenue(cfg.VenuePath)
	if err != nil {
		telemetry.Warnf("Venue config: %v, using built-in defaults", err)
		venue = config.DefaultVenue()
	}

	periodSec, err := match.ParseClock(venue.Defaults.PeriodDuration)
	if err != nil {
		telemetry.Errorf("Venue period duration: %v", err)
		os.Exit(1)
	}
	intervalSec, err := match.ParseClock(venue.Defaults.IntervalDuration)
	if err != nil {
		telemetry.Errorf("Venue interval duration: %v", err)
		os.Exit(1)
	}

	// ── Settings / audit store ──────────────────────────────────
	store, err := settings.Open(cfg.StorePath)
	if err != nil {
		telemetry.Errorf("Settings store: %v", err)
		os.Exit(1)
	}

	// ── Room registry ───────────────────────────────────────────
	registry := rooms.NewRegistry(venue.Rooms...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var bridge *rooms.Bridge
	if cfg.RedisAddr != "" {
		bridge = rooms.NewBridge(cfg.RedisAddr, cfg.RedisPassword, registry)
		registry.AttachBridge(bridge)
		go bridge.Run(ctx)
	}

	// ── Match controller & clock ────────────────────────────────
	controller := match.NewController(registry, match.Defaults{
		HomeName:        venue.Defaults.HomeName,
		AwayName:        venue.Defaults.AwayName,
		ColorHome:       venue.Defaults.ColorHome,
		ColorAway:       venue.Defaults.ColorAway,
		PeriodSeconds:   periodSec,
		IntervalSeconds: intervalSec,
		TimeoutSeconds:  venue.TimeoutSeconds,
	})
	go match.NewClock(controller).Run(ctx)

	// ── Skating cue scheduler ───────────────────────────────────
	go skating.NewScheduler(store, registry).Run(ctx)

	// ── HTTP server ─────────────────────────────────────────────
	if cfg.ControlToken == "" {
		telemetry.Warnf("CONTROL_TOKEN is empty, the command surface is OPEN")
	}

	mux := http.NewServeMux()
	rooms.NewHandler(registry).RegisterRoutes(mux)
	httpapi.NewHandler(controller, registry, store, cfg.ControlToken).RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Errorf("HTTP server: %v", err)
			os.Exit(1)
		}
	}()
	telemetry.Infof("Listening on %q (venue %s, rooms %v)", addr, venue.Name, venue.Rooms)

	// ── Shutdown ────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	telemetry.Infof("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	if bridge != nil {
		bridge.Close()
	}
	store.Close()

	telemetry.Infof("Shutdown complete  commands=%d  rejected=%d  ticks=%d  broadcasts=%d  sendFailures=%d",
		telemetry.Metrics.CommandsProcessed.Value(),
		telemetry.Metrics.CommandsRejected.Value(),
		telemetry.Metrics.ClockTicks.Value(),
		telemetry.Metrics.Broadcasts.Value(),
		telemetry.Metrics.SendFailures.Value(),
	)
}
