package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshuakim/oddsalign/internal/alerts"
	"github.com/joshuakim/oddsalign/internal/api"
	"github.com/joshuakim/oddsalign/internal/build"
	"github.com/joshuakim/oddsalign/internal/config"
	"github.com/joshuakim/oddsalign/internal/database"
	"github.com/joshuakim/oddsalign/internal/logging"
	"github.com/joshuakim/oddsalign/internal/metrics"
	"github.com/joshuakim/oddsalign/internal/notifications"
	"github.com/joshuakim/oddsalign/internal/oddsfeed"
	"github.com/joshuakim/oddsalign/internal/polling"
	"github.com/joshuakim/oddsalign/internal/resolve"
	"github.com/joshuakim/oddsalign/internal/statsfeed"
	"github.com/joshuakim/oddsalign/internal/store"
	"github.com/joshuakim/oddsalign/internal/websocket"
)

func main() {
	genKeys := flag.Bool("gen-vapid-keys", false, "generate a VAPID key pair and exit")
	flag.Parse()

	if *genKeys {
		notifications.PrintVAPIDKeys()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)

	aliasTable, err := resolve.LoadAliasTable(cfg.AliasPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load alias table")
	}

	db, err := database.New(cfg.DBPath, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	// Core pipeline
	resolver := resolve.NewResolver(aliasTable)
	statsClient := statsfeed.NewClient(log)
	oddsClient := oddsfeed.NewClient(cfg.OddsAPIKey, log)
	builder := build.New(statsClient, oddsClient, resolver, log)

	// Supporting services
	m := metrics.New()
	dataStore := store.New()
	hub := websocket.NewHub(m, log, 0)
	go hub.Run()

	detector := alerts.NewDetector(db, log)
	if prefs, err := db.GetPreferences(); err == nil {
		detector.UpdateThresholds(alerts.Thresholds{
			Total:  prefs.ThresholdTotal,
			Spread: prefs.ThresholdSpread,
		})
	}

	notifier := notifications.NewService(notifications.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		VAPIDSubject:    cfg.VAPIDSubject,
		Enabled:         true,
	}, db, hub, log)

	pollCfg := polling.DefaultConfig()
	pollCfg.Enabled = cfg.PollingEnabled
	pollCfg.Interval = cfg.PollInterval
	pollCfg.Leagues = cfg.Leagues
	poller := polling.NewService(pollCfg, builder, dataStore, db, hub, m, log)
	poller.SetAlertDetector(detector, notifier.QueueAlerts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go poller.Start(ctx)
	go notifier.Start(ctx)

	// HTTP surface
	handler := api.NewHandler(dataStore, db, poller, m)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, w, r)
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.CORSMiddleware(mux),
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		server.Shutdown(context.Background())
	}()

	log.WithField("port", cfg.Port).Info("oddsalign API starting")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server failed")
	}
}
