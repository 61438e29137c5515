package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/config"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/database"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/extract"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/handlers"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/mapping"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/metrics"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/natsingest"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/writer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.LogSummary()

	// --- Mapping ---
	mappingCfg, err := mapping.LoadFile(cfg.MappingFile)
	if err != nil {
		log.Fatalf("Failed to load mapping: %v", err)
	}
	registry, err := mapping.NewRegistry(mappingCfg, cfg.Target.TimeColumn)
	if err != nil {
		log.Fatalf("Invalid mapping: %v", err)
	}

	// --- Metrics ---
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewProm(promRegistry)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	// --- Database ---
	db, err := database.Open(context.Background(), database.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	monitor := database.NewMonitor(db, recorder, cfg.Database.ConnectTimeout)
	if err := monitor.Start(cfg.Database.HealthCheckSchedule); err != nil {
		log.Fatalf("Failed to start health check: %v", err)
	}
	defer monitor.Stop(15 * time.Second)

	// --- Pipeline ---
	pgWriter, err := writer.NewPostgresWriter(db, cfg.Target.Table, cfg.Target.TimeColumn, cfg.Target.WriteTimeout)
	if err != nil {
		log.Fatalf("Failed to create writer: %v", err)
	}
	processor := extract.NewProcessor(registry, pgWriter, !cfg.Target.DisableTryParse, recorder)

	// --- NATS (optional) ---
	if cfg.NATS.URL != "" {
		nc, err := natsingest.Connect(cfg.NATS.URL)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer nc.Close()

		subscriber := natsingest.NewSubscriber(processor, recorder)
		if err := subscriber.Start(nc, cfg.NATS.Subject, cfg.NATS.Queue); err != nil {
			log.Fatalf("%v", err)
		}
		defer func() {
			if err := subscriber.Stop(); err != nil {
				log.Printf("Error draining NATS subscription: %v", err)
			}
		}()
	}

	// --- HTTP Server Setup ---
	opts := handlers.Options{
		Auth:               cfg.Auth,
		MaxJSONPayloadSize: cfg.MaxJSONPayloadSize,
		Gatherer:           promRegistry,
		Recorder:           recorder,
	}
	router := handlers.NewRouter(handlers.NewHandler(processor, monitor, opts), opts)

	srv := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting PostgreSQL pusher on %s", cfg.BindAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
