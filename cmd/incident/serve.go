package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/incident.report/internal/api"
	"github.com/banshee-data/incident.report/internal/config"
	"github.com/banshee-data/incident.report/internal/db"
	"github.com/banshee-data/incident.report/internal/events"
	"github.com/banshee-data/incident.report/internal/monitoring"
	"github.com/banshee-data/incident.report/internal/version"
)

const shutdownTimeout = 10 * time.Second

var noGRPC bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the case API, admin routes and gRPC health checks",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&noGRPC, "no-grpc", false, "do not start the gRPC health service")
}

// newPublisher returns a Kafka publisher when brokers are configured.
func newPublisher(cfg *config.Config) (events.Publisher, error) {
	brokers := cfg.GetKafkaBrokers()
	if len(brokers) == 0 {
		return events.NoopPublisher{}, nil
	}
	p, err := events.NewKafkaPublisher(strings.Join(brokers, ","), cfg.GetKafkaTopic())
	if err != nil {
		return nil, err
	}
	monitoring.Logf("[Main] publishing case events to %s on %s", cfg.GetKafkaTopic(), strings.Join(brokers, ","))
	return p, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flush, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer flush()
	monitoring.Logf("[Main] incident %s", version.String())

	store, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	eng, pipeline, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	srv := api.NewServer(api.Options{
		Images:         eng,
		Videos:         pipeline,
		Store:          store,
		Events:         publisher,
		StorageDir:     cfg.GetStorageDir(),
		MaxUploadBytes: cfg.GetMaxUploadBytes(),
	})
	mux := srv.ServeMux()
	if err := store.AttachAdminRoutes(mux); err != nil {
		return fmt.Errorf("failed to attach admin routes: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var health *api.HealthServer
	if !noGRPC {
		health = api.NewHealthServer(store, 0)
		if err := health.Start(cfg.GetGRPCAddr()); err != nil {
			return err
		}
		defer health.Stop()
	}

	server := &http.Server{
		Addr:              cfg.GetListenAddr(),
		Handler:           srv.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitoring.Logf("[Main] HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	monitoring.Logf("[Main] shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Warnf("[Main] HTTP server shutdown error: %v", err)
	}
	wg.Wait()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	default:
		monitoring.Logf("[Main] graceful shutdown complete")
		return nil
	}
}
