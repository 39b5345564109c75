// Package server implements the HTTP API server command.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	api "github.com/TheCacophonyProject/Full-Noise/internal/api/v1"
	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/datastore"
	"github.com/TheCacophonyProject/Full-Noise/internal/observability"
	"github.com/TheCacophonyProject/Full-Noise/internal/observability/metrics"
)

// Command creates the server command, which serves the visit API over HTTP.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the visit query HTTP API",
		Long:  "Serve the visit aggregation API, health check and Prometheus metrics over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}

	setupFlags(cmd, settings)

	return cmd
}

// setupFlags configures flags specific to the server command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the HTTP API")
	cobra.CheckErr(viper.BindPFlag("webserver.port", cmd.Flags().Lookup("port")))
}

func runServer(settings *conf.Settings) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	// A failed query log is not fatal; the store falls back to a
	// discard logger and keeps serving.
	if err := datastore.OpenQueryLog(""); err != nil {
		log.Printf("query log unavailable: %v", err)
	}
	defer func() { _ = datastore.CloseQueryLog() }()

	store := datastore.New(settings, m.Datastore)
	if store == nil {
		return fmt.Errorf("no output database enabled in configuration")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = store.Close() }()

	e := echo.New()
	e.HideBanner = true
	e.Debug = settings.WebServer.Debug
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	controller, err := api.New(e, store, settings, log.Default(), m)
	if err != nil {
		return fmt.Errorf("initializing API: %w", err)
	}
	defer controller.Shutdown()

	port := settings.WebServer.Port
	if port == "" {
		port = "8080"
	}

	errChan := make(chan error, 1)
	go func() {
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	log.Printf("HTTP server started on port %s", port)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Printf("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metrics.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
