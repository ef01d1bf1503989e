package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/cardscan/internal/config"
	"github.com/MeKo-Tech/cardscan/internal/server"
	"github.com/MeKo-Tech/cardscan/internal/version"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for card reading",
	Long: `Start an HTTP server for capture clients.

The server provides the following endpoints:
  POST /scan     - Read one uploaded frame
  POST /burst    - Vote across uploaded frames
  GET  /ws/scan  - Stream frames over a WebSocket and vote incrementally
  GET  /health   - Health check endpoint
  GET  /models   - List available models
  GET  /metrics  - Prometheus metrics

Examples:
  cardscan serve
  cardscan serve --port 8080
  cardscan serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "host to bind to")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origin")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("max-burst-frames", 30, "maximum frames per burst request or WebSocket burst")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "graceful shutdown timeout in seconds")
	serveCmd.Flags().Bool("strict", true, "report only valid card numbers unless a request overrides it")
	serveCmd.Flags().Bool("overlay-enable", true, "allow overlay image responses")
	serveCmd.Flags().String("overlay-color", "#FF0000", "overlay box color")

	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable per-client rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 120, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 3000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 20000, "maximum requests per day per client (0 = unlimited)")
	serveCmd.Flags().Int64("max-data-per-day", 2<<30, "maximum upload bytes per day per client (0 = unlimited)")

	bindOnRun(serveCmd, []flagBinding{
		{"server.host", "host"},
		{"server.port", "port"},
		{"server.cors_origin", "cors-origin"},
		{"server.max_upload_mb", "max-upload-size"},
		{"server.max_burst_frames", "max-burst-frames"},
		{"server.timeout_sec", "timeout"},
		{"server.shutdown_timeout", "shutdown-timeout"},
		{"assembler.strict", "strict"},
		{"server.overlay_enabled", "overlay-enable"},
		{"output.overlay_color", "overlay-color"},
		{"server.rate_limit.enabled", "rate-limit-enabled"},
		{"server.rate_limit.requests_per_minute", "requests-per-minute"},
		{"server.rate_limit.requests_per_hour", "requests-per-hour"},
		{"server.rate_limit.max_requests_per_day", "max-requests-per-day"},
		{"server.rate_limit.max_data_per_day", "max-data-per-day"},
	})
}

// buildServerConfig maps the application configuration onto the server.
func buildServerConfig(cfg *config.Config) (server.Config, error) {
	if err := cfg.Validate(); err != nil {
		return server.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	overlayColor, err := config.ParseHexColor(cfg.Output.OverlayColor)
	if err != nil {
		return server.Config{}, err
	}

	rl := cfg.Server.RateLimit
	return server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigin:     cfg.Server.CORSOrigin,
		MaxUploadMB:    int64(cfg.Server.MaxUploadMB),
		MaxBurstFrames: cfg.Server.MaxBurstFrames,
		TimeoutSec:     cfg.Server.TimeoutSec,
		Strict:         cfg.Assembler.Strict,
		OverlayEnabled: cfg.Server.OverlayEnabled,
		OverlayColor:   overlayColor,
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			MaxRequestsPerDay: rl.MaxRequestsPerDay,
			MaxDataPerDay:     rl.MaxDataPerDay,
		},
		PipelineConfig: cfg.ToPipelineConfig(),
		ModelFactory:   modelFactory,
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	serverConfig, err := buildServerConfig(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	scanServer, err := server.NewServer(serverConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer func() { _ = scanServer.Close() }()

	mux := http.NewServeMux()
	scanServer.SetupRoutes(mux)

	timeout := time.Duration(serverConfig.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", serverConfig.Host, serverConfig.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	go func() {
		slog.Info("Starting card scan server", "host", serverConfig.Host, "port", serverConfig.Port, "version", version.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Server context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	slog.Info("Shutting down server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
