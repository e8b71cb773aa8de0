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

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/textspot/internal/config"
	"github.com/MeKo-Tech/textspot/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the text spotting API",
	Long: `Start an HTTP server that decodes network outputs and processes images.

The server provides the following endpoints:
  POST /v1/decode - Decode a JSON tensor dump (no models needed)
  POST /v1/image  - Process an uploaded image (needs --load-models)
  GET  /ws/decode - Stream tensor dumps over a WebSocket
  GET  /health    - Health check endpoint
  GET  /models    - List model files
  GET  /metrics   - Prometheus metrics

Examples:
  textspot serve
  textspot serve --port 8080
  textspot serve --host 0.0.0.0 --port 3000 --load-models=false`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	sc := cfg.Server
	loadModels, _ := cmd.Flags().GetBool("load-models")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	srv, err := server.NewServer(server.Config{
		Host:             sc.Host,
		Port:             sc.Port,
		CORSOrigin:       sc.CORSOrigin,
		MaxUploadMB:      int64(sc.MaxUploadMB),
		TimeoutSec:       sc.TimeoutSec,
		RateLimit:        sc.RateLimit,
		OverlayEnabled:   sc.OverlayEnabled,
		PipelineConfig:   cfg.ToPipelineConfig(),
		LoadModels:       loadModels,
		WarmupIterations: cfg.Pipeline.WarmupIterations,
	})
	if err != nil {
		if loadModels {
			return fmt.Errorf("failed to initialize server: %w (use --load-models=false to serve tensor decoding only)", err)
		}
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", sc.Host, sc.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(sc.TimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(sc.TimeoutSec) * time.Second,
	}

	go func() {
		slog.Info("Starting textspot server", "host", sc.Host, "port", sc.Port, "models_loaded", loadModels)
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
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", sc.ShutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(sc.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}
	slog.Info("Graceful shutdown completed")
	return nil
}

// applyServeFlags copies explicitly set flags over the loaded configuration.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	sc := &cfg.Server
	if f.Changed("host") {
		sc.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		sc.Port, _ = f.GetInt("port")
	}
	if f.Changed("cors-origin") {
		sc.CORSOrigin, _ = f.GetString("cors-origin")
	}
	if f.Changed("max-upload-size") {
		sc.MaxUploadMB, _ = f.GetInt("max-upload-size")
	}
	if f.Changed("timeout") {
		sc.TimeoutSec, _ = f.GetInt("timeout")
	}
	if f.Changed("shutdown-timeout") {
		sc.ShutdownTimeout, _ = f.GetInt("shutdown-timeout")
	}
	if f.Changed("rate-limit") {
		sc.RateLimit, _ = f.GetInt("rate-limit")
	}
	if f.Changed("overlay-enable") {
		sc.OverlayEnabled, _ = f.GetBool("overlay-enable")
	}
	if f.Changed("det-model") {
		cfg.Pipeline.Detector.ModelPath, _ = f.GetString("det-model")
	}
	if f.Changed("rec-model") {
		cfg.Pipeline.Recognizer.ModelPath, _ = f.GetString("rec-model")
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	sc := config.DefaultConfig().Server
	f := serveCmd.Flags()
	f.StringP("host", "H", sc.Host, "server host")
	f.IntP("port", "p", sc.Port, "server port")
	f.String("cors-origin", sc.CORSOrigin, "CORS allowed origins")
	f.Int("max-upload-size", sc.MaxUploadMB, "maximum upload size in MB")
	f.Int("timeout", sc.TimeoutSec, "request timeout in seconds")
	f.Int("shutdown-timeout", sc.ShutdownTimeout, "shutdown timeout in seconds")
	f.Int("rate-limit", sc.RateLimit, "requests per minute per client IP on /v1 routes (0 disables)")
	f.Bool("overlay-enable", sc.OverlayEnabled, "enable overlay image responses")
	f.Bool("load-models", true, "load the ONNX models for /v1/image")
	f.String("det-model", "", "override detection model path")
	f.String("rec-model", "", "override recognition model path")
}
