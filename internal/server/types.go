package server

import (
	"context"
	"fmt"
	"image"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/textspot/internal/pipeline"
)

// imageProcessor is the part of the pipeline the server needs.
type imageProcessor interface {
	ProcessImage(ctx context.Context, img image.Image) (*pipeline.ImageResult, error)
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline       imageProcessor
	decodeConfig   pipeline.Config
	corsOrigin     string
	maxUploadMB    int64
	timeoutSec     int
	limiter        func(http.Handler) http.Handler
	overlayEnabled bool
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	RateLimit      int // requests per minute per client IP on /v1 routes, 0 disables
	OverlayEnabled bool
	PipelineConfig pipeline.Config
	// LoadModels builds the ONNX pipeline for /v1/image. Without it only the
	// tensor decode endpoints are served.
	LoadModels bool
	// WarmupIterations runs blank frames through the detector after loading.
	WarmupIterations int
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version,omitempty"`
	Time         string `json:"time"`
	ModelsLoaded bool   `json:"models_loaded"`
}

// ModelInfo describes one model file known to the server.
type ModelInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Present     bool   `json:"present"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

// ModelsResponse is returned by /models.
type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
	Count  int         `json:"count"`
}

// DecodeResponse wraps a pipeline result.
type DecodeResponse struct {
	Success bool                  `json:"success"`
	Result  *pipeline.ImageResult `json:"result,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// NewServer creates a server. The ONNX pipeline is only built when
// config.LoadModels is set.
func NewServer(config Config) (*Server, error) {
	var proc imageProcessor
	if config.LoadModels {
		pl, err := pipeline.NewBuilderFrom(config.PipelineConfig).Build()
		if err != nil {
			return nil, err
		}
		if config.WarmupIterations > 0 {
			if err := pl.Detector.Warmup(config.WarmupIterations); err != nil {
				_ = pl.Close()
				return nil, fmt.Errorf("detector warmup failed: %w", err)
			}
		}
		proc = pl
	}
	return newServer(config, proc)
}

func newServer(config Config, proc imageProcessor) (*Server, error) {
	if err := config.PipelineConfig.Validate(); err != nil {
		return nil, err
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 20
	}
	s := &Server{
		pipeline:       proc,
		decodeConfig:   config.PipelineConfig,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeoutSec:     config.TimeoutSec,
		overlayEnabled: config.OverlayEnabled,
	}
	if config.RateLimit > 0 {
		s.limiter = newLimiter(s, config.RateLimit)
	}
	return s, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.pipeline != nil {
		return s.pipeline.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", chain(s.healthHandler, instrument("health"), s.corsMiddleware))
	mux.HandleFunc("/models", chain(s.modelsHandler, instrument("models"), s.corsMiddleware))
	mux.HandleFunc("/v1/decode", chain(s.decodeHandler, instrument("decode"), s.corsMiddleware, s.rateLimitMiddleware))
	mux.HandleFunc("/v1/image", chain(s.imageHandler, instrument("image"), s.corsMiddleware, s.rateLimitMiddleware))
	mux.HandleFunc("/ws/decode", s.decodeWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
