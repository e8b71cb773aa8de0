package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/textspot/internal/models"
	"github.com/MeKo-Tech/textspot/internal/pipeline"
	"github.com/MeKo-Tech/textspot/internal/tensors"
	"github.com/MeKo-Tech/textspot/internal/version"
)

const (
	formatJSON = "json"
	formatText = "text"
	formatCSV  = "csv"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:       "healthy",
		Version:      version.Version,
		Time:         time.Now().UTC().Format(time.RFC3339),
		ModelsLoaded: s.pipeline != nil,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health response", "error", err)
	}
}

// modelsHandler returns information about the model files.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	inv := models.Inventory(s.decodeConfig.ModelsDir)
	list := make([]ModelInfo, len(inv))
	for i, st := range inv {
		list[i] = ModelInfo{
			Name:        st.Name,
			Path:        st.Path,
			Type:        st.Type,
			Description: st.Description,
			Present:     st.Present,
			SizeBytes:   st.Size,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ModelsResponse{Models: list, Count: len(list)}); err != nil {
		slog.Error("Failed to encode models response", "error", err)
	}
}

// decodeHandler decodes a JSON tensor dump posted as the request body. The
// optional width and height query parameters give the frame size that
// rectangles are scaled to.
func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	uploadSizeBytes.Observe(float64(len(body)))

	frameW, frameH, err := frameSize(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	dump, err := tensors.ReadDump(bytes.NewReader(body))
	if err != nil {
		processRequestsTotal.WithLabelValues("decode", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Invalid tensor dump: %v", err), http.StatusBadRequest)
		return
	}

	start := time.Now()
	res, err := pipeline.DecodeDump(s.decodeConfig, dump, frameW, frameH)
	if err != nil {
		processRequestsTotal.WithLabelValues("decode", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Decode failed: %v", err), http.StatusUnprocessableEntity)
		return
	}
	observeResult("decode", time.Since(start).Seconds(), len(res.Regions))

	s.writeResult(w, requestFormat(r), res)
}

// frameSize reads the optional width/height query parameters.
func frameSize(r *http.Request) (int, int, error) {
	parse := func(key string) (int, error) {
		v := r.URL.Query().Get(key)
		if v == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid %s: %q", key, v)
		}
		return n, nil
	}
	w, err := parse("width")
	if err != nil {
		return 0, 0, err
	}
	h, err := parse("height")
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

// requestFormat takes the output format from the form or query; json is the default.
func requestFormat(r *http.Request) string {
	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == "" {
		format = formatJSON
	}
	return format
}

// writeResult writes res as json, text or csv.
func (s *Server) writeResult(w http.ResponseWriter, format string, res *pipeline.ImageResult) {
	var (
		body        string
		err         error
		contentType string
	)
	switch format {
	case formatText:
		contentType = "text/plain; charset=utf-8"
		body, err = pipeline.ToPlainText(res)
	case formatCSV:
		contentType = "text/csv"
		body, err = pipeline.ToCSV(res)
	case formatJSON:
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(DecodeResponse{Success: true, Result: res}); err != nil {
			slog.Error("Failed to encode result", "error", err)
		}
		return
	default:
		s.writeErrorResponse(w, "Unsupported format: "+format, http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write([]byte(body))
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(DecodeResponse{Success: false, Error: message}); err != nil {
		slog.Error("Failed to write error response", "error", err)
	}
}
