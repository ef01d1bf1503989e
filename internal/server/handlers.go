package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/cardscan/internal/batch"
	"github.com/MeKo-Tech/cardscan/internal/cardnum"
	"github.com/MeKo-Tech/cardscan/internal/models"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/version"
)

// healthHandler returns server health status. A predictor that had an
// unrecoverable failure reports "degraded".
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, _, _ := version.Info()
	response := HealthResponse{
		Status:  "healthy",
		Version: v,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if s.predictor != nil {
		stats := s.predictor.Stats()
		response.Predictor = &stats
		if stats.HadUnrecoverableFailure {
			response.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// modelsHandler returns information about the models the scanner uses.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	infos := models.ListAvailableModels()
	list := make([]ModelInfo, len(infos))
	for i, info := range infos {
		path := models.ResolveModelPath(s.modelsDir, info.Type, info.Filename)
		list[i] = ModelInfo{
			Name:        info.Name,
			Path:        path,
			Type:        info.Type,
			Description: info.Description,
			Available:   models.ValidateModelExists(path) == nil,
		}
	}

	writeJSON(w, http.StatusOK, ModelsResponse{Models: list, Count: len(list)})
}

// parseStrict reads the "strict" form or query flag, falling back to the
// server default.
func (s *Server) parseStrict(r *http.Request) (bool, error) {
	v := r.FormValue("strict")
	if v == "" {
		v = r.URL.Query().Get("strict")
	}
	if v == "" {
		return s.strict, nil
	}
	strict, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid strict flag %q", v)
	}
	return strict, nil
}

// parseUpload limits the body size and parses the multipart form.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) bool {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return false
	}
	return true
}

// readPart reads one uploaded file.
func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	uploadSizeBytes.Observe(float64(len(data)))
	return data, nil
}

func formatFormValue(r *http.Request) string {
	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	return format
}

// newFrameResponse converts a frame result to its JSON form.
func newFrameResponse(res pipeline.FrameResult) *FrameResponse {
	out := &FrameResponse{
		Digits:     res.Digits,
		Present:    res.Present,
		Valid:      res.Valid,
		QuickRead:  res.QuickRead,
		Detections: res.Detections,
		Retried:    res.Retried,
		Boxes:      res.ObjectBoxes,
		Width:      res.Width,
		Height:     res.Height,
		Error:      res.ErrorMessage(),
	}
	if res.Digits != "" {
		out.Formatted = cardnum.Format(res.Digits)
		out.Issuer = cardnum.IssuerOf(res.Digits).String()
	}
	out.Processing.InferenceMs = nsToMs(res.Processing.InferenceNs)
	out.Processing.PostProcessMs = nsToMs(res.Processing.PostProcessNs)
	out.Processing.TotalMs = nsToMs(res.Processing.TotalNs)
	return out
}

// newBurstResult converts a burst summary to its JSON form.
func newBurstResult(sum batch.Summary) *BurstResult {
	out := &BurstResult{Summary: sum, DurationMs: nsToMs(sum.Duration.Nanoseconds())}
	if sum.Present {
		out.Formatted = cardnum.Format(sum.Digits)
		out.Issuer = cardnum.IssuerOf(sum.Digits).String()
	}
	return out
}

func nsToMs(ns int64) float64 {
	return float64(ns) / float64(time.Millisecond)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Log error, but can't send another response
		fmt.Fprintf(os.Stderr, "Error encoding response: %v\n", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	slog.Debug("Request failed", "status", statusCode, "message", message)
	writeJSON(w, statusCode, ScanResponse{Success: false, Error: message})
}
