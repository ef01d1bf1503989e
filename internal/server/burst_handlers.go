package server

import (
	"fmt"
	"image"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/cardscan/internal/batch"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
)

// recordingPredictor records frame metrics for every frame of a burst.
type recordingPredictor struct {
	s      *Server
	source string
}

func (p recordingPredictor) Run(img image.Image, strict bool) pipeline.FrameResult {
	res := p.s.predictor.Run(img, strict)
	p.s.recordFrame(p.source, res)
	return res
}

// burstHandler reads a burst of uploaded frames and returns the majority
// reading. Frames that cannot be decoded are skipped.
func (s *Server) burstHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.parseUpload(w, r) {
		return
	}

	files := r.MultipartForm.File["frames"]
	if len(files) == 0 {
		s.writeErrorResponse(w, "No frames provided", http.StatusBadRequest)
		return
	}
	if len(files) > s.maxBurstFrames {
		s.writeErrorResponse(w,
			fmt.Sprintf("Too many frames: %d (max %d)", len(files), s.maxBurstFrames),
			http.StatusBadRequest)
		return
	}

	strict, err := s.parseStrict(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	format := formatFormValue(r)
	switch format {
	case "", "json", "text", "yaml", "csv":
	default:
		s.writeErrorResponse(w, "Unsupported format: "+format, http.StatusBadRequest)
		return
	}

	if s.predictor == nil {
		s.writeErrorResponse(w, "Predictor not initialized", http.StatusServiceUnavailable)
		return
	}

	frames := make([]image.Image, len(files))
	for i, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			slog.Warn("Failed to read burst frame", "frame", i, "filename", fh.Filename, "error", err)
			continue
		}
		if frames[i], err = decodeFrame(data); err != nil {
			slog.Warn("Skipping undecodable burst frame", "frame", i, "filename", fh.Filename, "error", err)
		}
	}

	agg := batch.NewAggregator(recordingPredictor{s: s, source: "burst"}, batch.WithStrict(strict))
	sum := agg.Collect(frames)
	recordBurst("burst", sum)

	switch format {
	case "text", "yaml", "csv":
		out, err := batch.FormatSummary(sum, format)
		if err != nil {
			s.writeErrorResponse(w, "Formatting failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		contentType := map[string]string{
			"text": "text/plain; charset=utf-8",
			"yaml": "application/yaml",
			"csv":  "text/csv",
		}[format]
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(out))
	default:
		writeJSON(w, http.StatusOK, BurstResponse{Success: true, Result: newBurstResult(sum)})
	}
}
