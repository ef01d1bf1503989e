package server

import (
	"image"
	"image/png"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/utils"
)

// scanHandler reads one uploaded frame.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.parseUpload(w, r) {
		return
	}

	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	data, err := readPart(files[0])
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}
	img, err := decodeFrame(data)
	if err != nil {
		s.writeErrorResponse(w, "Invalid image: "+err.Error(), http.StatusBadRequest)
		return
	}

	strict, err := s.parseStrict(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	format := formatFormValue(r)
	if format != "" && format != "json" && format != "overlay" {
		s.writeErrorResponse(w, "Unsupported format: "+format, http.StatusBadRequest)
		return
	}
	if format == "overlay" && !s.overlayEnabled {
		http.Error(w, "overlay output disabled", http.StatusForbidden)
		return
	}

	if s.predictor == nil {
		s.writeErrorResponse(w, "Predictor not initialized", http.StatusServiceUnavailable)
		return
	}

	res := s.predictor.Run(img, strict)
	s.recordFrame("scan", res)
	if res.Failed() {
		s.writeErrorResponse(w, "Frame processing failed: "+res.ErrorMessage(), http.StatusInternalServerError)
		return
	}

	if format == "overlay" {
		s.writeOverlay(w, img, res)
		return
	}
	writeJSON(w, http.StatusOK, ScanResponse{Success: true, Result: newFrameResponse(res)})
}

// writeOverlay writes the frame with its detection boxes drawn as PNG.
func (s *Server) writeOverlay(w http.ResponseWriter, img image.Image, res pipeline.FrameResult) {
	rects := make([]image.Rectangle, len(res.ObjectBoxes))
	for i, b := range res.ObjectBoxes {
		rects[i] = b.ImageRect()
	}
	ov := utils.DrawOverlay(img, utils.BoxLayer{Rects: rects, Color: s.overlayColor, Thickness: 2})

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, ov); err != nil {
		slog.Error("Failed to encode overlay", "error", err)
	}
}
