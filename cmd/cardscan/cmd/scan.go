package cmd

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/cardscan/internal/cardnum"
	"github.com/MeKo-Tech/cardscan/internal/config"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// scanRecord is the outcome of one frame file.
type scanRecord struct {
	File         string  `json:"file" yaml:"file"`
	Digits       string  `json:"digits" yaml:"digits"`
	Present      bool    `json:"present" yaml:"present"`
	Valid        bool    `json:"valid" yaml:"valid"`
	Issuer       string  `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	QuickRead    bool    `json:"quick_read" yaml:"quick_read"`
	Detections   int     `json:"detections" yaml:"detections"`
	Retried      bool    `json:"retried,omitempty" yaml:"retried,omitempty"`
	Width        int     `json:"width" yaml:"width"`
	Height       int     `json:"height" yaml:"height"`
	ProcessingMs float64 `json:"processing_ms" yaml:"processing_ms"`
	Overlay      string  `json:"overlay,omitempty" yaml:"overlay,omitempty"`
	Error        string  `json:"error,omitempty" yaml:"error,omitempty"`
}

var scanCmd = &cobra.Command{
	Use:   "scan <frame> [frame...]",
	Short: "Read the card number from single frames",
	Long: `Reads the card number from each frame independently.

In strict mode (the default) a reading is reported only when it is a valid
card number. In lenient mode every non-empty digit string is reported.

Examples:
  cardscan scan frame.png
  cardscan scan --strict=false --format json a.png b.jpg
  cardscan scan frame.png --overlay-dir out/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Bool("strict", true, "report only valid card numbers")
	scanCmd.Flags().StringP("format", "f", "text", "output format (text, json, yaml)")
	scanCmd.Flags().StringP("output", "o", "", "write results to file instead of stdout")
	scanCmd.Flags().String("overlay-dir", "", "write frames with detection boxes drawn to this directory")
	scanCmd.Flags().String("overlay-color", "#FF0000", "overlay box color")

	bindOnRun(scanCmd, []flagBinding{
		{"assembler.strict", "strict"},
		{"output.format", "format"},
		{"output.file", "output"},
		{"output.overlay_dir", "overlay-dir"},
		{"output.overlay_color", "overlay-color"},
	})
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	format := cfg.Output.Format
	if format == "csv" {
		return fmt.Errorf("unsupported format for scan: %s", format)
	}

	predictor, err := newPredictor(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = predictor.Close() }()

	if cfg.Output.OverlayDir != "" {
		if err := os.MkdirAll(cfg.Output.OverlayDir, 0o755); err != nil {
			return fmt.Errorf("failed to create overlay directory: %w", err)
		}
	}

	records := make([]scanRecord, 0, len(args))
	for _, path := range args {
		records = append(records, scanFile(predictor, cfg, path))
	}

	w, closeOut, err := openOutput(cmd, cfg.Output.File)
	if err != nil {
		return err
	}
	if err := writeScanRecords(w, records, format); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}

	if n := countErrors(records); n > 0 {
		return fmt.Errorf("%d of %d frames could not be read", n, len(records))
	}
	return nil
}

func scanFile(p *pipeline.Predictor, cfg *config.Config, path string) scanRecord {
	rec := scanRecord{File: path}
	img, _, err := utils.LoadImage(path)
	if err != nil {
		rec.Error = err.Error()
		slog.Warn("Failed to load frame", "file", path, "error", err)
		return rec
	}

	res := p.Run(img, cfg.Assembler.Strict)
	rec.Width, rec.Height = res.Width, res.Height
	rec.Retried = res.Retried
	rec.ProcessingMs = float64(res.Processing.TotalNs) / 1e6
	if res.Failed() {
		rec.Error = res.ErrorMessage()
		return rec
	}
	rec.Digits = res.Digits
	rec.Present = res.Present && res.Digits != ""
	rec.Valid = res.Valid
	rec.QuickRead = res.QuickRead
	rec.Detections = res.Detections
	if rec.Valid {
		rec.Issuer = cardnum.IssuerOf(res.Digits).String()
	}

	if cfg.Output.OverlayDir != "" {
		out, err := saveOverlay(img, res, cfg, path)
		if err != nil {
			slog.Warn("Failed to write overlay", "file", path, "error", err)
		} else {
			rec.Overlay = out
		}
	}
	return rec
}

// saveOverlay draws the detection boxes of res onto img and saves it as
// <overlay_dir>/<name>_overlay.png.
func saveOverlay(img image.Image, res pipeline.FrameResult, cfg *config.Config, path string) (string, error) {
	col, err := config.ParseHexColor(cfg.Output.OverlayColor)
	if err != nil {
		return "", err
	}
	rects := make([]image.Rectangle, len(res.ObjectBoxes))
	for i, b := range res.ObjectBoxes {
		rects[i] = b.ImageRect()
	}
	ov := utils.DrawOverlay(img, utils.BoxLayer{Rects: rects, Color: col, Thickness: 2})

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "_overlay.png"
	out := filepath.Join(cfg.Output.OverlayDir, name)
	if err := imaging.Save(ov, out); err != nil {
		return "", err
	}
	return out, nil
}

func writeScanRecords(w io.Writer, records []scanRecord, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml":
		return yaml.NewEncoder(w).Encode(records)
	case "", "text":
		for _, r := range records {
			if _, err := fmt.Fprintln(w, formatScanRecord(r)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func formatScanRecord(r scanRecord) string {
	switch {
	case r.Error != "":
		return fmt.Sprintf("%s: error: %s", r.File, r.Error)
	case !r.Present:
		return fmt.Sprintf("%s: no card number", r.File)
	case r.Valid:
		return fmt.Sprintf("%s: %s (%s)", r.File, cardnum.Format(r.Digits), r.Issuer)
	default:
		return fmt.Sprintf("%s: %s (unvalidated)", r.File, r.Digits)
	}
}

func countErrors(records []scanRecord) int {
	n := 0
	for _, r := range records {
		if r.Error != "" {
			n++
		}
	}
	return n
}
