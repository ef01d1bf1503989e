package cmd

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/cardscan/internal/batch"
	"github.com/MeKo-Tech/cardscan/internal/common"
	"github.com/spf13/cobra"
)

var burstCmd = &cobra.Command{
	Use:   "burst <frame|dir|glob> [...]",
	Short: "Read one card number from a burst of frames",
	Long: `Reads every frame of a burst in order and reports the most frequent
card number. Frames that fail to load are skipped. Ties go to the reading
seen first.

Examples:
  cardscan burst ./frames
  cardscan burst 'captures/*.png' --format json
  cardscan burst ./frames --recursive --exclude '*_overlay.png'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBurst,
}

func init() {
	rootCmd.AddCommand(burstCmd)

	burstCmd.Flags().BoolP("recursive", "r", false, "search directories recursively")
	burstCmd.Flags().Bool("strict", true, "count only valid card numbers")
	burstCmd.Flags().StringSlice("include", nil, "file name patterns to include (e.g. '*.png')")
	burstCmd.Flags().StringSlice("exclude", nil, "file name patterns to exclude")
	burstCmd.Flags().StringP("format", "f", "text", "output format (text, json, yaml, csv)")
	burstCmd.Flags().StringP("output", "o", "", "write the summary to file instead of stdout")

	bindOnRun(burstCmd, []flagBinding{
		{"burst.recursive", "recursive"},
		{"burst.strict", "strict"},
		{"burst.include_patterns", "include"},
		{"burst.exclude_patterns", "exclude"},
		{"output.format", "format"},
		{"output.file", "output"},
	})
}

func runBurst(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	paths, err := batch.DiscoverFrames(args, batch.DiscoverOptions{
		Recursive:       cfg.Burst.Recursive,
		IncludePatterns: cfg.Burst.IncludePatterns,
		ExcludePatterns: cfg.Burst.ExcludePatterns,
	})
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no frames found")
	}

	predictor, err := newPredictor(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = predictor.Close() }()

	timer := common.NewNamedTimer("burst")
	frames := batch.LoadFrames(paths)
	slog.Info("Loaded burst", "frames", len(frames), "load_ms", timer.Milliseconds())

	summary := runOnMainLoop(predictor, cfg.Burst.Strict, frames)

	text, err := batch.FormatSummary(summary, cfg.Output.Format)
	if err != nil {
		return err
	}
	w, closeOut, err := openOutput(cmd, cfg.Output.File)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, text); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}

	if predictor.HadUnrecoverableFailure() {
		return errors.New("the detector failed unrecoverably during the burst")
	}
	return nil
}

// runOnMainLoop runs the burst in the background and waits for its
// completion callback on the calling goroutine.
func runOnMainLoop(p batch.FramePredictor, strict bool, frames []image.Image) batch.Summary {
	loop := batch.NewMainLoop(1)
	agg := batch.NewAggregator(p, batch.WithStrict(strict), batch.WithDispatcher(loop))

	var summary batch.Summary
	agg.RunSummary(frames, func(s batch.Summary) {
		summary = s
		loop.Close()
	})
	for loop.RunOne() {
	}
	return summary
}
