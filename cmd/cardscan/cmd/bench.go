package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/MeKo-Tech/cardscan/internal/common"
	"github.com/MeKo-Tech/cardscan/internal/utils"
	"github.com/spf13/cobra"
)

// benchReport is the machine readable form of a benchmark run.
type benchReport struct {
	common.BenchmarkResult
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	Digits string  `json:"digits"`
	GPU    bool    `json:"gpu"`
}

var benchCmd = &cobra.Command{
	Use:   "bench <frame>",
	Short: "Measure the per-frame latency of the detector",
	Long: `Reads the same frame repeatedly and reports latency percentiles and
allocations. Warmup iterations load the model and are not timed.

Examples:
  cardscan bench frame.png
  cardscan bench frame.png --iterations 50 --gpu --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().Int("iterations", 10, "timed iterations")
	benchCmd.Flags().Int("warmup", 1, "untimed iterations before measuring")
	benchCmd.Flags().Bool("gpu", false, "run inference on the GPU")
	benchCmd.Flags().StringP("format", "f", "text", "output format (text, json)")

	bindOnRun(benchCmd, []flagBinding{
		{"gpu.enabled", "gpu"},
	})
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	iterations, _ := cmd.Flags().GetInt("iterations")
	warmup, _ := cmd.Flags().GetInt("warmup")
	format, _ := cmd.Flags().GetString("format")
	if iterations < 1 {
		return fmt.Errorf("invalid iterations: %d (must be positive)", iterations)
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format: %s", format)
	}

	img, _, err := utils.LoadImage(args[0])
	if err != nil {
		return err
	}
	predictor, err := newPredictor(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = predictor.Close() }()

	var digits string
	result := common.Benchmark(filepath.Base(args[0]), warmup, iterations, func() error {
		res := predictor.Run(img, cfg.Assembler.Strict)
		if res.Failed() {
			return res.Err
		}
		digits = res.Digits
		return nil
	})
	if result.Error != nil {
		return fmt.Errorf("benchmark failed: %w", result.Error)
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(benchReport{
			BenchmarkResult: result,
			MeanMs:          float64(result.Mean().Microseconds()) / 1000,
			P50Ms:           float64(result.Percentile(50).Microseconds()) / 1000,
			P95Ms:           float64(result.Percentile(95).Microseconds()) / 1000,
			Digits:          digits,
			GPU:             cfg.GPU.Enabled,
		})
	}

	_, _ = fmt.Fprintln(out, result.String())
	_, _ = fmt.Fprintf(out, "Memory: %s\n", result.MemoryAfter)
	if digits == "" {
		_, _ = fmt.Fprintln(out, "Reading: none")
		return nil
	}
	_, _ = fmt.Fprintf(out, "Reading: %s\n", digits)
	return nil
}
