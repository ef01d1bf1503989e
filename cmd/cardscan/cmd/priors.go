package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/MeKo-Tech/cardscan/internal/detector"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// priorsReport describes the anchor set of the configured model.
type priorsReport struct {
	InputWidth  int                       `json:"input_width" yaml:"input_width"`
	InputHeight int                       `json:"input_height" yaml:"input_height"`
	FeatureMaps []detector.FeatureMapSpec `json:"feature_maps" yaml:"feature_maps"`
	Count       int                       `json:"count" yaml:"count"`
	Priors      []detector.PriorBox       `json:"priors" yaml:"priors"`
}

var priorsCmd = &cobra.Command{
	Use:   "priors",
	Short: "Print the SSD prior boxes of the configured model",
	Long: `Generates the prior boxes the detector decodes against and prints the
feature map layout, the number of priors and the first priors in the order
the model emits them.

Examples:
  cardscan priors
  cardscan priors --limit 0 --format json`,
	Args: cobra.NoArgs,
	RunE: runPriors,
}

func init() {
	rootCmd.AddCommand(priorsCmd)

	priorsCmd.Flags().StringP("format", "f", "text", "output format (text, json, yaml)")
	priorsCmd.Flags().Int("limit", 10, "number of priors to print (0 = all)")
}

func runPriors(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	format, _ := cmd.Flags().GetString("format")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return fmt.Errorf("invalid limit: %d", limit)
	}

	det := cfg.ToPipelineConfig().Model.Detector
	if err := det.Validate(); err != nil {
		return fmt.Errorf("invalid detector settings: %w", err)
	}
	priors := detector.PriorsFor(det.FeatureMaps, det.InputWidth, det.InputHeight)

	report := priorsReport{
		InputWidth:  det.InputWidth,
		InputHeight: det.InputHeight,
		FeatureMaps: det.FeatureMaps,
		Count:       len(priors),
		Priors:      priors,
	}
	if limit > 0 && limit < len(priors) {
		report.Priors = priors[:limit]
	}
	return writePriors(cmd.OutOrStdout(), report, format)
}

func writePriors(w io.Writer, r priorsReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		return yaml.NewEncoder(w).Encode(r)
	case "", "text":
		_, _ = fmt.Fprintf(w, "Input: %dx%d\n", r.InputWidth, r.InputHeight)
		for i, fm := range r.FeatureMaps {
			_, _ = fmt.Fprintf(w, "Layer %d: %dx%d cells, shrink %.0fx%.0f, boxes %.0f-%.0f px\n",
				i, fm.Width, fm.Height, fm.ShrinkX, fm.ShrinkY, fm.BoxMin, fm.BoxMax)
		}
		_, _ = fmt.Fprintf(w, "Priors: %d\n", r.Count)
		for i, p := range r.Priors {
			_, _ = fmt.Fprintf(w, "%5d  cx=%.4f cy=%.4f w=%.4f h=%.4f\n", i, p.CenterX, p.CenterY, p.Width, p.Height)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
