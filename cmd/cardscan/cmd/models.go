package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/cardscan/internal/models"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the scanner uses and whether they are installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		dir := models.GetModelsDir(cfg.ModelsDir)
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Models directory: %s\n", dir)

		missing := 0
		for _, info := range models.ListAvailableModels() {
			path := models.ResolveModelPath(dir, info.Type, info.Filename)
			status := "ok"
			if err := models.ValidateModelExists(path); err != nil {
				status = "missing"
				missing++
			}
			_, _ = fmt.Fprintf(out, "%-10s %-8s %s\n  %s\n", info.Name, status, path, info.Description)
		}
		if missing > 0 {
			return fmt.Errorf("%d model(s) missing from %s", missing, dir)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
