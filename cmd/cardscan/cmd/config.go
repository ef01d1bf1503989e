package cmd

import (
	"fmt"
	"os"

	"github.com/MeKo-Tech/cardscan/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create configuration files",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Prints the configuration after defaults, config file, environment
and flags are merged. With --raw the merged settings are printed as viper
holds them, before they are decoded into the configuration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if used := GetConfigLoader().GetConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(out, "# config file: %s\n", used)
		}
		var doc any = GetConfig()
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			doc = GetConfigLoader().GetResolvedConfig()
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a config file",
	Long: `Loads a config file, or the one found in the search paths when no file
is given, merges it with defaults and environment and validates the result.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := config.NewLoaderWithViper(viper.New())
		var (
			cfg *config.Config
			err error
		)
		if len(args) == 1 {
			cfg, err = loader.LoadWithFileWithoutValidation(args[0])
		} else {
			cfg, err = loader.LoadWithoutValidation()
		}
		if err != nil {
			return err
		}

		name := loader.GetConfigFileUsed()
		if name == "" {
			name = "defaults"
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", name)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a config file with the default settings",
	Long: `Writes every setting with its default value, by default to cardscan.yaml
in the current directory. An existing file is not overwritten unless --force
is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.GenerateDefaultConfigFile(path); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List the directories searched for " + config.ConfigFileName + ".yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range config.GetConfigSearchPaths() {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configCheckCmd, configInitCmd, configPathsCmd)
	configShowCmd.Flags().Bool("raw", false, "print the merged settings before decoding")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
