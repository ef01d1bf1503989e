package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/cardscan/internal/config"
	"github.com/MeKo-Tech/cardscan/internal/models"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/version"
	"github.com/spf13/cobra"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
	// Config file the global configuration was loaded from.
	loadedCfgFile string

	// modelFactory replaces the ONNX model when set. Tests use it to run
	// commands against a synthetic model.
	modelFactory pipeline.ModelFactory
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cardscan",
	Short: "Payment card number reader for camera frames",
	Long: `Reads the embossed or printed number of a payment card from camera frames
with an SSD digit detector running on ONNX Runtime.

This tool provides:
- Single frame reads with Luhn and issuer validation
- Burst reads that vote across many frames of the same card
- An HTTP and WebSocket server for live capture clients
- Diagnostic commands for priors, numbers and throughput

Examples:
  cardscan scan frame.png
  cardscan burst ./frames --format json
  cardscan serve --port 8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.Flags().GetBool("version")
		if v {
			ver, commit, date := version.Info()
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "cardscan version %s\n", ver)
			_, _ = fmt.Fprintf(out, "Commit: %s\n", commit)
			_, _ = fmt.Fprintf(out, "Date: %s\n", date)
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/cardscan, /etc/cardscan)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	defaultModelsDir := models.DefaultModelsDir
	if envDir := os.Getenv(models.EnvModelsDir); envDir != "" {
		defaultModelsDir = envDir
	}
	rootCmd.PersistentFlags().String("models-dir", defaultModelsDir,
		"directory containing ONNX models (can also be set via "+models.EnvModelsDir+")")
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	mustBind(rootCmd.PersistentFlags(), "verbose", "verbose")
	mustBind(rootCmd.PersistentFlags(), "log_level", "log-level")
	mustBind(rootCmd.PersistentFlags(), "models_dir", "models-dir")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if globalConfig == nil || cfgFile != loadedCfgFile {
			if err := initConfig(); err != nil {
				return err
			}
		}
		setupLogging(cmd, GetConfig())
		return nil
	}
}

// setupLogging installs a JSON logger on stderr so that stdout carries only
// command output.
func setupLogging(cmd *cobra.Command, cfg *config.Config) {
	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// initConfig reads in the config file and ENV variables if set.
func initConfig() error {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	loadedCfgFile = cfgFile
	return nil
}

// GetConfig returns the configuration with the flags of the running command
// applied. Flag bindings happen after the initial load, so viper is read
// again.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			slog.Error("Failed to load configuration", "error", err)
			d := config.DefaultConfig()
			return &d
		}
	}

	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		slog.Warn("Failed to unmarshal updated configuration", "error", err)
		return globalConfig
	}
	return &cfg
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

// SetModelFactory replaces the model used by every command and returns a
// function that restores the previous one. Nil selects the ONNX model.
func SetModelFactory(f pipeline.ModelFactory) (restore func()) {
	prev := modelFactory
	modelFactory = f
	return func() { modelFactory = prev }
}

// newPredictor validates cfg and returns a predictor for it. The model is
// loaded on the first frame.
func newPredictor(cfg *config.Config) (*pipeline.Predictor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	b := cfg.ToPipelineBuilder()
	if modelFactory != nil {
		b = b.WithModelFactory(modelFactory)
	} else if err := models.ValidateModelExists(b.Config().Model.ModelPath); err != nil {
		return nil, err
	}
	return b.Build()
}
