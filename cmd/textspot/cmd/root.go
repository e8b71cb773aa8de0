package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/textspot/internal/config"
	"github.com/MeKo-Tech/textspot/internal/models"
	"github.com/MeKo-Tech/textspot/internal/version"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "textspot",
	Short: "Scene text detection and recognition with EAST and CTC",
	Long: `textspot finds text in camera frames and reads it.

Detection uses an EAST network: its score, geometry and angle maps are decoded
into rotated rectangles and filtered with non-max suppression. Each rectangle
is cropped from the full-size frame and read by a CTC recognition network.

The decode command works on saved network outputs and needs no model files,
which makes it the quickest way to inspect thresholds and NMS settings.

Examples:
  textspot decode --input outputs.json --format text
  textspot image frame.jpg --overlay-dir overlays
  textspot serve --port 8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			return printVersion(cmd)
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
		"config file (default is search in ., $HOME, $HOME/.config/textspot, /etc/textspot)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	defaultModelsDir := models.DefaultModelsDir
	if envDir := os.Getenv(models.EnvModelsDir); envDir != "" {
		defaultModelsDir = envDir
	}
	rootCmd.PersistentFlags().String("models-dir", defaultModelsDir,
		"directory containing ONNX models (can also be set via "+models.EnvModelsDir+")")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	for key, flag := range map[string]string{
		"verbose":    "verbose",
		"log_level":  "log-level",
		"models_dir": "models-dir",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if globalConfig == nil {
			if err := initConfig(); err != nil {
				return err
			}
		}
		level := logLevel(globalConfig.LogLevel)
		if viper.GetBool("verbose") {
			level = slog.LevelDebug
		}
		// Results go to stdout, logs never do.
		logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)
		return nil
	}
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initConfig reads in the config file and environment variables.
func initConfig() error {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		globalConfig = nil
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// GetConfig returns the configuration with bound CLI flags applied.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			d := config.DefaultConfig()
			return &d
		}
	}

	// Flags are bound after the first load, so read viper again.
	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling updated configuration: %v\n", err)
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

func printVersion(cmd *cobra.Command) error {
	v, commit, date := version.Info()
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "textspot version %s\nCommit: %s\nDate: %s\n", v, commit, date)
	return err
}
