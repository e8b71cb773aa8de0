package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/textspot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create configuration files",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Long: `Print the configuration after merging defaults, the config file,
TEXTSPOT_* environment variables and command-line flags.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		asJSON, _ := cmd.Flags().GetBool("json")
		var (
			data []byte
			err  error
		)
		if asJSON {
			data, err = json.MarshalIndent(cfg, "", "  ")
			data = append(data, '\n')
		} else {
			data, err = config.ToYAML(*cfg)
		}
		if err != nil {
			return err
		}
		if used := GetConfigLoader().GetConfigFileUsed(); used != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "# config file: %s\n", used)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
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
			return fmt.Errorf("failed to write config: %w", err)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return err
	},
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List the directories searched for " + config.ConfigFileName + ".yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range config.GetConfigSearchPaths() {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), p); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd, configPathsCmd)

	configShowCmd.Flags().Bool("json", false, "print JSON instead of YAML")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
