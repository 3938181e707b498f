package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/smacross/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate, validate or describe configuration files",
	Long: `Manage backtest configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file
  schema   - Print the JSON schema of the configuration

Examples:
  smacross config init -o smacross.yaml
  smacross config validate -f smacross.yaml
  smacross config schema > smacross.schema.json`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with default settings. The format
follows the extension: .yaml/.yml writes YAML, anything else JSON.

Example:
  smacross config init -o smacross.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check if a configuration file is valid and can be loaded.

Example:
  smacross config validate -f smacross.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the configuration JSON schema",
	Args:  cobra.NoArgs,
	RunE:  runConfigSchema,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configSchemaCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "smacross.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (default --config)")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nSet data.path, then run:")
	fmt.Fprintf(out, "  smacross backtest --config %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configValidatePath
	if path == "" {
		path = cfgFile
	}
	if path == "" {
		return fmt.Errorf("no config file: pass --file or --config")
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", path)
	fmt.Fprintf(out, "  Strategy: %s (SMA %d/%d, SL %.2f%%, TP %.2f%%)\n",
		cfg.Strategy.Name, cfg.Strategy.ShortWindow, cfg.Strategy.LongWindow,
		cfg.Strategy.StopLossPct*100, cfg.Strategy.TakeProfitPct*100)
	fmt.Fprintf(out, "  Account: %.2f %s (size %.2f%%)\n",
		cfg.Account.InitialBalance, cfg.Account.Quote, cfg.Account.PositionSizingPct*100)
	fmt.Fprintf(out, "  Data: %s %s\n", cfg.Data.Symbol, cfg.Data.Timeframe)
	fmt.Fprintf(out, "  Journal: %s\n", cfg.Journal.Type)
	return nil
}

func runConfigSchema(cmd *cobra.Command, args []string) error {
	b, err := json.MarshalIndent(config.Schema(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
