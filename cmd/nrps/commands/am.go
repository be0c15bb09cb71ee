package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/nrps/am"
	"github.com/teranos/nrps/display"
	"github.com/teranos/nrps/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage nrps configuration",
	Long: `am ("I am") manages nrps configuration.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (NRPS_* prefix, e.g. NRPS_MODELS_DIR)
3. --config file
4. Project config (nrps.toml in the working directory or a parent)
5. User config (~/.nrps/nrps.toml)
6. System config (/etc/nrps/nrps.toml)
7. Default values

Examples:
  nrps am show                        # Show current configuration
  nrps am show --format json          # Show configuration in JSON format
  nrps am get models.dir              # Get specific config value
  nrps am set predict.count 2         # Persist a value in ~/.nrps/nrps.toml
  nrps am validate                    # Validate current configuration
  nrps am where                       # Show which source set each value`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., models.dir, predict.workers)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a configuration value",
	Long: `Write a value to the user config file (~/.nrps/nrps.toml, or --file).
The previous file is kept as .back1 (up to three backups). List values are
comma separated.`,
	Args: cobra.ExactArgs(2),
	RunE: runAmSet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Args:  cobra.NoArgs,
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade, which files exist, and the source
of every effective setting.`,
	Args: cobra.NoArgs,
	RunE: runAmWhere,
}

func init() {
	amShowCmd.Flags().StringP("format", "f", "toml", "Output format: toml, json, yaml")
	amSetCmd.Flags().String("file", "", "Config file to write (default ~/.nrps/nrps.toml)")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	format, _ := cmd.Flags().GetString("format")
	return writeConfig(cmd.OutOrStdout(), cfg, format)
}

// writeConfig renders cfg as toml, json or yaml.
func writeConfig(w io.Writer, cfg *am.Config, format string) error {
	switch format {
	case "json":
		return display.WriteJSON(w, cfg)

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		_, err = fmt.Fprintf(w, "# nrps configuration\n%s", data)
		return err

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		_, err = fmt.Fprintf(w, "# nrps configuration\n%s", data)
		return err

	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml)", format)
	}
}

func runAmGet(cmd *cobra.Command, args []string) error {
	value, err := am.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = am.UserConfigPath()
	}
	if path == "" {
		return errors.New("could not determine home directory; pass --file")
	}
	if err := am.SetValue(path, args[0], args[1]); err != nil {
		return err
	}
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("%s = %s written to %s", args[0], args[1], path)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	pterm.Success.WithWriter(cmd.OutOrStdout()).Println("Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	settings, err := am.Settings()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	return writeWhere(cmd.OutOrStdout(), am.Cascade(), settings)
}

// writeWhere prints the cascade and groups settings by the source that set them.
func writeWhere(w io.Writer, cascade []am.CascadeEntry, settings []am.SettingInfo) error {
	fmt.Fprintln(w, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(w, "  [default]      built-in defaults")
	for _, entry := range cascade {
		state := "missing"
		if fileExists(entry.Path) {
			state = "found"
		}
		fmt.Fprintf(w, "  [%s]%*s%s (%s)\n", entry.Source, 13-len(entry.Source), "", entry.Path, state)
	}
	fmt.Fprintf(w, "  [environment]  %s_* variables\n\n", am.EnvPrefix)

	data := pterm.TableData{{"Key", "Value", "Source", "From"}}
	for _, source := range am.SourceOrder {
		for _, s := range settings {
			if s.Source != source {
				continue
			}
			value := fmt.Sprintf("%v", s.Value)
			if len(value) > 50 {
				value = value[:47] + "..."
			}
			data = append(data, []string{s.Key, value, string(s.Source), s.SourcePath})
		}
	}
	err := pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(w).Render()
	return errors.Wrap(err, "failed to render settings")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
