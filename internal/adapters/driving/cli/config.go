package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/adapters/driven/config/file"
	"github.com/stratalabs/strata/internal/core/domain"
)

var configGlobal bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage project and global configuration",
	Long: `Reads and writes the TOML configuration. Project configuration lives
in .strata/config.toml at the project root; global configuration in
~/.strata/config.toml applies to every project.

Keys use dot notation, e.g. 'author.name' or 'coordination.backend'.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Sets a configuration value. The value is parsed as JSON when
possible, so numbers and booleans keep their type; anything else is
stored as a string.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset [key]",
	Short: "Remove a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

func init() {
	configCmd.PersistentFlags().BoolVar(&configGlobal, "global", false, "use the global configuration")
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}

// openConfigScope opens the config store selected by --global.
func openConfigScope() (*file.ConfigStore, error) {
	if configGlobal {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		return file.NewConfigStore(filepath.Join(home, domain.ConfigDirName))
	}

	root, err := FindProjectRoot()
	if err != nil {
		return nil, err
	}
	return file.NewConfigStore(filepath.Join(root, domain.ConfigDirName))
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := openConfigScope()
	if err != nil {
		return err
	}

	value, ok := cfg.Get(args[0])
	if !ok {
		return fmt.Errorf("%w: key %q", domain.ErrNotFound, args[0])
	}
	cmd.Println(formatConfigValue(value))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := openConfigScope()
	if err != nil {
		return err
	}

	key, raw := args[0], args[1]
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}

	if err := cfg.Set(key, value); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	cmd.Printf("Set %s.\n", key)
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	cfg, err := openConfigScope()
	if err != nil {
		return err
	}

	if err := cfg.Delete(args[0]); err != nil {
		return fmt.Errorf("removing %s: %w", args[0], err)
	}
	cmd.Printf("Removed %s.\n", args[0])
	return nil
}

func runConfigList(cmd *cobra.Command, args []string) error {
	cfg, err := openConfigScope()
	if err != nil {
		return err
	}

	keys := cfg.Keys()
	if len(keys) == 0 {
		cmd.Println("No configuration values set.")
		return nil
	}
	for _, key := range keys {
		value, _ := cfg.Get(key)
		cmd.Printf("%s = %s\n", key, formatConfigValue(value))
	}
	return nil
}

// formatConfigValue renders a config value the way it would appear in
// the TOML file.
func formatConfigValue(v any) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
