package am

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/nrps/errors"
)

// EnvPrefix prefixes every environment override (models.dir -> NRPS_MODELS_DIR).
const EnvPrefix = "NRPS"

// ProjectConfigName is searched for upward from the working directory.
const ProjectConfigName = "nrps.toml"

var globalConfig *Config
var viperInstance *viper.Viper
var explicitConfig string

// SetConfigFile makes path the highest-precedence config file. It must be
// called before the first Load.
func SetConfigFile(path string) {
	explicitConfig = path
	globalConfig = nil
	viperInstance = nil
}

// Load reads the nrps configuration using Viper
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v, err := initViper()
	if err != nil {
		return nil, err
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}

	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() (*viper.Viper, error) {
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// Defaults only; environment is not consulted for a single-file load
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	return LoadWithViper(v)
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
	explicitConfig = ""
	ConfigSources = make(map[string]SourceInfo)
}

// initViper initializes Viper with configuration sources and defaults
func initViper() (*viper.Viper, error) {
	if viperInstance != nil {
		return viperInstance, nil
	}

	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	sources := make(map[string]SourceInfo)
	markSettingsFromSource(v.AllSettings(), "", SourceDefault, "", sources)

	if err := mergeConfigFiles(v, sources); err != nil {
		return nil, err
	}

	ConfigSources = sources
	viperInstance = v
	return v, nil
}

// findProjectConfig searches for nrps.toml by walking up the directory tree.
// Returns the path to the first config file found, or empty string if none found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// UserConfigPath returns ~/.nrps/nrps.toml, or empty if there is no home directory.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nrps", "nrps.toml")
}

// CascadeEntry is one file position in the configuration cascade.
type CascadeEntry struct {
	Source ConfigSource
	Path   string
}

// Cascade lists the config files consulted, lowest precedence first.
// Files that do not exist are included.
func Cascade() []CascadeEntry {
	entries := []CascadeEntry{{Source: SourceSystem, Path: "/etc/nrps/nrps.toml"}}
	if user := UserConfigPath(); user != "" {
		entries = append(entries, CascadeEntry{Source: SourceUser, Path: user})
	}
	if project := findProjectConfig(); project != "" {
		entries = append(entries, CascadeEntry{Source: SourceProject, Path: project})
	}
	if explicitConfig != "" {
		entries = append(entries, CascadeEntry{Source: SourceExplicit, Path: explicitConfig})
	}
	return entries
}

// mergeConfigFiles merges configuration files in precedence order.
// Precedence (lowest to highest): system < user < project < --config < env vars.
// A missing file is skipped, except an explicit --config file.
func mergeConfigFiles(v *viper.Viper, sources map[string]SourceInfo) error {
	for _, entry := range Cascade() {
		if _, err := os.Stat(entry.Path); err != nil {
			if entry.Source == SourceExplicit {
				return errors.WithHint(
					errors.Wrapf(err, "config file %s", entry.Path),
					"check the --config path",
				)
			}
			continue
		}

		fileViper := viper.New()
		fileViper.SetConfigFile(entry.Path)
		fileViper.SetConfigType("toml")
		if err := fileViper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", entry.Path)
		}

		settings := fileViper.AllSettings()
		if err := v.MergeConfigMap(settings); err != nil {
			return errors.Wrapf(err, "failed to merge config file %s", entry.Path)
		}
		markSettingsFromSource(settings, "", entry.Source, entry.Path, sources)
	}
	return nil
}

// Get returns a configuration value using dot notation
func Get(key string) (interface{}, error) {
	v, err := initViper()
	if err != nil {
		return nil, err
	}
	if !v.IsSet(key) {
		return nil, errors.NewNotFoundError("configuration key %q", key)
	}
	return v.Get(key), nil
}
