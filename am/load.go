package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"github.com/teranos/gauntlet/errors"
)

var (
	mu             sync.Mutex
	globalConfig   *Config
	viperInstance  *viper.Viper
	loadedFiles    []string
	ConfigSources  = map[string]SourceInfo{}
	searchOverride *searchPaths
)

// searchPaths replaces the file locations consulted by Load.
type searchPaths struct {
	system  string
	userDir string
	workDir string
}

// Load reads the gauntlet configuration using Viper. The result is cached
// until Reset.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	v, err := initViperLocked()
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
	mu.Lock()
	defer mu.Unlock()
	return initViperLocked()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path on top of the
// defaults. Environment variables are not consulted.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", configPath)
	}
	return config, nil
}

// Reset clears the cached configuration
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	viperInstance = nil
	loadedFiles = nil
	ConfigSources = map[string]SourceInfo{}
}

// LoadedFiles returns the config files merged by the last Load, lowest
// precedence first.
func LoadedFiles() []string {
	mu.Lock()
	defer mu.Unlock()
	return append([]string(nil), loadedFiles...)
}

// ActiveFile returns the highest-precedence config file merged by the last
// Load, or "" when only defaults and environment variables applied.
func ActiveFile() string {
	files := LoadedFiles()
	if len(files) == 0 {
		return ""
	}
	return files[len(files)-1]
}

func initViperLocked() (*viper.Viper, error) {
	if viperInstance != nil {
		return viperInstance, nil
	}

	v := viper.New()
	v.SetConfigType("toml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindSensitiveEnvVars(v)

	SetDefaults(v)

	if err := mergeConfigFiles(v); err != nil {
		return nil, err
	}

	viperInstance = v
	return v, nil
}

func paths() searchPaths {
	if searchOverride != nil {
		return *searchOverride
	}
	home, _ := os.UserHomeDir()
	wd, _ := os.Getwd()
	return searchPaths{
		system:  SystemConfigPath,
		userDir: filepath.Join(home, UserConfigDir),
		workDir: wd,
	}
}

// findProjectConfig walks up from dir looking for gauntlet.toml.
// Returns "" if none is found.
func findProjectConfig(dir string) string {
	if dir == "" {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles merges configuration files in precedence order:
// system < user < project. Environment variables still win over all of them.
func mergeConfigFiles(v *viper.Viper) error {
	p := paths()

	candidates := []struct {
		path   string
		source ConfigSource
	}{
		{p.system, SourceSystem},
		{filepath.Join(p.userDir, UserConfigFile), SourceUser},
	}
	if project := findProjectConfig(p.workDir); project != "" {
		candidates = append(candidates, struct {
			path   string
			source ConfigSource
		}{project, SourceProject})
	}

	for _, c := range candidates {
		if c.path == "" {
			continue
		}
		if _, err := os.Stat(c.path); err != nil {
			continue
		}

		file := viper.New()
		file.SetConfigFile(c.path)
		file.SetConfigType("toml")
		if err := file.ReadInConfig(); err != nil {
			return errors.WithHint(
				errors.Wrapf(err, "failed to read config file %s", c.path),
				"fix or remove the file; gauntlet does not skip malformed config",
			)
		}
		if err := v.MergeConfigMap(file.AllSettings()); err != nil {
			return errors.Wrapf(err, "failed to merge config file %s", c.path)
		}

		for _, key := range file.AllKeys() {
			ConfigSources[key] = SourceInfo{Source: c.source, Path: c.path}
		}
		loadedFiles = append(loadedFiles, c.path)
	}
	return nil
}

// Get returns a configuration value using dot notation
func Get(key string) any {
	v, err := GetViper()
	if err != nil {
		return nil
	}
	return v.Get(key)
}

// GetString returns a configuration value as string using dot notation
func GetString(key string) string {
	v, err := GetViper()
	if err != nil {
		return ""
	}
	return v.GetString(key)
}
