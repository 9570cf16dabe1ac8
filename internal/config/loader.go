package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "EVENT_HUB_"

	// ConfigPathEnvVar overrides the config file location.
	ConfigPathEnvVar = EnvPrefix + "CONFIG"
)

// LocalConfigFile is looked up in the working directory before the data dir.
const LocalConfigFile = "event-hub.yaml"

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"index.text_fields",
}

// Load resolves the config file (EVENT_HUB_CONFIG, ./event-hub.yaml,
// ~/.event-hub/config.yaml) and loads it. A missing file is not an error:
// defaults and environment overrides still apply.
func Load() (*Config, error) {
	return load(findConfigFile(), false)
}

// LoadFrom loads configuration from an explicit path, which must exist.
func LoadFrom(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, required bool) (*Config, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(NewConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file
	if path != "" {
		if err := checkReadable(path, required); err != nil {
			return nil, err
		}
		if _, statErr := os.Stat(path); statErr == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, &InvalidConfigError{
					Path:    path,
					Message: fmt.Sprintf("YAML parse error: %v", err),
					Hint:    "Run 'event-hub config init --force' to regenerate defaults",
				}
			}
		}
	}

	// Layer 3: environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: fmt.Sprintf("failed to decode configuration: %v", err),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: err.Error(),
			Hint:    "Check the values above against 'event-hub config show'",
		}
	}

	return cfg, nil
}

// checkReadable maps stat/read failures onto the typed config errors.
func checkReadable(path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if !required {
				return nil
			}
			return &ConfigNotFoundError{
				Path: path,
				Hint: "Run 'event-hub config init' to create configuration",
			}
		}
		return fmt.Errorf("failed to access config: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return &PermissionError{
				Path:    path,
				Op:      "read",
				Fix:     getReadPermissionFix(path),
				Details: getPermissionDetails(path),
			}
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return f.Close()
}

// findConfigFile returns the first existing candidate, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		return envPath
	}

	if _, err := os.Stat(LocalConfigFile); err == nil {
		return LocalConfigFile
	}

	if path, err := GetDefaultConfigPath(); err == nil {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps EVENT_HUB_SEARCH__MIN_SIMILARITY to search.min_similarity.
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "__", ".")
}

// processSliceFields converts comma-separated string values to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// getReadPermissionFix returns platform-specific fix command
func getReadPermissionFix(path string) string {
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Right-click %s -> Properties -> Security -> Edit permissions", path)
	default:
		return fmt.Sprintf("Run: chmod 644 %s", path)
	}
}

// getPermissionDetails reports the current file mode
func getPermissionDetails(path string) string {
	if runtime.GOOS == "windows" {
		return ""
	}

	info, err := os.Stat(path)
	if err != nil {
		return ""
	}

	return fmt.Sprintf("Current permissions: %04o", info.Mode().Perm())
}
