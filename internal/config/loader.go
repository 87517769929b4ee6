package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/comp-lang/comp/internal/errors"
)

// LoaderOptions carries the flag values that influence loading.
type LoaderOptions struct {
	// ConfigFlag is the --config path; empty means $COMP_CONFIG, then
	// the default path.
	ConfigFlag string

	// ModuleRootFlag is the --module-root value; overrides everything.
	ModuleRootFlag string
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".comp", "config.yaml")
}

// Load reads configuration with precedence flag > env > file >
// default. A missing config file is not an error (defaults apply); an
// unreadable or invalid one is.
func Load(opts LoaderOptions) (*Config, []ResolvedValue, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("COMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return nil, nil, fmt.Errorf("binding config env: %w", err)
		}
	}

	path := opts.ConfigFlag
	if path == "" {
		path = os.Getenv("COMP_CONFIG")
	}
	explicit := path != ""
	if path == "" {
		path = DefaultPath()
	}

	fileLoaded := false
	if path != "" {
		v.SetConfigFile(path)
		switch err := v.ReadInConfig(); {
		case err == nil:
			fileLoaded = true
		case explicit:
			return nil, nil, errors.NewValidationError(
				fmt.Sprintf("cannot read config: %v", err), path, "")
		}
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, nil, fmt.Errorf("applying config defaults: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, errors.NewValidationError(
			fmt.Sprintf("malformed config: %v", err), path, "")
	}
	if opts.ModuleRootFlag != "" {
		cfg.ModuleRoot = opts.ModuleRootFlag
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, nil, errors.NewValidationError(
			fmt.Sprintf("invalid config: %v", err), path,
			"output must be yaml or text")
	}

	resolved := []ResolvedValue{
		resolve("moduleRoot", cfg.ModuleRoot, opts.ModuleRootFlag != "", v, fileLoaded),
		resolve("output", cfg.Output, false, v, fileLoaded),
	}
	return cfg, resolved, nil
}

// envNames maps config keys to the environment variables that set them.
var envNames = map[string]string{
	"moduleRoot":     "COMP_MODULE_ROOT",
	"output":         "COMP_OUTPUT",
	"log.timestamps": "COMP_LOG_TIMESTAMPS",
}

// resolve records where a value came from for provenance logging.
func resolve(key string, value any, fromFlag bool, v *viper.Viper, fileLoaded bool) ResolvedValue {
	source := "default"
	switch {
	case fromFlag:
		source = "flag"
	case os.Getenv(envNames[key]) != "":
		source = "env"
	case fileLoaded && v.InConfig(key):
		source = "config"
	}
	return ResolvedValue{Key: key, Value: value, Source: source}
}
