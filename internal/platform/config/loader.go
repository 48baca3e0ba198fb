package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "cipher-server-go/internal/platform/errors"
)

// Loader reads configuration from an optional YAML file layered over the
// built-in defaults, with environment variables taking final precedence.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader for the given config path. An empty path means
// defaults plus environment only.
func NewLoader(path string) *Loader {
	return &Loader{
		useDotEnv: true,
		path:      path,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load resolves the effective configuration.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("no .env file found, using system environment")
		}
	}

	cfg := Default()
	path := l.path

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, platformerrors.Wrap(platformerrors.KindConfig, "load", "failed to read config file", err)
			}
			path = ""
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "load", "failed to parse config file", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CIPHER_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CIPHER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CIPHER_RECOGNIZER_URL"); v != "" {
		cfg.Recognizer.GatewayURL = v
	}
	if v := os.Getenv("CIPHER_RECOGNIZER_TOKEN"); v != "" {
		cfg.Recognizer.AuthToken = v
	}
	if v := os.Getenv("CIPHER_TOKEN_SECRET"); v != "" {
		cfg.Session.TokenSecret = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Analysis.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Analysis.BaseURL = v
	}
}

func validate(cfg *Config) error {
	if cfg.Wake.MaxConsecutiveErrors <= 0 {
		return platformerrors.New(platformerrors.KindConfig, "validate", "max_consecutive_errors must be positive")
	}
	if cfg.Wake.BaseBackoffDelay <= 0 || cfg.Wake.BackoffCap < cfg.Wake.BaseBackoffDelay {
		return platformerrors.New(platformerrors.KindConfig, "validate", "invalid backoff delays")
	}
	if len(cfg.Wake.WakePhrases) == 0 {
		return platformerrors.New(platformerrors.KindConfig, "validate", "at least one wake phrase is required")
	}
	if len(cfg.Wake.ActivationResponses) == 0 {
		return platformerrors.New(platformerrors.KindConfig, "validate", "at least one activation response is required")
	}
	return nil
}
