package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "150ms" parse directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Storage    StorageConfig    `yaml:"storage"`
	Wake       WakeConfig       `yaml:"wake"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Session    SessionConfig    `yaml:"session"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
}

type ServerConfig struct {
	IP          string   `yaml:"ip"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// WakeConfig carries the wake-phrase catalog, response pools and every timing
// constant of the conversation state machine. Loaded once, treated as immutable.
type WakeConfig struct {
	WakePhrases      []string `yaml:"wake_phrases"`
	PhoneticVariants []string `yaml:"phonetic_variants"`
	EndPhrases       []string `yaml:"end_phrases"`
	PausePhrases     []string `yaml:"pause_phrases"`

	ActivationResponses   []string `yaml:"activation_responses"`
	EndResponses          []string `yaml:"end_responses"`
	PauseResponses        []string `yaml:"pause_responses"`
	ContinuationResponses []string `yaml:"continuation_responses"`

	DebounceInterval     Duration `yaml:"debounce_interval"`
	MaxConsecutiveErrors int      `yaml:"max_consecutive_errors"`
	BaseBackoffDelay     Duration `yaml:"base_backoff_delay"`
	BackoffCap           Duration `yaml:"backoff_cap"`
	CooldownDuration     Duration `yaml:"cooldown_duration"`
	InactivityTimeout    Duration `yaml:"inactivity_timeout"`
	ResumeDelay          Duration `yaml:"resume_delay"`
	RestartDelay         Duration `yaml:"restart_delay"`
}

type RecognizerConfig struct {
	GatewayURL  string   `yaml:"gateway_url"`
	AuthToken   string   `yaml:"auth_token"`
	DialTimeout Duration `yaml:"dial_timeout"`
}

type SessionConfig struct {
	TokenSecret     string             `yaml:"token_secret"`
	TokenTTL        Duration           `yaml:"token_ttl"`
	Store           SessionStoreConfig `yaml:"store"`
	CleanupInterval Duration           `yaml:"cleanup_interval"`
}

type SessionStoreConfig struct {
	Driver string             `yaml:"driver"`
	TTL    Duration           `yaml:"ttl"`
	Redis  SessionRedisStore  `yaml:"redis,omitempty"`
	SQLite SessionSQLiteStore `yaml:"sqlite,omitempty"`
}

type SessionRedisStore struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type SessionSQLiteStore struct {
	DSN string `yaml:"dsn,omitempty"`
}

type AnalysisConfig struct {
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"url"`
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature float64  `yaml:"temperature"`
	Timeout     Duration `yaml:"timeout"`
}
