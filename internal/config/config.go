package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// WatchdogConfig tunes the periodic scan.
type WatchdogConfig struct {
	LookbackMinutes  int `yaml:"lookbackMinutes,omitempty" validate:"omitempty,min=1"`
	LookaheadMinutes int `yaml:"lookaheadMinutes,omitempty" validate:"omitempty,min=1"`
	GraceMinutes     int `yaml:"graceMinutes,omitempty" validate:"omitempty,min=1"`
	// ScanRule is the recurrence for `dispatch watch`, e.g.
	// "FREQ=MINUTELY;INTERVAL=5".
	ScanRule string `yaml:"scanRule,omitempty"`
}

// FanoutConfig tunes candidate search and offer expiry.
type FanoutConfig struct {
	ReplacementRadiusMiles float64 `yaml:"replacementRadiusMiles,omitempty" validate:"omitempty,gt=0"`
	BookingRadiusMiles     float64 `yaml:"bookingRadiusMiles,omitempty" validate:"omitempty,gt=0"`
	OfferTTLSeconds        int     `yaml:"offerTTLSeconds,omitempty" validate:"omitempty,min=1"`
	BookingTTLMinutes      int     `yaml:"bookingTTLMinutes,omitempty" validate:"omitempty,min=1"`
	MaxCandidates          int     `yaml:"maxCandidates,omitempty" validate:"omitempty,min=1"`
}

// PushConfig configures the FCM sender. Leaving it empty selects the
// log-only sender.
type PushConfig struct {
	ProjectID       string `yaml:"projectID,omitempty"`
	CredentialsFile string `yaml:"credentialsFile,omitempty" validate:"required_with=ProjectID"`
}

// Config represents the application configuration
type Config struct {
	DatabaseURL   string         `yaml:"databaseURL" validate:"required"`
	RedisAddr     string         `yaml:"redisAddr,omitempty"`
	RedisPassword string         `yaml:"redisPassword,omitempty"`
	ServerPort    int            `yaml:"serverPort,omitempty" validate:"omitempty,min=1,max=65535"`
	Watchdog      WatchdogConfig `yaml:"watchdog,omitempty"`
	Fanout        FanoutConfig   `yaml:"fanout,omitempty"`
	Push          PushConfig     `yaml:"push,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from dispatch_config.yaml.
// It looks for the config file in the current directory first, then in
// the user's home directory.
func Load() (*Config, error) {
	configPath, err := findConfigFile()
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks the scan rule
// syntax.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Watchdog.ScanRule != "" {
		if _, err := rrule.StrToRRule(cfg.Watchdog.ScanRule); err != nil {
			return fmt.Errorf("invalid scan rule: %w", err)
		}
	}

	return nil
}

// applyEnv fills secrets and DSNs from the environment when the file
// leaves them blank, so deployments can keep them out of the config.
func applyEnv(cfg *Config) {
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	}
	if cfg.RedisPassword == "" {
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.ServerPort == 0 {
		cfg.ServerPort = 8080
	}
	if cfg.Watchdog.LookbackMinutes == 0 {
		cfg.Watchdog.LookbackMinutes = 15
	}
	if cfg.Watchdog.LookaheadMinutes == 0 {
		cfg.Watchdog.LookaheadMinutes = 15
	}
	if cfg.Watchdog.GraceMinutes == 0 {
		cfg.Watchdog.GraceMinutes = 5
	}
	if cfg.Watchdog.ScanRule == "" {
		cfg.Watchdog.ScanRule = "FREQ=MINUTELY;INTERVAL=5"
	}
	if cfg.Fanout.ReplacementRadiusMiles == 0 {
		cfg.Fanout.ReplacementRadiusMiles = 5
	}
	if cfg.Fanout.BookingRadiusMiles == 0 {
		cfg.Fanout.BookingRadiusMiles = 15
	}
	if cfg.Fanout.OfferTTLSeconds == 0 {
		cfg.Fanout.OfferTTLSeconds = 60
	}
	if cfg.Fanout.BookingTTLMinutes == 0 {
		cfg.Fanout.BookingTTLMinutes = 240
	}
	if cfg.Fanout.MaxCandidates == 0 {
		cfg.Fanout.MaxCandidates = 20
	}
}

// findConfigFile searches for dispatch_config.yaml in the current
// directory and the home directory.
func findConfigFile() (string, error) {
	configFileName := "dispatch_config.yaml"

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
