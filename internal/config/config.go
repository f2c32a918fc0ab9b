package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	APIBaseURL          string   `yaml:"apiBaseURL"`
	LogLevel            string   `yaml:"logLevel"`
	StateBackend        string   `yaml:"stateBackend"`
	StateDir            string   `yaml:"stateDir"`
	RedisAddr           string   `yaml:"redisAddr"`
	RedisPassword       string   `yaml:"redisPassword"`
	HistoryDatabaseURL  string   `yaml:"historyDatabaseURL"`
	FeedbackPromptDelay string   `yaml:"feedbackPromptDelay"`
	RSSFeeds            []string `yaml:"rssFeeds"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("TRUTHGUARD_API_URL"); v != "" {
		cfg.APIBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("TRUTHGUARD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("TRUTHGUARD_STATE_BACKEND"); v != "" {
		cfg.StateBackend = strings.TrimSpace(v)
	}
	if v := os.Getenv("TRUTHGUARD_STATE_DIR"); v != "" {
		cfg.StateDir = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("TRUTHGUARD_HISTORY_DATABASE_URL"); v != "" {
		cfg.HistoryDatabaseURL = v
	}
	if v := os.Getenv("TRUTHGUARD_FEEDBACK_PROMPT_DELAY"); v != "" {
		cfg.FeedbackPromptDelay = strings.TrimSpace(v)
	}
	if v := os.Getenv("TRUTHGUARD_RSS_FEEDS"); v != "" {
		cfg.RSSFeeds = splitCSV(v)
	}
	if cfg.StateBackend == "" {
		cfg.StateBackend = "file"
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.APIBaseURL == "" {
		return errors.New("config: apiBaseURL is required (set in config.yaml or TRUTHGUARD_API_URL)")
	}
	switch cfg.StateBackend {
	case "file", "badger", "redis", "memory":
	default:
		return fmt.Errorf("config: unknown stateBackend %q (file, badger, redis, memory)", cfg.StateBackend)
	}
	if cfg.StateBackend == "redis" && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required when stateBackend is redis")
	}
	if cfg.FeedbackPromptDelay != "" {
		if _, err := time.ParseDuration(cfg.FeedbackPromptDelay); err != nil {
			return fmt.Errorf("config: invalid feedbackPromptDelay: %w", err)
		}
	}
	return nil
}

// ParseFeedbackPromptDelay parses the optional prompt delay duration string.
func ParseFeedbackPromptDelay(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid feedbackPromptDelay duration: %w", err)
	}
	return dur, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
