// Package config builds the service configuration from an optional config
// file (TOML or YAML) overlaid with WORKSESSION_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

const (
	StorageMemory    = "memory"
	StorageSQLite    = "sqlite"
	StorageFirestore = "firestore"
)

type Config struct {
	Mode Mode `toml:"mode" yaml:"mode"`

	Port     string `toml:"port" yaml:"port"`
	LogLevel string `toml:"log_level" yaml:"log_level"`

	GCPProjectID string `toml:"gcp_project" yaml:"gcp_project"`
	GCPLocation  string `toml:"gcp_location" yaml:"gcp_location"`
	ModelName    string `toml:"model_name" yaml:"model_name"`
	SpeechModel  string `toml:"speech_model" yaml:"speech_model"`
	SpeechVoice  string `toml:"speech_voice" yaml:"speech_voice"`

	StorageBackend string `toml:"storage_backend" yaml:"storage_backend"` // "memory", "sqlite" or "firestore"
	SQLitePath     string `toml:"sqlite_path" yaml:"sqlite_path"`
	UseMockLLM     bool   `toml:"use_mock_llm" yaml:"use_mock_llm"` // true = use mock even on GCP

	GitHubInspect bool   `toml:"github_inspect" yaml:"github_inspect"` // false = never call the GitHub API
	GitHubAPIURL  string `toml:"github_api_url" yaml:"github_api_url"`
	GitHubToken   string `toml:"github_token" yaml:"github_token"`
}

func defaults() *Config {
	return &Config{
		Mode:           ModeLocal,
		Port:           "8080",
		LogLevel:       "info",
		GCPLocation:    "us-central1",
		ModelName:      "gemini-2.5-flash-lite",
		SpeechModel:    "gemini-2.5-flash-preview-tts",
		SpeechVoice:    "Kore",
		StorageBackend: StorageMemory,
		SQLitePath:     "worksession.db",
		UseMockLLM:     true,
		GitHubInspect:  true,
		GitHubAPIURL:   "https://api.github.com",
	}
}

// Load builds the config: defaults, then the file at path (if path is not
// empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		// Outside local mode the mock only stays on when asked for explicitly.
		if !meta.IsDefined("use_mock_llm") && cfg.Mode != ModeLocal {
			cfg.UseMockLLM = false
		}
	case ".yaml", ".yml":
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		if _, ok := raw["use_mock_llm"]; !ok && cfg.Mode != ModeLocal {
			cfg.UseMockLLM = false
		}
	default:
		return fmt.Errorf("config file %s: unsupported extension %q (want .toml, .yaml or .yml)", path, ext)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("WORKSESSION_MODE"); ok && v != "" {
		switch Mode(v) {
		case ModeGCP:
			cfg.Mode = ModeGCP
			cfg.UseMockLLM = false
		default:
			cfg.Mode = ModeLocal
		}
	}

	str("WORKSESSION_PORT", &cfg.Port)
	str("PORT", &cfg.Port)
	str("WORKSESSION_LOG_LEVEL", &cfg.LogLevel)
	str("WORKSESSION_GCP_PROJECT", &cfg.GCPProjectID)
	str("WORKSESSION_GCP_LOCATION", &cfg.GCPLocation)
	str("WORKSESSION_MODEL_NAME", &cfg.ModelName)
	str("WORKSESSION_SPEECH_MODEL", &cfg.SpeechModel)
	str("WORKSESSION_SPEECH_VOICE", &cfg.SpeechVoice)
	str("WORKSESSION_STORAGE_BACKEND", &cfg.StorageBackend)
	str("WORKSESSION_SQLITE_PATH", &cfg.SQLitePath)
	str("WORKSESSION_GITHUB_API_URL", &cfg.GitHubAPIURL)
	str("WORKSESSION_GITHUB_TOKEN", &cfg.GitHubToken)

	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	if err := boolean("WORKSESSION_USE_MOCK_LLM", &cfg.UseMockLLM); err != nil {
		return err
	}
	return boolean("WORKSESSION_GITHUB_INSPECT", &cfg.GitHubInspect)
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", v)
	}
}

// Validate checks combinations that would fail later at startup.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case StorageMemory:
	case StorageSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite_path is required for the sqlite storage backend"))
		}
	case StorageFirestore:
		if c.GCPProjectID == "" {
			errs = append(errs, errors.New("gcp_project is required for the firestore storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q (valid: memory, sqlite, firestore)", c.StorageBackend))
	}

	if c.Mode == ModeGCP && c.GCPProjectID == "" {
		errs = append(errs, errors.New("gcp_project must be set in gcp mode"))
	}
	if !c.UseMockLLM && (c.GCPProjectID == "" || c.GCPLocation == "") {
		errs = append(errs, errors.New("gcp_project and gcp_location are required unless use_mock_llm is set"))
	}

	return errors.Join(errs...)
}

// InspectRepositories reports whether sessions should look up their
// repository on GitHub.
func (c *Config) InspectRepositories() bool {
	return c.GitHubInspect && c.GitHubAPIURL != ""
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
