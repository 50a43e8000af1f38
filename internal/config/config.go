package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration for the help desk.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Storage StorageConfig `yaml:"storage"`
	Logger  LoggerConfig  `yaml:"logger"`
	Auth    AuthConfig    `yaml:"auth"`
}

// AppConfig describes the program itself.
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// StorageConfig locates the data files and the audit log.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
	LogDir  string `yaml:"log_dir"`
}

// LoggerConfig configures operational logging.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Output string `yaml:"output"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	PasswordScheme    string `yaml:"password_scheme"`
	BcryptCost        int    `yaml:"bcrypt_cost"`
	SessionSecret     string `yaml:"session_secret"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		App: AppConfig{
			Name:    "helpdesk",
			Version: "dev",
		},
		Storage: StorageConfig{
			DataDir: "data",
			LogDir:  "logs",
		},
		Logger: LoggerConfig{
			Level:  "warn",
			Output: "stderr",
		},
		Auth: AuthConfig{
			PasswordScheme:    "sha256",
			BcryptCost:        12,
			SessionTTLMinutes: 0,
		},
	}
}

// Load reads configuration from an optional YAML file, then from environment
// variables (a .env file in the working directory is honoured). Environment
// values win over the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("HELPDESK_CONFIG_PATH")
	}
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Version = getEnv("APP_VERSION", cfg.App.Version)
	cfg.Storage.DataDir = getEnv("HELPDESK_DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.LogDir = getEnv("HELPDESK_LOG_DIR", cfg.Storage.LogDir)
	cfg.Logger.Level = getEnv("LOG_LEVEL", cfg.Logger.Level)
	cfg.Logger.Output = getEnv("LOG_OUTPUT", cfg.Logger.Output)
	cfg.Auth.PasswordScheme = getEnv("AUTH_PASSWORD_SCHEME", cfg.Auth.PasswordScheme)
	cfg.Auth.BcryptCost = getEnvAsInt("AUTH_BCRYPT_COST", cfg.Auth.BcryptCost)
	cfg.Auth.SessionSecret = getEnv("AUTH_SESSION_SECRET", cfg.Auth.SessionSecret)
	cfg.Auth.SessionTTLMinutes = getEnvAsInt("AUTH_SESSION_TTL_MINUTES", cfg.Auth.SessionTTLMinutes)

	if cfg.Storage.DataDir == "" {
		return nil, fmt.Errorf("data directory must not be empty")
	}
	if cfg.Storage.LogDir == "" {
		return nil, fmt.Errorf("log directory must not be empty")
	}
	return &cfg, nil
}

// UsersPath is the JSON-lines file holding user records.
func (s StorageConfig) UsersPath() string {
	return filepath.Join(s.DataDir, "users.jsonl")
}

// TicketsPath is the JSON-lines file holding ticket records.
func (s StorageConfig) TicketsPath() string {
	return filepath.Join(s.DataDir, "tickets.jsonl")
}

// AuditPath is the append-only audit log.
func (s StorageConfig) AuditPath() string {
	return filepath.Join(s.LogDir, "audit.log")
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
