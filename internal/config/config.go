package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"docai"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"docai"`

	NSQDHost string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	// Engine credentials. The deployment that talks to the extraction
	// engine directly cannot start without them.
	AbbyyAPIKey  string `envconfig:"ABBYY_API_KEY"`
	AbbyyBaseURL string `envconfig:"ABBYY_BASE_URL" default:"https://cloud-westus2.abbyy.com/v1-preview"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	PublicOrigin    string `envconfig:"PUBLIC_ORIGIN" default:"http://localhost:8081"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	MigrationPath   string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Session store backend: "postgres" or "memory" (single-node).
	SessionStore string `envconfig:"SESSION_STORE" default:"postgres"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may also be set in the shell, so a missing .env is fine.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.AbbyyAPIKey == "" {
		return fmt.Errorf("%w: ABBYY_API_KEY", ErrMissingRequired)
	}
	if c.SessionStore != "postgres" && c.SessionStore != "memory" {
		return fmt.Errorf("%w: SESSION_STORE must be postgres or memory", ErrMissingRequired)
	}
	if c.SessionStore == "postgres" {
		if c.DBHost == "" {
			return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
		}
		if c.DBUser == "" {
			return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
		}
		if c.DBName == "" {
			return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
		}
	}
	return nil
}
