package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultModelName is used when GEMINI_MODEL_NAME is not set anywhere.
const DefaultModelName = "gemini-1.5-pro-vision"

// Config holds the runtime settings of the extraction service
type Config struct {
	Port              string `yaml:"port"`
	ProjectID         string `yaml:"project_id"`
	Region            string `yaml:"region"`
	ModelName         string `yaml:"model_name"`
	PublicDir         string `yaml:"public_dir"`
	CORSOrigins       string `yaml:"cors_origins"`
	MaxUploadBytes    int64  `yaml:"max_upload_bytes"`
	MaxImageDimension int    `yaml:"max_image_dimension"`
	LogLevel          string `yaml:"log_level"`
}

// Load reads .env, then the optional YAML file at path, then the process
// environment. Later sources win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	overrideString(&cfg.Port, "PORT")
	overrideString(&cfg.ProjectID, "GCP_PROJECT_ID")
	overrideString(&cfg.Region, "GCP_REGION")
	overrideString(&cfg.ModelName, "GEMINI_MODEL_NAME")
	overrideString(&cfg.PublicDir, "PUBLIC_DIR")
	overrideString(&cfg.CORSOrigins, "CORS_ORIGINS")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("MAX_UPLOAD_MB"); v != "" {
		mb, err := strconv.ParseInt(v, 10, 64)
		if err != nil || mb <= 0 {
			return nil, fmt.Errorf("invalid MAX_UPLOAD_MB %q", v)
		}
		cfg.MaxUploadBytes = mb << 20
	}
	if v := os.Getenv("MAX_IMAGE_DIMENSION"); v != "" {
		dim, err := strconv.Atoi(v)
		if err != nil || dim < 0 {
			return nil, fmt.Errorf("invalid MAX_IMAGE_DIMENSION %q", v)
		}
		cfg.MaxImageDimension = dim
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.ModelName == "" {
		c.ModelName = DefaultModelName
	}
	if c.PublicDir == "" {
		c.PublicDir = "public"
	}
	if c.CORSOrigins == "" {
		c.CORSOrigins = "*"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 32 << 20
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports settings the model client cannot start without.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return errors.New("GCP_PROJECT_ID is not set")
	}
	if c.Region == "" {
		return errors.New("GCP_REGION is not set")
	}
	for _, origin := range c.AllowedOrigins() {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid CORS origin %q: must be * or start with http:// or https://", origin)
		}
	}
	return nil
}

// AllowedOrigins splits CORSOrigins on commas, dropping blank entries
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
