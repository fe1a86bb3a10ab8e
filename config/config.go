package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"pixelbatch/models"
)

type Config struct {
	Env              string `yaml:"env"`
	MaxFileSize      int64  `yaml:"max_file_size"`
	OutputDir        string `yaml:"output_dir"`
	Format           string `yaml:"format"`
	Quality          int    `yaml:"quality"`
	MaxWidth         int    `yaml:"max_width"`
	MaxHeight        int    `yaml:"max_height"`
	PreserveMetadata bool   `yaml:"preserve_metadata"`
	DebounceMS       int    `yaml:"debounce_ms"`
}

func Default() *Config {
	return &Config{
		Env:         "development",
		MaxFileSize: 20 * 1024 * 1024,
		OutputDir:   "output",
		Format:      "jpeg",
		Quality:     85,
		DebounceMS:  500,
	}
}

// Load layers the configuration: defaults, then the YAML file when a path
// is given, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Env = getEnv("ENV", c.Env)
	c.MaxFileSize = getEnvAsInt64("MAX_FILE_SIZE", c.MaxFileSize)
	c.OutputDir = getEnv("OUTPUT_DIR", c.OutputDir)
	c.Format = getEnv("OUTPUT_FORMAT", c.Format)
	c.Quality = getEnvAsInt("QUALITY", c.Quality)
	c.MaxWidth = getEnvAsInt("MAX_WIDTH", c.MaxWidth)
	c.MaxHeight = getEnvAsInt("MAX_HEIGHT", c.MaxHeight)
	c.PreserveMetadata = getEnvAsBool("PRESERVE_METADATA", c.PreserveMetadata)
	c.DebounceMS = getEnvAsInt("DEBOUNCE_MS", c.DebounceMS)
}

func (c *Config) Validate() error {
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", c.MaxFileSize)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if c.DebounceMS < 0 {
		return fmt.Errorf("debounce_ms must not be negative, got %d", c.DebounceMS)
	}
	if _, err := c.Settings(); err != nil {
		return err
	}
	return nil
}

// Settings builds the per-run conversion snapshot from the configured
// values.
func (c *Config) Settings() (models.ConversionSettings, error) {
	format, err := models.ParseFormat(c.Format)
	if err != nil {
		return models.ConversionSettings{}, err
	}
	settings := models.ConversionSettings{
		Format:           format,
		Quality:          c.Quality,
		MaxWidth:         c.MaxWidth,
		MaxHeight:        c.MaxHeight,
		PreserveMetadata: c.PreserveMetadata,
	}
	if err := settings.Validate(); err != nil {
		return models.ConversionSettings{}, err
	}
	return settings, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
