package config

import (
	"os"
	"path/filepath"
	"testing"

	"pixelbatch/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MaxFileSize != 20*1024*1024 {
		t.Errorf("Expected 20 MiB default ceiling, got %d", cfg.MaxFileSize)
	}
	if cfg.Format != "jpeg" || cfg.Quality != 85 {
		t.Errorf("Expected jpeg/85 defaults, got %s/%d", cfg.Format, cfg.Quality)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
format: webp
quality: 70
max_width: 1024
max_height: 768
preserve_metadata: true
output_dir: converted
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Format != "webp" || cfg.Quality != 70 {
		t.Errorf("Expected webp/70 from file, got %s/%d", cfg.Format, cfg.Quality)
	}
	if cfg.MaxWidth != 1024 || cfg.MaxHeight != 768 {
		t.Errorf("Expected 1024x768 caps, got %dx%d", cfg.MaxWidth, cfg.MaxHeight)
	}
	if !cfg.PreserveMetadata {
		t.Error("Expected preserve_metadata true")
	}
	if cfg.OutputDir != "converted" {
		t.Errorf("Expected output_dir converted, got %s", cfg.OutputDir)
	}
	// Unset keys keep their defaults.
	if cfg.MaxFileSize != 20*1024*1024 {
		t.Errorf("Expected default ceiling preserved, got %d", cfg.MaxFileSize)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("format: png\nquality: 50\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("OUTPUT_FORMAT", "webp")
	t.Setenv("QUALITY", "95")
	t.Setenv("MAX_FILE_SIZE", "1048576")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Format != "webp" {
		t.Errorf("Expected env format webp over file png, got %s", cfg.Format)
	}
	if cfg.Quality != 95 {
		t.Errorf("Expected env quality 95 over file 50, got %d", cfg.Quality)
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("Expected env ceiling 1048576, got %d", cfg.MaxFileSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestConfig_Validate(t *testing.T) {
	bad := []*Config{
		{Env: "development", MaxFileSize: 0, OutputDir: "out", Format: "jpeg", Quality: 85},
		{Env: "development", MaxFileSize: 1, OutputDir: "", Format: "jpeg", Quality: 85},
		{Env: "development", MaxFileSize: 1, OutputDir: "out", Format: "bmp", Quality: 85},
		{Env: "development", MaxFileSize: 1, OutputDir: "out", Format: "jpeg", Quality: 0},
		{Env: "development", MaxFileSize: 1, OutputDir: "out", Format: "jpeg", Quality: 85, DebounceMS: -1},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("Case %d: expected validation error for %+v", i, cfg)
		}
	}
}

func TestConfig_Settings(t *testing.T) {
	cfg := &Config{
		Format:           "jpg",
		Quality:          80,
		MaxWidth:         800,
		MaxHeight:        600,
		PreserveMetadata: true,
	}

	settings, err := cfg.Settings()
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if settings.Format != models.FormatJPEG {
		t.Errorf("Expected jpg alias mapped to jpeg, got %s", settings.Format)
	}
	if settings.MaxWidth != 800 || settings.MaxHeight != 600 {
		t.Errorf("Expected 800x600 caps, got %dx%d", settings.MaxWidth, settings.MaxHeight)
	}
	if !settings.PreserveMetadata {
		t.Error("Expected PreserveMetadata carried over")
	}
}
