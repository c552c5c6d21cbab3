package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.BaseURL != "https://developers.teachable.com/v1" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.API.MaxRetries != 5 {
		t.Errorf("max retries = %d", cfg.API.MaxRetries)
	}
	if cfg.API.InitialDelay != 20*time.Second {
		t.Errorf("initial delay = %v", cfg.API.InitialDelay)
	}
	if cfg.API.BackoffFactor != 3.0 {
		t.Errorf("backoff factor = %v", cfg.API.BackoffFactor)
	}
	if cfg.Download.MaxConcurrent != 3 {
		t.Errorf("download concurrency = %d", cfg.Download.MaxConcurrent)
	}
	if cfg.Download.ResumeMargin != 1<<20 {
		t.Errorf("resume margin = %d", cfg.Download.ResumeMargin)
	}
	if cfg.Download.MaxRetries != 3 {
		t.Errorf("download max retries = %d", cfg.Download.MaxRetries)
	}
	if cfg.Download.InitialDelay != 2*time.Second {
		t.Errorf("download initial delay = %v", cfg.Download.InitialDelay)
	}
	if cfg.Download.BackoffFactor != 2.0 {
		t.Errorf("download backoff factor = %v", cfg.Download.BackoffFactor)
	}
	if cfg.Database.Path != "data/teachable.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TEACHABLE_API_KEY", "secret-from-env")
	t.Setenv("TEACHABLE_API_MAXCONCURRENT", "4")
	t.Setenv("TEACHABLE_DOWNLOAD_OUTPUTDIR", "/tmp/courses")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Key != "secret-from-env" {
		t.Errorf("api key = %q", cfg.API.Key)
	}
	if cfg.API.MaxConcurrent != 4 {
		t.Errorf("api concurrency = %d", cfg.API.MaxConcurrent)
	}
	if cfg.Download.OutputDir != "/tmp/courses" {
		t.Errorf("output dir = %q", cfg.Download.OutputDir)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "TEACHABLE_API_KEY=dotenv-key\n# comment\nTEACHABLE_STORAGE_BUCKET=\"my-bucket\"\n"
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	os.Unsetenv("TEACHABLE_API_KEY")
	os.Unsetenv("TEACHABLE_STORAGE_BUCKET")
	t.Cleanup(func() {
		os.Unsetenv("TEACHABLE_API_KEY")
		os.Unsetenv("TEACHABLE_STORAGE_BUCKET")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Key != "dotenv-key" {
		t.Errorf("api key = %q", cfg.API.Key)
	}
	if cfg.Storage.Bucket != "my-bucket" {
		t.Errorf("bucket = %q, quotes should be stripped", cfg.Storage.Bucket)
	}
}
