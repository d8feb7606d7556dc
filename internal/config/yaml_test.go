package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadYAMLConfigExpandsEnv(t *testing.T) {
	t.Setenv("BOARD_DB_PASS", "s3cret")

	path := filepath.Join(t.TempDir(), "forumgate.yaml")
	content := `
language: en
forum:
  driver: mysql
  dsn: "forum:${BOARD_DB_PASS}@tcp(localhost:3306)/phpbb"
  table_prefix: phpbb_
register:
  max_login_attempts: 5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}

	if cfg.Forum.DSN != "forum:s3cret@tcp(localhost:3306)/phpbb" {
		t.Errorf("DSN env expansion failed: %q", cfg.Forum.DSN)
	}
	if cfg.Forum.Driver != "mysql" || cfg.Forum.TablePrefix != "phpbb_" {
		t.Errorf("unexpected forum config: %+v", cfg.Forum)
	}
	if cfg.Register.MaxLoginAttempts != 5 {
		t.Errorf("MaxLoginAttempts = %d, want 5", cfg.Register.MaxLoginAttempts)
	}
}

func TestLoadYAMLConfigMissingFile(t *testing.T) {
	if _, err := LoadYAMLConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forumgate.yaml")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig: %v", err)
	}

	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}

	want := DefaultYAMLConfig()
	if cfg.Server.Port != want.Server.Port {
		t.Errorf("Port = %d, want %d", cfg.Server.Port, want.Server.Port)
	}
	if cfg.Register != want.Register {
		t.Errorf("Register = %+v, want %+v", cfg.Register, want.Register)
	}
	if cfg.Language != "en" {
		t.Errorf("Language = %q, want en", cfg.Language)
	}
}
