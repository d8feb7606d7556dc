package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level forumgate configuration file.
type YAMLConfig struct {
	Language string         `yaml:"language"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Forum    ForumYAML      `yaml:"forum"`
	Register RegisterConfig `yaml:"register"`
	MCP      MCPConfig      `yaml:"mcp"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	RatePerMinute   int        `yaml:"rate_per_minute"`
	TrustedProxies  []string   `yaml:"trusted_proxies"`
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings for the admin
// surface.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
}

// AuthConfig controls admin session settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	JWTExpiry string `yaml:"jwt_expiry"`
}

// ForumYAML points at the host forum's database.
type ForumYAML struct {
	Driver      string `yaml:"driver"` // mysql, postgres, sqlite, mssql
	DSN         string `yaml:"dsn"`
	TablePrefix string `yaml:"table_prefix"`
}

// RegisterConfig carries the host forum's account policy, mirrored here so
// validation errors are caught at the gate instead of deep in the forum.
type RegisterConfig struct {
	MinUsernameChars int `yaml:"min_username_chars"`
	MaxUsernameChars int `yaml:"max_username_chars"`
	MinPasswordChars int `yaml:"min_password_chars"`
	MaxPasswordChars int `yaml:"max_password_chars"`
	MaxLoginAttempts int `yaml:"max_login_attempts"`
}

// MCPConfig controls the MCP (Model Context Protocol) server.
type MCPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Transport string `yaml:"transport"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before
// parsing, so DSN credentials can stay out of the file itself.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	var cfg YAMLConfig
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
// The registration limits match a stock phpBB board.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Language: "en",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			RatePerMinute:   60,
			CORS: CORSConfig{
				Origins: []string{"*"},
				Methods: []string{"GET", "POST", "DELETE"},
			},
		},
		Auth: AuthConfig{
			JWTExpiry: "1h",
		},
		Forum: ForumYAML{
			Driver:      "mysql",
			TablePrefix: "phpbb_",
		},
		Register: RegisterConfig{
			MinUsernameChars: 3,
			MaxUsernameChars: 20,
			MinPasswordChars: 6,
			MaxPasswordChars: 100,
			MaxLoginAttempts: 3,
		},
		MCP: MCPConfig{
			Enabled:   false,
			Transport: "stdio",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
