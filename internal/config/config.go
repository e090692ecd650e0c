// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env string `yaml:"env"` // "development" or "production"

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Registry struct {
		URL string `yaml:"url"`
	} `yaml:"registry"`

	TenantHost struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"tenant_host"`

	Templates struct {
		Dir string `yaml:"dir"`
	} `yaml:"templates"`

	RabbitMQ struct {
		URL string `yaml:"url"`
	} `yaml:"rabbitmq"`

	Audit struct {
		Workers int `yaml:"workers"`
	} `yaml:"audit"`

	Auth struct {
		JWTSecret          string `yaml:"jwt_secret"`
		SuperAdminEmail    string `yaml:"super_admin_email"`
		SuperAdminPassHash string `yaml:"super_admin_password_hash"`
	} `yaml:"auth"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	if cfg.Registry.URL == "" {
		return nil, fmt.Errorf("registry.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.TenantHost.Port == 0 {
		c.TenantHost.Port = 5432
	}
	if c.TenantHost.SSLMode == "" {
		c.TenantHost.SSLMode = "disable"
	}
	if c.Templates.Dir == "" {
		c.Templates.Dir = "templates"
	}
	if c.Audit.Workers <= 0 {
		c.Audit.Workers = 2
	}
}

// Production reports whether user-facing errors must be genericized.
func (c *Config) Production() bool {
	return c.Env == "production"
}
