package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env string `yaml:"env"` // "production" or "development"

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Log struct {
		JSON  bool `yaml:"json"`
		Debug bool `yaml:"debug"`
	} `yaml:"log"`

	Database struct {
		Driver   string `yaml:"driver"` // "mysql" or "postgres"
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AI struct {
		Provider        string  `yaml:"provider"` // "gemini", "openai" or "" (fallback only)
		GeminiAPIKey    string  `yaml:"geminiApiKey"`
		OpenAIAPIKey    string  `yaml:"openaiApiKey"`
		Model           string  `yaml:"model"`
		MaxOutputTokens int     `yaml:"maxOutputTokens"`
		MaxRetries      int     `yaml:"maxRetries"`
		MaxBackoffSec   float64 `yaml:"maxBackoffSeconds"`
		DeadlineSec     float64 `yaml:"deadlineSeconds"`
	} `yaml:"ai"`

	Analysis struct {
		MaxFileSizeMB   int      `yaml:"maxFileSizeMB"`
		DefaultKeywords []string `yaml:"defaultKeywords"`
	} `yaml:"analysis"`

	Throttle struct {
		WindowMS int `yaml:"windowMs"`
		Limit    int `yaml:"limit"`
	} `yaml:"throttle"`

	// Auth maps owner id -> API key.
	Auth struct {
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`
}

// Load reads the yaml config file and applies environment overrides for secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.AI.GeminiAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAIAPIKey = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.AI.Model == "" {
		switch c.AI.Provider {
		case "openai":
			c.AI.Model = "gpt-4o-mini"
		default:
			c.AI.Model = "gemini-2.5-flash"
		}
	}
	if c.AI.MaxOutputTokens == 0 {
		c.AI.MaxOutputTokens = 2048
	}
	if c.AI.MaxRetries == 0 {
		c.AI.MaxRetries = 2
	}
	if c.AI.MaxBackoffSec == 0 {
		c.AI.MaxBackoffSec = 8
	}
	if c.AI.DeadlineSec == 0 && c.Production() {
		c.AI.DeadlineSec = 7
	}
	if c.Analysis.MaxFileSizeMB == 0 {
		c.Analysis.MaxFileSizeMB = 10
	}
	if len(c.Analysis.DefaultKeywords) == 0 {
		c.Analysis.DefaultKeywords = []string{"javascript", "react", "node", "typescript", "nextjs"}
	}
	if c.Throttle.WindowMS == 0 {
		c.Throttle.WindowMS = 60_000
	}
	if c.Throttle.Limit == 0 {
		c.Throttle.Limit = 10
	}
}

// Production reports whether the service runs with production budgets enabled.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// MaxFileBytes converts the configured MB limit to bytes.
func (c *Config) MaxFileBytes() int64 {
	return int64(c.Analysis.MaxFileSizeMB) * 1024 * 1024
}

// ThrottleWindow returns the sliding window duration.
func (c *Config) ThrottleWindow() time.Duration {
	return time.Duration(c.Throttle.WindowMS) * time.Millisecond
}

// AIDeadline returns the wall-clock budget for a whole remote attempt, 0 when disabled.
func (c *Config) AIDeadline() time.Duration {
	return time.Duration(c.AI.DeadlineSec * float64(time.Second))
}

// AIMaxBackoff returns the backoff ceiling for quota retries.
func (c *Config) AIMaxBackoff() time.Duration {
	return time.Duration(c.AI.MaxBackoffSec * float64(time.Second))
}

// MySQLDSN builds the MySQL connection string.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the Postgres connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}
