package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// User is a configured account whose display name shows up in listings.
type User struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"displayName"`
}

type Config struct {
	Server struct {
		Port           int           `yaml:"port"`
		ReadTimeout    time.Duration `yaml:"readTimeout"`
		WriteTimeout   time.Duration `yaml:"writeTimeout"`
		MaxUploadBytes int64         `yaml:"maxUploadBytes"`
		CORSOrigins    []string      `yaml:"corsOrigins"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | sqlite
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
		Path     string `yaml:"path"` // sqlite file
	} `yaml:"database"`

	Minio struct {
		Endpoint      string        `yaml:"endpoint"`
		AccessKey     string        `yaml:"accessKey"`
		SecretKey     string        `yaml:"secretKey"`
		BucketName    string        `yaml:"bucketName"`
		Region        string        `yaml:"region"`
		UseSSL        bool          `yaml:"useSSL"`
		PublicRead    bool          `yaml:"publicRead"`
		PresignExpiry time.Duration `yaml:"presignExpiry"`
	} `yaml:"minio"`

	AI struct {
		APIKey              string `yaml:"apiKey"`
		BaseURL             string `yaml:"baseURL"`
		Model               string `yaml:"model"`
		MaxTokens           int    `yaml:"maxTokens"`
		MaxTextChars        int    `yaml:"maxTextChars"`
		ClassifySampleChars int    `yaml:"classifySampleChars"`
	} `yaml:"ai"`

	Extractor struct {
		MaxBytes          int64         `yaml:"maxBytes"`
		ParseTimeout      time.Duration `yaml:"parseTimeout"`
		AllowPrivateHosts bool          `yaml:"allowPrivateHosts"`
	} `yaml:"extractor"`

	Auth struct {
		// APIKeys maps a client name to its key. Empty disables auth.
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		Capacity        int `yaml:"capacity"`
		RefillPerSecond int `yaml:"refillPerSecond"`
	} `yaml:"rateLimit"`

	Users []User `yaml:"users"`
}

// Load baca file config.yaml, apply defaults and env overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	// Analyses block on the AI backend, so the write timeout is generous.
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 32 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "postgres":
			c.Database.Port = 5432
		case "mysql":
			c.Database.Port = 3306
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/contracts.db"
	}
	if c.Minio.BucketName == "" {
		c.Minio.BucketName = "contracts"
	}
	if c.Minio.PresignExpiry == 0 {
		c.Minio.PresignExpiry = 24 * time.Hour
	}
	if c.AI.Model == "" {
		c.AI.Model = "gpt-4o-mini"
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 4096
	}
	if c.AI.MaxTextChars == 0 {
		c.AI.MaxTextChars = 60000
	}
	if c.AI.ClassifySampleChars == 0 {
		c.AI.ClassifySampleChars = 6000
	}
	if c.Extractor.MaxBytes == 0 {
		c.Extractor.MaxBytes = 32 << 20
	}
	if c.Extractor.ParseTimeout == 0 {
		c.Extractor.ParseTimeout = 30 * time.Second
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 60
	}
	if c.RateLimit.RefillPerSecond == 0 {
		c.RateLimit.RefillPerSecond = 1
	}
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.AI.BaseURL = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	seen := make(map[string]bool, len(c.Users))
	for _, u := range c.Users {
		if u.ID == "" {
			return fmt.Errorf("config: user without id")
		}
		if seen[u.ID] {
			return fmt.Errorf("config: duplicate user id %q", u.ID)
		}
		seen[u.ID] = true
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection URL.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": []string{c.Database.SSLMode}}.Encode(),
	}
	return u.String()
}
