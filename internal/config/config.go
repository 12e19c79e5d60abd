package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		// SessionTTL is how long an idle login survives.
		SessionTTL string `yaml:"sessionTTL"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Storage struct {
		// Driver is "csv" (default) or "postgres".
		Driver  string `yaml:"driver"`
		DataDir string `yaml:"dataDir"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		QuestionLimit   int    `yaml:"questionLimit"`
		QuestionTimeout string `yaml:"questionTimeout"`
		Shuffle         bool   `yaml:"shuffle"`
		CacheTTL        string `yaml:"cacheTTL"`
	} `yaml:"quiz"`
	Auth struct {
		RegistrationLimit int    `yaml:"registrationLimit"`
		AdminName         string `yaml:"adminName"`
		AdminPassword     string `yaml:"adminPassword"`
	} `yaml:"auth"`
	Leaderboard struct {
		Size int `yaml:"size"`
	} `yaml:"leaderboard"`
}

// Load reads YAML config from path. A missing file yields the zero config,
// which every consumer fills with defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// UsePostgres reports whether the record store lives in Postgres.
func (c Config) UsePostgres() bool {
	return c.Storage.Driver == "postgres"
}

// DataDir is where CSV tables live.
func (c Config) DataDir() string {
	if c.Storage.DataDir == "" {
		return "data"
	}
	return c.Storage.DataDir
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
