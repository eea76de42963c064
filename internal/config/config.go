package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Port              string `yaml:"port"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

type Data struct {
	UseMockData          bool `yaml:"use_mock_data"`
	PriceTTLSec          int  `yaml:"price_ttl_sec"`
	HistoryTTLSec        int  `yaml:"history_ttl_sec"`
	NewsTTLSec           int  `yaml:"news_ttl_sec"`
	FetchTimeoutSec      int  `yaml:"fetch_timeout_sec"`
	MaxRequestsPerMinute int  `yaml:"max_requests_per_minute"`
	Burst                int  `yaml:"burst"`
	CacheSweepMinutes    int  `yaml:"cache_sweep_minutes"`
}

type Outlook struct {
	PositiveHitRate float64 `yaml:"positive_hit_rate"`
	CautiousHitRate float64 `yaml:"cautious_hit_rate"`
	HighVolatility  float64 `yaml:"high_volatility"`
}

type OpenAI struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type Config struct {
	Server   Server  `yaml:"server"`
	Data     Data    `yaml:"data"`
	Outlook  Outlook `yaml:"outlook"`
	OpenAI   OpenAI  `yaml:"openai"`
	LogLevel string  `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		Data: Data{
			UseMockData:          true,
			PriceTTLSec:          30,
			HistoryTTLSec:        3600,
			NewsTTLSec:           21600,
			FetchTimeoutSec:      10,
			MaxRequestsPerMinute: 60,
			Burst:                5,
			CacheSweepMinutes:    5,
		},
		Outlook: Outlook{
			PositiveHitRate: 0.60,
			CautiousHitRate: 0.40,
			HighVolatility:  0.40,
		},
		OpenAI:   OpenAI{Model: "gpt-4o-mini"},
		LogLevel: "info",
	}
}

func (d Data) PriceTTL() time.Duration     { return time.Duration(d.PriceTTLSec) * time.Second }
func (d Data) HistoryTTL() time.Duration   { return time.Duration(d.HistoryTTLSec) * time.Second }
func (d Data) NewsTTL() time.Duration      { return time.Duration(d.NewsTTLSec) * time.Second }
func (d Data) FetchTimeout() time.Duration { return time.Duration(d.FetchTimeoutSec) * time.Second }

func (s Server) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSec) * time.Second
}

// Load reads YAML config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields
// so secrets stay out of the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	setInt(&cfg.Server.RequestTimeoutSec, "REQUEST_TIMEOUT_SEC")
	setBool(&cfg.Data.UseMockData, "USE_MOCK_DATA")
	setInt(&cfg.Data.PriceTTLSec, "PRICE_TTL_SEC")
	setInt(&cfg.Data.HistoryTTLSec, "HISTORY_TTL_SEC")
	setInt(&cfg.Data.NewsTTLSec, "NEWS_TTL_SEC")
	setInt(&cfg.Data.FetchTimeoutSec, "FETCH_TIMEOUT_SEC")
	setInt(&cfg.Data.MaxRequestsPerMinute, "MAX_RPM")
	setInt(&cfg.Data.Burst, "BURST")
	setInt(&cfg.Data.CacheSweepMinutes, "CACHE_SWEEP_MINUTES")
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var x int
	if _, err := fmt.Sscanf(v, "%d", &x); err == nil && x > 0 {
		*dst = x
	}
}

func setBool(dst *bool, key string) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		*dst = true
	case "0", "false", "no", "n":
		*dst = false
	}
}
