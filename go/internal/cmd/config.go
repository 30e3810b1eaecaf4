package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration, loaded from config.yaml
// with environment overrides for deployment-specific values.
type Config struct {
	Port    string `yaml:"port"`
	Storage struct {
		Backend string `yaml:"backend"` // memory | postgres
	} `yaml:"storage"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	Contest struct {
		AuctionDurationSeconds int `yaml:"auction_duration_seconds"`
		CodingDurationSeconds  int `yaml:"coding_duration_seconds"`
		TickSeconds            int `yaml:"tick_seconds"`
		ScanIntervalSeconds    int `yaml:"scan_interval_seconds"`
		QuorumPollSeconds      int `yaml:"quorum_poll_seconds"`
		PacingGapSeconds       int `yaml:"pacing_gap_seconds"`
	} `yaml:"contest"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	var config Config

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment overrides and defaults.
	config.Port = getEnv("PORT", defaultString(config.Port, "8080"))
	config.Storage.Backend = getEnv("STORAGE_BACKEND", defaultString(config.Storage.Backend, "memory"))
	config.NATS.URL = getEnv("NATS_URL", defaultString(config.NATS.URL, "nats://localhost:4222"))

	config.Contest.AuctionDurationSeconds = getEnvAsInt("AUCTION_DURATION_SECONDS", defaultInt(config.Contest.AuctionDurationSeconds, 60))
	config.Contest.CodingDurationSeconds = getEnvAsInt("CODING_DURATION_SECONDS", defaultInt(config.Contest.CodingDurationSeconds, 900))
	config.Contest.TickSeconds = defaultInt(config.Contest.TickSeconds, 1)
	config.Contest.ScanIntervalSeconds = defaultInt(config.Contest.ScanIntervalSeconds, 60)
	config.Contest.QuorumPollSeconds = defaultInt(config.Contest.QuorumPollSeconds, 30)
	config.Contest.PacingGapSeconds = defaultInt(config.Contest.PacingGapSeconds, 3)

	return &config, nil
}

func (c *Config) auctionDuration() time.Duration {
	return time.Duration(c.Contest.AuctionDurationSeconds) * time.Second
}

func (c *Config) codingDuration() time.Duration {
	return time.Duration(c.Contest.CodingDurationSeconds) * time.Second
}

func (c *Config) tickInterval() time.Duration {
	return time.Duration(c.Contest.TickSeconds) * time.Second
}

func (c *Config) scanInterval() time.Duration {
	return time.Duration(c.Contest.ScanIntervalSeconds) * time.Second
}

func (c *Config) quorumPollInterval() time.Duration {
	return time.Duration(c.Contest.QuorumPollSeconds) * time.Second
}

func (c *Config) pacingGap() time.Duration {
	return time.Duration(c.Contest.PacingGapSeconds) * time.Second
}

func defaultString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func defaultInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
