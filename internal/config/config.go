// Package config loads the engine configuration from environment variables
// with validated defaults. Signal-flag thresholds, ranking weights and stage
// budgets are all configurable here, never buried in logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"govigil/domain/signal"
)

// Config is the complete application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Analysis AnalysisConfig
	Exec     ExecConfig
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Port       string
	ReportPort string
	GinMode    string
}

// DatabaseConfig holds the optional Postgres cache store settings. An empty
// URL disables persistence; the in-memory cache always runs.
type DatabaseConfig struct {
	URL string
}

// AnalysisConfig holds the statistical and heuristic tuning knobs
type AnalysisConfig struct {
	Thresholds signal.Thresholds
	PriorAlpha float64
	PriorBeta  float64

	DefaultTopK     int
	ClusterK        int
	ClusterMinCases int

	DedupeThreshold float64
	DedupeMaxCases  int

	AnnealerEnabled bool
	AnnealerSeed    int64
}

// ExecConfig holds the router's venue and budget settings
type ExecConfig struct {
	// Stage budgets; on overrun the caller gets a typed partial-result error
	RankingBudget    time.Duration
	FilteringBudget  time.Duration
	StatisticsBudget time.Duration

	// Datasets larger than LocalMaxCases prefer the remote venue
	LocalMaxCases int
	// Remote venue parallelism across candidates
	Workers int

	CacheSize int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:       envStr("PORT", "8080"),
			ReportPort: envStr("REPORT_PORT", "8081"),
			GinMode:    envStr("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			URL: envStr("DATABASE_URL", ""),
		},
		Analysis: AnalysisConfig{
			Thresholds: signal.Thresholds{
				MinPRR:       envFloat("SIGNAL_MIN_PRR", 2.0),
				MinChiSquare: envFloat("SIGNAL_MIN_CHI_SQUARE", 4.0),
				MinCases:     envInt("SIGNAL_MIN_CASES", 3),
			},
			PriorAlpha:      envFloat("EBGM_PRIOR_ALPHA", 1.0),
			PriorBeta:       envFloat("EBGM_PRIOR_BETA", 1.0),
			DefaultTopK:     envInt("RANKING_DEFAULT_TOP_K", 50),
			ClusterK:        envInt("CLUSTER_K", 3),
			ClusterMinCases: envInt("CLUSTER_MIN_CASES", 20),
			DedupeThreshold: envFloat("DEDUPE_THRESHOLD", 0.85),
			DedupeMaxCases:  envInt("DEDUPE_MAX_CASES", 5000),
			AnnealerEnabled: envBool("ANNEALER_ENABLED", false),
			AnnealerSeed:    int64(envInt("ANNEALER_SEED", 1)),
		},
		Exec: ExecConfig{
			RankingBudget:    envDuration("BUDGET_RANKING", 12*time.Second),
			FilteringBudget:  envDuration("BUDGET_FILTERING", 18*time.Second),
			StatisticsBudget: envDuration("BUDGET_STATISTICS", 30*time.Second),
			LocalMaxCases:    envInt("EXEC_LOCAL_MAX_CASES", 20000),
			Workers:          envInt("EXEC_WORKERS", 8),
			CacheSize:        envInt("CACHE_SIZE", 512),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Analysis.Thresholds.MinPRR <= 0 {
		return fmt.Errorf("SIGNAL_MIN_PRR must be positive")
	}
	if c.Analysis.DedupeThreshold <= 0 || c.Analysis.DedupeThreshold > 1 {
		return fmt.Errorf("DEDUPE_THRESHOLD must be in (0,1]")
	}
	if c.Exec.Workers <= 0 {
		return fmt.Errorf("EXEC_WORKERS must be positive")
	}
	if c.Exec.CacheSize <= 0 {
		return fmt.Errorf("CACHE_SIZE must be positive")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
