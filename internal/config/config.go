package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port         int
	LogLevel     string
	DevMode      bool
	DatabasePath string

	// Reconciliation tolerances (currency units / fraction)
	ToleranceAmount     float64
	TolerancePercentage float64

	// Anomaly detection knobs
	ZScoreThreshold float64
	Contamination   float64
	AnomalySeed     int64

	// Capability flags. The core packages are always available; these
	// decide which sections the pipeline produces for callers.
	StatisticalAnomalies bool
	Forecasting          bool

	// Optional scheduled reconciliation of a workbook on disk
	WorkbookPath  string
	ReconSchedule string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnvAsInt("PORT", 8080),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		DatabasePath:         getEnv("DATABASE_PATH", "./data/reconciler.db"),
		ToleranceAmount:      getEnvAsFloat("TOLERANCE_AMOUNT", 1.0),
		TolerancePercentage:  getEnvAsFloat("TOLERANCE_PERCENTAGE", 0.001),
		ZScoreThreshold:      getEnvAsFloat("ZSCORE_THRESHOLD", 2.5),
		Contamination:        getEnvAsFloat("CONTAMINATION", 0.1),
		AnomalySeed:          int64(getEnvAsInt("ANOMALY_SEED", 42)),
		StatisticalAnomalies: getEnvAsBool("ENABLE_STATISTICAL_ANOMALIES", true),
		Forecasting:          getEnvAsBool("ENABLE_FORECASTING", true),
		WorkbookPath:         getEnv("RECON_WORKBOOK_PATH", ""),
		ReconSchedule:        getEnv("RECON_SCHEDULE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.ToleranceAmount < 0 {
		return fmt.Errorf("TOLERANCE_AMOUNT must be >= 0")
	}
	if c.Contamination <= 0 || c.Contamination >= 0.5 {
		return fmt.Errorf("CONTAMINATION must be in (0, 0.5)")
	}
	if c.WorkbookPath != "" && c.ReconSchedule == "" {
		return fmt.Errorf("RECON_SCHEDULE is required when RECON_WORKBOOK_PATH is set")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
