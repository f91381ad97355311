package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full risk-gate configuration.
type Config struct {
	Environment string       `json:"environment"`
	Limits      RiskLimits   `json:"limits"`
	Sizing      SizingConfig `json:"sizing"`

	Exchange struct {
		APIKey    string `json:"-"`
		APISecret string `json:"-"`
		Testnet   bool   `json:"testnet"`
		Demo      bool   `json:"demo"`
		Category  string `json:"category"`
	} `json:"exchange"`

	Providers struct {
		LookupTimeout Duration `json:"lookup_timeout"`
		// DefaultVolatility is used when the volatility provider is
		// unavailable or times out.
		DefaultVolatility float64 `json:"default_volatility"`
	} `json:"providers"`

	Monitoring struct {
		PrometheusPort int `json:"prometheus_port"`
		HealthPort     int `json:"health_port"`
	} `json:"monitoring"`
}

// Load reads the optional JSON config file, applies environment overrides,
// and validates the result. A missing file falls back to defaults; an invalid
// or unreadable file is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Environment: "development",
		Limits:      DefaultRiskLimits(),
		Sizing:      DefaultSizingConfig(),
	}
	cfg.Exchange.Category = "spot"
	cfg.Providers.LookupTimeout = Duration(5 * time.Second)
	cfg.Providers.DefaultVolatility = 0.02
	cfg.Monitoring.PrometheusPort = 8080
	cfg.Monitoring.HealthPort = 8081

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks all sections. Called once at startup; any failure is fatal.
func (c *Config) Validate() error {
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("risk limits: %w", err)
	}
	if err := c.Sizing.Validate(); err != nil {
		return fmt.Errorf("sizing: %w", err)
	}
	if time.Duration(c.Providers.LookupTimeout) <= 0 {
		return fmt.Errorf("providers: lookup_timeout must be positive, got: %s",
			time.Duration(c.Providers.LookupTimeout))
	}
	if c.Providers.DefaultVolatility < 0 {
		return fmt.Errorf("providers: default_volatility must be non-negative, got: %.4f",
			c.Providers.DefaultVolatility)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	c.Environment = getEnv("ENV", c.Environment)

	c.Exchange.APIKey = getEnv("BYBIT_API_KEY", c.Exchange.APIKey)
	c.Exchange.APISecret = getEnv("BYBIT_API_SECRET", c.Exchange.APISecret)
	c.Exchange.Testnet = getEnvBool("BYBIT_TESTNET", c.Exchange.Testnet)
	c.Exchange.Demo = getEnvBool("BYBIT_DEMO", c.Exchange.Demo)

	c.Limits.MaxPositionSizePercent = getEnvFloat("RISK_MAX_POSITION_SIZE_PERCENT", c.Limits.MaxPositionSizePercent)
	c.Limits.MaxDailyLossPercent = getEnvFloat("RISK_MAX_DAILY_LOSS_PERCENT", c.Limits.MaxDailyLossPercent)
	c.Limits.MaxDrawdownPercent = getEnvFloat("RISK_MAX_DRAWDOWN_PERCENT", c.Limits.MaxDrawdownPercent)
	c.Limits.MaxOpenPositions = getEnvInt("RISK_MAX_OPEN_POSITIONS", c.Limits.MaxOpenPositions)
	c.Limits.MaxConsecutiveLosses = getEnvInt("RISK_MAX_CONSECUTIVE_LOSSES", c.Limits.MaxConsecutiveLosses)
	if d := getEnvDuration("RISK_COOLING_OFF_PERIOD", 0); d > 0 {
		c.Limits.CoolingOffPeriod = Duration(d)
	}

	c.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", c.Monitoring.PrometheusPort)
	c.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", c.Monitoring.HealthPort)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
