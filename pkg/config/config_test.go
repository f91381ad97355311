package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, DefaultMaxPositionSizePercent, cfg.Limits.MaxPositionSizePercent)
	assert.Equal(t, SizingPercentage, cfg.Sizing.Method)
	assert.Equal(t, 5*time.Second, time.Duration(cfg.Providers.LookupTimeout))
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_gate.json")
	body := `{
		"environment": "production",
		"limits": {
			"max_position_size_percent": 0.05,
			"cooling_off_period": "12h"
		},
		"monitoring": {"prometheus_port": 9100}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 0.05, cfg.Limits.MaxPositionSizePercent)
	assert.Equal(t, 12*time.Hour, time.Duration(cfg.Limits.CoolingOffPeriod))
	assert.Equal(t, 9100, cfg.Monitoring.PrometheusPort)
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultMaxDrawdownPercent, cfg.Limits.MaxDrawdownPercent)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_gate.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"limits":{"max_open_positions": 4}}`), 0644))

	t.Setenv("RISK_MAX_OPEN_POSITIONS", "7")
	t.Setenv("RISK_MAX_DAILY_LOSS_PERCENT", "0.03")
	t.Setenv("BYBIT_API_KEY", "test-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Limits.MaxOpenPositions)
	assert.Equal(t, 0.03, cfg.Limits.MaxDailyLossPercent)
	assert.Equal(t, "test-key", cfg.Exchange.APIKey)
}

func TestLoad_RejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_gate.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"limits":{"max_drawdown_percent": 1.5}}`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRiskLimits_Validate(t *testing.T) {
	valid := DefaultRiskLimits()
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*RiskLimits)
	}{
		{"zero position size", func(l *RiskLimits) { l.MaxPositionSizePercent = 0 }},
		{"percent above one", func(l *RiskLimits) { l.MaxDailyLossPercent = 1.2 }},
		{"max stop below default stop", func(l *RiskLimits) { l.MaxStopLossPercent = 0.01 }},
		{"zero reward ratio", func(l *RiskLimits) { l.MinRiskRewardRatio = 0 }},
		{"leverage below one", func(l *RiskLimits) { l.MaxLeverage = 0.5 }},
		{"zero open positions", func(l *RiskLimits) { l.MaxOpenPositions = 0 }},
		{"zero loss streak", func(l *RiskLimits) { l.MaxConsecutiveLosses = 0 }},
		{"zero cooling off", func(l *RiskLimits) { l.CoolingOffPeriod = 0 }},
		{"max below min order", func(l *RiskLimits) { l.MaxOrderSize = 5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			limits := DefaultRiskLimits()
			tc.mutate(&limits)
			assert.Error(t, limits.Validate())
		})
	}
}

func TestSizingConfig_Validate(t *testing.T) {
	valid := DefaultSizingConfig()
	require.NoError(t, valid.Validate())

	bad := DefaultSizingConfig()
	bad.Method = "martingale"
	assert.Error(t, bad.Validate())

	bad = DefaultSizingConfig()
	bad.KellySafetyMultiplier = 1.5
	assert.Error(t, bad.Validate())
}

func TestDuration_JSONRoundTrip(t *testing.T) {
	var d Duration

	require.NoError(t, json.Unmarshal([]byte(`"90m"`), &d))
	assert.Equal(t, 90*time.Minute, time.Duration(d))

	require.NoError(t, json.Unmarshal([]byte(`30`), &d))
	assert.Equal(t, 30*time.Second, time.Duration(d))

	out, err := json.Marshal(Duration(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, `"1h0m0s"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}
