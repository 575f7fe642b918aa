package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "openweather", cfg.Weather.Provider)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "Asia/Seoul", cfg.Weather.Timezone)
	assert.Equal(t, 30.0, cfg.Weather.HotC)
	assert.Equal(t, 0.0, cfg.Weather.ColdC)
	assert.Equal(t, 85, cfg.Weather.HumidityHigh)
	assert.Equal(t, 1500, cfg.Places.DefaultRadiusM)
	assert.Equal(t, 2.0, cfg.Places.PageDelaySecs)
	assert.Equal(t, "window", cfg.Reco.TimePolicy)
	assert.Equal(t, "fail", cfg.Reco.WeatherFailure)
	assert.Equal(t, 4, cfg.Reco.MaxConcurrentCategories)
	assert.Equal(t, 10, cfg.Reco.RankTimeoutSecs)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("RECO_RECO_TIME_POLICY", "from_now")
	t.Setenv("RECO_WEATHER_HOT_C", "28")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from_now", cfg.Reco.TimePolicy)
	assert.Equal(t, 28.0, cfg.Weather.HotC)
}

func TestValidateRejectsBadPolicies(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Reco.TimePolicy = "sometimes"
	assert.Error(t, cfg.Validate())

	cfg, _ = Load()
	cfg.Reco.WeatherFailure = "retry"
	assert.Error(t, cfg.Validate())

	cfg, _ = Load()
	cfg.Reco.MaxConcurrentCategories = 0
	assert.Error(t, cfg.Validate())

	cfg, _ = Load()
	cfg.Weather.HotC = -5
	cfg.Weather.ColdC = 0
	assert.Error(t, cfg.Validate())

	cfg, _ = Load()
	cfg.Weather.Provider = "accuweather"
	assert.Error(t, cfg.Validate())
}

func TestTimeoutHelper(t *testing.T) {
	assert.Equal(t, 7*time.Second, Timeout(7, time.Second))
	assert.Equal(t, time.Second, Timeout(0, time.Second))
	assert.Equal(t, time.Second, Timeout(-3, time.Second))
}
