// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Weather   WeatherConfig   `yaml:"weather" mapstructure:"weather"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Reco      RecoConfig      `yaml:"reco" mapstructure:"reco"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// WeatherConfig configures the forecast provider and the thresholds the hard
// filter evaluates against.
type WeatherConfig struct {
	// Provider is "openweather" or "kma".
	Provider      string  `yaml:"provider" mapstructure:"provider"`
	APIKey        string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	KMAServiceKey string  `yaml:"kma_service_key" mapstructure:"kma_service_key"`
	KMABaseURL    string  `yaml:"kma_base_url" mapstructure:"kma_base_url"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Timezone      string  `yaml:"timezone" mapstructure:"timezone"`
	HotC          float64 `yaml:"hot_c" mapstructure:"hot_c"`
	ColdC         float64 `yaml:"cold_c" mapstructure:"cold_c"`
	HumidityHigh  int     `yaml:"humidity_high" mapstructure:"humidity_high"`
}

// PlacesConfig configures the place-search provider.
type PlacesConfig struct {
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Language       string  `yaml:"language" mapstructure:"language"`
	PageDelaySecs  float64 `yaml:"page_delay_secs" mapstructure:"page_delay_secs"`
	MaxPages       int     `yaml:"max_pages" mapstructure:"max_pages"`
	DefaultRadiusM int     `yaml:"default_radius_m" mapstructure:"default_radius_m"`
	RatePerSec     float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// AnthropicConfig holds Anthropic API settings for ranking and planning.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AuthConfig points at the upstream profile service.
type AuthConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RecoConfig holds pipeline policy knobs.
type RecoConfig struct {
	// TimePolicy is "window" (user start, midnight rollover) or "from_now"
	// (start pinned to now, past end rejected).
	TimePolicy string `yaml:"time_policy" mapstructure:"time_policy"`
	// WeatherFailure is "fail" (propagate) or "degrade" (filter proceeds with
	// no weather signals).
	WeatherFailure          string `yaml:"weather_failure" mapstructure:"weather_failure"`
	MaxConcurrentCategories int    `yaml:"max_concurrent_categories" mapstructure:"max_concurrent_categories"`
	RankTimeoutSecs         int    `yaml:"rank_timeout_secs" mapstructure:"rank_timeout_secs"`
}

// Timeout converts a seconds field with a fallback default.
func Timeout(secs int, def time.Duration) time.Duration {
	if secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}

// Load reads configuration from config.yaml and RECO_-prefixed environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RECO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("weather.provider", "openweather")
	v.SetDefault("weather.base_url", "https://api.openweathermap.org")
	v.SetDefault("weather.kma_base_url", "http://apis.data.go.kr/1360000/VilageFcstInfoService_2.0")
	v.SetDefault("weather.timeout_secs", 7)
	v.SetDefault("weather.timezone", "Asia/Seoul")
	v.SetDefault("weather.hot_c", 30)
	v.SetDefault("weather.cold_c", 0)
	v.SetDefault("weather.humidity_high", 85)
	v.SetDefault("places.base_url", "https://places.googleapis.com")
	v.SetDefault("places.timeout_secs", 10)
	v.SetDefault("places.language", "ko")
	v.SetDefault("places.page_delay_secs", 2.0)
	v.SetDefault("places.max_pages", 3)
	v.SetDefault("places.default_radius_m", 1500)
	v.SetDefault("places.rate_per_sec", 5)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.timeout_secs", 10)
	v.SetDefault("auth.timeout_secs", 10)
	v.SetDefault("reco.time_policy", "window")
	v.SetDefault("reco.weather_failure", "fail")
	v.SetDefault("reco.max_concurrent_categories", 4)
	v.SetDefault("reco.rank_timeout_secs", 10)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks policy enums and ranges.
func (c *Config) Validate() error {
	switch c.Weather.Provider {
	case "openweather", "kma":
	default:
		return eris.Errorf("config: weather.provider must be \"openweather\" or \"kma\", got %q", c.Weather.Provider)
	}
	switch c.Reco.TimePolicy {
	case "window", "from_now":
	default:
		return eris.Errorf("config: reco.time_policy must be \"window\" or \"from_now\", got %q", c.Reco.TimePolicy)
	}
	switch c.Reco.WeatherFailure {
	case "fail", "degrade":
	default:
		return eris.Errorf("config: reco.weather_failure must be \"fail\" or \"degrade\", got %q", c.Reco.WeatherFailure)
	}
	if c.Reco.MaxConcurrentCategories <= 0 {
		return eris.New("config: reco.max_concurrent_categories must be > 0")
	}
	if c.Places.DefaultRadiusM <= 0 {
		return eris.New("config: places.default_radius_m must be > 0")
	}
	if c.Weather.HotC <= c.Weather.ColdC {
		return eris.Errorf("config: weather.hot_c (%.1f) must exceed weather.cold_c (%.1f)",
			c.Weather.HotC, c.Weather.ColdC)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
