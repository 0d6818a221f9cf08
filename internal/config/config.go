package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Judge0     Judge0Config     `mapstructure:"judge0"`
	Spotify    SpotifyConfig    `mapstructure:"spotify"`
}

type ServerConfig struct {
	Port      string `mapstructure:"port"`
	Env       string `mapstructure:"env"`
	ClientURL string `mapstructure:"client_url"`
}

type EncryptionConfig struct {
	// Secret seeds the credential vault. When empty the vault generates an
	// ephemeral key and every stored secret dies with the process.
	Secret string `mapstructure:"secret"`
}

// ProvidersConfig holds server-side keys for the free providers. Paid
// providers (openai, anthropic, deepseek) are user-key only and never
// configured here.
type ProvidersConfig struct {
	GoogleAIKey string `mapstructure:"google_ai_key"`
	HFToken     string `mapstructure:"hf_token"`
	HFBaseURL   string `mapstructure:"hf_base_url"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type AnalyticsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type Judge0Config struct {
	BaseURL      string `mapstructure:"base_url"`
	AuthToken    string `mapstructure:"auth_token"`
	RapidAPIKey  string `mapstructure:"rapidapi_key"`
	RapidAPIHost string `mapstructure:"rapidapi_host"`
}

type SpotifyConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server.port", "3001")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.client_url", "http://localhost:3000")
	v.SetDefault("encryption.secret", "")
	v.SetDefault("providers.google_ai_key", "ENV:GOOGLE_AI_API_KEY")
	v.SetDefault("providers.hf_token", "ENV:HF_API_TOKEN")
	v.SetDefault("providers.hf_base_url", "https://router.huggingface.co/v1")
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("analytics.enabled", false)
	v.SetDefault("analytics.dsn", "file:gateway.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("judge0.base_url", "https://ce.judge0.com")
	v.SetDefault("judge0.rapidapi_host", "judge0-ce.p.rapidapi.com")
	v.SetDefault("spotify.redirect_uri", "http://localhost:3001/api/spotify/callback")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Resolve ENV: indirections so secrets never live in the config file
	cfg.Encryption.Secret = resolveEnv(v, cfg.Encryption.Secret)
	cfg.Providers.GoogleAIKey = resolveEnv(v, cfg.Providers.GoogleAIKey)
	cfg.Providers.HFToken = resolveEnv(v, cfg.Providers.HFToken)
	cfg.Judge0.AuthToken = resolveEnv(v, cfg.Judge0.AuthToken)
	cfg.Judge0.RapidAPIKey = resolveEnv(v, cfg.Judge0.RapidAPIKey)
	cfg.Spotify.ClientID = resolveEnv(v, cfg.Spotify.ClientID)
	cfg.Spotify.ClientSecret = resolveEnv(v, cfg.Spotify.ClientSecret)

	return &cfg, nil
}

func resolveEnv(v *viper.Viper, value string) string {
	if !strings.HasPrefix(value, "ENV:") {
		return value
	}
	envVar := strings.TrimPrefix(value, "ENV:")
	// Check process environment first (explicit override)
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return v.GetString(envVar)
}
