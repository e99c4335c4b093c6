package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig          `mapstructure:"server"`
	Log       LogConfig             `mapstructure:"log"`
	Auth      AuthConfig            `mapstructure:"auth"`
	CORS      CORSConfig            `mapstructure:"cors"`
	RateLimit RateLimitConfig       `mapstructure:"rate_limit"`
	Redis     RedisConfig           `mapstructure:"redis"`
	Supabase  SupabaseConfig        `mapstructure:"supabase"`
	Storage   StorageConfig         `mapstructure:"storage"`
	Dispatch  DispatchConfig        `mapstructure:"dispatch"`
	Providers ProvidersConfig       `mapstructure:"providers"`
	Rules     map[string]RuleConfig `mapstructure:"rules"`
	Templates TemplatesConfig       `mapstructure:"templates"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

// CORSConfig holds CORS policy settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// RateLimitConfig holds per-client HTTP rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SupabaseConfig holds Supabase project settings.
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// StorageConfig selects the in-app store backend: "supabase" or "memory".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// DispatchConfig holds fan-out settings.
type DispatchConfig struct {
	Parallel bool `mapstructure:"parallel"`
}

// ProvidersConfig holds per-channel provider settings.
type ProvidersConfig struct {
	InApp InAppConfig `mapstructure:"in_app"`
	SMS   SMSConfig   `mapstructure:"sms"`
	Chat  ChatConfig  `mapstructure:"chat"`
	Email EmailConfig `mapstructure:"email"`
}

// InAppConfig holds in-app provider settings.
type InAppConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SMSConfig holds Aliyun SMS settings.
type SMSConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	SignName        string `mapstructure:"sign_name"`
	TemplateCode    string `mapstructure:"template_code"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	MaxPerHour      int    `mapstructure:"max_per_hour"`
}

// ChatConfig holds Feishu bot settings.
type ChatConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AppID      string `mapstructure:"app_id"`
	AppSecret  string `mapstructure:"app_secret"`
	ChatID     string `mapstructure:"chat_id"`
	BaseURL    string `mapstructure:"base_url"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// EmailConfig holds Resend settings.
type EmailConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	APIKey      string `mapstructure:"api_key"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

// RuleConfig overrides the routing rule of one channel. Values are the
// lowercase enum strings.
type RuleConfig struct {
	Enabled                  bool     `mapstructure:"enabled"`
	Importance               []string `mapstructure:"importance"`
	Types                    []string `mapstructure:"types"`
	RequiredKeywords         []string `mapstructure:"required_keywords"`
	Keywords                 []string `mapstructure:"keywords"`
	MinImportanceForKeywords string   `mapstructure:"min_importance_for_keywords"`
	MinDaysThreshold         int      `mapstructure:"min_days_threshold"`
	StrictDaysThreshold      bool     `mapstructure:"strict_days_threshold"`
}

// TemplatesConfig points at an optional template file merged over the built-in catalog.
type TemplatesConfig struct {
	File string `mapstructure:"file"`
}

// Load reads configuration from config.yaml and environment variables.
// Environment variables use the NOTIFYHUB_ prefix and underscore separators.
// Example: NOTIFYHUB_PROVIDERS_SMS_ENABLED overrides providers.sms.enabled.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	_ = godotenv.Load()

	v.SetEnvPrefix("NOTIFYHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// The config file is optional; env vars can provide everything.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.level", "info")
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("dispatch.parallel", false)

	// AutomaticEnv only resolves keys viper already knows about.
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.service_key", "")
	v.SetDefault("templates.file", "")

	v.SetDefault("providers.in_app.enabled", true)
	v.SetDefault("providers.sms.enabled", false)
	v.SetDefault("providers.sms.access_key_id", "")
	v.SetDefault("providers.sms.access_key_secret", "")
	v.SetDefault("providers.sms.sign_name", "")
	v.SetDefault("providers.sms.template_code", "")
	v.SetDefault("providers.sms.endpoint", "")
	v.SetDefault("providers.sms.region", "cn-hangzhou")
	v.SetDefault("providers.sms.max_per_hour", 100)
	v.SetDefault("providers.chat.enabled", false)
	v.SetDefault("providers.chat.app_id", "")
	v.SetDefault("providers.chat.app_secret", "")
	v.SetDefault("providers.chat.chat_id", "")
	v.SetDefault("providers.chat.base_url", "https://open.feishu.cn/open-apis")
	v.SetDefault("providers.chat.timeout_sec", 10)
	v.SetDefault("providers.email.enabled", false)
	v.SetDefault("providers.email.api_key", "")
	v.SetDefault("providers.email.from_address", "")
	v.SetDefault("providers.email.from_name", "")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Lists may arrive comma-separated from env vars.
	cfg.Auth.APIKeys = listSetting(v, "auth.api_keys", cfg.Auth.APIKeys)
	cfg.CORS.AllowedOrigins = listSetting(v, "cors.allowed_origins", cfg.CORS.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func listSetting(v *viper.Viper, key string, decoded []string) []string {
	if raw := v.GetString(key); raw != "" {
		return splitList(raw)
	}
	return splitList(strings.Join(decoded, ","))
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "supabase":
		if c.Supabase.URL == "" || c.Supabase.ServiceKey == "" {
			return errors.New("config: storage.driver supabase requires supabase.url and supabase.service_key")
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	if c.Providers.SMS.MaxPerHour < 0 {
		return errors.New("config: providers.sms.max_per_hour must not be negative")
	}
	return nil
}
