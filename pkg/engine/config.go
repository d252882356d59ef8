package engine

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Interview     InterviewConfig     `mapstructure:"interview"`
	Persistence   PersistenceConfig   `mapstructure:"persistence"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT  VendorConfig `mapstructure:"stt"`
	TTS  VendorConfig `mapstructure:"tts"`
	Turn VendorConfig `mapstructure:"turn"`
}

type InterviewConfig struct {
	MinWords            int `mapstructure:"min_words"`
	MinChars            int `mapstructure:"min_chars"`
	DuplicateWindowMS   int `mapstructure:"duplicate_window_ms"`
	RateLimitCooldownMS int `mapstructure:"rate_limit_cooldown_ms"`
	FailureCooldownMS   int `mapstructure:"failure_cooldown_ms"`
	SilenceWindowMS     int `mapstructure:"silence_window_ms"`
	ResumeGraceMS       int `mapstructure:"resume_grace_ms"`
}

type PersistenceConfig struct {
	Driver          string `mapstructure:"driver"`
	Path            string `mapstructure:"path"`
	FlushIntervalMS int    `mapstructure:"flush_interval_ms"`
}

type ObservabilityConfig struct {
	Metrics     string `mapstructure:"metrics"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.path", "/v1/room")
	v.SetDefault("interview.min_words", 3)
	v.SetDefault("interview.min_chars", 12)
	v.SetDefault("interview.duplicate_window_ms", 10000)
	v.SetDefault("interview.rate_limit_cooldown_ms", 30000)
	v.SetDefault("interview.failure_cooldown_ms", 2000)
	v.SetDefault("interview.silence_window_ms", 1000)
	v.SetDefault("interview.resume_grace_ms", 400)
	v.SetDefault("persistence.driver", "memory")
	v.SetDefault("persistence.flush_interval_ms", 2000)
	v.SetDefault("observability.metrics", "none")
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.STT.Provider) == "" {
		return fmt.Errorf("vendors.stt.provider is required")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Turn.Provider) == "" {
		return fmt.Errorf("vendors.turn.provider is required")
	}
	if c.Persistence.Driver == "sqlite" && strings.TrimSpace(c.Persistence.Path) == "" {
		return fmt.Errorf("persistence.path is required for the sqlite driver")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.Turn.Settings = expandSettings(cfg.Vendors.Turn.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				expanded := os.ExpandEnv(val.String())
				v.SetMapIndex(key, reflect.ValueOf(expanded))
			}
		}
	}
}
