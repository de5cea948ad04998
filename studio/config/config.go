package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	studio "github.com/ZanzyTHEbar/video-studio/studio"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	App        AppSettings      `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Session    SessionConfig    `mapstructure:"session"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Intent     IntentConfig     `mapstructure:"intent"`
	Enhance    EnhanceConfig    `mapstructure:"enhance"`
	Generation GenerationConfig `mapstructure:"generation"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

// AppSettings stores process-wide settings.
type AppSettings struct {
	Env      string `mapstructure:"env"`       // "development" | "production"
	LogLevel string `mapstructure:"log_level"` // zerolog level name
}

// IsDevelopment reports whether the console log writer should be used.
func (c AppSettings) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerConfig stores the HTTP boundary settings.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 0 keeps /events streams open
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	EventBuffer  int           `mapstructure:"event_buffer"` // per-subscriber channel size
}

// SessionConfig stores per-session conversation settings.
type SessionConfig struct {
	WelcomeMessage string `mapstructure:"welcome_message"` // empty disables the greeting
	MaxInputLength int    `mapstructure:"max_input_length"`
}

// PipelineConfig stores orchestration settings.
type PipelineConfig struct {
	DefaultProfile string        `mapstructure:"default_profile"`
	StageTimeout   time.Duration `mapstructure:"stage_timeout"` // 0 disables stage deadlines

	// Latency simulation
	SimulateLatency bool `mapstructure:"simulate_latency"`

	// Directive cache
	CacheEnabled    bool `mapstructure:"cache_enabled"`
	CacheCapacity   int  `mapstructure:"cache_capacity"`
	CacheTTLSeconds int  `mapstructure:"cache_ttl_seconds"`

	// Per-profile generation limiter
	RateLimitEnabled    bool          `mapstructure:"rate_limit_enabled"`
	RateLimitCapacity   int           `mapstructure:"rate_limit_capacity"`
	RateLimitRefillRate time.Duration `mapstructure:"rate_limit_refill_rate"`

	// Safety and validation
	EnableGuardrails bool `mapstructure:"enable_guardrails"`

	// Telemetry
	EnableTracing bool `mapstructure:"enable_tracing"`
	EnableMetrics bool `mapstructure:"enable_metrics"`
	StatsWindow   int  `mapstructure:"stats_window"` // samples kept per stage
}

// IntentConfig stores the classifier lexicon.
type IntentConfig struct {
	GenerationVerbs   []string `mapstructure:"generation_verbs"`
	ModificationVerbs []string `mapstructure:"modification_verbs"`
}

// EnhanceConfig stores the enhancement keyword sets and latency ranges.
type EnhanceConfig struct {
	MinLatency       time.Duration `mapstructure:"min_latency"`
	MaxLatency       time.Duration `mapstructure:"max_latency"`
	RefineMinLatency time.Duration `mapstructure:"refine_min_latency"`
	RefineMaxLatency time.Duration `mapstructure:"refine_max_latency"`
	Resolution       string        `mapstructure:"resolution"`

	Subjects          []string `mapstructure:"subjects"`
	Actions           []string `mapstructure:"actions"`
	Settings          []string `mapstructure:"settings"`
	AbstractKeywords  []string `mapstructure:"abstract_keywords"`
	ModificationVerbs []string `mapstructure:"modification_verbs"`
}

// GenerationConfig stores backend settings.
type GenerationConfig struct {
	Custom CustomBackendConfig `mapstructure:"custom"`
}

// CustomBackendConfig configures the user-supplied HTTP generation backend.
type CustomBackendConfig struct {
	Name        string        `mapstructure:"name"`
	Endpoint    string        `mapstructure:"endpoint"` // empty keeps the simulated backend
	APIKey      string        `mapstructure:"api_key"`
	Description string        `mapstructure:"description"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the optional message log mirror.
type StorageConfig struct {
	Backend    string `mapstructure:"backend"` // "none" | "libsql" | "redis"
	LibSQLPath string `mapstructure:"libsql_path"`
	RedisURL   string `mapstructure:"redis_url"`
}

var AppConfig Config

var (
	activeMu sync.Mutex
	active   *viper.Viper
)

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env is the common case outside development.
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(filepath.Join("etc", studio.DefaultAppName))
		v.AddConfigPath(studio.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(studio.DefaultEnvPrefix)
	v.AutomaticEnv()
	// pipeline.stage_timeout becomes STUDIO_PIPELINE_STAGE_TIMEOUT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	activeMu.Lock()
	active = v
	AppConfig = *cfg
	activeMu.Unlock()

	return cfg, nil
}

// Watch re-reads the loaded config file whenever it changes on disk and
// hands the decoded result to onChange. It reports false when no file
// backs the current configuration.
func Watch(onChange func(*Config, error)) bool {
	activeMu.Lock()
	v := active
	activeMu.Unlock()

	if v == nil || v.ConfigFileUsed() == "" {
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err == nil {
			activeMu.Lock()
			AppConfig = *cfg
			activeMu.Unlock()
		}
		onChange(cfg, err)
	})
	v.WatchConfig()
	return true
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.addr", studio.DefaultServerAddr)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.event_buffer", 64)

	v.SetDefault("session.welcome_message", studio.WelcomeMessage)
	v.SetDefault("session.max_input_length", studio.DefaultMaxInputLength)

	v.SetDefault("pipeline.default_profile", studio.DefaultBackendProfile)
	v.SetDefault("pipeline.stage_timeout", "0s")
	v.SetDefault("pipeline.simulate_latency", true)
	v.SetDefault("pipeline.cache_enabled", true)
	v.SetDefault("pipeline.cache_capacity", 256)
	v.SetDefault("pipeline.cache_ttl_seconds", 3600) // 1 hour
	v.SetDefault("pipeline.rate_limit_enabled", true)
	v.SetDefault("pipeline.rate_limit_capacity", 4)
	v.SetDefault("pipeline.rate_limit_refill_rate", "1s")
	v.SetDefault("pipeline.enable_guardrails", true)
	v.SetDefault("pipeline.enable_tracing", true)
	v.SetDefault("pipeline.enable_metrics", true)
	v.SetDefault("pipeline.stats_window", 1000)

	v.SetDefault("intent.generation_verbs", DefaultGenerationVerbs)
	v.SetDefault("intent.modification_verbs", DefaultModificationVerbs)

	v.SetDefault("enhance.min_latency", "500ms")
	v.SetDefault("enhance.max_latency", "1500ms")
	v.SetDefault("enhance.refine_min_latency", "400ms")
	v.SetDefault("enhance.refine_max_latency", "1200ms")
	v.SetDefault("enhance.resolution", studio.DefaultResolution)
	v.SetDefault("enhance.subjects", DefaultSubjects)
	v.SetDefault("enhance.actions", DefaultActions)
	v.SetDefault("enhance.settings", DefaultSettings)
	v.SetDefault("enhance.abstract_keywords", DefaultAbstractKeywords)
	v.SetDefault("enhance.modification_verbs", DefaultModificationVerbs)

	v.SetDefault("generation.custom.name", "Custom API")
	v.SetDefault("generation.custom.description", "Your own model")
	v.SetDefault("generation.custom.timeout", "60s")

	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.libsql_path", studio.DefaultDatabasePath)
	v.SetDefault("storage.redis_url", "redis://localhost:6379/0")
}
