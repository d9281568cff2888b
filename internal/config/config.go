package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Model    ModelConfig    `yaml:"model" mapstructure:"model"`
	Training TrainingConfig `yaml:"training" mapstructure:"training"`
	Context  ContextConfig  `yaml:"context" mapstructure:"context"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the order store backend. Driver "none" selects the
// degraded mode: vendor context falls back to fixed defaults, prediction
// logging is skipped, and training always reports no_data.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API and the Prometheus listener.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	MetricsPort    int      `yaml:"metrics_port" mapstructure:"metrics_port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// ModelConfig configures the regression model. Lite disables the learned
// model entirely; only rule-based estimation runs.
type ModelConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	Lite bool   `yaml:"lite" mapstructure:"lite"`
}

// TrainingConfig configures the retraining pipeline.
type TrainingConfig struct {
	LookbackDays    int `yaml:"lookback_days" mapstructure:"lookback_days"`
	MinSamples      int `yaml:"min_samples" mapstructure:"min_samples"`
	CooldownSeconds int `yaml:"cooldown_seconds" mapstructure:"cooldown_seconds"`
}

// ContextConfig configures vendor context fetching and its degraded-mode
// defaults.
type ContextConfig struct {
	VelocityWindowMinutes int `yaml:"velocity_window_minutes" mapstructure:"velocity_window_minutes"`
	DefaultQueueDepth     int `yaml:"default_queue_depth" mapstructure:"default_queue_depth"`
	DefaultVelocity       int `yaml:"default_velocity" mapstructure:"default_velocity"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PREPTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("model.path", "models/prep_time_predictor.json")
	v.SetDefault("model.lite", false)
	v.SetDefault("training.lookback_days", 30)
	v.SetDefault("training.min_samples", 100)
	v.SetDefault("training.cooldown_seconds", 60)
	v.SetDefault("context.velocity_window_minutes", 15)
	v.SetDefault("context.default_queue_depth", 3)
	v.SetDefault("context.default_velocity", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Default returns the configuration produced by defaults alone, without
// consulting a file or the environment. Used by `config init`.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Unmarshal of defaults into a matching struct cannot fail.
	_ = v.Unmarshal(&cfg)
	return cfg
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
