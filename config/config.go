package config

import (
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env               string           `mapstructure:"env"`
	LogLevel          string           `mapstructure:"log_level"`
	LogType           string           `mapstructure:"log_type"`
	ServiceName       string           `mapstructure:"service_name"`
	Port              string           `mapstructure:"port"`
	Version           string           `mapstructure:"version"`
	BrowserSettings   *BrowserConfig   `mapstructure:"browser"`
	ScraperSettings   *ScraperConfig   `mapstructure:"scraper"`
	SchedulerSettings *SchedulerConfig `mapstructure:"scheduler"`
	StoreSettings     *StoreConfig     `mapstructure:"store"`
	FeedSettings      *FeedConfig      `mapstructure:"feed"`
}

type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"`
	NavTimeout      time.Duration `mapstructure:"nav_timeout"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	BackoffCeiling  time.Duration `mapstructure:"backoff_ceiling"`
	ProxyEnabled    bool          `mapstructure:"proxy_enabled"`
	ProxyPool       []string      `mapstructure:"proxy_pool"`
	FixedViewportW  int           `mapstructure:"fixed_viewport_width"`
	FixedViewportH  int           `mapstructure:"fixed_viewport_height"`
	BlockResources  bool          `mapstructure:"block_resources"`
	HandleCaptcha   bool          `mapstructure:"handle_captcha"`
	CaptchaWaitTime time.Duration `mapstructure:"captcha_wait_time"`
}

type ScraperConfig struct {
	StaggerDelay   time.Duration `mapstructure:"stagger_delay"`
	ItemDelayMin   time.Duration `mapstructure:"item_delay_min"`
	ItemDelayMax   time.Duration `mapstructure:"item_delay_max"`
	SeedDelayMin   time.Duration `mapstructure:"seed_delay_min"`
	SeedDelayMax   time.Duration `mapstructure:"seed_delay_max"`
	FallbackSize   int           `mapstructure:"fallback_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type SchedulerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	FleetSpec string `mapstructure:"fleet_spec"`
	// SourceOffsetMinutes spaces the per-source triggers apart so the sources
	// stay decorrelated.
	SourceOffsetMinutes int `mapstructure:"source_offset_minutes"`
}

type StoreConfig struct {
	HistoryTTL  time.Duration `mapstructure:"history_ttl"`
	HistorySize int           `mapstructure:"history_size"`
}

type FeedConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	TopicName    string        `mapstructure:"topic_name"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
	Async        bool          `mapstructure:"async"`
}

func MustLoad() *Config {
	viper.AddConfigPath(path.Join("."))
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		slog.Error("can't initialize config file.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("error unmarshalling viper config.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	return &cfg
}
