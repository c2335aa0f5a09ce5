package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "STAGECAL"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "stagecal.db"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultTimezoneName    = "Asia/Tokyo"
	defaultCacheTTLMinutes = 10
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	LogLevel      string
	LogFormat     string
	TimezoneName  string
	VideoBaseURL  string
	VideoCacheTTL time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("timezone.name", defaultTimezoneName)
	configViper.SetDefault("videos.cache_ttl_minutes", defaultCacheTTLMinutes)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		LogLevel:      configViper.GetString("log.level"),
		LogFormat:     configViper.GetString("log.format"),
		TimezoneName:  configViper.GetString("timezone.name"),
		VideoBaseURL:  configViper.GetString("videos.base_url"),
		VideoCacheTTL: time.Duration(configViper.GetInt("videos.cache_ttl_minutes")) * time.Minute,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.VideoBaseURL) == "" {
		return fmt.Errorf("videos.base_url is required")
	}
	if strings.TrimSpace(c.TimezoneName) == "" {
		return fmt.Errorf("timezone.name is required")
	}
	if _, err := time.LoadLocation(c.TimezoneName); err != nil {
		return fmt.Errorf("timezone.name is invalid: %w", err)
	}
	return nil
}
