package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// OptimizeConfig holds the pipeline defaults applied to every request
type OptimizeConfig struct {
	MaxWidth    int     `mapstructure:"max_width"`
	MaxHeight   int     `mapstructure:"max_height"`
	Quality     float64 `mapstructure:"quality"`
	ThresholdKB int64   `mapstructure:"threshold_kb"`
	Placeholder bool    `mapstructure:"placeholder"`
}

// StorageConfig holds the S3-compatible bucket settings. An empty endpoint
// disables uploads.
type StorageConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Bucket     string `mapstructure:"bucket"`
	Region     string `mapstructure:"region"`
	UseSSL     bool   `mapstructure:"use_ssl"`
	BaseFolder string `mapstructure:"base_folder"`
	PublicURL  string `mapstructure:"public_url"`
}

// LogConfig controls the global zerolog logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Config holds application configuration
type Config struct {
	Port            int            `mapstructure:"port"`
	MaxUploadMB     int            `mapstructure:"max_upload_mb"`
	MaxConcurrent   int            `mapstructure:"max_concurrent"`
	RateLimitPerSec int            `mapstructure:"rate_limit"`
	RateLimitBurst  int            `mapstructure:"rate_limit_burst"`
	WorkerCount     int            `mapstructure:"worker_count"`
	AllowedOrigins  []string       `mapstructure:"allowed_origins"`
	Optimize        OptimizeConfig `mapstructure:"optimize"`
	Storage         StorageConfig  `mapstructure:"storage"`
	Log             LogConfig      `mapstructure:"log"`
}

// Load reads configuration from defaults, the config file when one is named and
// environment variables, in increasing order of precedence.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	bindEnvVars(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config into struct: %w", err)
	}

	// comma separated when coming from the environment
	cfg.AllowedOrigins = splitList(strings.Join(cfg.AllowedOrigins, ","))

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("max_upload_mb", 20)
	v.SetDefault("max_concurrent", 50)
	v.SetDefault("rate_limit", 10)
	v.SetDefault("rate_limit_burst", 20)
	v.SetDefault("worker_count", 4)
	v.SetDefault("allowed_origins", []string{"*"})

	v.SetDefault("optimize.max_width", 1920)
	v.SetDefault("optimize.max_height", 1080)
	v.SetDefault("optimize.quality", 0.8)
	v.SetDefault("optimize.threshold_kb", 500)
	v.SetDefault("optimize.placeholder", false)

	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.base_folder", "uploads")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// bindEnvVars keeps the flat variable names the service has always read
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("port", "PORT")
	v.BindEnv("max_upload_mb", "MAX_UPLOAD_MB")
	v.BindEnv("max_concurrent", "MAX_CONCURRENT")
	v.BindEnv("rate_limit", "RATE_LIMIT")
	v.BindEnv("rate_limit_burst", "RATE_LIMIT_BURST")
	v.BindEnv("worker_count", "WORKER_COUNT")
	v.BindEnv("allowed_origins", "CORS_ALLOWED_ORIGINS")

	v.BindEnv("optimize.max_width", "OPTIMIZE_MAX_WIDTH")
	v.BindEnv("optimize.max_height", "OPTIMIZE_MAX_HEIGHT")
	v.BindEnv("optimize.quality", "OPTIMIZE_QUALITY")
	v.BindEnv("optimize.threshold_kb", "OPTIMIZE_THRESHOLD_KB")
	v.BindEnv("optimize.placeholder", "OPTIMIZE_PLACEHOLDER")

	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.bucket", "STORAGE_BUCKET")
	v.BindEnv("storage.region", "STORAGE_REGION")
	v.BindEnv("storage.use_ssl", "STORAGE_USE_SSL")
	v.BindEnv("storage.base_folder", "STORAGE_BASE_FOLDER")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")

	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.pretty", "LOG_PRETTY")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
