package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"media-artwork/internal/pkg/common"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Display   DisplayConfig   `mapstructure:"display"`
	Image     ImageConfig     `mapstructure:"image"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	LogLevel  string          `mapstructure:"log_level"`
	LogDir    string          `mapstructure:"log_dir"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodySize    int64         `mapstructure:"max_body_size"`
}

// DisplayConfig 螢幕尺寸（像素）
type DisplayConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// ImageConfig 圖片配置
type ImageConfig struct {
	MaxSizeBytes    int64         `mapstructure:"max_size_bytes"`
	MaxDimension    int           `mapstructure:"max_dimension"`
	MaxPixels       int64         `mapstructure:"max_pixels"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	OutputFormat    string        `mapstructure:"output_format"`
	JPEGQuality     int           `mapstructure:"jpeg_quality"`
}

// SessionConfig 處理工作階段設定
type SessionConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// RedisConfig 換曲事件訂閱設定
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件（不存在時忽略）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 設定預設值
	setDefaults()

	// 設定環境變數前綴
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 綁定環境變量
	viper.BindEnv("display.width", "DISPLAY_WIDTH")
	viper.BindEnv("display.height", "DISPLAY_HEIGHT")
	viper.BindEnv("redis.enabled", "REDIS_ENABLED")
	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	viper.BindEnv("log_level", "LOG_LEVEL")
	viper.BindEnv("log_dir", "LOG_DIR")

	// 設定設定檔名稱和路徑
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// 讀取設定檔
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 解析設定
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// setDefaults 設定預設值
func setDefaults() {
	// 應用程式設定
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.name", "media-artwork")

	// 伺服器設定
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.request_timeout", "30s")
	viper.SetDefault("server.max_body_size", 10<<20) // 10MB

	// 螢幕設定
	viper.SetDefault("display.width", 1080)
	viper.SetDefault("display.height", 2280)

	// 圖片設定
	viper.SetDefault("image.max_size_bytes", 10*1024*1024) // 10MB
	viper.SetDefault("image.max_dimension", 16384)
	viper.SetDefault("image.max_pixels", 64*1024*1024)
	viper.SetDefault("image.download_timeout", "15s")
	viper.SetDefault("image.output_format", "png")
	viper.SetDefault("image.jpeg_quality", 85)

	// 工作階段設定
	viper.SetDefault("session.queue_size", 16)

	// 限流設定
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 100)
	viper.SetDefault("rate_limit.window", "1m")

	// Redis 設定
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.channel", "media:artwork:changed")

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_dir", "logs")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return validationErrorf("server port is required")
	}
	if config.Server.MaxBodySize <= 0 {
		return validationErrorf("invalid server max body size")
	}

	// 驗證螢幕設定
	if config.Display.Width <= 0 || config.Display.Height <= 0 {
		return validationErrorf("invalid display size %dx%d", config.Display.Width, config.Display.Height)
	}

	// 驗證圖片設定
	if config.Image.MaxSizeBytes <= 0 {
		return validationErrorf("invalid image max size")
	}
	switch config.Image.OutputFormat {
	case "png", "jpeg":
	default:
		return validationErrorf("unsupported output format: %s", config.Image.OutputFormat)
	}
	if config.Image.OutputFormat == "jpeg" && (config.Image.JPEGQuality < 1 || config.Image.JPEGQuality > 100) {
		return validationErrorf("invalid jpeg quality: %d", config.Image.JPEGQuality)
	}

	// 驗證工作階段設定
	if config.Session.QueueSize <= 0 {
		return validationErrorf("invalid session queue size")
	}

	// 驗證限流設定
	if config.RateLimit.Enabled {
		if config.RateLimit.Requests <= 0 {
			return validationErrorf("invalid rate limit requests")
		}
		if config.RateLimit.Window <= 0 {
			return validationErrorf("invalid rate limit window")
		}
	}

	// 驗證 Redis 設定
	if config.Redis.Enabled {
		if config.Redis.Addr == "" {
			return validationErrorf("redis addr is required")
		}
		if config.Redis.Channel == "" {
			return validationErrorf("redis channel is required")
		}
	}

	return nil
}

func validationErrorf(format string, args ...interface{}) error {
	return common.NewValidationError(fmt.Sprintf(format, args...))
}
