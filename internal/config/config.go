// Package config 提供配置管理
//
// 加载顺序：.env 文件 -> 环境变量（含默认值） -> SEKOU_CONFIG 指定的 YAML 文件覆盖
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sekou/sekou/pkg/assignment"
	"github.com/sekou/sekou/pkg/logger"
	"github.com/sekou/sekou/pkg/model"
)

// Config 应用配置
type Config struct {
	App        AppConfig         `yaml:"app" envPrefix:"APP_"`
	Log        logger.Config     `yaml:"log" envPrefix:"LOG_"`
	Calendar   CalendarConfig    `yaml:"calendar" envPrefix:"CALENDAR_"`
	Storage    StorageConfig     `yaml:"storage" envPrefix:"STORAGE_"`
	Database   DatabaseConfig    `yaml:"database" envPrefix:"DB_"`
	Redis      RedisConfig       `yaml:"redis" envPrefix:"REDIS_"`
	Assignment assignment.Config `yaml:"assignment" envPrefix:"ASSIGNMENT_"`
	Session    SessionConfig     `yaml:"session" envPrefix:"SESSION_"`
	Mock       MockConfig        `yaml:"mock" envPrefix:"MOCK_"`
	API        APIConfig         `yaml:"api" envPrefix:"API_"`
	Metrics    MetricsConfig     `yaml:"metrics" envPrefix:"METRICS_"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name            string        `yaml:"name" env:"NAME" envDefault:"sekou"`
	Env             string        `yaml:"env" env:"ENV" envDefault:"development"`
	Port            int           `yaml:"port" env:"PORT" envDefault:"7012"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	DefaultTenant   string        `yaml:"default_tenant" env:"DEFAULT_TENANT" envDefault:"default"`
}

// CalendarConfig 日历配置
type CalendarConfig struct {
	Timezone   string           `yaml:"timezone" env:"TIMEZONE" envDefault:"Asia/Tokyo"`
	MaxPerCell int              `yaml:"max_per_cell" env:"MAX_PER_CELL" envDefault:"3"`
	TimeSlots  []model.TimeSlot `yaml:"time_slots"`
}

// Location 返回日历时区
func (c *CalendarConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Slots 返回时间段定义，未配置时使用默认值
func (c *CalendarConfig) Slots() []model.TimeSlot {
	if len(c.TimeSlots) == 0 {
		return model.DefaultTimeSlots()
	}
	return c.TimeSlots
}

// StorageConfig 存储配置
type StorageConfig struct {
	Driver string `yaml:"driver" env:"DRIVER" envDefault:"memory"` // memory/redis/postgres
	Prefix string `yaml:"prefix" env:"PREFIX" envDefault:"sekou"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string        `yaml:"host" env:"HOST" envDefault:"localhost"`
	Port            int           `yaml:"port" env:"PORT" envDefault:"5432"`
	Name            string        `yaml:"name" env:"NAME" envDefault:"sekou"`
	User            string        `yaml:"user" env:"USER" envDefault:"sekou"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE" envDefault:"disable"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME" envDefault:"5m"`
	SlowQuery       time.Duration `yaml:"slow_query" env:"SLOW_QUERY" envDefault:"100ms"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string `yaml:"host" env:"HOST" envDefault:"localhost"`
	Port     int    `yaml:"port" env:"PORT" envDefault:"6379"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB" envDefault:"0"`
	PoolSize int    `yaml:"pool_size" env:"POOL_SIZE" envDefault:"10"`
}

// Addr 返回Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionConfig 会话配置
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl" env:"TTL" envDefault:"12h"`
}

// MockConfig 内置排程 API 配置
type MockConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED" envDefault:"true"`
	// Latency 人为延迟，用于演示重新计算
	Latency time.Duration `yaml:"latency" env:"LATENCY" envDefault:"0s"`
	// APIKey 非空时调用方必须携带 X-API-Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
}

// APIConfig API配置
type APIConfig struct {
	RateLimit int           `yaml:"rate_limit" env:"RATE_LIMIT" envDefault:"100"` // 每租户每分钟
	Burst     int           `yaml:"burst" env:"BURST" envDefault:"20"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT" envDefault:"30s"`
	CORS      CORSConfig    `yaml:"cors" envPrefix:"CORS_"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled" env:"ENABLED" envDefault:"true"`
	Origins []string `yaml:"origins" env:"ORIGINS" envDefault:"*" envSeparator:","`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED" envDefault:"true"`
	Path    string `yaml:"path" env:"PATH" envDefault:"/metrics"`
}

// Load 加载配置
func Load() (*Config, error) {
	// .env 不存在时只依赖环境变量
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "SEKOU_"}); err != nil {
		aggErr := env.AggregateError{}
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			return nil, fmt.Errorf("parse env: %w", aggErr.Errors[0])
		}
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if path := os.Getenv("SEKOU_CONFIG"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile 用 YAML 文件覆盖已加载的配置，文件中未出现的字段保持原值
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := c.Calendar.Location(); err != nil {
		return fmt.Errorf("invalid calendar timezone %q: %w", c.Calendar.Timezone, err)
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.App.Port)
	}
	return nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
