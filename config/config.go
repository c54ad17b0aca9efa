package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"db"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Log          LogConfig          `mapstructure:"log"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Timetable    TimetableConfig    `mapstructure:"timetable"`

	v      *viper.Viper
	mu     sync.Mutex
	onHook []func(*Config)
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	MaxBodyBytes int64      `mapstructure:"max_body_bytes"`
	CORS         CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（课表缓存 + 限流）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	Issuer         string        `mapstructure:"issuer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig OpenTelemetry 链路追踪配置
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"` // none | stdout | otlp
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	ServiceName  string  `mapstructure:"service_name"`
}

// RegistrationConfig 选课引擎配置
type RegistrationConfig struct {
	// PhaseName 选课/退课/换班所要求的阶段名称
	PhaseName string `mapstructure:"phase_name"`
	// RateLimit 每个客户端每个窗口允许的写操作次数
	RateLimit       int           `mapstructure:"rate_limit"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

// TimetableConfig 课表缓存与节次作息配置
type TimetableConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	WarmCron string        `mapstructure:"warm_cron"` // 空字符串表示不启用预热任务

	// 节次作息：第 n 节开始于 FirstPeriodAt + (n-1)*(PeriodLength+BreakLength)
	Timezone      string        `mapstructure:"timezone"`
	FirstPeriodAt string        `mapstructure:"first_period_at"` // HH:MM
	PeriodLength  time.Duration `mapstructure:"period_length"`
	BreakLength   time.Duration `mapstructure:"break_length"`
}

// Load 从 .env、配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "course_registration")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Ho_Chi_Minh")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.issuer", "course-registration")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.service_name", "course-registration")

	v.SetDefault("registration.phase_name", "registration")
	v.SetDefault("registration.rate_limit", 30)
	v.SetDefault("registration.rate_limit_window", "1m")

	v.SetDefault("timetable.cache_ttl", "30m")
	v.SetDefault("timetable.warm_cron", "*/10 * * * *")
	v.SetDefault("timetable.timezone", "Asia/Shanghai")
	v.SetDefault("timetable.first_period_at", "08:00")
	v.SetDefault("timetable.period_length", "45m")
	v.SetDefault("timetable.break_length", "10m")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("COURSEREG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if strings.TrimSpace(c.Registration.PhaseName) == "" {
		return fmt.Errorf("配置校验失败: registration.phase_name 不能为空")
	}
	if c.Registration.RateLimit < 0 {
		return fmt.Errorf("配置校验失败: registration.rate_limit 不能为负数")
	}
	if c.Timetable.FirstPeriodAt != "" {
		if _, err := time.Parse("15:04", c.Timetable.FirstPeriodAt); err != nil {
			return fmt.Errorf("配置校验失败: timetable.first_period_at 格式应为 HH:MM")
		}
	}
	if c.Timetable.Timezone != "" {
		if _, err := time.LoadLocation(c.Timetable.Timezone); err != nil {
			return fmt.Errorf("配置校验失败: timetable.timezone 无效: %w", err)
		}
	}
	if c.Timetable.PeriodLength < 0 || c.Timetable.BreakLength < 0 {
		return fmt.Errorf("配置校验失败: timetable 节次时长不能为负数")
	}
	return nil
}

// Watch 监听配置文件变化，重新解析后回调 fn
// 仅热更新日志级别等无状态配置；数据库、Redis 等连接参数需重启生效
func (c *Config) Watch(fn func(*Config)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}

	c.mu.Lock()
	c.onHook = append(c.onHook, fn)
	first := len(c.onHook) == 1
	c.mu.Unlock()

	if !first {
		return
	}

	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next := &Config{}
		if err := c.v.Unmarshal(next); err != nil {
			return
		}
		if err := next.Validate(); err != nil {
			return
		}

		c.mu.Lock()
		hooks := append([]func(*Config){}, c.onHook...)
		c.mu.Unlock()
		for _, h := range hooks {
			h(next)
		}
	})
	c.v.WatchConfig()
}
