package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
	Quota    QuotaConfig    `mapstructure:"quota"`
	Checkin  CheckinConfig  `mapstructure:"checkin"`
	Cron     CronConfig     `mapstructure:"cron"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Console  ConsoleConfig  `mapstructure:"console"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

type QuotaConfig struct {
	Timezone           string `mapstructure:"timezone"`             // 周期计算时区
	CacheMinutes       int    `mapstructure:"cache_minutes"`        // 订阅缓存时长
	DefaultDurationDay int    `mapstructure:"default_duration_day"` // 套餐默认天数
}

type CheckinConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	QuotaAmount int64  `mapstructure:"quota_amount"`
	Group       string `mapstructure:"group"`
}

type CronConfig struct {
	ExpireIntervalMinutes int `mapstructure:"expire_interval_minutes"`
	PurgeIntervalHours    int `mapstructure:"purge_interval_hours"`
}

type QueueConfig struct {
	UsageQueue string `mapstructure:"usage_queue"`
	MaxWorkers int    `mapstructure:"max_workers"`
}

type ConsoleConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	PrefsFile      string `mapstructure:"prefs_file"`
	DisplayMode    string `mapstructure:"display_mode"` // tokens, dollars
}

// Location 返回周期计算时区，加载失败时回退到 UTC+8
func (c QuotaConfig) Location() *time.Location {
	name := c.Timezone
	if name == "" {
		name = "Asia/Singapore"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("SGT", 8*60*60)
	}
	return loc
}

// CacheTTL 订阅缓存时长
func (c QuotaConfig) CacheTTL() time.Duration {
	if c.CacheMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.CacheMinutes) * time.Minute
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("jwt.expire_hours", 24*7)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("quota.timezone", "Asia/Singapore")
	v.SetDefault("quota.cache_minutes", 30)
	v.SetDefault("quota.default_duration_day", 30)
	v.SetDefault("checkin.enabled", false)
	v.SetDefault("checkin.quota_amount", 500000)
	v.SetDefault("checkin.group", "free")
	v.SetDefault("cron.expire_interval_minutes", 5)
	v.SetDefault("cron.purge_interval_hours", 24)
	v.SetDefault("queue.usage_queue", "subscription:usage_logs")
	v.SetDefault("queue.max_workers", 2)
	v.SetDefault("console.base_url", "http://127.0.0.1:3000")
	v.SetDefault("console.timeout_seconds", 15)
	v.SetDefault("console.prefs_file", "console_prefs.yaml")
	v.SetDefault("console.display_mode", "dollars")
}

func Load(configPath string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 配置文件缺失时使用默认值 + 环境变量
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
