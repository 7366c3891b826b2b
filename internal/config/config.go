package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config 通知服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig

	HTTP struct {
		Addr string // HTTP 监听地址，如 ":8086"
	}

	// 通知服务特定配置
	Notify struct {
		// 扫描配置
		GraceMinutes       int    // 服药宽限期（分钟），超过后视为未服药并通知保护人
		MissedAfterMinutes int    // pending → missed 状态转换阈值（分钟），与通知宽限期独立
		TriggerMode        string // 扫描触发模式："http"（外部 cron 调用）或 "poll"（内部轮询）
		ScanInterval       int    // poll 模式下的扫描间隔（分钟）

		// 升级（failover）配置
		AckTimeout      int // Push 确认等待截止时间（秒）
		AckPollInterval int // 确认状态轮询间隔（秒）
		SMSCooldown     int // 同一号码 SMS 冷却窗口（秒）

		// Redis 配置
		AckKeyPrefix string // 确认记录键前缀，如 "notify:ack:"
		AckTTLHours  int    // 确认记录 TTL（小时）
		EventStream  string // 升级结果发布的 Redis Stream
	}

	// Push 通道配置
	Push struct {
		Endpoint  string // Push 提供商端点（FCM 风格）
		ServerKey string // 提供商服务端密钥
		DryRun    bool   // 干跑模式：只记录日志不调用提供商
	}

	// SMS 通道配置
	SMS struct {
		Endpoint   string // SMS 提供商端点（Solapi 风格）
		APIKey     string // 提供商 API 密钥
		FromNumber string // 发送方号码
		DryRun     bool   // 干跑模式：只记录日志不调用提供商
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "seniorcare")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8086")

	// 通知服务配置
	cfg.Notify.GraceMinutes = getEnvInt("NOTIFY_GRACE_MINUTES", 30)
	cfg.Notify.MissedAfterMinutes = getEnvInt("NOTIFY_MISSED_AFTER_MINUTES", 60)
	cfg.Notify.TriggerMode = getEnv("NOTIFY_TRIGGER_MODE", "http")
	cfg.Notify.ScanInterval = getEnvInt("SCAN_INTERVAL_MINUTES", 30)
	cfg.Notify.AckTimeout = getEnvInt("NOTIFY_ACK_TIMEOUT_SECONDS", 60)
	cfg.Notify.AckPollInterval = getEnvInt("NOTIFY_ACK_POLL_SECONDS", 5)
	cfg.Notify.SMSCooldown = getEnvInt("NOTIFY_SMS_COOLDOWN_SECONDS", 180)
	cfg.Notify.AckKeyPrefix = getEnv("NOTIFY_ACK_KEY_PREFIX", "notify:ack:")
	cfg.Notify.AckTTLHours = getEnvInt("NOTIFY_ACK_TTL_HOURS", 24)
	cfg.Notify.EventStream = getEnv("NOTIFY_EVENT_STREAM", "notify:escalations")

	// Push 通道
	cfg.Push.Endpoint = getEnv("PUSH_ENDPOINT", "https://fcm.googleapis.com/fcm/send")
	cfg.Push.ServerKey = getEnv("PUSH_SERVER_KEY", "")
	// 凭证缺失时默认干跑，避免开发环境误调提供商
	cfg.Push.DryRun = getEnvBool("PUSH_DRY_RUN", cfg.Push.ServerKey == "")

	// SMS 通道
	cfg.SMS.Endpoint = getEnv("SMS_ENDPOINT", "https://api.solapi.com/messages/v4/send")
	cfg.SMS.APIKey = getEnv("SMS_API_KEY", "")
	cfg.SMS.FromNumber = getEnv("SMS_FROM_NUMBER", "")
	cfg.SMS.DryRun = getEnvBool("SMS_DRY_RUN", cfg.SMS.APIKey == "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.Notify.TriggerMode != "http" && cfg.Notify.TriggerMode != "poll" {
		return nil, fmt.Errorf("invalid NOTIFY_TRIGGER_MODE: %s", cfg.Notify.TriggerMode)
	}
	if cfg.Notify.AckPollInterval <= 0 || cfg.Notify.AckPollInterval >= cfg.Notify.AckTimeout {
		return nil, fmt.Errorf("ack poll interval must be positive and shorter than ack timeout")
	}
	// 零值扫描间隔会让 time.NewTicker panic
	if cfg.Notify.ScanInterval <= 0 {
		return nil, fmt.Errorf("SCAN_INTERVAL_MINUTES must be positive")
	}
	if cfg.Notify.SMSCooldown <= 0 {
		return nil, fmt.Errorf("NOTIFY_SMS_COOLDOWN_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
