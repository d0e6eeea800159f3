package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 存储后端
const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// 变更事件后端
const (
	EventsBackendNone  = "none"
	EventsBackendRedis = "redis"
	EventsBackendMQTT  = "mqtt"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	MaxConns    int
	MaxIdle     int
	AutoMigrate bool
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// Config whois 服务配置（批处理模式与网络服务共用）
type Config struct {
	Server struct {
		Addr         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		MaxConns     int   // 同时处理的连接上限
		MaxBodyBytes int64 // POST 请求体上限
	}
	Debug        bool
	StoreBackend string
	Database     DatabaseConfig
	Redis        RedisConfig
	Cache        struct {
		Enabled bool
		TTL     time.Duration
		Prefix  string
	}
	Events struct {
		Backend string
		Stream  string // Redis Streams 名称
	}
	MQTT MQTTConfig
	Log  struct {
		Level  string
		Format string
		Output string
	}
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Server.Addr = getEnv("WHOIS_ADDR", ":443")
	cfg.Server.ReadTimeout = time.Duration(parseInt(getEnv("WHOIS_READ_TIMEOUT", "10"), 10)) * time.Second
	cfg.Server.WriteTimeout = time.Duration(parseInt(getEnv("WHOIS_WRITE_TIMEOUT", "10"), 10)) * time.Second
	cfg.Server.MaxConns = parseInt(getEnv("WHOIS_MAX_CONNS", "64"), 64)
	cfg.Server.MaxBodyBytes = int64(parseInt(getEnv("WHOIS_MAX_BODY", "65536"), 65536))
	cfg.Debug = parseBool(getEnv("WHOIS_DEBUG", "false"))

	cfg.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres))

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "whois")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)
	cfg.Database.AutoMigrate = parseBool(getEnv("DB_AUTO_MIGRATE", "true"))

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	// 查询缓存（默认关闭）
	cfg.Cache.Enabled = parseBool(getEnv("CACHE_ENABLED", "false"))
	cfg.Cache.TTL = time.Duration(parseInt(getEnv("CACHE_TTL", "300"), 300)) * time.Second
	cfg.Cache.Prefix = getEnv("CACHE_PREFIX", "whois:lookup:")

	cfg.Events.Backend = strings.ToLower(getEnv("EVENTS_BACKEND", EventsBackendNone))
	cfg.Events.Stream = getEnv("EVENTS_STREAM", "whois:changes")

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "whois")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "whois/changes")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "console")
	cfg.Log.Output = getEnv("LOG_OUTPUT", "stderr")
	if cfg.Debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendPostgres, StoreBackendMemory:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.Events.Backend {
	case EventsBackendNone, EventsBackendRedis, EventsBackendMQTT:
	default:
		return fmt.Errorf("unsupported EVENTS_BACKEND %q", c.Events.Backend)
	}
	if c.Server.MaxConns <= 0 {
		return fmt.Errorf("WHOIS_MAX_CONNS must be positive, got %d", c.Server.MaxConns)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
