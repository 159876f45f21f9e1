package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// FetchConfig 定义验证码取件的轮询与超时参数
type FetchConfig struct {
	TransportTimeout time.Duration // 单次邮箱请求超时，默认 30s
	PollInterval     time.Duration // 两次取件之间的间隔，默认 10s
	MaxAttempts      int           // 单次取码的最大取件次数，默认 30
	AcquireTimeout   time.Duration // 整次取码的超时，默认 5 分钟
	FallbackValidity time.Duration // 兜底码有效期，默认 10 分钟
	CodeValidity     time.Duration // 邮箱码默认有效期，默认 10 分钟
	EstimatedWait    int           // 返回给客户端的预估等待秒数，默认 30
	Workers          int           // 取码协程池大小，默认 8
	QueueSize        int           // 取码任务队列长度，默认 64
	CleanupInterval  time.Duration // 过期记录清扫间隔，默认 10 分钟
	IMAPLookback     time.Duration // IMAP 检索的回看窗口，默认 30 分钟
}

// ClassifierConfig 定义目标邮件识别参数
type ClassifierConfig struct {
	ServiceDomains []string // 发件域名白名单，留空使用内置列表
	Keywords       []string // 主题/正文关键词，留空使用内置列表
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Enabled  bool   // 是否启用验证码缓存与跨进程取件互斥
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "streamshare"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 15 分钟
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// RateLimitConfig 定义分享页接口的限流参数
type RateLimitConfig struct {
	PerMinute int // 单 IP 每分钟允许的请求数，默认 60
	Burst     int // 突发额度，默认 10
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server     ServerConfig     // HTTP 服务器配置
	Fetch      FetchConfig      // 取码流程配置
	Classifier ClassifierConfig // 邮件识别配置
	CORS       CORSConfig       // 跨域配置
	Log        LogConfig        // 日志配置
	Database   DatabaseConfig   // 数据库配置
	Redis      RedisConfig      // Redis 配置
	JWT        JWTConfig        // JWT 认证配置
	RateLimit  RateLimitConfig  // 限流配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: STREAMSHARE_
// 例如: STREAMSHARE_SERVER_HOST, STREAMSHARE_JWT_SECRET
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("streamshare")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("fetch.transport_timeout", "30s")
	viper.SetDefault("fetch.poll_interval", "10s")
	viper.SetDefault("fetch.max_attempts", 30)
	viper.SetDefault("fetch.acquire_timeout", "5m")
	viper.SetDefault("fetch.fallback_validity", "10m")
	viper.SetDefault("fetch.code_validity", "10m")
	viper.SetDefault("fetch.estimated_wait", 30)
	viper.SetDefault("fetch.workers", 8)
	viper.SetDefault("fetch.queue_size", 64)
	viper.SetDefault("fetch.cleanup_interval", "10m")
	viper.SetDefault("fetch.imap_lookback", "30m")
	viper.SetDefault("classifier.service_domains", "")
	viper.SetDefault("classifier.keywords", "")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "streamshare")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")
	viper.SetDefault("ratelimit.per_minute", 60)
	viper.SetDefault("ratelimit.burst", 10)

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set STREAMSHARE_JWT_SECRET environment variable")
	}

	// JWT secret 必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	maxAttempts := viper.GetInt("fetch.max_attempts")
	if maxAttempts <= 0 {
		return nil, fmt.Errorf("fetch.max_attempts must be positive")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Fetch: FetchConfig{
			TransportTimeout: duration("fetch.transport_timeout", 30*time.Second),
			PollInterval:     duration("fetch.poll_interval", 10*time.Second),
			MaxAttempts:      maxAttempts,
			AcquireTimeout:   duration("fetch.acquire_timeout", 5*time.Minute),
			FallbackValidity: duration("fetch.fallback_validity", 10*time.Minute),
			CodeValidity:     duration("fetch.code_validity", 10*time.Minute),
			EstimatedWait:    viper.GetInt("fetch.estimated_wait"),
			Workers:          viper.GetInt("fetch.workers"),
			QueueSize:        viper.GetInt("fetch.queue_size"),
			CleanupInterval:  duration("fetch.cleanup_interval", 10*time.Minute),
			IMAPLookback:     duration("fetch.imap_lookback", 30*time.Minute),
		},
		Classifier: ClassifierConfig{
			ServiceDomains: parseDomains(viper.GetString("classifier.service_domains")),
			Keywords:       parseList(viper.GetString("classifier.keywords")),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: duration("database.conn_max_lifetime", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  duration("jwt.access_expiry", 15*time.Minute),
			RefreshExpiry: duration("jwt.refresh_expiry", 7*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			PerMinute: viper.GetInt("ratelimit.per_minute"),
			Burst:     viper.GetInt("ratelimit.burst"),
		},
	}

	return cfg, nil
}

// duration 解析时长配置项，解析失败时退回默认值。
func duration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// parseDomains 将逗号分隔的域名字符串解析为小写域名数组
func parseDomains(value string) []string {
	out := parseList(value)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 环境变量不会被覆盖（已存在的环境变量优先级更高）。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
