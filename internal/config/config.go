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

// IntakeConfig 定义专属收件地址（SMTP 直投渠道）的配置
type IntakeConfig struct {
	BindAddr    string // SMTP 服务监听地址，格式 "host:port"，默认 ":2525"
	Domain      string // 收件域名，收件地址形如 {token}@{domain}
	MaxConns    int    // 最大并发连接数
	MaxRate     int    // 每秒最大新建连接数
	MaxMsgBytes int64  // 单封邮件的最大字节数
}

// ImportConfig 定义批量导入编排器的配置
type ImportConfig struct {
	Concurrency      int           // 工作协程数量（固定并发），默认 3
	QueueSize        int           // 任务队列容量
	RetryAttempts    int           // 远程抓取限流时的最大重试次数，默认 3
	RetryBaseDelay   time.Duration // 首次重试延迟，之后逐次翻倍
	FreeMonthlyQuota int           // 免费套餐每月可入库的通讯数量
}

// RemoteConfig 定义远程邮箱拉取服务的配置，BaseURL 留空时禁用远程导入
type RemoteConfig struct {
	BaseURL     string // 远程邮箱网关地址
	AccessToken string // 访问令牌
}

// FolderConfig 定义文件夹生命周期的配置
type FolderConfig struct {
	UndoWindow    time.Duration // 合并后可撤销的时间窗口，默认 30s
	SweepInterval time.Duration // 过期撤销记录的清扫间隔
}

// BlobConfig 定义内容 Blob 存储配置
type BlobConfig struct {
	Path string // 文件系统实现的根目录
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	LogFile     string // 日志文件路径，留空仅输出到控制台
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
	Enabled  bool   // 是否启用内容哈希缓存
	Address  string // Redis 服务地址，格式 "host:port"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥
	Issuer        string        // JWT 签发者标识
	AccessExpiry  time.Duration // 访问令牌有效期，默认 15 分钟
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig
	Intake   IntakeConfig
	Import   ImportConfig
	Remote   RemoteConfig
	Folder   FolderConfig
	Blob     BlobConfig
	CORS     CORSConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: LETTERVAULT_
// 例如: LETTERVAULT_SERVER_HOST, LETTERVAULT_IMPORT_CONCURRENCY
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，.env 是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("lettervault")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("intake.bind_addr", ":2525")
	viper.SetDefault("intake.domain", "in.lettervault.app")
	viper.SetDefault("intake.max_conns", 50)
	viper.SetDefault("intake.max_rate", 10)
	viper.SetDefault("intake.max_msg_bytes", 10*1024*1024)
	viper.SetDefault("import.concurrency", 3)
	viper.SetDefault("import.queue_size", 256)
	viper.SetDefault("import.retry_attempts", 3)
	viper.SetDefault("import.retry_base_delay", "500ms")
	viper.SetDefault("import.free_monthly_quota", 500)
	viper.SetDefault("remote.base_url", "")
	viper.SetDefault("remote.access_token", "")
	viper.SetDefault("folder.undo_window", "30s")
	viper.SetDefault("folder.sweep_interval", "1m")
	viper.SetDefault("blob.path", "./data/blob")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.log_file", "")
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
	viper.SetDefault("jwt.issuer", "lettervault")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")

	retryBase, err := time.ParseDuration(viper.GetString("import.retry_base_delay"))
	if err != nil {
		return nil, fmt.Errorf("invalid import.retry_base_delay: %w", err)
	}

	undoWindow, err := time.ParseDuration(viper.GetString("folder.undo_window"))
	if err != nil {
		return nil, fmt.Errorf("invalid folder.undo_window: %w", err)
	}
	sweepInterval, err := time.ParseDuration(viper.GetString("folder.sweep_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid folder.sweep_interval: %w", err)
	}

	connLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		return nil, fmt.Errorf("invalid database.conn_max_lifetime: %w", err)
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("jwt.access_expiry"))
	if err != nil {
		return nil, fmt.Errorf("invalid jwt.access_expiry: %w", err)
	}
	refreshExpiry, err := time.ParseDuration(viper.GetString("jwt.refresh_expiry"))
	if err != nil {
		return nil, fmt.Errorf("invalid jwt.refresh_expiry: %w", err)
	}

	concurrency := viper.GetInt("import.concurrency")
	if concurrency <= 0 {
		concurrency = 3
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	dbType := viper.GetString("database.type")
	if dbType != "" && dbType != "mysql" && dbType != "postgres" {
		return nil, fmt.Errorf("unsupported database.type: %s", dbType)
	}
	if dbType != "" && viper.GetString("database.dsn") == "" {
		return nil, fmt.Errorf("database.dsn is required when database.type is set")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Intake: IntakeConfig{
			BindAddr:    viper.GetString("intake.bind_addr"),
			Domain:      viper.GetString("intake.domain"),
			MaxConns:    viper.GetInt("intake.max_conns"),
			MaxRate:     viper.GetInt("intake.max_rate"),
			MaxMsgBytes: viper.GetInt64("intake.max_msg_bytes"),
		},
		Import: ImportConfig{
			Concurrency:      concurrency,
			QueueSize:        viper.GetInt("import.queue_size"),
			RetryAttempts:    viper.GetInt("import.retry_attempts"),
			RetryBaseDelay:   retryBase,
			FreeMonthlyQuota: viper.GetInt("import.free_monthly_quota"),
		},
		Remote: RemoteConfig{
			BaseURL:     viper.GetString("remote.base_url"),
			AccessToken: viper.GetString("remote.access_token"),
		},
		Folder: FolderConfig{
			UndoWindow:    undoWindow,
			SweepInterval: sweepInterval,
		},
		Blob: BlobConfig{
			Path: viper.GetString("blob.path"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			LogFile:     viper.GetString("log.log_file"),
		},
		Database: DatabaseConfig{
			Type:            dbType,
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connLifetime,
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("jwt.secret"),
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
	}

	return cfg, nil
}

// loadEnvFile 依次尝试当前目录与父目录下的 .env 文件。
func loadEnvFile() {
	candidates := []string{".env", filepath.Join("..", ".env")}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

// parseList 解析逗号分隔的列表，忽略空项。
func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
