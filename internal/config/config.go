package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/zoek1/web-1/internal/logger"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Chain      ChainConfig      `mapstructure:"chain"`
	IPFS       IPFSConfig       `mapstructure:"ipfs"`
	Env        EnvConfig        `mapstructure:"env"`
	Sync       SyncConfig       `mapstructure:"sync"`
	PayoutSync PayoutSyncConfig `mapstructure:"payout_sync"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Remarket   RemarketConfig   `mapstructure:"remarket"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"` // 站点根地址，以 / 结尾
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"` // sqlite 文件路径
}

// ChainConfig 多网络配置
type ChainConfig struct {
	Networks map[string]NetworkConfig `mapstructure:"networks"`
}

// NetworkConfig 单个网络配置
type NetworkConfig struct {
	RpcUrl     string `mapstructure:"rpc_url"`
	Registry   string `mapstructure:"registry"`    // StandardBounties 合约地址
	StartBlock uint64 `mapstructure:"start_block"` // 监听起始区块
}

type IPFSConfig struct {
	PrimaryURL  string        `mapstructure:"primary_url"`
	FallbackURL string        `mapstructure:"fallback_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// EnvConfig 运行环境
type EnvConfig struct {
	Name          string `mapstructure:"name"` // prod, staging, dev
	Debug         bool   `mapstructure:"debug"`
	NetworkGuard  *bool  `mapstructure:"network_guard"`
	ActiveNetwork string `mapstructure:"active_network"`
}

type SyncConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	BatchSize  int           `mapstructure:"batch_size"`
	PoolSize   int           `mapstructure:"pool_size"`
	RetryCount int           `mapstructure:"retry_count"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
	MaxAttempt int           `mapstructure:"max_attempt"`
}

type PayoutSyncConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	QRExpiry time.Duration `mapstructure:"qr_expiry"`
}

type MonitorConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize uint64        `mapstructure:"batch_size"`
}

type RemarketConfig struct {
	Limit          int `mapstructure:"limit"`
	MinutesBetween int `mapstructure:"minutes_between"`
}

// ArchiveConfig S3 兼容存储
type ArchiveConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output     string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Options 转换为日志器参数
func (l LogConfig) Options() logger.Options {
	return logger.Options{
		Level:      l.Level,
		Output:     l.Output,
		File:       l.File,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
		Compress:   l.Compress,
	}
}

// Environment 运行环境对业务的影响
type Environment struct {
	NetworkGuard  bool
	ActiveNetwork string
}

// Suppresses 非生产环境下屏蔽主网
func (e Environment) Suppresses(network string) bool {
	return e.NetworkGuard && network == "mainnet"
}

// Environment 由 env 配置推导
func (c *Config) Environment() Environment {
	guard := c.Env.Name != "prod" || c.Env.Debug
	if c.Env.NetworkGuard != nil {
		guard = *c.Env.NetworkGuard
	}
	return Environment{NetworkGuard: guard, ActiveNetwork: c.Env.ActiveNetwork}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.base_url", "http://localhost:8080/")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "bounties")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "bountyd.db")
	v.SetDefault("chain.networks.mainnet.registry", "0x2af47a65da8cd66729b4209c22017d6a5c2d2400")
	v.SetDefault("chain.networks.rinkeby.registry", "0xf209d2b723b6417cbf04c07e733bee776105a073")
	v.SetDefault("ipfs.primary_url", "https://ipfs.infura.io:5001")
	v.SetDefault("ipfs.fallback_url", "http://localhost:5001")
	v.SetDefault("ipfs.timeout", "1s")
	v.SetDefault("env.name", "dev")
	v.SetDefault("env.debug", false)
	v.SetDefault("env.active_network", "rinkeby")
	v.SetDefault("sync.interval", "30s")
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.pool_size", 8)
	v.SetDefault("sync.retry_count", 3)
	v.SetDefault("sync.retry_delay", "3s")
	v.SetDefault("sync.lock_ttl", "2m")
	v.SetDefault("sync.max_attempt", 10)
	v.SetDefault("payout_sync.interval", "1m")
	v.SetDefault("payout_sync.qr_expiry", "20m")
	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.interval", "15s")
	v.SetDefault("monitor.batch_size", 500)
	v.SetDefault("remarket.limit", 2)
	v.SetDefault("remarket.minutes_between", 60)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.region", "auto")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/bountyd.log")
}

// Load 读取配置文件与环境变量
func Load(paths ...string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/etc/bountyd"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvPrefix("BOUNTYD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logger.Warn("Could not read config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
