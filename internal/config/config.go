package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-craft-ledger/pkg/logger"
	"github.com/JoeShih716/go-craft-ledger/pkg/mysql"
	"github.com/JoeShih716/go-craft-ledger/pkg/postgres"
)

// LedgerType 使用哪種 Ledger 實作
type LedgerType string

const (
	LedgerTypeMySQL       LedgerType = "mysql"
	LedgerTypeMemoryMutex LedgerType = "memory_mutex"
	LedgerTypeMemoryLMAX  LedgerType = "memory_lmax"
	LedgerTypePostgres    LedgerType = "postgres"
)

type LedgerConfig struct {
	Type LedgerType `yaml:"type"`
	// WALPath: 記憶體帳本的 Write-Ahead Log 檔案
	WALPath    string `yaml:"wal_path"`
	TopDefault int    `yaml:"top_default"`
	TopMax     int    `yaml:"top_max"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type AdminConfig struct {
	User string `yaml:"user"`
	// PasswordHash: bcrypt 雜湊，空字串時停用管理 API
	PasswordHash string `yaml:"password_hash"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	IdempotencyTTL  time.Duration `yaml:"idempotency_ttl"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Admin           AdminConfig   `yaml:"admin"`
}

type RedisConfig struct {
	// Addr: 空字串時停用冪等鍵
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RabbitMQConfig struct {
	// URL: 空字串時不發布事件
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	Queue      string `yaml:"queue"`
	BindingKey string `yaml:"binding_key"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type Config struct {
	Ledger   LedgerConfig    `yaml:"ledger"`
	GRPC     GRPCConfig      `yaml:"grpc"`
	HTTP     HTTPConfig      `yaml:"http"`
	Log      logger.Config   `yaml:"log"`
	MySQL    mysql.Config    `yaml:"mysql"`
	Postgres postgres.Config `yaml:"postgres"`
	Redis    RedisConfig     `yaml:"redis"`
	RabbitMQ RabbitMQConfig  `yaml:"rabbitmq"`
	Mongo    MongoConfig     `yaml:"mongo"`
}

// Load 讀取設定
// 1. 載入 .env (不存在時略過)
// 2. 讀取 yaml (檔案不存在時全部使用預設值)
// 3. 環境變數覆蓋
// 4. 補全預設值並檢查
func Load(path string) (*Config, error) {
	// .env 在正式環境通常不存在，直接用系統環境變數
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	overrides := map[string]*string{
		"LEDGER_TYPE":         (*string)(&c.Ledger.Type),
		"WAL_PATH":            &c.Ledger.WALPath,
		"GRPC_ADDR":           &c.GRPC.Addr,
		"HTTP_ADDR":           &c.HTTP.Addr,
		"MYSQL_HOST":          &c.MySQL.Host,
		"MYSQL_PASSWORD":      &c.MySQL.Password,
		"POSTGRES_HOST":       &c.Postgres.Host,
		"POSTGRES_PASSWORD":   &c.Postgres.Password,
		"REDIS_ADDR":          &c.Redis.Addr,
		"RABBITMQ_URL":        &c.RabbitMQ.URL,
		"MONGO_URI":           &c.Mongo.URI,
		"ADMIN_USER":          &c.HTTP.Admin.User,
		"ADMIN_PASSWORD_HASH": &c.HTTP.Admin.PasswordHash,
		"LOG_LEVEL":           &c.Log.Level,
	}
	for key, field := range overrides {
		if value, ok := os.LookupEnv(key); ok {
			*field = value
		}
	}
	if value, ok := os.LookupEnv("LOG_PRETTY"); ok {
		pretty, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid LOG_PRETTY %q: %w", value, err)
		}
		c.Log.Pretty = pretty
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Ledger.Type == "" {
		c.Ledger.Type = LedgerTypeMemoryMutex
	}
	if c.Ledger.WALPath == "" {
		c.Ledger.WALPath = "wal.log"
	}
	if c.Ledger.TopDefault == 0 {
		c.Ledger.TopDefault = domain.DefaultTopLimit
	}
	if c.Ledger.TopMax == 0 {
		c.Ledger.TopMax = domain.MaxTopLimit
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":50051"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 10 * time.Second
	}
	if c.HTTP.RequestTimeout == 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.HTTP.IdempotencyTTL == 0 {
		c.HTTP.IdempotencyTTL = 24 * time.Hour
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.HTTP.Admin.User == "" {
		c.HTTP.Admin.User = "admin"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "ledger_events"
	}
	if c.RabbitMQ.Queue == "" {
		c.RabbitMQ.Queue = "audit_queue"
	}
	if c.RabbitMQ.BindingKey == "" {
		c.RabbitMQ.BindingKey = "transaction.#"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "ledger_audit"
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = "audit_logs"
	}
	c.MySQL.SetDefaults()
	c.Postgres.SetDefaults()
}

// Validate 檢查設定是否可用
func (c *Config) Validate() error {
	switch c.Ledger.Type {
	case LedgerTypeMemoryMutex, LedgerTypeMemoryLMAX, LedgerTypeMySQL, LedgerTypePostgres:
	default:
		return fmt.Errorf("invalid ledger type %q", c.Ledger.Type)
	}
	if c.Ledger.TopDefault < 0 || c.Ledger.TopMax < 0 || c.Ledger.TopDefault > c.Ledger.TopMax {
		return fmt.Errorf("invalid top limits: default %d, max %d", c.Ledger.TopDefault, c.Ledger.TopMax)
	}
	return nil
}
