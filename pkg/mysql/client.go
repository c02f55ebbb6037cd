package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Client 封裝 GORM DB 實例
type Client struct {
	db *gorm.DB
}

var gormLogLevels = map[string]logger.LogLevel{
	"silent": logger.Silent,
	"error":  logger.Error,
	"warn":   logger.Warn,
	"info":   logger.Info,
}

// NewClient 開啟 MySQL 連線池並確認可以連上，失敗時依設定重試
//
// 參數:
//
//	ctx: 取消時停止重試
//	cfg: Config - MySQL 連線配置
//	log: 重試時輸出警告
//
// 回傳值:
//
//	*Client: 封裝後的 MySQL 客戶端
//	error: 重試用盡仍連不上
func NewClient(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	cfg.SetDefaults()
	level, ok := gormLogLevels[cfg.LogLevel]
	if !ok {
		level = logger.Error
	}

	// gorm.Open 只建立連線池，真正的連線在 Ping 時才建立
	db, err := gorm.Open(mysql.New(mysql.Config{DSN: cfg.DSN()}), &gorm.Config{
		// 帳本的每個寫入操作都自己開 Transaction
		SkipDefaultTransaction: true,
		// Duplicate entry 轉成 gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	for attempt := 1; ; attempt++ {
		err = sqlDB.PingContext(ctx)
		if err == nil {
			return &Client{db: db}, nil
		}
		if attempt >= cfg.MaxRetries {
			break
		}
		log.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", cfg.MaxRetries).
			Dur("retry_in", cfg.RetryInterval).
			Msg("failed to connect to mysql, retrying")
		select {
		case <-ctx.Done():
			_ = sqlDB.Close()
			return nil, ctx.Err()
		case <-time.After(cfg.RetryInterval):
		}
	}
	_ = sqlDB.Close()
	return nil, fmt.Errorf("failed to connect to mysql after %d attempts: %w", cfg.MaxRetries, err)
}

// DB 回傳底層的 *gorm.DB
func (c *Client) DB() *gorm.DB {
	return c.db
}

func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
