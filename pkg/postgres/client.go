package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// NewPool 建立 pgx 連線池，連不上時依設定重試
//
// 參數:
//
//	ctx: 上下文，取消時停止重試
//	cfg: Config - PostgreSQL 連線配置
//	log: 重試時輸出警告
//
// 回傳值:
//
//	*pgxpool.Pool: 連線池
//	error: 若連線失敗則回傳錯誤
func NewPool(ctx context.Context, cfg Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	cfg.SetDefaults()
	poolCfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	for i := 0; i < cfg.MaxRetries; i++ {
		if err = pool.Ping(ctx); err == nil {
			return pool, nil
		}
		if i == cfg.MaxRetries-1 {
			break
		}
		log.Warn().Err(err).
			Int("attempt", i+1).
			Int("max_attempts", cfg.MaxRetries).
			Dur("retry_in", cfg.RetryInterval).
			Msg("failed to connect to postgres, retrying")
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(cfg.RetryInterval):
		}
	}
	pool.Close()
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", cfg.MaxRetries, err)
}
