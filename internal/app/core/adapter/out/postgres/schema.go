package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
)

// schema 帳本資料表；balance / amount 的範圍限制同時由資料庫檢查
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id         UUID PRIMARY KEY,
	balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
	id         BIGSERIAL PRIMARY KEY,
	from_id    UUID NOT NULL REFERENCES accounts (id),
	to_id      UUID NOT NULL REFERENCES accounts (id),
	amount     BIGINT NOT NULL CHECK (amount > 0),
	created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_from_id ON transactions (from_id);
CREATE INDEX IF NOT EXISTS idx_transactions_to_id ON transactions (to_id);
CREATE INDEX IF NOT EXISTS idx_accounts_ranking ON accounts (balance DESC, id ASC);
`

// Migrate 建立資料表 (可重複執行)
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return domain.StorageError(err)
	}
	return nil
}
