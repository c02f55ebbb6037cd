package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
)

type txKey struct{}

// dbtx pgxpool.Pool 與 pgx.Tx 共同的查詢介面
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Uow Unit of Work，讓多個 Repository 共用同一個 DB Transaction
type Uow struct {
	pool *pgxpool.Pool
}

func NewUow(pool *pgxpool.Pool) *Uow {
	return &Uow{pool: pool}
}

// Run 在 Transaction 中執行 fn；fn 回傳錯誤時 Rollback，否則 Commit
func (u *Uow) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel: pgx.ReadCommitted, // 搭配 FOR UPDATE 已足夠
	})
	if err != nil {
		return domain.StorageError(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.StorageError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// querier 有 Transaction 時使用 Transaction，否則使用連線池
func querier(ctx context.Context, pool *pgxpool.Pool) dbtx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// translateError 把 pgx 錯誤轉成 domain 錯誤，業務錯誤原樣回傳
func translateError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return notFound
	case isUniqueViolation(err):
		return domain.ErrAccountAlreadyExists
	case domain.KindOf(err) != domain.KindUnknown:
		return err
	default:
		return domain.StorageError(err)
	}
}
