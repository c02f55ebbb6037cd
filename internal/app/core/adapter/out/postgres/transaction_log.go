package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
)

const selectTransactions = `SELECT id, from_id, to_id, amount, created_at FROM transactions`

// TransactionLog PostgreSQL 版交易紀錄
// 在 Uow.Run 之內呼叫時，寫入會加入同一個 DB Transaction
type TransactionLog struct {
	pool *pgxpool.Pool
}

func NewTransactionLog(pool *pgxpool.Pool) *TransactionLog {
	return &TransactionLog{pool: pool}
}

func (l *TransactionLog) Append(ctx context.Context, tran *domain.Transaction) (*domain.Transaction, error) {
	if err := domain.ValidateTransfer(tran.From, tran.To, tran.Amount); err != nil {
		return nil, err
	}
	stored := domain.Transaction{
		From:      tran.From,
		To:        tran.To,
		Amount:    tran.Amount,
		CreatedAt: time.Now().UnixMilli(),
	}
	err := querier(ctx, l.pool).QueryRow(ctx,
		`INSERT INTO transactions (from_id, to_id, amount, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		stored.From, stored.To, stored.Amount, stored.CreatedAt,
	).Scan(&stored.ID)
	if err != nil {
		return nil, domain.StorageError(err)
	}
	return &stored, nil
}

func (l *TransactionLog) FindByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	rows, err := querier(ctx, l.pool).Query(ctx, selectTransactions+` WHERE id = $1`, id)
	if err != nil {
		return nil, domain.StorageError(err)
	}
	tran, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[domain.Transaction])
	if err != nil {
		return nil, translateError(err, domain.ErrTransactionNotFound)
	}
	return &tran, nil
}

func (l *TransactionLog) FindBySender(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	return l.find(ctx, selectTransactions+` WHERE from_id = $1 ORDER BY id`, accountID)
}

func (l *TransactionLog) FindByReceiver(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	return l.find(ctx, selectTransactions+` WHERE to_id = $1 ORDER BY id`, accountID)
}

func (l *TransactionLog) FindAll(ctx context.Context) ([]domain.Transaction, error) {
	return l.find(ctx, selectTransactions+` ORDER BY id`)
}

func (l *TransactionLog) find(ctx context.Context, sql string, args ...any) ([]domain.Transaction, error) {
	rows, err := querier(ctx, l.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, domain.StorageError(err)
	}
	result, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Transaction])
	if err != nil {
		return nil, domain.StorageError(err)
	}
	if result == nil {
		result = []domain.Transaction{}
	}
	return result, nil
}

var _ usecase.TransactionLog = (*TransactionLog)(nil)
