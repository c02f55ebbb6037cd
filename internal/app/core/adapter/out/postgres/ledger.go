package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
)

// PostgresLedger 以 SELECT ... FOR UPDATE 實作的帳本
// 交易紀錄透過 Uow 寫在同一個 DB Transaction 內
type PostgresLedger struct {
	pool *pgxpool.Pool
	uow  *Uow
	log  *TransactionLog
}

func NewPostgresLedger(pool *pgxpool.Pool, uow *Uow, log *TransactionLog) *PostgresLedger {
	return &PostgresLedger{
		pool: pool,
		uow:  uow,
		log:  log,
	}
}

// CreateAccount 開戶，ON CONFLICT 讓檢查與新增成為一個語句
func (l *PostgresLedger) CreateAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	tag, err := l.pool.Exec(ctx, `INSERT INTO accounts (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return nil, translateError(err, domain.ErrAccountNotFound)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrAccountAlreadyExists
	}
	return domain.NewAccount(id), nil
}

func (l *PostgresLedger) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return l.selectAccount(ctx, l.pool, `SELECT id, balance FROM accounts WHERE id = $1`, id)
}

func (l *PostgresLedger) Deposit(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return l.postSingle(ctx, id, func(acc *domain.Account) error {
		return acc.Deposit(amount)
	})
}

func (l *PostgresLedger) Withdraw(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return l.postSingle(ctx, id, func(acc *domain.Account) error {
		return acc.Withdraw(amount)
	})
}

func (l *PostgresLedger) SetBalance(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	if amount < 0 {
		return nil, domain.ErrNegativeBalance
	}
	return l.postSingle(ctx, id, func(acc *domain.Account) error {
		return acc.SetBalance(amount)
	})
}

func (l *PostgresLedger) postSingle(ctx context.Context, id uuid.UUID, apply func(acc *domain.Account) error) (*domain.Account, error) {
	var result *domain.Account
	err := l.uow.Run(ctx, func(ctx context.Context) error {
		acc, err := l.lockAccount(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(acc); err != nil {
			return err
		}
		if err := l.saveBalance(ctx, acc); err != nil {
			return err
		}
		result = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Transfer 轉帳: 依 ID 順序逐筆上鎖、扣款、入帳、寫入交易紀錄，全部在同一個 DB Transaction
func (l *PostgresLedger) Transfer(ctx context.Context, from, to uuid.UUID, amount int64) (*domain.Transaction, error) {
	if err := domain.ValidateTransfer(from, to, amount); err != nil {
		return nil, err
	}

	var stored *domain.Transaction
	err := l.uow.Run(ctx, func(ctx context.Context) error {
		locked := make(map[uuid.UUID]*domain.Account, 2)
		first, second := domain.LockOrder(from, to)
		for _, id := range []uuid.UUID{first, second} {
			acc, err := l.lockAccount(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = acc
		}

		fromAcc, toAcc := locked[from], locked[to]
		if err := fromAcc.Withdraw(amount); err != nil {
			return err
		}
		if err := toAcc.Deposit(amount); err != nil {
			return err
		}
		if err := l.saveBalance(ctx, fromAcc); err != nil {
			return err
		}
		if err := l.saveBalance(ctx, toAcc); err != nil {
			return err
		}

		tran, err := l.log.Append(ctx, &domain.Transaction{From: from, To: to, Amount: amount})
		if err != nil {
			return err
		}
		stored = tran
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (l *PostgresLedger) TopAccounts(ctx context.Context, limit int) ([]domain.Account, error) {
	if limit <= 0 {
		return []domain.Account{}, nil
	}
	rows, err := l.pool.Query(ctx, `SELECT id, balance FROM accounts ORDER BY balance DESC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, domain.StorageError(err)
	}
	result, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Account])
	if err != nil {
		return nil, domain.StorageError(err)
	}
	if result == nil {
		result = []domain.Account{}
	}
	return result, nil
}

// lockAccount 需在 Uow.Run 之內呼叫
func (l *PostgresLedger) lockAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return l.selectAccount(ctx, querier(ctx, l.pool), `SELECT id, balance FROM accounts WHERE id = $1 FOR UPDATE`, id)
}

func (l *PostgresLedger) selectAccount(ctx context.Context, q dbtx, sql string, id uuid.UUID) (*domain.Account, error) {
	acc := domain.Account{}
	if err := q.QueryRow(ctx, sql, id).Scan(&acc.ID, &acc.Balance); err != nil {
		return nil, translateError(err, domain.ErrAccountNotFound)
	}
	return &acc, nil
}

func (l *PostgresLedger) saveBalance(ctx context.Context, acc *domain.Account) error {
	_, err := querier(ctx, l.pool).Exec(ctx,
		`UPDATE accounts SET balance = $2, updated_at = now() WHERE id = $1`,
		acc.ID, acc.Balance,
	)
	if err != nil {
		return domain.StorageError(err)
	}
	return nil
}

var _ usecase.Ledger = (*PostgresLedger)(nil)
