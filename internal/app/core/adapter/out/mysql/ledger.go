package mysql

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-craft-ledger/pkg/mysql"
)

// MySQLLedger 以資料庫悲觀鎖實作的帳本
// 每個操作一個 DB Transaction，帳戶列依 ID 排序逐筆 SELECT ... FOR UPDATE
type MySQLLedger struct {
	db  *gorm.DB
	log *TransactionLog
}

func NewMySQLLedger(client *mysql.Client, log *TransactionLog) *MySQLLedger {
	return &MySQLLedger{
		db:  client.DB(),
		log: log,
	}
}

// Migrate 建立 accounts / transactions 表
func (ledger *MySQLLedger) Migrate(ctx context.Context) error {
	if err := ledger.db.WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlTransaction{}); err != nil {
		return domain.StorageError(err)
	}
	return nil
}

// CreateAccount 開戶，重複的 ID 由 PRIMARY KEY 擋下
func (ledger *MySQLLedger) CreateAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := sqlAccount{ID: id.String()}
	if err := ledger.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, translateError(err, domain.ErrAccountNotFound)
	}
	return domain.NewAccount(id), nil
}

// GetAccount 取得帳戶餘額
func (ledger *MySQLLedger) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var row sqlAccount
	if err := ledger.db.WithContext(ctx).Where("id = ?", id.String()).First(&row).Error; err != nil {
		return nil, translateError(err, domain.ErrAccountNotFound)
	}
	return toDomainAccount(&row)
}

func (ledger *MySQLLedger) Deposit(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return ledger.postSingle(ctx, id, func(acc *domain.Account) error {
		return acc.Deposit(amount)
	})
}

func (ledger *MySQLLedger) Withdraw(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return ledger.postSingle(ctx, id, func(acc *domain.Account) error {
		return acc.Withdraw(amount)
	})
}

func (ledger *MySQLLedger) SetBalance(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	if amount < 0 {
		return nil, domain.ErrNegativeBalance
	}
	return ledger.postSingle(ctx, id, func(acc *domain.Account) error {
		return acc.SetBalance(amount)
	})
}

func (ledger *MySQLLedger) postSingle(ctx context.Context, id uuid.UUID, apply func(acc *domain.Account) error) (*domain.Account, error) {
	var result *domain.Account
	err := ledger.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, err := lockAccount(tx, id)
		if err != nil {
			return err
		}
		if err := apply(acc); err != nil {
			return err
		}
		if err := saveBalance(tx, acc); err != nil {
			return err
		}
		result = acc
		return nil
	})
	if err != nil {
		return nil, translateError(err, domain.ErrAccountNotFound)
	}
	return result, nil
}

// Transfer 轉帳
// 1. 依 ID 排序逐筆上鎖 (與記憶體版相同的全域順序)
// 2. 扣款 / 入帳
// 3. 在同一個 DB Transaction 內寫入交易紀錄，任何一步失敗整筆 Rollback
func (ledger *MySQLLedger) Transfer(ctx context.Context, from, to uuid.UUID, amount int64) (*domain.Transaction, error) {
	if err := domain.ValidateTransfer(from, to, amount); err != nil {
		return nil, err
	}

	var stored *domain.Transaction
	err := ledger.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := make(map[uuid.UUID]*domain.Account, 2)
		first, second := domain.LockOrder(from, to)
		for _, id := range []uuid.UUID{first, second} {
			acc, err := lockAccount(tx, id)
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
		if err := saveBalance(tx, fromAcc); err != nil {
			return err
		}
		if err := saveBalance(tx, toAcc); err != nil {
			return err
		}

		tran, err := ledger.log.withTx(tx).Append(ctx, &domain.Transaction{
			From:   from,
			To:     to,
			Amount: amount,
		})
		if err != nil {
			return err
		}
		stored = tran
		return nil
	})
	if err != nil {
		return nil, translateError(err, domain.ErrAccountNotFound)
	}
	return stored, nil
}

// TopAccounts 排行榜，同分時以 ID 字串排序 (與 UUID byte 順序一致)
func (ledger *MySQLLedger) TopAccounts(ctx context.Context, limit int) ([]domain.Account, error) {
	if limit <= 0 {
		return []domain.Account{}, nil
	}
	var rows []sqlAccount
	err := ledger.db.WithContext(ctx).
		Order("balance desc").
		Order("id asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domain.StorageError(err)
	}
	result := make([]domain.Account, 0, len(rows))
	for i := range rows {
		acc, err := toDomainAccount(&rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, *acc)
	}
	return result, nil
}

// lockAccount 悲觀鎖讀取單一帳戶
func lockAccount(tx *gorm.DB, id uuid.UUID) (*domain.Account, error) {
	var row sqlAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id.String()).
		First(&row).Error
	if err != nil {
		return nil, translateError(err, domain.ErrAccountNotFound)
	}
	return toDomainAccount(&row)
}

func saveBalance(tx *gorm.DB, acc *domain.Account) error {
	err := tx.Model(&sqlAccount{ID: acc.ID.String()}).Update("balance", acc.Balance).Error
	if err != nil {
		return domain.StorageError(err)
	}
	return nil
}

var _ usecase.Ledger = (*MySQLLedger)(nil)
