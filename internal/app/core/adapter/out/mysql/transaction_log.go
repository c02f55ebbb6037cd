package mysql

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-craft-ledger/pkg/mysql"
)

// TransactionLog MySQL 版交易紀錄，ID 由 AUTO_INCREMENT 分配
type TransactionLog struct {
	db *gorm.DB
}

func NewTransactionLog(client *mysql.Client) *TransactionLog {
	return &TransactionLog{db: client.DB()}
}

// withTx 回傳綁定在指定 DB Transaction 上的複本
func (l *TransactionLog) withTx(tx *gorm.DB) *TransactionLog {
	return &TransactionLog{db: tx}
}

func (l *TransactionLog) Append(ctx context.Context, tran *domain.Transaction) (*domain.Transaction, error) {
	if err := domain.ValidateTransfer(tran.From, tran.To, tran.Amount); err != nil {
		return nil, err
	}
	row := sqlTransaction{
		FromID:    tran.From.String(),
		ToID:      tran.To.String(),
		Amount:    tran.Amount,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, domain.StorageError(err)
	}
	stored, err := toDomainTransaction(&row)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (l *TransactionLog) FindByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	var row sqlTransaction
	if err := l.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translateError(err, domain.ErrTransactionNotFound)
	}
	tran, err := toDomainTransaction(&row)
	if err != nil {
		return nil, err
	}
	return &tran, nil
}

func (l *TransactionLog) FindBySender(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	return l.find(ctx, l.db.Where("from_id = ?", accountID.String()))
}

func (l *TransactionLog) FindByReceiver(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	return l.find(ctx, l.db.Where("to_id = ?", accountID.String()))
}

func (l *TransactionLog) FindAll(ctx context.Context) ([]domain.Transaction, error) {
	return l.find(ctx, l.db)
}

// find 依 ID 遞增 (即寫入順序) 取出
func (l *TransactionLog) find(ctx context.Context, query *gorm.DB) ([]domain.Transaction, error) {
	var rows []sqlTransaction
	if err := query.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, domain.StorageError(err)
	}
	return toDomainTransactions(rows)
}

var _ usecase.TransactionLog = (*TransactionLog)(nil)
