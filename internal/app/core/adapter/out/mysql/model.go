package mysql

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID        string `gorm:"primaryKey;type:char(36)"`
	Balance   int64  `gorm:"not null;default:0"`
	UpdatedAt int64  `gorm:"autoUpdateTime:milli"` // 自動更新時間
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	FromID    string `gorm:"column:from_id;type:char(36);not null;index"`
	ToID      string `gorm:"column:to_id;type:char(36);not null;index"`
	Amount    int64  `gorm:"not null"`
	CreatedAt int64  `gorm:"autoCreateTime:milli"` // 自動寫入時間
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

func toDomainAccount(row *sqlAccount) (*domain.Account, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, domain.StorageError(err)
	}
	return &domain.Account{ID: id, Balance: row.Balance}, nil
}

func toDomainTransaction(row *sqlTransaction) (domain.Transaction, error) {
	from, err := uuid.Parse(row.FromID)
	if err != nil {
		return domain.Transaction{}, domain.StorageError(err)
	}
	to, err := uuid.Parse(row.ToID)
	if err != nil {
		return domain.Transaction{}, domain.StorageError(err)
	}
	return domain.Transaction{
		ID:        row.ID,
		From:      from,
		To:        to,
		Amount:    row.Amount,
		CreatedAt: row.CreatedAt,
	}, nil
}

func toDomainTransactions(rows []sqlTransaction) ([]domain.Transaction, error) {
	result := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		tran, err := toDomainTransaction(&rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, tran)
	}
	return result, nil
}

// translateError 把 GORM 錯誤轉成 domain 錯誤，業務錯誤原樣回傳
func translateError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrAccountAlreadyExists
	case domain.KindOf(err) != domain.KindUnknown:
		return err
	default:
		return domain.StorageError(err)
	}
}
