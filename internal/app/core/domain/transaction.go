package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction 轉帳紀錄，只由成功的轉帳產生，建立後不可變
// 帳戶以 ID 複本引用，不持有 Account 指標
type Transaction struct {
	// ID: 由 Transaction Log 在 append 時分配 (1, 2, 3...)
	ID int64
	// From, To: 帳戶 ID
	From uuid.UUID
	To   uuid.UUID
	// Amount: 金額
	Amount int64
	// CreatedAt: 交易時間 (Unix 毫秒)
	CreatedAt int64
}

// CreatedTime 把 CreatedAt 轉回 time.Time
func (t *Transaction) CreatedTime() time.Time {
	return time.UnixMilli(t.CreatedAt)
}

// ValidateTransfer 轉帳的前置檢查 (不需要鎖)
func ValidateTransfer(from, to uuid.UUID, amount int64) error {
	if from == to {
		return ErrInvalidTransfer
	}
	if amount <= 0 {
		return ErrAmountMustBePositive
	}
	return nil
}

// ValidateAmount 存提款金額檢查
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return ErrAmountMustBePositive
	}
	return nil
}
