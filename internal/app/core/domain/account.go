package domain

import (
	"bytes"
	"math"

	"github.com/google/uuid"
)

// Account 玩家帳戶，Balance 以最小貨幣單位計
type Account struct {
	ID      uuid.UUID
	Balance int64
}

func NewAccount(id uuid.UUID) *Account {
	return &Account{
		ID:      id,
		Balance: 0,
	}
}

// Deposit 存款，入帳後超過 int64 上限時拒絕
func (a *Account) Deposit(amount int64) error {
	if amount <= 0 {
		return ErrAmountMustBePositive
	}
	if amount > math.MaxInt64-a.Balance {
		return ErrBalanceOverflow
	}

	a.Balance = a.Balance + amount
	return nil
}

// Withdraw 提款，餘額剛好等於金額時允許提到 0
func (a *Account) Withdraw(amount int64) error {
	if amount <= 0 {
		return ErrAmountMustBePositive
	}

	if a.Balance < amount {
		return ErrInsufficientBalance
	}

	a.Balance = a.Balance - amount
	return nil
}

// SetBalance 直接覆寫餘額 (管理用)
func (a *Account) SetBalance(amount int64) error {
	if amount < 0 {
		return ErrNegativeBalance
	}
	a.Balance = amount
	return nil
}

// CompareAccountID 帳戶 ID 的全域排序 (byte 比較)，鎖順序與排行榜同分排序都用它
func CompareAccountID(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

// LockOrder 回傳兩個帳戶的上鎖順序，與誰是轉出方無關
func LockOrder(a, b uuid.UUID) (first, second uuid.UUID) {
	if CompareAccountID(a, b) <= 0 {
		return a, b
	}
	return b, a
}

// RankAccounts 排行榜排序: 餘額高的在前，同分以 ID 排序確保結果可重現
func RankAccounts(a, b Account) int {
	if a.Balance != b.Balance {
		if a.Balance > b.Balance {
			return -1
		}
		return 1
	}
	return CompareAccountID(a.ID, b.ID)
}
