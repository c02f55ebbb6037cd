package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAmountMustBePositive 金額必須為正數
	ErrAmountMustBePositive = errors.New("amount must be positive")

	// ErrNegativeBalance 設定的餘額不可為負數
	ErrNegativeBalance = errors.New("balance must not be negative")

	// ErrBalanceOverflow 入帳後餘額超出可表示範圍
	ErrBalanceOverflow = errors.New("balance would overflow")

	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidTransfer 轉出與轉入帳戶相同
	ErrInvalidTransfer = errors.New("from and to account must be different")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists 帳戶已存在
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrTransactionNotFound 找不到交易紀錄
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrStorage 底層儲存 (WAL / DB) 失敗
	ErrStorage = errors.New("storage failure")
)

// StorageError 把底層錯誤包成 ErrStorage，呼叫端用 errors.Is 判斷
func StorageError(cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, ErrStorage) {
		return cause
	}
	return fmt.Errorf("%w: %v", ErrStorage, cause)
}

// ErrorKind 錯誤分類，給傳輸層 (gRPC / HTTP) 對應狀態碼用
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindAlreadyExists
	KindInvalidAmount
	KindInvalidTransfer
	KindInsufficientFunds
	KindStorage
)

// KindOf 回傳 err 所屬的錯誤分類
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrTransactionNotFound):
		return KindNotFound
	case errors.Is(err, ErrAccountAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrAmountMustBePositive), errors.Is(err, ErrNegativeBalance),
		errors.Is(err, ErrBalanceOverflow):
		return KindInvalidAmount
	case errors.Is(err, ErrInvalidTransfer):
		return KindInvalidTransfer
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientFunds
	case errors.Is(err, ErrStorage):
		return KindStorage
	default:
		return KindUnknown
	}
}

// String 穩定的錯誤代碼，對外 API 會帶這個值
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindAlreadyExists:
		return "ALREADY_EXISTS"
	case KindInvalidAmount:
		return "INVALID_AMOUNT"
	case KindInvalidTransfer:
		return "INVALID_TRANSFER"
	case KindInsufficientFunds:
		return "INSUFFICIENT_FUNDS"
	case KindStorage:
		return "STORAGE_ERROR"
	default:
		return "INTERNAL"
	}
}
