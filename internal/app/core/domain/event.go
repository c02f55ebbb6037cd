package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoutingKeyTransactionCreated 轉帳成功後發布的事件
const RoutingKeyTransactionCreated = "transaction.created"

// TransactionCreated 轉帳成功事件 (下游稽核使用)
type TransactionCreated struct {
	TransactionID int64     `json:"transaction_id" bson:"transaction_id"`
	From          uuid.UUID `json:"from" bson:"from"`
	To            uuid.UUID `json:"to" bson:"to"`
	Amount        int64     `json:"amount" bson:"amount"`
	// Display: 兩位小數的顯示金額，例如 "12.34"
	Display   string    `json:"display" bson:"display"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// NewTransactionCreated 由已保存的交易產生事件
func NewTransactionCreated(tran *Transaction) TransactionCreated {
	return TransactionCreated{
		TransactionID: tran.ID,
		From:          tran.From,
		To:            tran.To,
		Amount:        tran.Amount,
		Display:       FormatAmount(tran.Amount),
		CreatedAt:     tran.CreatedTime().UTC(),
	}
}
