package domain

import "github.com/google/uuid"

// MutationType 狀態變更類型
// 為了節省 WAL 空間，使用 uint8
type MutationType uint8

const (
	// 開戶
	MutationTypeCreateAccount MutationType = 1
	// 存款
	MutationTypeDeposit MutationType = 2
	// 提款
	MutationTypeWithdraw MutationType = 3
	// 轉帳
	MutationTypeTransfer MutationType = 4
	// 管理員直接設定餘額
	MutationTypeSetBalance MutationType = 5
)

// Mutation WAL 中的一筆狀態變更
// 開戶/存款/設定餘額 使用 To，提款使用 From，轉帳兩者都用
type Mutation struct {
	From   uuid.UUID `json:"from"`
	To     uuid.UUID `json:"to"`
	Amount int64     `json:"amount,omitempty"`
	// TransactionID, CreatedAt: 只有轉帳會帶，重放時還原 Transaction Log
	TransactionID int64 `json:"tx_id,omitempty"`
	CreatedAt     int64 `json:"created_at,omitempty"`
	// Type: 放到最後面，利用 Padding 空間
	Type MutationType `json:"type"`
}

func NewCreateAccountMutation(id uuid.UUID) *Mutation {
	return &Mutation{Type: MutationTypeCreateAccount, To: id}
}

func NewDepositMutation(id uuid.UUID, amount int64) *Mutation {
	return &Mutation{Type: MutationTypeDeposit, To: id, Amount: amount}
}

func NewWithdrawMutation(id uuid.UUID, amount int64) *Mutation {
	return &Mutation{Type: MutationTypeWithdraw, From: id, Amount: amount}
}

func NewSetBalanceMutation(id uuid.UUID, amount int64) *Mutation {
	return &Mutation{Type: MutationTypeSetBalance, To: id, Amount: amount}
}

// NewTransferMutation 由已寫入 Log 的交易產生 WAL 紀錄
func NewTransferMutation(tran *Transaction) *Mutation {
	return &Mutation{
		Type:          MutationTypeTransfer,
		From:          tran.From,
		To:            tran.To,
		Amount:        tran.Amount,
		TransactionID: tran.ID,
		CreatedAt:     tran.CreatedAt,
	}
}

// Transaction 把轉帳類的 Mutation 還原成 Transaction
func (m *Mutation) Transaction() *Transaction {
	return &Transaction{
		ID:        m.TransactionID,
		From:      m.From,
		To:        m.To,
		Amount:    m.Amount,
		CreatedAt: m.CreatedAt,
	}
}

// GetLockIDs 回傳需要鎖定的帳號 ID，並確保順序以避免死鎖
func (m *Mutation) GetLockIDs() (ids []uuid.UUID) {
	// 預先宣告一個容量為 2 的 slice，避免多次分配
	ids = make([]uuid.UUID, 0, 2)
	switch m.Type {
	case MutationTypeTransfer:
		first, second := LockOrder(m.From, m.To)
		ids = append(ids, first, second)
	case MutationTypeCreateAccount, MutationTypeDeposit, MutationTypeSetBalance:
		ids = append(ids, m.To)
	case MutationTypeWithdraw:
		ids = append(ids, m.From)
	}
	return ids
}
