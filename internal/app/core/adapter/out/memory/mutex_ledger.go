package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-craft-ledger/pkg/wal"
)

// MutexLedger 是一個使用「每個帳戶一把鎖」實現的帳本
//
// 結構:
//
//	mu: 只保護 accounts map 的結構 (開戶時寫鎖，查找時讀鎖)
//	accounts: 帳戶資料，每個帳戶自帶 Mutex
//	log: 交易紀錄
//	wal: Write-Ahead Log 實例
//
// 鎖順序: mu -> 帳戶鎖 (依 ID 排序) -> log -> wal
// 不共用帳戶的轉帳可以完全平行執行
type MutexLedger struct {
	mu       sync.RWMutex
	accounts accountBook
	log      usecase.TransactionLog
	// Write-Ahead Logging
	wal *wal.WAL
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	log: 交易紀錄 (記憶體版會在重放時一併還原)
//	wal: Write-Ahead Log 實例，可為 nil
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(log usecase.TransactionLog, wal *wal.WAL) (*MutexLedger, error) {
	ledger := &MutexLedger{
		accounts: make(accountBook),
		log:      log,
		wal:      wal,
	}
	if err := ledger.accounts.replay(wal, log); err != nil {
		return nil, err
	}
	return ledger, nil
}

// CreateAccount 開戶，持有 map 寫鎖讓「檢查是否存在」與「新增」成為同一個原子步驟
func (m *MutexLedger) CreateAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts.create(id, m.wal)
}

// GetAccount 取得帳戶餘額快照
func (m *MutexLedger) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	slots, unlock, err := m.lockSlots(id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	acc := slots[0].account
	return &acc, nil
}

// Deposit 存款
func (m *MutexLedger) Deposit(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return m.postSingle(domain.NewDepositMutation(id, amount), func(acc *domain.Account) error {
		return acc.Deposit(amount)
	})
}

// Withdraw 提款
func (m *MutexLedger) Withdraw(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return m.postSingle(domain.NewWithdrawMutation(id, amount), func(acc *domain.Account) error {
		return acc.Withdraw(amount)
	})
}

// SetBalance 管理員直接設定餘額
func (m *MutexLedger) SetBalance(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	if amount < 0 {
		return nil, domain.ErrNegativeBalance
	}
	return m.postSingle(domain.NewSetBalanceMutation(id, amount), func(acc *domain.Account) error {
		return acc.SetBalance(amount)
	})
}

// postSingle 單一帳戶變更，只需要該帳戶的鎖
func (m *MutexLedger) postSingle(mut *domain.Mutation, apply func(acc *domain.Account) error) (*domain.Account, error) {
	slots, unlock, err := m.lockSlots(mut.GetLockIDs()...)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return commitSingle(slots[0], mut, m.wal, apply)
}

// Transfer 轉帳
//
// 參數:
//
//	ctx: 上下文
//	from, to: 轉出 / 轉入帳戶
//	amount: 金額 (> 0)
//
// 回傳:
//
//	*domain.Transaction: 已寫入 Log 的交易
//	error: ErrInvalidTransfer / ErrAmountMustBePositive / ErrAccountNotFound / ErrInsufficientBalance / ErrStorage
func (m *MutexLedger) Transfer(ctx context.Context, from, to uuid.UUID, amount int64) (*domain.Transaction, error) {
	if err := domain.ValidateTransfer(from, to, amount); err != nil {
		return nil, err
	}

	// 依全域順序上鎖 (小的 ID 先)，與誰是轉出方無關
	first, second := domain.LockOrder(from, to)
	slots, unlock, err := m.lockSlots(first, second)
	if err != nil {
		return nil, err
	}
	defer unlock()

	fromSlot, toSlot := slots[0], slots[1]
	if first != from {
		fromSlot, toSlot = toSlot, fromSlot
	}
	return commitTransfer(ctx, fromSlot, toSlot, amount, m.log)
}

// TopAccounts 依餘額排序取前 limit 名
func (m *MutexLedger) TopAccounts(ctx context.Context, limit int) ([]domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts.top(limit, true), nil
}

// lockSlots 查找帳戶後依傳入順序上鎖，回傳解鎖函式
// 帳戶不會被刪除，所以在 map 讀鎖下找到的帳戶，上鎖後依然存在
func (m *MutexLedger) lockSlots(ids ...uuid.UUID) ([]*accountSlot, func(), error) {
	slots := make([]*accountSlot, 0, len(ids))
	m.mu.RLock()
	for _, id := range ids {
		slot, ok := m.accounts[id]
		if !ok {
			m.mu.RUnlock()
			return nil, nil, domain.ErrAccountNotFound
		}
		slots = append(slots, slot)
	}
	m.mu.RUnlock()

	for _, slot := range slots {
		slot.mu.Lock()
	}
	unlock := func() {
		for i := len(slots) - 1; i >= 0; i-- {
			slots[i].mu.Unlock()
		}
	}
	return slots, unlock, nil
}

var _ usecase.Ledger = (*MutexLedger)(nil)
