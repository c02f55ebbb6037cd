package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-craft-ledger/pkg/wal"
)

// accountSlot 單一帳戶與它自己的鎖
// LMAXLedger 由單一 goroutine 存取，不使用 mu
type accountSlot struct {
	mu      sync.Mutex
	account domain.Account
}

// accountBook 帳戶 ID -> 帳戶，帳戶建立後不會刪除
type accountBook map[uuid.UUID]*accountSlot

// restorer 重放時把轉帳還原進 Transaction Log (不再寫 WAL)
type restorer interface {
	restore(tran *domain.Transaction) error
}

// writeWAL 寫入一筆 Mutation，wal 為 nil 時略過
func writeWAL(w *wal.WAL, mut *domain.Mutation) error {
	if w == nil {
		return nil
	}
	if err := w.Write(mut); err != nil {
		return domain.StorageError(err)
	}
	return nil
}

// create 開戶: 檢查、寫 WAL、加入，呼叫端需確保對 book 的獨佔存取
func (b accountBook) create(id uuid.UUID, w *wal.WAL) (*domain.Account, error) {
	if _, ok := b[id]; ok {
		return nil, domain.ErrAccountAlreadyExists
	}
	if err := writeWAL(w, domain.NewCreateAccountMutation(id)); err != nil {
		return nil, err
	}
	slot := &accountSlot{account: *domain.NewAccount(id)}
	b[id] = slot
	acc := slot.account
	return &acc, nil
}

// commitSingle 單一帳戶變更: 先在複本上驗證，寫 WAL 成功後才套用
// 呼叫端需持有 slot 的鎖 (或在單執行緒中)
func commitSingle(slot *accountSlot, mut *domain.Mutation, w *wal.WAL, apply func(acc *domain.Account) error) (*domain.Account, error) {
	next := slot.account
	if err := apply(&next); err != nil {
		return nil, err
	}
	if err := writeWAL(w, mut); err != nil {
		return nil, err
	}
	slot.account = next
	return &next, nil
}

// commitTransfer 轉帳: 扣款、入帳、寫 Log；Log 失敗時回滾兩邊餘額
// 呼叫端需持有兩個帳戶的鎖 (或在單執行緒中)
func commitTransfer(ctx context.Context, fromSlot, toSlot *accountSlot, amount int64, log usecase.TransactionLog) (*domain.Transaction, error) {
	fromAcc, toAcc := &fromSlot.account, &toSlot.account
	if err := fromAcc.Withdraw(amount); err != nil {
		return nil, err
	}
	if err := toAcc.Deposit(amount); err != nil {
		fromAcc.Balance += amount
		return nil, err
	}

	stored, err := log.Append(ctx, &domain.Transaction{
		From:   fromAcc.ID,
		To:     toAcc.ID,
		Amount: amount,
	})
	if err != nil {
		toAcc.Balance -= amount
		fromAcc.Balance += amount
		return nil, domain.StorageError(err)
	}
	return stored, nil
}

// replay 從 WAL 恢復帳本狀態
// 只有建構子呼叫，無需 Lock (單執行緒)
func (b accountBook) replay(w *wal.WAL, log usecase.TransactionLog) error {
	if w == nil {
		return nil
	}
	rs, _ := log.(restorer)
	line := 0
	return w.ReadAll(func(jsonRaw []byte) error {
		line++
		var mut domain.Mutation
		if err := json.Unmarshal(jsonRaw, &mut); err != nil {
			return fmt.Errorf("wal line %d: %w", line, err)
		}
		if err := b.apply(&mut, rs); err != nil {
			return fmt.Errorf("wal line %d (type %d): %w", line, mut.Type, err)
		}
		return nil
	})
}

// apply 套用一筆已落地的 Mutation (不寫 WAL)
func (b accountBook) apply(mut *domain.Mutation, rs restorer) error {
	switch mut.Type {
	case domain.MutationTypeCreateAccount:
		_, err := b.create(mut.To, nil)
		return err
	case domain.MutationTypeDeposit:
		slot, ok := b[mut.To]
		if !ok {
			return domain.ErrAccountNotFound
		}
		return slot.account.Deposit(mut.Amount)
	case domain.MutationTypeWithdraw:
		slot, ok := b[mut.From]
		if !ok {
			return domain.ErrAccountNotFound
		}
		return slot.account.Withdraw(mut.Amount)
	case domain.MutationTypeSetBalance:
		slot, ok := b[mut.To]
		if !ok {
			return domain.ErrAccountNotFound
		}
		return slot.account.SetBalance(mut.Amount)
	case domain.MutationTypeTransfer:
		fromSlot, ok := b[mut.From]
		if !ok {
			return domain.ErrAccountNotFound
		}
		toSlot, ok := b[mut.To]
		if !ok {
			return domain.ErrAccountNotFound
		}
		if err := fromSlot.account.Withdraw(mut.Amount); err != nil {
			return err
		}
		if err := toSlot.account.Deposit(mut.Amount); err != nil {
			return err
		}
		if rs != nil {
			return rs.restore(mut.Transaction())
		}
		return nil
	default:
		return fmt.Errorf("unknown mutation type %d", mut.Type)
	}
}

// top 排行榜快照，lock 為 true 時逐一取帳戶鎖讀取餘額
func (b accountBook) top(limit int, lock bool) []domain.Account {
	if limit <= 0 {
		return []domain.Account{}
	}
	snapshot := make([]domain.Account, 0, len(b))
	for _, slot := range b {
		if lock {
			slot.mu.Lock()
		}
		snapshot = append(snapshot, slot.account)
		if lock {
			slot.mu.Unlock()
		}
	}
	slices.SortFunc(snapshot, domain.RankAccounts)
	if len(snapshot) > limit {
		snapshot = snapshot[:limit]
	}
	return snapshot
}
