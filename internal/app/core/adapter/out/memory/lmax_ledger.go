package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-craft-ledger/pkg/wal"
)

// ErrLedgerStopped 核心引擎已停止，不再接受請求
var ErrLedgerStopped = errors.New("ledger engine stopped")

// commandRequest 請求包裝，讓呼叫端可以等待結果
type commandRequest struct {
	exec   func() error
	Result chan error // 讓呼叫端等這個 channel
}

// LMAXLedger 單一寫入者的帳本，所有狀態只由 run loop 存取，不需要任何帳戶鎖
type LMAXLedger struct {
	accounts accountBook
	log      usecase.TransactionLog
	// Write-Ahead Logging
	wal *wal.WAL
	// 輸送帶 負責接收請求
	commandChan chan *commandRequest
	// run loop 結束時關閉
	stopped chan struct{}
	// Pool 減少 GC 壓力
	requestPool sync.Pool
}

// NewLMAXLedger 建立一個新的 LMAXLedger 實例，需呼叫 Start 後才會處理請求
//
// 參數:
//
//	log: 交易紀錄
//	wal: Write-Ahead Log 實例，可為 nil
//
// 回傳:
//
//	*LMAXLedger: LMAXLedger 實例
//	error: 初始化錯誤
func NewLMAXLedger(log usecase.TransactionLog, wal *wal.WAL) (*LMAXLedger, error) {
	ledger := &LMAXLedger{
		accounts:    make(accountBook),
		log:         log,
		wal:         wal,
		commandChan: make(chan *commandRequest, 1000), // Buffer 1000
		stopped:     make(chan struct{}),
		requestPool: sync.Pool{
			New: func() any {
				return &commandRequest{
					Result: make(chan error, 1),
				}
			},
		},
	}

	// 在啟動前先恢復資料
	if err := ledger.accounts.replay(wal, log); err != nil {
		return nil, err
	}
	return ledger, nil
}

// Start 啟動核心引擎 (非同步)，ctx 取消後處理完剩下的請求才結束
func (l *LMAXLedger) Start(ctx context.Context) {
	go l.run(ctx)
}

// Done run loop 結束 (剩餘請求已處理完) 時關閉
func (l *LMAXLedger) Done() <-chan struct{} {
	return l.stopped
}

func (l *LMAXLedger) run(ctx context.Context) {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的請求處理完
			l.drain()
			return
		case req := <-l.commandChan:
			req.Result <- req.exec()
		}
	}
}

func (l *LMAXLedger) drain() {
	for {
		select {
		case req := <-l.commandChan:
			req.Result <- req.exec()
		default:
			return
		}
	}
}

// submit 放入輸送帶並等待結果
// 放入前 ctx 被取消可以安全放棄；一旦放入就一定會等到執行完成
func (l *LMAXLedger) submit(ctx context.Context, exec func() error) error {
	req := l.requestPool.Get().(*commandRequest)
	req.exec = exec
	// 清空 Channel (雖然理論上應該是空的，但保險起見)
	select {
	case <-req.Result:
	default:
	}

	select {
	case l.commandChan <- req:
	case <-ctx.Done():
		l.requestPool.Put(req)
		return ctx.Err()
	case <-l.stopped:
		l.requestPool.Put(req)
		return domain.StorageError(ErrLedgerStopped)
	}

	select {
	case err := <-req.Result:
		req.exec = nil
		l.requestPool.Put(req)
		return err
	case <-l.stopped:
		// drain 在關閉 stopped 之前執行，已處理的請求結果一定已在 channel 中
		select {
		case err := <-req.Result:
			return err
		default:
			return domain.StorageError(ErrLedgerStopped)
		}
	}
}

func (l *LMAXLedger) CreateAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var acc *domain.Account
	err := l.submit(ctx, func() (err error) {
		acc, err = l.accounts.create(id, l.wal)
		return err
	})
	return acc, err
}

func (l *LMAXLedger) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var acc *domain.Account
	err := l.submit(ctx, func() error {
		slot, ok := l.accounts[id]
		if !ok {
			return domain.ErrAccountNotFound
		}
		snapshot := slot.account
		acc = &snapshot
		return nil
	})
	return acc, err
}

func (l *LMAXLedger) Deposit(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return l.postSingle(ctx, domain.NewDepositMutation(id, amount), func(acc *domain.Account) error {
		return acc.Deposit(amount)
	})
}

func (l *LMAXLedger) Withdraw(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return l.postSingle(ctx, domain.NewWithdrawMutation(id, amount), func(acc *domain.Account) error {
		return acc.Withdraw(amount)
	})
}

func (l *LMAXLedger) SetBalance(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	if amount < 0 {
		return nil, domain.ErrNegativeBalance
	}
	return l.postSingle(ctx, domain.NewSetBalanceMutation(id, amount), func(acc *domain.Account) error {
		return acc.SetBalance(amount)
	})
}

func (l *LMAXLedger) postSingle(ctx context.Context, mut *domain.Mutation, apply func(acc *domain.Account) error) (*domain.Account, error) {
	var acc *domain.Account
	err := l.submit(ctx, func() (err error) {
		slot, ok := l.accounts[mut.GetLockIDs()[0]]
		if !ok {
			return domain.ErrAccountNotFound
		}
		acc, err = commitSingle(slot, mut, l.wal, apply)
		return err
	})
	return acc, err
}

// Transfer 轉帳；run loop 一次只處理一筆，不需要鎖順序
func (l *LMAXLedger) Transfer(ctx context.Context, from, to uuid.UUID, amount int64) (*domain.Transaction, error) {
	if err := domain.ValidateTransfer(from, to, amount); err != nil {
		return nil, err
	}
	var tran *domain.Transaction
	err := l.submit(ctx, func() (err error) {
		fromSlot, ok := l.accounts[from]
		if !ok {
			return domain.ErrAccountNotFound
		}
		toSlot, ok := l.accounts[to]
		if !ok {
			return domain.ErrAccountNotFound
		}
		// ctx 不傳進 loop，已進入輸送帶的請求不可中途取消
		tran, err = commitTransfer(context.Background(), fromSlot, toSlot, amount, l.log)
		return err
	})
	return tran, err
}

func (l *LMAXLedger) TopAccounts(ctx context.Context, limit int) ([]domain.Account, error) {
	var result []domain.Account
	err := l.submit(ctx, func() error {
		result = l.accounts.top(limit, false)
		return nil
	})
	return result, err
}

var _ usecase.Ledger = (*LMAXLedger)(nil)
