package memory

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-craft-ledger/pkg/wal"
)

type ledgerFactory func(t *testing.T, log usecase.TransactionLog, w *wal.WAL) usecase.Ledger

func newMutex(t *testing.T, log usecase.TransactionLog, w *wal.WAL) usecase.Ledger {
	t.Helper()
	l, err := NewMutexLedger(log, w)
	if err != nil {
		t.Fatalf("NewMutexLedger: %v", err)
	}
	return l
}

func newLMAX(t *testing.T, log usecase.TransactionLog, w *wal.WAL) usecase.Ledger {
	t.Helper()
	l, err := NewLMAXLedger(log, w)
	if err != nil {
		t.Fatalf("NewLMAXLedger: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	l.Start(ctx)
	return l
}

var factories = map[string]ledgerFactory{
	"mutex": newMutex,
	"lmax":  newLMAX,
}

// failingLog 模擬 Transaction Log 寫入失敗
type failingLog struct {
	*TransactionLog
}

func (f failingLog) Append(ctx context.Context, tran *domain.Transaction) (*domain.Transaction, error) {
	return nil, errors.New("disk full")
}

func openAccounts(t *testing.T, ctx context.Context, l usecase.Ledger, balances ...int64) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(balances))
	for _, b := range balances {
		id := uuid.New()
		if _, err := l.CreateAccount(ctx, id); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
		if b > 0 {
			if _, err := l.Deposit(ctx, id, b); err != nil {
				t.Fatalf("Deposit: %v", err)
			}
		}
		ids = append(ids, id)
	}
	return ids
}

func balanceOf(t *testing.T, ctx context.Context, l usecase.Ledger, id uuid.UUID) int64 {
	t.Helper()
	acc, err := l.GetAccount(ctx, id)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	return acc.Balance
}

func TestTransferMovesFunds(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			log := NewTransactionLog(nil)
			l := factory(t, log, nil)
			ids := openAccounts(t, ctx, l, 0, 0)
			p1, p2 := ids[0], ids[1]

			if _, err := l.Deposit(ctx, p1, 1000); err != nil {
				t.Fatalf("Deposit: %v", err)
			}
			tran, err := l.Transfer(ctx, p1, p2, 400)
			if err != nil {
				t.Fatalf("Transfer: %v", err)
			}
			if tran.ID != 1 || tran.Amount != 400 || tran.From != p1 || tran.To != p2 {
				t.Fatalf("unexpected transaction: %+v", tran)
			}
			if tran.CreatedAt == 0 {
				t.Fatal("expected CreatedAt to be set")
			}
			if got := balanceOf(t, ctx, l, p1); got != 600 {
				t.Fatalf("expected P1 600, got %d", got)
			}
			if got := balanceOf(t, ctx, l, p2); got != 400 {
				t.Fatalf("expected P2 400, got %d", got)
			}
			all, _ := log.FindAll(ctx)
			if len(all) != 1 {
				t.Fatalf("expected exactly one transaction, got %d", len(all))
			}
		})
	}
}

func TestTransferRejections(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			log := NewTransactionLog(nil)
			l := factory(t, log, nil)
			ids := openAccounts(t, ctx, l, 100, 0)
			p1, p2 := ids[0], ids[1]

			if _, err := l.Transfer(ctx, p1, p2, 150); !errors.Is(err, domain.ErrInsufficientBalance) {
				t.Fatalf("expected ErrInsufficientBalance, got %v", err)
			}
			if _, err := l.Transfer(ctx, p1, p1, 10); !errors.Is(err, domain.ErrInvalidTransfer) {
				t.Fatalf("expected ErrInvalidTransfer, got %v", err)
			}
			if _, err := l.Transfer(ctx, p1, p2, 0); !errors.Is(err, domain.ErrAmountMustBePositive) {
				t.Fatalf("expected ErrAmountMustBePositive, got %v", err)
			}
			if _, err := l.Transfer(ctx, p1, uuid.New(), 10); !errors.Is(err, domain.ErrAccountNotFound) {
				t.Fatalf("expected ErrAccountNotFound, got %v", err)
			}
			if _, err := l.Transfer(ctx, uuid.New(), p1, 10); !errors.Is(err, domain.ErrAccountNotFound) {
				t.Fatalf("expected ErrAccountNotFound, got %v", err)
			}

			if got := balanceOf(t, ctx, l, p1); got != 100 {
				t.Fatalf("expected P1 unchanged at 100, got %d", got)
			}
			if got := balanceOf(t, ctx, l, p2); got != 0 {
				t.Fatalf("expected P2 unchanged at 0, got %d", got)
			}
			all, _ := log.FindAll(ctx)
			if len(all) != 0 {
				t.Fatalf("expected no transactions, got %d", len(all))
			}
		})
	}
}

func TestSingleAccountOperations(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := factory(t, NewTransactionLog(nil), nil)
			id := openAccounts(t, ctx, l, 0)[0]

			if _, err := l.CreateAccount(ctx, id); !errors.Is(err, domain.ErrAccountAlreadyExists) {
				t.Fatalf("expected ErrAccountAlreadyExists, got %v", err)
			}
			if _, err := l.GetAccount(ctx, uuid.New()); !errors.Is(err, domain.ErrAccountNotFound) {
				t.Fatalf("expected ErrAccountNotFound, got %v", err)
			}
			if _, err := l.Deposit(ctx, uuid.New(), 10); !errors.Is(err, domain.ErrAccountNotFound) {
				t.Fatalf("expected ErrAccountNotFound, got %v", err)
			}
			if _, err := l.Deposit(ctx, id, -1); !errors.Is(err, domain.ErrAmountMustBePositive) {
				t.Fatalf("expected ErrAmountMustBePositive, got %v", err)
			}

			acc, err := l.Deposit(ctx, id, 50)
			if err != nil || acc.Balance != 50 {
				t.Fatalf("Deposit: acc=%+v err=%v", acc, err)
			}
			if _, err := l.Withdraw(ctx, id, 51); !errors.Is(err, domain.ErrInsufficientBalance) {
				t.Fatalf("expected ErrInsufficientBalance, got %v", err)
			}
			acc, err = l.Withdraw(ctx, id, 50)
			if err != nil || acc.Balance != 0 {
				t.Fatalf("Withdraw exact balance: acc=%+v err=%v", acc, err)
			}
			if _, err := l.SetBalance(ctx, id, -5); !errors.Is(err, domain.ErrNegativeBalance) {
				t.Fatalf("expected ErrNegativeBalance, got %v", err)
			}
			acc, err = l.SetBalance(ctx, id, 777)
			if err != nil || acc.Balance != 777 {
				t.Fatalf("SetBalance: acc=%+v err=%v", acc, err)
			}
		})
	}
}

func TestCreditBeyondMaxBalanceRejected(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			log := NewTransactionLog(nil)
			l := factory(t, log, nil)
			ids := openAccounts(t, ctx, l, math.MaxInt64, 1)
			rich, poor := ids[0], ids[1]

			if _, err := l.Deposit(ctx, rich, 1); !errors.Is(err, domain.ErrBalanceOverflow) {
				t.Fatalf("expected ErrBalanceOverflow on deposit, got %v", err)
			}
			if _, err := l.Transfer(ctx, poor, rich, 1); !errors.Is(err, domain.ErrBalanceOverflow) {
				t.Fatalf("expected ErrBalanceOverflow on transfer, got %v", err)
			}

			for id, want := range map[uuid.UUID]int64{rich: math.MaxInt64, poor: 1} {
				acc, err := l.GetAccount(ctx, id)
				if err != nil {
					t.Fatalf("GetAccount: %v", err)
				}
				if acc.Balance != want {
					t.Fatalf("expected balance %d, got %d", want, acc.Balance)
				}
			}
			if all, _ := log.FindAll(ctx); len(all) != 0 {
				t.Fatalf("expected no transaction, got %d", len(all))
			}
		})
	}
}

func TestTopAccounts(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := factory(t, NewTransactionLog(nil), nil)
			ids := openAccounts(t, ctx, l, 30, 10, 50, 10, 0)

			top, err := l.TopAccounts(ctx, 3)
			if err != nil {
				t.Fatalf("TopAccounts: %v", err)
			}
			if len(top) != 3 {
				t.Fatalf("expected 3 accounts, got %d", len(top))
			}
			if top[0].ID != ids[2] || top[1].ID != ids[0] {
				t.Fatalf("unexpected ranking: %+v", top)
			}
			// 同分以 ID 排序
			first, _ := domain.LockOrder(ids[1], ids[3])
			if top[2].ID != first || top[2].Balance != 10 {
				t.Fatalf("expected tie broken by id, got %+v", top[2])
			}

			all, _ := l.TopAccounts(ctx, 100)
			if len(all) != len(ids) {
				t.Fatalf("expected %d accounts, got %d", len(ids), len(all))
			}
			none, _ := l.TopAccounts(ctx, 0)
			if none == nil || len(none) != 0 {
				t.Fatalf("expected empty non-nil result, got %v", none)
			}
		})
	}
}

func TestConcurrentOppositeTransfers(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := factory(t, NewTransactionLog(nil), nil)
			ids := openAccounts(t, ctx, l, 100, 100)
			a, b := ids[0], ids[1]

			var wg sync.WaitGroup
			errs := make(chan error, 2)
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := l.Transfer(ctx, a, b, 50)
				errs <- err
			}()
			go func() {
				defer wg.Done()
				_, err := l.Transfer(ctx, b, a, 30)
				errs <- err
			}()
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("Transfer: %v", err)
				}
			}
			if got := balanceOf(t, ctx, l, a); got != 80 {
				t.Fatalf("expected A 80, got %d", got)
			}
			if got := balanceOf(t, ctx, l, b); got != 120 {
				t.Fatalf("expected B 120, got %d", got)
			}
		})
	}
}

// 大量交叉轉帳: 不死鎖、總額不變、餘額不為負、交易數量與成功次數一致
func TestConcurrentTransfersConserveTotal(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			log := NewTransactionLog(nil)
			l := factory(t, log, nil)
			const accounts, workers, rounds = 6, 8, 200
			balances := make([]int64, accounts)
			for i := range balances {
				balances[i] = 500
			}
			ids := openAccounts(t, ctx, l, balances...)

			var mu sync.Mutex
			succeeded := 0
			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for r := 0; r < rounds; r++ {
						from := ids[(w+r)%accounts]
						to := ids[(w*3+r+1)%accounts]
						if from == to {
							continue
						}
						_, err := l.Transfer(ctx, from, to, int64(r%70+1))
						switch {
						case err == nil:
							mu.Lock()
							succeeded++
							mu.Unlock()
						case errors.Is(err, domain.ErrInsufficientBalance):
						default:
							t.Errorf("Transfer: %v", err)
							return
						}
					}
				}(w)
			}

			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(10 * time.Second):
				t.Fatal("transfers did not finish, possible deadlock")
			}

			var total int64
			for _, id := range ids {
				b := balanceOf(t, ctx, l, id)
				if b < 0 {
					t.Fatalf("negative balance %d", b)
				}
				total += b
			}
			if total != accounts*500 {
				t.Fatalf("expected total %d, got %d", accounts*500, total)
			}
			all, _ := log.FindAll(ctx)
			if len(all) != succeeded {
				t.Fatalf("expected %d transactions, got %d", succeeded, len(all))
			}
			for i, tran := range all {
				if tran.ID != int64(i+1) {
					t.Fatalf("expected dense ids, got %d at %d", tran.ID, i)
				}
			}
		})
	}
}

func TestConcurrentCreateOnlyOneWins(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := factory(t, NewTransactionLog(nil), nil)
			id := uuid.New()

			var wg sync.WaitGroup
			results := make(chan error, 16)
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := l.CreateAccount(ctx, id)
					results <- err
				}()
			}
			wg.Wait()
			close(results)
			created := 0
			for err := range results {
				switch {
				case err == nil:
					created++
				case errors.Is(err, domain.ErrAccountAlreadyExists):
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			if created != 1 {
				t.Fatalf("expected exactly one create, got %d", created)
			}
		})
	}
}

func TestTransferRollsBackWhenLogFails(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := factory(t, failingLog{NewTransactionLog(nil)}, nil)
			ids := openAccounts(t, ctx, l, 100, 5)

			_, err := l.Transfer(ctx, ids[0], ids[1], 40)
			if !errors.Is(err, domain.ErrStorage) {
				t.Fatalf("expected ErrStorage, got %v", err)
			}
			if got := balanceOf(t, ctx, l, ids[0]); got != 100 {
				t.Fatalf("expected sender rolled back to 100, got %d", got)
			}
			if got := balanceOf(t, ctx, l, ids[1]); got != 5 {
				t.Fatalf("expected receiver rolled back to 5, got %d", got)
			}
		})
	}
}

func TestReplayRestoresState(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "ledger.wal")

			w, err := wal.NewWAL(path)
			if err != nil {
				t.Fatalf("NewWAL: %v", err)
			}
			log := NewTransactionLog(w)
			l := factory(t, log, w)
			ids := openAccounts(t, ctx, l, 1000, 0, 0)
			if _, err := l.Transfer(ctx, ids[0], ids[1], 300); err != nil {
				t.Fatalf("Transfer: %v", err)
			}
			if _, err := l.Withdraw(ctx, ids[1], 100); err != nil {
				t.Fatalf("Withdraw: %v", err)
			}
			if _, err := l.SetBalance(ctx, ids[2], 42); err != nil {
				t.Fatalf("SetBalance: %v", err)
			}
			// 失敗的操作不應留下 WAL 紀錄
			if _, err := l.Withdraw(ctx, ids[2], 43); !errors.Is(err, domain.ErrInsufficientBalance) {
				t.Fatalf("expected ErrInsufficientBalance, got %v", err)
			}
			if _, err := l.Transfer(ctx, ids[1], ids[2], 10); err != nil {
				t.Fatalf("Transfer: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			w2, err := wal.NewWAL(path)
			if err != nil {
				t.Fatalf("reopen WAL: %v", err)
			}
			defer w2.Close()
			log2 := NewTransactionLog(w2)
			restored := factory(t, log2, w2)

			want := map[uuid.UUID]int64{ids[0]: 700, ids[1]: 190, ids[2]: 52}
			for id, balance := range want {
				if got := balanceOf(t, ctx, restored, id); got != balance {
					t.Fatalf("account %s: expected %d, got %d", id, balance, got)
				}
			}
			all, _ := log2.FindAll(ctx)
			if len(all) != 2 || all[0].ID != 1 || all[1].ID != 2 {
				t.Fatalf("unexpected restored log: %+v", all)
			}

			// 恢復後新的交易 ID 接續
			tran, err := restored.Transfer(ctx, ids[0], ids[2], 1)
			if err != nil {
				t.Fatalf("Transfer after replay: %v", err)
			}
			if tran.ID != 3 {
				t.Fatalf("expected next id 3, got %d", tran.ID)
			}
		})
	}
}

func TestLMAXRejectsAfterStop(t *testing.T) {
	l, err := NewLMAXLedger(NewTransactionLog(nil), nil)
	if err != nil {
		t.Fatalf("NewLMAXLedger: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	id := uuid.New()
	if _, err := l.CreateAccount(context.Background(), id); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	cancel()
	<-l.stopped

	_, err = l.GetAccount(context.Background(), id)
	if !errors.Is(err, ErrLedgerStopped) || !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected stopped storage error, got %v", err)
	}
}

func TestLMAXHonoursCancelledContext(t *testing.T) {
	// 未啟動的引擎: 請求只能卡在輸送帶前，ctx 取消後應立即返回
	l, err := NewLMAXLedger(NewTransactionLog(nil), nil)
	if err != nil {
		t.Fatalf("NewLMAXLedger: %v", err)
	}
	l.commandChan = make(chan *commandRequest)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.CreateAccount(ctx, uuid.New()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
