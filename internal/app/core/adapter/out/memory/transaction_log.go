package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-craft-ledger/pkg/wal"
)

// TransactionLog 記憶體版交易紀錄
//
// 結構:
//
//	transactions: 依 ID 遞增排列的交易
//	byID / bySender / byReceiver: 指向 transactions 的索引
//	wal: 有設定時，Append 先寫 WAL 才對外可見
type TransactionLog struct {
	mu           sync.RWMutex
	transactions []domain.Transaction
	byID         map[int64]int
	bySender     map[uuid.UUID][]int
	byReceiver   map[uuid.UUID][]int
	lastID       int64
	wal          *wal.WAL
	now          func() time.Time
}

// NewTransactionLog 建立記憶體交易紀錄，w 可為 nil (不落地)
func NewTransactionLog(w *wal.WAL) *TransactionLog {
	return &TransactionLog{
		byID:       make(map[int64]int),
		bySender:   make(map[uuid.UUID][]int),
		byReceiver: make(map[uuid.UUID][]int),
		wal:        w,
		now:        time.Now,
	}
}

// Append 分配 ID 與時間，寫入 WAL 後加入索引
//
// 參數:
//
//	ctx: 上下文
//	tran: 交易 (From / To / Amount)
//
// 回傳:
//
//	*domain.Transaction: 已保存的交易複本
//	error: 參數錯誤或 WAL 寫入失敗 (ErrStorage)
func (l *TransactionLog) Append(ctx context.Context, tran *domain.Transaction) (*domain.Transaction, error) {
	if err := domain.ValidateTransfer(tran.From, tran.To, tran.Amount); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stored := domain.Transaction{
		ID:        l.lastID + 1,
		From:      tran.From,
		To:        tran.To,
		Amount:    tran.Amount,
		CreatedAt: l.now().UnixMilli(),
	}
	// 在 Log 鎖內寫 WAL，WAL 中的順序與交易 ID 順序一致
	if err := writeWAL(l.wal, domain.NewTransferMutation(&stored)); err != nil {
		return nil, err
	}
	l.insert(stored)
	return &stored, nil
}

// restore WAL 重放時使用，不再寫 WAL
func (l *TransactionLog) restore(tran *domain.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byID[tran.ID]; ok {
		return nil
	}
	l.insert(*tran)
	return nil
}

// insert 呼叫端需持有 l.mu
func (l *TransactionLog) insert(tran domain.Transaction) {
	idx := len(l.transactions)
	l.transactions = append(l.transactions, tran)
	l.byID[tran.ID] = idx
	l.bySender[tran.From] = append(l.bySender[tran.From], idx)
	l.byReceiver[tran.To] = append(l.byReceiver[tran.To], idx)
	if tran.ID > l.lastID {
		l.lastID = tran.ID
	}
}

func (l *TransactionLog) FindByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byID[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	tran := l.transactions[idx]
	return &tran, nil
}

func (l *TransactionLog) FindBySender(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collect(l.bySender[accountID]), nil
}

func (l *TransactionLog) FindByReceiver(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collect(l.byReceiver[accountID]), nil
}

func (l *TransactionLog) FindAll(ctx context.Context) ([]domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]domain.Transaction, len(l.transactions))
	copy(result, l.transactions)
	return result, nil
}

// collect 依索引複製交易，沒有資料時回傳空 slice 而不是 nil
func (l *TransactionLog) collect(indexes []int) []domain.Transaction {
	result := make([]domain.Transaction, 0, len(indexes))
	for _, idx := range indexes {
		result = append(result, l.transactions[idx])
	}
	return result
}

var _ usecase.TransactionLog = (*TransactionLog)(nil)
