package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
)

// Ledger 是帳務核心的介面，所有餘額變更都必須經過它
type Ledger interface {
	// CreateAccount 開戶，初始餘額 0；檢查與新增為同一個原子步驟
	CreateAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// GetAccount 取得帳戶
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// Deposit 存款
	Deposit(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error)
	// Withdraw 提款
	Withdraw(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error)
	// SetBalance 管理員直接設定餘額
	SetBalance(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error)
	// Transfer 轉帳，成功時回傳已寫入 Log 的交易
	Transfer(ctx context.Context, from, to uuid.UUID, amount int64) (*domain.Transaction, error)
	// TopAccounts 依餘額排序取前 limit 名
	TopAccounts(ctx context.Context, limit int) ([]domain.Account, error)
}

// TransactionLog 是只能新增的交易紀錄
type TransactionLog interface {
	// Append 分配 ID 與時間並保存
	Append(ctx context.Context, tran *domain.Transaction) (*domain.Transaction, error)
	FindByID(ctx context.Context, id int64) (*domain.Transaction, error)
	FindBySender(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
	FindByReceiver(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
	FindAll(ctx context.Context) ([]domain.Transaction, error)
}

// EventPublisher 發布領域事件 (例如 transaction.created)
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// CachedResponse 冪等鍵對應的已完成回應
type CachedResponse struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
}

// IdempotencyStore 保存冪等鍵的回應；Get 找不到時回傳 (nil, nil)
//
// 同一個 key 同時只能有一個請求在執行:
//
//	Reserve: 取得執行權，已被其他請求佔用時回傳 false
//	Release: 放棄執行權 (處理失敗、允許重試時)
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, error)
	Save(ctx context.Context, key string, resp CachedResponse, ttl time.Duration) error
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
