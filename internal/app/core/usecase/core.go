package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
)

// CoreUseCase 是核心業務邏輯層
// 所有 Adapter (gRPC / HTTP) 都透過它操作 Ledger 與 Transaction Log
type CoreUseCase struct {
	ledger    Ledger
	txLog     TransactionLog
	publisher EventPublisher
	logger    zerolog.Logger

	defaultTop int
	maxTop     int
}

// Option CoreUseCase 的可選設定
type Option func(*CoreUseCase)

// WithPublisher 設定事件發布者，轉帳成功後發布 transaction.created
func WithPublisher(p EventPublisher) Option {
	return func(c *CoreUseCase) {
		c.publisher = p
	}
}

// WithTopLimits 設定排行榜預設數量與上限
func WithTopLimits(defaultLimit, maxLimit int) Option {
	return func(c *CoreUseCase) {
		c.defaultTop = defaultLimit
		c.maxTop = maxLimit
	}
}

// WithLogger 設定 logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *CoreUseCase) {
		c.logger = l
	}
}

// NewCoreUseCase 建立 CoreUseCase
//
// 參數:
//
//	ledger: 帳本實作 (memory_mutex / memory_lmax / mysql / postgres)
//	txLog: 交易紀錄
//	opts: 可選設定
func NewCoreUseCase(ledger Ledger, txLog TransactionLog, opts ...Option) *CoreUseCase {
	c := &CoreUseCase{
		ledger:     ledger,
		txLog:      txLog,
		logger:     zerolog.Nop(),
		defaultTop: domain.DefaultTopLimit,
		maxTop:     domain.MaxTopLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CoreUseCase) CreateAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	acc, err := c.ledger.CreateAccount(ctx, id)
	if err != nil {
		c.logFailure(err, "create account", id)
		return nil, err
	}
	c.logger.Info().Str("account_id", id.String()).Msg("account created")
	return acc, nil
}

func (c *CoreUseCase) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return c.ledger.GetAccount(ctx, id)
}

func (c *CoreUseCase) Deposit(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	acc, err := c.ledger.Deposit(ctx, id, amount)
	if err != nil {
		c.logFailure(err, "deposit", id)
		return nil, err
	}
	return acc, nil
}

func (c *CoreUseCase) Withdraw(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	acc, err := c.ledger.Withdraw(ctx, id, amount)
	if err != nil {
		c.logFailure(err, "withdraw", id)
		return nil, err
	}
	return acc, nil
}

// SetBalance 管理員直接設定餘額，留下 warn 等級紀錄方便稽核
func (c *CoreUseCase) SetBalance(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	acc, err := c.ledger.SetBalance(ctx, id, amount)
	if err != nil {
		c.logFailure(err, "set balance", id)
		return nil, err
	}
	c.logger.Warn().
		Str("account_id", id.String()).
		Int64("balance", amount).
		Msg("balance overwritten by admin")
	return acc, nil
}

// Transfer 轉帳
// 成功後發布 transaction.created 事件；發布失敗只記錄 log，不影響已完成的轉帳
func (c *CoreUseCase) Transfer(ctx context.Context, from, to uuid.UUID, amount int64) (*domain.Transaction, error) {
	tran, err := c.ledger.Transfer(ctx, from, to, amount)
	if err != nil {
		c.logFailure(err, "transfer", from)
		return nil, err
	}

	if c.publisher != nil {
		event := domain.NewTransactionCreated(tran)
		if err := c.publisher.Publish(ctx, domain.RoutingKeyTransactionCreated, event); err != nil {
			c.logger.Error().Err(err).
				Int64("transaction_id", tran.ID).
				Msg("failed to publish transaction event")
		}
	}
	return tran, nil
}

func (c *CoreUseCase) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	return c.txLog.FindByID(ctx, id)
}

func (c *CoreUseCase) TransactionsBySender(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	return c.txLog.FindBySender(ctx, accountID)
}

func (c *CoreUseCase) TransactionsByReceiver(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	return c.txLog.FindByReceiver(ctx, accountID)
}

func (c *CoreUseCase) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return c.txLog.FindAll(ctx)
}

// TopAccounts 排行榜，limit <= 0 使用預設值，超過上限截斷
func (c *CoreUseCase) TopAccounts(ctx context.Context, limit int) ([]domain.Account, error) {
	return c.ledger.TopAccounts(ctx, domain.NormalizeLimit(limit, c.defaultTop, c.maxTop))
}

// logFailure 業務錯誤記 debug，儲存層錯誤記 error
func (c *CoreUseCase) logFailure(err error, op string, id uuid.UUID) {
	event := c.logger.Debug()
	if domain.KindOf(err) == domain.KindStorage || domain.KindOf(err) == domain.KindUnknown {
		event = c.logger.Error()
	}
	event.Err(err).Str("op", op).Str("account_id", id.String()).Msg("ledger operation failed")
}
