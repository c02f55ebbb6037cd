package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-craft-ledger/pkg/logger"
)

type recordedEvent struct {
	key   string
	event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, routingKey string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{key: routingKey, event: event})
	return p.err
}

func newCore(t *testing.T, opts ...usecase.Option) *usecase.CoreUseCase {
	t.Helper()
	log := memory.NewTransactionLog(nil)
	ledger, err := memory.NewMutexLedger(log, nil)
	if err != nil {
		t.Fatalf("NewMutexLedger: %v", err)
	}
	return usecase.NewCoreUseCase(ledger, log, opts...)
}

func TestTransferPublishesEvent(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	core := newCore(t, usecase.WithPublisher(pub))

	p1, p2 := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{p1, p2} {
		if _, err := core.CreateAccount(ctx, id); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
	}
	if _, err := core.Deposit(ctx, p1, 1000); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	tran, err := core.Transfer(ctx, p1, p2, 400)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.events))
	}
	if pub.events[0].key != domain.RoutingKeyTransactionCreated {
		t.Fatalf("unexpected routing key %q", pub.events[0].key)
	}
	ev, ok := pub.events[0].event.(domain.TransactionCreated)
	if !ok {
		t.Fatalf("unexpected event type %T", pub.events[0].event)
	}
	if ev.TransactionID != tran.ID || ev.Amount != 400 || ev.Display != "4.00" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	// 失敗的轉帳不發布
	if _, err := core.Transfer(ctx, p2, p1, 401); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected no extra event, got %d", len(pub.events))
	}

	sent, _ := core.TransactionsBySender(ctx, p1)
	received, _ := core.TransactionsByReceiver(ctx, p2)
	if len(sent) != 1 || len(received) != 1 || sent[0].ID != received[0].ID {
		t.Fatalf("unexpected history: sent=%v received=%v", sent, received)
	}
	got, err := core.GetTransaction(ctx, tran.ID)
	if err != nil || got.Amount != 400 {
		t.Fatalf("GetTransaction: got=%+v err=%v", got, err)
	}
	all, _ := core.ListTransactions(ctx)
	if len(all) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(all))
	}
}

func TestTransferSucceedsWhenPublishFails(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	pub := &fakePublisher{err: errors.New("broker down")}
	core := newCore(t, usecase.WithPublisher(pub), usecase.WithLogger(logger.NewWithWriter(&buf)))

	a, b := uuid.New(), uuid.New()
	_, _ = core.CreateAccount(ctx, a)
	_, _ = core.CreateAccount(ctx, b)
	_, _ = core.SetBalance(ctx, a, 10)

	if _, err := core.Transfer(ctx, a, b, 10); err != nil {
		t.Fatalf("Transfer should not fail on publish error: %v", err)
	}
	acc, _ := core.GetAccount(ctx, b)
	if acc.Balance != 10 {
		t.Fatalf("expected 10, got %d", acc.Balance)
	}
	if !strings.Contains(buf.String(), "failed to publish transaction event") {
		t.Fatalf("expected publish failure to be logged, got %q", buf.String())
	}
}

func TestTopAccountsNormalizesLimit(t *testing.T) {
	ctx := context.Background()
	core := newCore(t)
	for i := 0; i < 25; i++ {
		id := uuid.New()
		if _, err := core.CreateAccount(ctx, id); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
		if _, err := core.Deposit(ctx, id, int64(i+1)); err != nil {
			t.Fatalf("Deposit: %v", err)
		}
	}

	byDefault, _ := core.TopAccounts(ctx, 0)
	ten, _ := core.TopAccounts(ctx, 10)
	if len(byDefault) != 10 || len(ten) != 10 {
		t.Fatalf("expected 10 entries, got %d and %d", len(byDefault), len(ten))
	}
	for i := range ten {
		if byDefault[i] != ten[i] {
			t.Fatalf("default differs from explicit 10 at %d", i)
		}
	}
	if ten[0].Balance != 25 {
		t.Fatalf("expected richest first, got %d", ten[0].Balance)
	}

	capped, _ := core.TopAccounts(ctx, 999)
	if len(capped) != domain.MaxTopLimit {
		t.Fatalf("expected %d entries, got %d", domain.MaxTopLimit, len(capped))
	}

	custom := newCore(t, usecase.WithTopLimits(3, 5))
	for i := 0; i < 8; i++ {
		_, _ = custom.CreateAccount(ctx, uuid.New())
	}
	got, _ := custom.TopAccounts(ctx, -1)
	if len(got) != 3 {
		t.Fatalf("expected custom default 3, got %d", len(got))
	}
	got, _ = custom.TopAccounts(ctx, 50)
	if len(got) != 5 {
		t.Fatalf("expected custom ceiling 5, got %d", len(got))
	}
}
