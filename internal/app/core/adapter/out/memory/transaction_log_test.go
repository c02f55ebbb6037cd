package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
)

func TestTransactionLogAppendAssignsIDAndTime(t *testing.T) {
	ctx := context.Background()
	log := NewTransactionLog(nil)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return fixed }

	a, b := uuid.New(), uuid.New()
	// 呼叫端給的 ID / 時間會被忽略
	first, err := log.Append(ctx, &domain.Transaction{ID: 99, From: a, To: b, Amount: 10, CreatedAt: 1})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("expected id 1, got %d", first.ID)
	}
	if !first.CreatedTime().Equal(fixed) {
		t.Fatalf("expected created time %v, got %v", fixed, first.CreatedTime())
	}
	second, err := log.Append(ctx, &domain.Transaction{From: b, To: a, Amount: 3})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if second.ID != 2 {
		t.Fatalf("expected id 2, got %d", second.ID)
	}

	if _, err := log.Append(ctx, &domain.Transaction{From: a, To: a, Amount: 3}); !errors.Is(err, domain.ErrInvalidTransfer) {
		t.Fatalf("expected ErrInvalidTransfer, got %v", err)
	}
	if _, err := log.Append(ctx, &domain.Transaction{From: a, To: b}); !errors.Is(err, domain.ErrAmountMustBePositive) {
		t.Fatalf("expected ErrAmountMustBePositive, got %v", err)
	}
}

func TestTransactionLogQueries(t *testing.T) {
	ctx := context.Background()
	log := NewTransactionLog(nil)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	for _, tr := range []domain.Transaction{
		{From: a, To: b, Amount: 1},
		{From: b, To: c, Amount: 2},
		{From: a, To: c, Amount: 3},
	} {
		if _, err := log.Append(ctx, &tr); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := log.FindByID(ctx, 2)
	if err != nil || got.Amount != 2 {
		t.Fatalf("FindByID: got=%+v err=%v", got, err)
	}
	if _, err := log.FindByID(ctx, 42); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}

	sent, _ := log.FindBySender(ctx, a)
	if len(sent) != 2 || sent[0].ID != 1 || sent[1].ID != 3 {
		t.Fatalf("unexpected sender result: %+v", sent)
	}
	received, _ := log.FindByReceiver(ctx, c)
	if len(received) != 2 || received[0].ID != 2 || received[1].ID != 3 {
		t.Fatalf("unexpected receiver result: %+v", received)
	}

	unknown, err := log.FindBySender(ctx, uuid.New())
	if err != nil {
		t.Fatalf("FindBySender: %v", err)
	}
	if unknown == nil || len(unknown) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", unknown)
	}

	// 回傳的是複本，修改不影響 Log
	sent[0].Amount = 1000
	again, _ := log.FindByID(ctx, 1)
	if again.Amount != 1 {
		t.Fatalf("log mutated through returned slice: %+v", again)
	}

	all, _ := log.FindAll(ctx)
	if len(all) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(all))
	}
}

func TestTransactionLogRestoreIsIdempotent(t *testing.T) {
	ctx := context.Background()
	log := NewTransactionLog(nil)
	tran := &domain.Transaction{ID: 7, From: uuid.New(), To: uuid.New(), Amount: 5, CreatedAt: 1700000000000}
	for i := 0; i < 2; i++ {
		if err := log.restore(tran); err != nil {
			t.Fatalf("restore: %v", err)
		}
	}
	all, _ := log.FindAll(ctx)
	if len(all) != 1 {
		t.Fatalf("expected 1 restored transaction, got %d", len(all))
	}
	next, err := log.Append(ctx, &domain.Transaction{From: tran.From, To: tran.To, Amount: 1})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if next.ID != 8 {
		t.Fatalf("expected id to continue from 7, got %d", next.ID)
	}
}
