package mysql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
)

func TestTranslateError(t *testing.T) {
	driverErr := errors.New("connection reset")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"record not found", fmt.Errorf("query: %w", gorm.ErrRecordNotFound), domain.ErrAccountNotFound},
		{"duplicated key", gorm.ErrDuplicatedKey, domain.ErrAccountAlreadyExists},
		{"domain error kept", domain.ErrInsufficientBalance, domain.ErrInsufficientBalance},
		{"driver error", driverErr, domain.ErrStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err, domain.ErrAccountNotFound)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestToDomainTransactions(t *testing.T) {
	from, to := uuid.New(), uuid.New()
	rows := []sqlTransaction{
		{ID: 1, FromID: from.String(), ToID: to.String(), Amount: 5, CreatedAt: 1700000000000},
	}
	got, err := toDomainTransactions(rows)
	if err != nil {
		t.Fatalf("toDomainTransactions: %v", err)
	}
	if len(got) != 1 || got[0].From != from || got[0].To != to || got[0].Amount != 5 {
		t.Fatalf("unexpected result: %+v", got)
	}

	empty, err := toDomainTransactions(nil)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v (%v)", empty, err)
	}

	bad := []sqlTransaction{{ID: 2, FromID: "not-a-uuid", ToID: to.String(), Amount: 1}}
	if _, err := toDomainTransactions(bad); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}
