package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
)

func startServer(t *testing.T) (*LedgerClient, *grpc.ClientConn) {
	t.Helper()
	log := memory.NewTransactionLog(nil)
	ledger, err := memory.NewMutexLedger(log, nil)
	if err != nil {
		t.Fatalf("NewMutexLedger: %v", err)
	}
	core := usecase.NewCoreUseCase(ledger, log)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(grpc.UnaryInterceptor(UnaryLoggingInterceptor(zerolog.Nop())))
	RegisterLedgerServiceServer(s, NewGrpcServer(core))
	healthpb.RegisterHealthServer(s, health.NewServer())
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewLedgerClient(conn), conn
}

func expectCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if got := status.Code(err); got != want {
		t.Fatalf("expected code %v, got %v (%v)", want, got, err)
	}
}

func TestLedgerServiceTransferFlow(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()
	p1, p2 := uuid.NewString(), uuid.NewString()

	for _, id := range []string{p1, p2} {
		acc, err := client.CreateAccount(ctx, &AccountRequest{AccountID: id})
		if err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
		if acc.AccountID != id || acc.Balance != 0 {
			t.Fatalf("unexpected account: %+v", acc)
		}
	}
	acc, err := client.Deposit(ctx, &AmountRequest{AccountID: p1, Amount: 1000})
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if acc.Display != "10.00" {
		t.Fatalf("expected display 10.00, got %q", acc.Display)
	}

	tran, err := client.Transfer(ctx, &TransferRequest{FromAccountID: p1, ToAccountID: p2, Amount: 400})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if tran.TransactionID != 1 || tran.Amount != 400 || tran.CreatedAt == nil || tran.CreatedAt.AsTime().IsZero() {
		t.Fatalf("unexpected transaction: %+v", tran)
	}

	got, err := client.GetAccount(ctx, &AccountRequest{AccountID: p1})
	if err != nil || got.Balance != 600 {
		t.Fatalf("GetAccount: %+v (%v)", got, err)
	}
	fetched, err := client.GetTransaction(ctx, &TransactionRequest{TransactionID: tran.TransactionID})
	if err != nil || fetched.ToAccountID != p2 {
		t.Fatalf("GetTransaction: %+v (%v)", fetched, err)
	}
	sent, err := client.ListTransactionsBySender(ctx, &AccountRequest{AccountID: p1})
	if err != nil || len(sent.Transactions) != 1 {
		t.Fatalf("ListTransactionsBySender: %+v (%v)", sent, err)
	}
	received, err := client.ListTransactionsByReceiver(ctx, &AccountRequest{AccountID: p1})
	if err != nil || len(received.Transactions) != 0 {
		t.Fatalf("ListTransactionsByReceiver: %+v (%v)", received, err)
	}
	top, err := client.TopAccounts(ctx, &TopAccountsRequest{})
	if err != nil || len(top.Accounts) != 2 || top.Accounts[0].AccountID != p1 {
		t.Fatalf("TopAccounts: %+v (%v)", top, err)
	}
	withdrawn, err := client.Withdraw(ctx, &AmountRequest{AccountID: p2, Amount: 400})
	if err != nil || withdrawn.Balance != 0 {
		t.Fatalf("Withdraw: %+v (%v)", withdrawn, err)
	}
}

func TestLedgerServiceStatusCodes(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()
	p1, p2 := uuid.NewString(), uuid.NewString()
	_, _ = client.CreateAccount(ctx, &AccountRequest{AccountID: p1})
	_, _ = client.CreateAccount(ctx, &AccountRequest{AccountID: p2})
	_, _ = client.Deposit(ctx, &AmountRequest{AccountID: p1, Amount: 100})

	_, err := client.CreateAccount(ctx, &AccountRequest{AccountID: p1})
	expectCode(t, err, codes.AlreadyExists)

	_, err = client.GetAccount(ctx, &AccountRequest{AccountID: uuid.NewString()})
	expectCode(t, err, codes.NotFound)

	_, err = client.GetAccount(ctx, &AccountRequest{AccountID: "player-1"})
	expectCode(t, err, codes.InvalidArgument)

	_, err = client.Deposit(ctx, &AmountRequest{AccountID: p1, Amount: 0})
	expectCode(t, err, codes.InvalidArgument)

	_, err = client.Transfer(ctx, &TransferRequest{FromAccountID: p1, ToAccountID: p1, Amount: 10})
	expectCode(t, err, codes.InvalidArgument)

	_, err = client.Transfer(ctx, &TransferRequest{FromAccountID: p1, ToAccountID: p2, Amount: 150})
	expectCode(t, err, codes.FailedPrecondition)

	_, err = client.GetTransaction(ctx, &TransactionRequest{TransactionID: 99})
	expectCode(t, err, codes.NotFound)
}

func TestHealthService(t *testing.T) {
	_, conn := startServer(t)
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.Status)
	}
}
