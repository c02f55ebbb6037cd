package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// LedgerClient gRPC 客戶端，所有呼叫都使用 JSON codec
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) CreateAccount(ctx context.Context, in *AccountRequest, opts ...grpc.CallOption) (*Account, error) {
	return invoke[Account](ctx, c.cc, "CreateAccount", in, opts)
}

func (c *LedgerClient) GetAccount(ctx context.Context, in *AccountRequest, opts ...grpc.CallOption) (*Account, error) {
	return invoke[Account](ctx, c.cc, "GetAccount", in, opts)
}

func (c *LedgerClient) Deposit(ctx context.Context, in *AmountRequest, opts ...grpc.CallOption) (*Account, error) {
	return invoke[Account](ctx, c.cc, "Deposit", in, opts)
}

func (c *LedgerClient) Withdraw(ctx context.Context, in *AmountRequest, opts ...grpc.CallOption) (*Account, error) {
	return invoke[Account](ctx, c.cc, "Withdraw", in, opts)
}

func (c *LedgerClient) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*Transaction, error) {
	return invoke[Transaction](ctx, c.cc, "Transfer", in, opts)
}

func (c *LedgerClient) GetTransaction(ctx context.Context, in *TransactionRequest, opts ...grpc.CallOption) (*Transaction, error) {
	return invoke[Transaction](ctx, c.cc, "GetTransaction", in, opts)
}

func (c *LedgerClient) ListTransactionsBySender(ctx context.Context, in *AccountRequest, opts ...grpc.CallOption) (*TransactionList, error) {
	return invoke[TransactionList](ctx, c.cc, "ListTransactionsBySender", in, opts)
}

func (c *LedgerClient) ListTransactionsByReceiver(ctx context.Context, in *AccountRequest, opts ...grpc.CallOption) (*TransactionList, error) {
	return invoke[TransactionList](ctx, c.cc, "ListTransactionsByReceiver", in, opts)
}

func (c *LedgerClient) TopAccounts(ctx context.Context, in *TopAccountsRequest, opts ...grpc.CallOption) (*AccountList, error) {
	return invoke[AccountList](ctx, c.cc, "TopAccounts", in, opts)
}
