package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ServiceName gRPC 服務全名
const ServiceName = "ledger.v1.LedgerService"

type AccountRequest struct {
	AccountID string `json:"account_id"`
}

type AmountRequest struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
}

type TransferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        int64  `json:"amount"`
}

type TransactionRequest struct {
	TransactionID int64 `json:"transaction_id"`
}

type TopAccountsRequest struct {
	// Limit: 0 使用預設值
	Limit int32 `json:"limit"`
}

type Account struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
	// Display: 顯示用金額，例如 "12.34"
	Display string `json:"display"`
}

type AccountList struct {
	Accounts []*Account `json:"accounts"`
}

type Transaction struct {
	TransactionID int64                  `json:"transaction_id"`
	FromAccountID string                 `json:"from_account_id"`
	ToAccountID   string                 `json:"to_account_id"`
	Amount        int64                  `json:"amount"`
	CreatedAt     *timestamppb.Timestamp `json:"created_at"`
}

type TransactionList struct {
	Transactions []*Transaction `json:"transactions"`
}

// LedgerServiceServer gRPC 服務端介面
type LedgerServiceServer interface {
	CreateAccount(context.Context, *AccountRequest) (*Account, error)
	GetAccount(context.Context, *AccountRequest) (*Account, error)
	Deposit(context.Context, *AmountRequest) (*Account, error)
	Withdraw(context.Context, *AmountRequest) (*Account, error)
	Transfer(context.Context, *TransferRequest) (*Transaction, error)
	GetTransaction(context.Context, *TransactionRequest) (*Transaction, error)
	ListTransactionsBySender(context.Context, *AccountRequest) (*TransactionList, error)
	ListTransactionsByReceiver(context.Context, *AccountRequest) (*TransactionList, error)
	TopAccounts(context.Context, *TopAccountsRequest) (*AccountList, error)
}

// LedgerServiceDesc 手寫的 ServiceDesc，搭配 JSON codec 使用
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateAccount", Handler: unaryHandler("CreateAccount", LedgerServiceServer.CreateAccount)},
		{MethodName: "GetAccount", Handler: unaryHandler("GetAccount", LedgerServiceServer.GetAccount)},
		{MethodName: "Deposit", Handler: unaryHandler("Deposit", LedgerServiceServer.Deposit)},
		{MethodName: "Withdraw", Handler: unaryHandler("Withdraw", LedgerServiceServer.Withdraw)},
		{MethodName: "Transfer", Handler: unaryHandler("Transfer", LedgerServiceServer.Transfer)},
		{MethodName: "GetTransaction", Handler: unaryHandler("GetTransaction", LedgerServiceServer.GetTransaction)},
		{MethodName: "ListTransactionsBySender", Handler: unaryHandler("ListTransactionsBySender", LedgerServiceServer.ListTransactionsBySender)},
		{MethodName: "ListTransactionsByReceiver", Handler: unaryHandler("ListTransactionsByReceiver", LedgerServiceServer.ListTransactionsByReceiver)},
		{MethodName: "TopAccounts", Handler: unaryHandler("TopAccounts", LedgerServiceServer.TopAccounts)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger",
}

// RegisterLedgerServiceServer 註冊服務
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

// unaryHandler 把 LedgerServiceServer 的方法包成 grpc.MethodHandler
func unaryHandler[Req, Resp any](method string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(LedgerServiceServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(server, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
