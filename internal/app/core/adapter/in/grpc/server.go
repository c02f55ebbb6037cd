package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
)

type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) CreateAccount(ctx context.Context, req *AccountRequest) (*Account, error) {
	id, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}
	acc, err := s.core.CreateAccount(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toAccount(acc), nil
}

func (s *GrpcServer) GetAccount(ctx context.Context, req *AccountRequest) (*Account, error) {
	id, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}
	acc, err := s.core.GetAccount(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toAccount(acc), nil
}

func (s *GrpcServer) Deposit(ctx context.Context, req *AmountRequest) (*Account, error) {
	id, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}
	acc, err := s.core.Deposit(ctx, id, req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return toAccount(acc), nil
}

func (s *GrpcServer) Withdraw(ctx context.Context, req *AmountRequest) (*Account, error) {
	id, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}
	acc, err := s.core.Withdraw(ctx, id, req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return toAccount(acc), nil
}

func (s *GrpcServer) Transfer(ctx context.Context, req *TransferRequest) (*Transaction, error) {
	from, err := parseAccountID(req.FromAccountID)
	if err != nil {
		return nil, err
	}
	to, err := parseAccountID(req.ToAccountID)
	if err != nil {
		return nil, err
	}
	tran, err := s.core.Transfer(ctx, from, to, req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return toTransaction(tran), nil
}

func (s *GrpcServer) GetTransaction(ctx context.Context, req *TransactionRequest) (*Transaction, error) {
	tran, err := s.core.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toTransaction(tran), nil
}

func (s *GrpcServer) ListTransactionsBySender(ctx context.Context, req *AccountRequest) (*TransactionList, error) {
	id, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}
	trans, err := s.core.TransactionsBySender(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toTransactionList(trans), nil
}

func (s *GrpcServer) ListTransactionsByReceiver(ctx context.Context, req *AccountRequest) (*TransactionList, error) {
	id, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}
	trans, err := s.core.TransactionsByReceiver(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toTransactionList(trans), nil
}

func (s *GrpcServer) TopAccounts(ctx context.Context, req *TopAccountsRequest) (*AccountList, error) {
	accounts, err := s.core.TopAccounts(ctx, int(req.Limit))
	if err != nil {
		return nil, toStatus(err)
	}
	list := &AccountList{Accounts: make([]*Account, 0, len(accounts))}
	for i := range accounts {
		list.Accounts = append(list.Accounts, toAccount(&accounts[i]))
	}
	return list, nil
}

// UnaryLoggingInterceptor 每個請求一行 log，錯誤附上 gRPC code
func UnaryLoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		event := logger.Debug()
		if code == codes.Internal || code == codes.Unavailable || code == codes.Unknown {
			event = logger.Error()
		}
		event.Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("latency", time.Since(start)).
			Err(err).
			Msg("grpc request")
		return resp, err
	}
}

// toStatus domain 錯誤 -> gRPC status
func toStatus(err error) error {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case domain.KindAlreadyExists:
		return status.Error(codes.AlreadyExists, err.Error())
	case domain.KindInvalidAmount, domain.KindInvalidTransfer:
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.KindInsufficientFunds:
		return status.Error(codes.FailedPrecondition, err.Error())
	case domain.KindStorage:
		return status.Error(codes.Unavailable, err.Error())
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func parseAccountID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid account id %q: %v", raw, err)
	}
	return id, nil
}

func toAccount(acc *domain.Account) *Account {
	return &Account{
		AccountID: acc.ID.String(),
		Balance:   acc.Balance,
		Display:   domain.FormatAmount(acc.Balance),
	}
}

func toTransaction(tran *domain.Transaction) *Transaction {
	return &Transaction{
		TransactionID: tran.ID,
		FromAccountID: tran.From.String(),
		ToAccountID:   tran.To.String(),
		Amount:        tran.Amount,
		CreatedAt:     timestamppb.New(tran.CreatedTime()),
	}
}

func toTransactionList(trans []domain.Transaction) *TransactionList {
	list := &TransactionList{Transactions: make([]*Transaction, 0, len(trans))}
	for i := range trans {
		list.Transactions = append(list.Transactions, toTransaction(&trans[i]))
	}
	return list
}

var _ LedgerServiceServer = (*GrpcServer)(nil)
