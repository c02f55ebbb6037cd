package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpc_adapter "github.com/JoeShih716/go-craft-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-craft-ledger/pkg/logger"
	grpcpool "github.com/JoeShih716/go-craft-ledger/pkg/grpc"
)

// 壓測: 建立帳戶並存入初始金額，再並發隨機轉帳，最後檢查總額是否守恆
func main() {
	target := flag.String("target", "localhost:50051", "gRPC server address")
	accounts := flag.Int("accounts", 100, "number of accounts")
	initial := flag.Int64("initial", 100000, "initial balance per account (minor units)")
	total := flag.Int("total", 100000, "number of transfers")
	concurrency := flag.Int("concurrency", 200, "concurrent workers")
	timeout := flag.Duration("timeout", 120*time.Second, "overall timeout")
	flag.Parse()

	log := logger.New(logger.Config{Level: "info", Pretty: true})

	pool := grpcpool.NewPool(grpcpool.WithInterceptor(errorLoggingInterceptor(log)))
	defer pool.Close()
	conn, err := pool.GetConnection(*target)
	if err != nil {
		log.Fatal().Err(err).Msg("did not connect")
	}
	client := grpc_adapter.NewLedgerClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// 1. 建立帳戶
	ids := make([]string, *accounts)
	for i := range ids {
		ids[i] = uuid.NewString()
		if _, err := client.CreateAccount(ctx, &grpc_adapter.AccountRequest{AccountID: ids[i]}); err != nil {
			log.Fatal().Err(err).Msg("create account failed")
		}
		if _, err := client.Deposit(ctx, &grpc_adapter.AmountRequest{AccountID: ids[i], Amount: *initial}); err != nil {
			log.Fatal().Err(err).Msg("deposit failed")
		}
	}
	log.Info().Int("accounts", len(ids)).Msg("accounts ready")

	// 2. 並發轉帳
	var (
		wg           sync.WaitGroup
		succeeded    atomic.Int64
		insufficient atomic.Int64
		failed       atomic.Int64
	)
	jobs := make(chan struct{})
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				from := rand.IntN(len(ids))
				to := rand.IntN(len(ids) - 1)
				if to >= from {
					to++
				}
				_, err := client.Transfer(ctx, &grpc_adapter.TransferRequest{
					FromAccountID: ids[from],
					ToAccountID:   ids[to],
					Amount:        rand.Int64N(*initial/10) + 1,
				})
				switch status.Code(err) {
				case codes.OK:
					succeeded.Add(1)
				case codes.FailedPrecondition:
					insufficient.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	startTime := time.Now()
	for i := 0; i < *total; i++ {
		jobs <- struct{}{}
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(startTime)

	// 3. 檢查總額
	var sum int64
	for _, id := range ids {
		acc, err := client.GetAccount(ctx, &grpc_adapter.AccountRequest{AccountID: id})
		if err != nil {
			log.Fatal().Err(err).Msg("get account failed")
		}
		sum += acc.Balance
	}
	expected := *initial * int64(len(ids))

	fmt.Printf("Completed %d requests in %v\n", *total, elapsed)
	fmt.Printf("TPS: %.2f\n", float64(*total)/elapsed.Seconds())
	fmt.Printf("succeeded=%d insufficient=%d failed=%d\n", succeeded.Load(), insufficient.Load(), failed.Load())
	if sum != expected {
		fmt.Printf("total balance mismatch: expected %d, got %d\n", expected, sum)
		os.Exit(1)
	}
	fmt.Printf("total balance conserved: %d\n", sum)
}

// errorLoggingInterceptor 只記錄非預期的錯誤，餘額不足是壓測中的正常結果
func errorLoggingInterceptor(log zerolog.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		err := invoker(ctx, method, req, reply, cc, opts...)
		if code := status.Code(err); code != codes.OK && code != codes.FailedPrecondition {
			log.Warn().Err(err).Str("method", method).Msg("rpc failed")
		}
		return err
	}
}
