package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpc_adapter "github.com/JoeShih716/go-craft-ledger/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-craft-ledger/internal/app/core/adapter/in/http"
	memory_adapter "github.com/JoeShih716/go-craft-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-craft-ledger/internal/app/core/adapter/out/mysql"
	postgres_adapter "github.com/JoeShih716/go-craft-ledger/internal/app/core/adapter/out/postgres"
	rabbitmq_adapter "github.com/JoeShih716/go-craft-ledger/internal/app/core/adapter/out/rabbitmq"
	redis_adapter "github.com/JoeShih716/go-craft-ledger/internal/app/core/adapter/out/redis"
	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-craft-ledger/internal/config"
	"github.com/JoeShih716/go-craft-ledger/pkg/logger"
	"github.com/JoeShih716/go-craft-ledger/pkg/mysql"
	"github.com/JoeShih716/go-craft-ledger/pkg/postgres"
	"github.com/JoeShih716/go-craft-ledger/pkg/wal"
)

const configPath = "config/config.yaml"

func main() {
	// 1. 載入設定
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("server exited")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// 收尾的動作依序登記，結束時反向執行
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// 2. 初始化 Ledger 與 Transaction Log
	ledger, txLog, closeLedger, err := buildLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeLedger)
	log.Info().Str("ledger", string(cfg.Ledger.Type)).Msg("ledger ready")

	// 3. 選配: 事件發布 (RabbitMQ)
	opts := []usecase.Option{
		usecase.WithLogger(log),
		usecase.WithTopLimits(cfg.Ledger.TopDefault, cfg.Ledger.TopMax),
	}
	if cfg.RabbitMQ.URL != "" {
		publisher, closeMQ, err := buildPublisher(cfg.RabbitMQ)
		if err != nil {
			return err
		}
		closers = append(closers, closeMQ)
		opts = append(opts, usecase.WithPublisher(publisher))
		log.Info().Str("exchange", cfg.RabbitMQ.Exchange).Msg("event publishing enabled")
	}

	// 4. 選配: 冪等鍵 (Redis)
	var idempotency usecase.IdempotencyStore
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		idempotency = redis_adapter.NewIdempotencyRepository(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("idempotency keys enabled")
	}

	// 5. 初始化 UseCase
	core := usecase.NewCoreUseCase(ledger, txLog, opts...)

	// 6. gRPC Server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpc_adapter.UnaryLoggingInterceptor(log)))
	grpc_adapter.RegisterLedgerServiceServer(grpcServer, grpc_adapter.NewGrpcServer(core))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPC.Addr, err)
	}

	// 7. HTTP Server
	if cfg.HTTP.Admin.PasswordHash == "" {
		log.Warn().Msg("admin password hash not set, PUT /api/balances/{uuid} is disabled")
	}
	router := http_adapter.NewRouter(http_adapter.NewHandler(core, log), http_adapter.RouterConfig{
		Idempotency:    idempotency,
		IdempotencyTTL: cfg.HTTP.IdempotencyTTL,
		AdminUser:      cfg.HTTP.Admin.User,
		AdminHash:      cfg.HTTP.Admin.PasswordHash,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}, log)
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.GRPC.Addr).Msg("starting gRPC server")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Graceful Shutdown
		<-gctx.Done()
		log.Info().Msg("shutting down servers...")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})
	return g.Wait()
}

// buildLedger 依設定建立 Ledger 與對應的 Transaction Log
//
// 參數:
//
//	ctx: 啟動期間使用 (連線重試、migration)
//
// 回傳值:
//
//	func(): 關閉底層資源 (WAL / DB 連線)，需在 server 停止後呼叫
func buildLedger(ctx context.Context, cfg *config.Config, log zerolog.Logger) (usecase.Ledger, usecase.TransactionLog, func(), error) {
	switch cfg.Ledger.Type {
	case config.LedgerTypeMemoryMutex, config.LedgerTypeMemoryLMAX:
		w, err := wal.NewWAL(cfg.Ledger.WALPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open WAL %s: %w", cfg.Ledger.WALPath, err)
		}
		closeWAL := func() {
			if err := w.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close WAL")
			}
		}
		txLog := memory_adapter.NewTransactionLog(w)

		if cfg.Ledger.Type == config.LedgerTypeMemoryMutex {
			l, err := memory_adapter.NewMutexLedger(txLog, w)
			if err != nil {
				closeWAL()
				return nil, nil, nil, fmt.Errorf("failed to init MutexLedger: %w", err)
			}
			return l, txLog, closeWAL, nil
		}
		l, err := memory_adapter.NewLMAXLedger(txLog, w)
		if err != nil {
			closeWAL()
			return nil, nil, nil, fmt.Errorf("failed to init LMAXLedger: %w", err)
		}
		// LMAX 迴圈不跟著 signal 結束，server 停止後才關閉並等待排隊中的指令處理完
		loopCtx, stopLoop := context.WithCancel(context.Background())
		l.Start(loopCtx)
		closeLMAX := func() {
			stopLoop()
			<-l.Done()
			closeWAL()
		}
		return l, txLog, closeLMAX, nil

	case config.LedgerTypeMySQL:
		client, err := mysql.NewClient(ctx, cfg.MySQL, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		closeDB := func() { _ = client.Close() }
		txLog := mysql_adapter.NewTransactionLog(client)
		l := mysql_adapter.NewMySQLLedger(client, txLog)
		if err := l.Migrate(ctx); err != nil {
			closeDB()
			return nil, nil, nil, fmt.Errorf("failed to migrate MySQL: %w", err)
		}
		return l, txLog, closeDB, nil

	case config.LedgerTypePostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		if err := postgres_adapter.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to migrate Postgres: %w", err)
		}
		txLog := postgres_adapter.NewTransactionLog(pool)
		l := postgres_adapter.NewPostgresLedger(pool, postgres_adapter.NewUow(pool), txLog)
		return l, txLog, pool.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("invalid ledger type %q", cfg.Ledger.Type)
}

func buildPublisher(cfg config.RabbitMQConfig) (*rabbitmq_adapter.Publisher, func(), error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	// 發布端只需要 exchange，queue 由 audit worker 宣告
	if err := rabbitmq_adapter.DeclareTopology(ch, cfg.Exchange, "", ""); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	closeMQ := func() {
		_ = ch.Close()
		_ = conn.Close()
	}
	return rabbitmq_adapter.NewPublisher(ch, cfg.Exchange), closeMQ, nil
}
