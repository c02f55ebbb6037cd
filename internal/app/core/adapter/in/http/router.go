package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
)

// RouterConfig 路由設定
type RouterConfig struct {
	// Idempotency: nil 時 POST /api/transactions 不做冪等處理
	Idempotency    usecase.IdempotencyStore
	IdempotencyTTL time.Duration
	AdminUser      string
	AdminHash      string
	RequestTimeout time.Duration
}

// NewRouter 建立 chi 路由
func NewRouter(h *Handler, cfg RouterConfig, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", h.Health)

	r.Route("/api/balances", func(r chi.Router) {
		r.Post("/", h.CreateBalance)
		r.Get("/top", h.TopBalances)
		r.Get("/{uuid}", h.GetBalance)
		r.Post("/{uuid}/deposit", h.Deposit)
		r.Post("/{uuid}/withdraw", h.Withdraw)
		r.With(AdminAuth(cfg.AdminUser, cfg.AdminHash)).Put("/{uuid}", h.SetBalance)
	})

	r.Route("/api/transactions", func(r chi.Router) {
		r.Get("/", h.ListTransactions)
		r.Get("/{id}", h.GetTransaction)
		r.Get("/from/{uuid}", h.TransactionsFrom)
		r.Get("/to/{uuid}", h.TransactionsTo)
		if cfg.Idempotency != nil {
			r.With(Idempotency(cfg.Idempotency, cfg.IdempotencyTTL, logger)).Post("/", h.CreateTransaction)
		} else {
			r.Post("/", h.CreateTransaction)
		}
	})
	return r
}
