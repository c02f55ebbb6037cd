package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
)

// Handler 把 HTTP 請求轉給 CoreUseCase
type Handler struct {
	core   *usecase.CoreUseCase
	logger zerolog.Logger
}

func NewHandler(core *usecase.CoreUseCase, logger zerolog.Logger) *Handler {
	return &Handler{core: core, logger: logger}
}

// CreateBalance POST /api/balances?uuid=
func (h *Handler) CreateBalance(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r.URL.Query().Get("uuid"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	acc, err := h.core.CreateAccount(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/balances/"+acc.ID.String())
	respondJSON(w, h.logger, http.StatusCreated, toBalance(acc))
}

// GetBalance GET /api/balances/{uuid}
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "uuid"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	acc, err := h.core.GetAccount(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toBalance(acc))
}

// SetBalance PUT /api/balances/{uuid}?amount= (管理 API)
func (h *Handler) SetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "uuid"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		respondError(w, h.logger, fmt.Errorf("%w: amount must be an integer", errBadRequest))
		return
	}
	acc, err := h.core.SetBalance(r.Context(), id, amount)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toBalance(acc))
}

// Deposit POST /api/balances/{uuid}/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	id, amount, err := parseAmountRequest(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	acc, err := h.core.Deposit(r.Context(), id, amount)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toBalance(acc))
}

// Withdraw POST /api/balances/{uuid}/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, amount, err := parseAmountRequest(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	acc, err := h.core.Withdraw(r.Context(), id, amount)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toBalance(acc))
}

// TopBalances GET /api/balances/top?limit=
func (h *Handler) TopBalances(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, h.logger, fmt.Errorf("%w: limit must be an integer", errBadRequest))
			return
		}
		limit = n
	}
	accounts, err := h.core.TopAccounts(r.Context(), limit)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toBalances(accounts))
}

// ListTransactions GET /api/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	trans, err := h.core.ListTransactions(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toTransactions(trans))
}

// GetTransaction GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, h.logger, fmt.Errorf("%w: transaction id must be an integer", errBadRequest))
		return
	}
	tran, err := h.core.GetTransaction(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toTransaction(tran))
}

// TransactionsFrom GET /api/transactions/from/{uuid}
func (h *Handler) TransactionsFrom(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "uuid"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	trans, err := h.core.TransactionsBySender(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toTransactions(trans))
}

// TransactionsTo GET /api/transactions/to/{uuid}
func (h *Handler) TransactionsTo(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "uuid"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	trans, err := h.core.TransactionsByReceiver(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, toTransactions(trans))
}

// CreateTransaction POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, fmt.Errorf("%w: invalid payload", errBadRequest))
		return
	}
	from, err := parseUUID(req.FromUUID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	to, err := parseUUID(req.ToUUID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	tran, err := h.core.Transfer(r.Context(), from, to, req.Amount)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/transactions/%d", tran.ID))
	respondJSON(w, h.logger, http.StatusCreated, toTransaction(tran))
}

// Health GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		h.logger.Error().Err(err).Msg("failed to write health response")
	}
}

func parseUUID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid uuid %q", errBadRequest, raw)
	}
	return id, nil
}

func parseAmountRequest(r *http.Request) (uuid.UUID, int64, error) {
	id, err := parseUUID(chi.URLParam(r, "uuid"))
	if err != nil {
		return uuid.Nil, 0, err
	}
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return uuid.Nil, 0, fmt.Errorf("%w: invalid payload", errBadRequest)
	}
	return id, req.Amount, nil
}
