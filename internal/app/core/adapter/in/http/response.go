package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
)

// BalanceResponse 帳戶餘額
type BalanceResponse struct {
	UUID   string `json:"uuid"`
	Amount int64  `json:"amount"`
	// Display: 兩位小數的顯示金額
	Display string `json:"display"`
}

// TransactionResponse 交易紀錄
type TransactionResponse struct {
	ID        int64     `json:"id"`
	FromUUID  string    `json:"fromUuid"`
	ToUUID    string    `json:"toUuid"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

// TransactionRequest 轉帳請求
type TransactionRequest struct {
	FromUUID string `json:"fromUuid"`
	ToUUID   string `json:"toUuid"`
	Amount   int64  `json:"amount"`
}

// AmountRequest 存款 / 提款請求
type AmountRequest struct {
	Amount int64 `json:"amount"`
}

// ErrorResponse 錯誤回應
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errBadRequest 請求格式錯誤 (無法解析的 uuid / JSON / 參數)
var errBadRequest = errors.New("bad request")

func toBalance(acc *domain.Account) BalanceResponse {
	return BalanceResponse{
		UUID:    acc.ID.String(),
		Amount:  acc.Balance,
		Display: domain.FormatAmount(acc.Balance),
	}
}

func toBalances(accounts []domain.Account) []BalanceResponse {
	result := make([]BalanceResponse, 0, len(accounts))
	for i := range accounts {
		result = append(result, toBalance(&accounts[i]))
	}
	return result
}

func toTransaction(tran *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:        tran.ID,
		FromUUID:  tran.From.String(),
		ToUUID:    tran.To.String(),
		Amount:    tran.Amount,
		CreatedAt: tran.CreatedTime().UTC(),
	}
}

func toTransactions(trans []domain.Transaction) []TransactionResponse {
	result := make([]TransactionResponse, 0, len(trans))
	for i := range trans {
		result = append(result, toTransaction(&trans[i]))
	}
	return result
}

// statusOf domain 錯誤 -> HTTP status
func statusOf(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyExists:
		return http.StatusConflict
	case domain.KindInvalidAmount, domain.KindInvalidTransfer:
		return http.StatusBadRequest
	case domain.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case domain.KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, logger zerolog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error().Err(err).Msg("failed to encode json response")
	}
}

// respondError 依錯誤種類回應；內部錯誤不把細節回給呼叫端
func respondError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	if errors.Is(err, errBadRequest) {
		respondJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}
	kind := domain.KindOf(err)
	status := statusOf(kind)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("code", kind.String()).Msg("request failed")
		if kind == domain.KindStorage {
			message = domain.ErrStorage.Error()
		} else {
			message = http.StatusText(status)
		}
	}
	respondJSON(w, logger, status, ErrorResponse{Error: message, Code: kind.String()})
}
