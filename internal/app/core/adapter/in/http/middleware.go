package http

import (
	"bytes"
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/usecase"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerIdempotencyHit = "X-Idempotency-Hit"
)

// responseRecorder 記下 handler 寫出的 status 與 body
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency 帶有 Idempotency-Key 的請求只執行一次，重送時回傳第一次的結果
//
//	同一個 key 正在處理中: 409，呼叫端稍後重送即可拿到結果
//	store 出錯: 直接放行 (fail open)
//	5xx: 不保存並釋放 key，讓呼叫端可以重試
func Idempotency(store usecase.IdempotencyStore, ttl time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(headerIdempotencyKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			cached, err := store.Get(ctx, key)
			if err != nil {
				logger.Error().Err(err).Str("key", key).Msg("failed to read idempotency key")
				next.ServeHTTP(w, r)
				return
			}
			if cached != nil {
				writeCached(w, logger, cached)
				return
			}

			reserved, err := store.Reserve(ctx, key, ttl)
			if err != nil {
				logger.Error().Err(err).Str("key", key).Msg("failed to reserve idempotency key")
				next.ServeHTTP(w, r)
				return
			}
			if !reserved {
				// 佔用者可能在 Get 之後剛好完成
				if cached, err := store.Get(ctx, key); err == nil && cached != nil {
					writeCached(w, logger, cached)
					return
				}
				respondJSON(w, logger, http.StatusConflict, ErrorResponse{
					Error: "request with this idempotency key is in progress",
					Code:  "IDEMPOTENCY_IN_PROGRESS",
				})
				return
			}

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(recorder, r)

			// 請求的 ctx 可能已結束，收尾改用獨立的 ctx
			saveCtx := context.WithoutCancel(ctx)
			if recorder.statusCode >= http.StatusInternalServerError {
				if err := store.Release(saveCtx, key); err != nil {
					logger.Error().Err(err).Str("key", key).Msg("failed to release idempotency key")
				}
				return
			}
			err = store.Save(saveCtx, key, usecase.CachedResponse{
				StatusCode: recorder.statusCode,
				Body:       recorder.body.Bytes(),
			}, ttl)
			if err != nil {
				// 保留佔用，避免重送時重複執行
				logger.Error().Err(err).Str("key", key).Msg("failed to save idempotency key")
				return
			}
			if err := store.Release(saveCtx, key); err != nil {
				logger.Error().Err(err).Str("key", key).Msg("failed to release idempotency key")
			}
		})
	}
}

func writeCached(w http.ResponseWriter, logger zerolog.Logger, cached *usecase.CachedResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(headerIdempotencyHit, "true")
	w.WriteHeader(cached.StatusCode)
	if _, err := w.Write(cached.Body); err != nil {
		logger.Error().Err(err).Msg("failed to write cached response")
	}
}

// AdminAuth Basic Auth，密碼以 bcrypt 雜湊比對；未設定雜湊時一律拒絕
func AdminAuth(user, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok || passwordHash == "" ||
				subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(p)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="ledger-admin"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger 每個請求一行 zerolog
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			event := logger.Debug()
			if status >= http.StatusInternalServerError {
				event = logger.Warn()
			}
			event.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Str("request_id", middleware.GetReqID(r.Context())).
				Dur("latency", time.Since(start)).
				Msg("http request")
		})
	}
}
