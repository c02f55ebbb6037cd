package audit

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
)

// Store 稽核紀錄的保存位置
type Store interface {
	Save(ctx context.Context, event domain.TransactionCreated) error
}

// Worker 消費 transaction.created 事件並寫入 Store
//
// 處理規則:
//
//	JSON 無法解析: Nack 不重送 (壞訊息重送也不會成功)
//	Store 寫入失敗: Nack 重送
//	成功: Ack
type Worker struct {
	store       Store
	logger      zerolog.Logger
	saveTimeout time.Duration
}

func NewWorker(store Store, logger zerolog.Logger) *Worker {
	return &Worker{
		store:       store,
		logger:      logger,
		saveTimeout: 5 * time.Second,
	}
}

// Run 持續處理訊息，直到 ctx 取消或 channel 被關閉
func (w *Worker) Run(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return amqp.ErrClosed
			}
			w.Handle(ctx, d)
		}
	}
}

// Handle 處理單一訊息
func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) {
	var event domain.TransactionCreated
	if err := json.Unmarshal(d.Body, &event); err != nil {
		w.logger.Error().Err(err).Bytes("body", d.Body).Msg("invalid audit event")
		if err := d.Nack(false, false); err != nil {
			w.logger.Error().Err(err).Msg("failed to nack invalid message")
		}
		return
	}

	saveCtx, cancel := context.WithTimeout(ctx, w.saveTimeout)
	defer cancel()
	if err := w.store.Save(saveCtx, event); err != nil {
		w.logger.Error().Err(err).Int64("transaction_id", event.TransactionID).Msg("failed to save audit log")
		if err := d.Nack(false, true); err != nil {
			w.logger.Error().Err(err).Msg("failed to nack message")
		}
		return
	}

	if err := d.Ack(false); err != nil {
		w.logger.Error().Err(err).Msg("failed to ack message")
		return
	}
	w.logger.Debug().Int64("transaction_id", event.TransactionID).Msg("audit log saved")
}
