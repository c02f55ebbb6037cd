package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/JoeShih716/go-craft-ledger/internal/app/core/domain"
)

// AuditLog 存進 Mongo 的稽核文件，_id 使用交易 ID 讓重送的訊息不會重複寫入
type AuditLog struct {
	ID          int64     `bson:"_id"`
	From        string    `bson:"from"`
	To          string    `bson:"to"`
	Amount      int64     `bson:"amount"`
	Display     string    `bson:"display"`
	CreatedAt   time.Time `bson:"created_at"`
	ProcessedAt time.Time `bson:"processed_at"`
}

// NewAuditLog 由事件產生稽核文件
func NewAuditLog(event domain.TransactionCreated, processedAt time.Time) AuditLog {
	return AuditLog{
		ID:          event.TransactionID,
		From:        event.From.String(),
		To:          event.To.String(),
		Amount:      event.Amount,
		Display:     event.Display,
		CreatedAt:   event.CreatedAt,
		ProcessedAt: processedAt,
	}
}

type AuditRepository struct {
	collection *mongo.Collection
}

func NewAuditRepository(client *mongo.Client, dbName, collection string) *AuditRepository {
	return &AuditRepository{collection: client.Database(dbName).Collection(collection)}
}

// EnsureIndexes 建立查詢用索引
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "from", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "to", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}
	return nil
}

// Save 寫入 (upsert)，同一筆交易重送時覆蓋而不是報錯
func (r *AuditRepository) Save(ctx context.Context, event domain.TransactionCreated) error {
	doc := NewAuditLog(event, time.Now().UTC())
	_, err := r.collection.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: doc.ID}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save audit log: %w", err)
	}
	return nil
}
