package assets

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
)

// MongoRepo stores hash records in a Mongo collection (one document per
// upload; the hash index is intentionally not unique).
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "hash", Value: 1}, {Key: "uploadedAt", Value: 1}}}
	if _, err := col.Indexes().CreateOne(context.Background(), idx); err != nil {
		logger.Warnf("create hash index: %v", err)
	}
	return &MongoRepo{col: col}
}

func (m *MongoRepo) FindByHash(ctx context.Context, hash string) ([]HashRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: 1}})
	cur, err := m.col.Find(ctx, bson.M{"hash": hash}, opts)
	if err != nil {
		return nil, fmt.Errorf("find hash records: %w", err)
	}
	defer cur.Close(ctx)
	var out []HashRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode hash records: %w", err)
	}
	return out, nil
}

func (m *MongoRepo) Insert(ctx context.Context, rec HashRecord) error {
	if _, err := m.col.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert hash record: %w", err)
	}
	return nil
}
