package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/site"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo stores the site document as a single Mongo document at a fixed
// _id. Section keys are top-level fields; write metadata lives under
// "updatedAt" and is never surfaced as a section.
type MongoRepo struct {
	col   *mongo.Collection
	docID string
}

func NewMongoRepo(col *mongo.Collection, docID string) *MongoRepo {
	return &MongoRepo{col: col, docID: docID}
}

func (m *MongoRepo) filter() bson.M { return bson.M{"_id": m.docID} }

func (m *MongoRepo) Get(ctx context.Context) (site.Document, bool, error) {
	var raw bson.M
	err := m.col.FindOne(ctx, m.filter()).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get site document: %w", err)
	}
	doc, err := fromBSON(raw)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (m *MongoRepo) Create(ctx context.Context, doc site.Document) error {
	rec := bson.M{"_id": m.docID, "updatedAt": time.Now().UTC()}
	for k, v := range doc {
		rec[k] = v
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := m.col.ReplaceOne(ctx, m.filter(), rec, opts); err != nil {
		return fmt.Errorf("create site document: %w", err)
	}
	return nil
}

func (m *MongoRepo) UpdateSection(ctx context.Context, key site.SectionKey, payload any) error {
	set := bson.M{string(key): payload, "updatedAt": time.Now().UTC()}
	res, err := m.col.UpdateOne(ctx, m.filter(), bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update section %s: %w", key, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Watch uses a change stream (replica set required) filtered to the site
// document; updates are resolved to the full document.
func (m *MongoRepo) Watch(ctx context.Context) (<-chan Snapshot, error) {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{"documentKey._id": m.docID}}}}
	cs, err := m.col.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("watch site document: %w", err)
	}
	first, exists, err := m.Get(ctx)
	if err != nil {
		_ = cs.Close(context.Background())
		return nil, err
	}

	ch := make(chan Snapshot, 1)
	latest(ch, Snapshot{Exists: exists, Doc: first})
	go func() {
		defer cs.Close(context.Background())
		for cs.Next(ctx) {
			var ev struct {
				OperationType string `bson:"operationType"`
				FullDocument  bson.M `bson:"fullDocument"`
			}
			if err := cs.Decode(&ev); err != nil {
				logger.Warnf("site watch: decode change event: %v", err)
				continue
			}
			var s Snapshot
			if ev.OperationType != "delete" && ev.FullDocument != nil {
				doc, err := fromBSON(ev.FullDocument)
				if err != nil {
					logger.Warnf("site watch: %v", err)
					continue
				}
				s = Snapshot{Exists: true, Doc: doc}
			}
			latest(ch, s)
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			logger.Errorf("site watch: change stream ended: %v", err)
		}
	}()
	return forward(ctx, ch), nil
}

// fromBSON strips storage fields and converts BSON values into plain JSON
// shapes via relaxed Extended JSON.
func fromBSON(raw bson.M) (site.Document, error) {
	delete(raw, "_id")
	delete(raw, "updatedAt")
	b, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("decode site document: %w", err)
	}
	v, err := site.Normalize(json.RawMessage(b))
	if err != nil {
		return nil, err
	}
	m, _ := v.(map[string]any)
	return site.Document(m), nil
}
