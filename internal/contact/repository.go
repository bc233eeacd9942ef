package contact

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
)

// Repository stores messages and reports new inserts.
type Repository interface {
	Insert(ctx context.Context, m Message) error
	// WatchInserts delivers every message inserted after the call until ctx ends.
	WatchInserts(ctx context.Context) (<-chan Message, error)
}

type MemoryRepo struct {
	mu       sync.Mutex
	messages []Message
	watchers map[chan Message]struct{}
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{watchers: make(map[chan Message]struct{})}
}

func (r *MemoryRepo) Insert(ctx context.Context, m Message) error {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	watchers := make([]chan Message, 0, len(r.watchers))
	for ch := range r.watchers {
		watchers = append(watchers, ch)
	}
	r.mu.Unlock()
	for _, ch := range watchers {
		select {
		case ch <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *MemoryRepo) List() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

func (r *MemoryRepo) WatchInserts(ctx context.Context) (<-chan Message, error) {
	in := make(chan Message, 16)
	r.mu.Lock()
	r.watchers[in] = struct{}{}
	r.mu.Unlock()

	out := make(chan Message)
	go func() {
		defer close(out)
		defer func() {
			r.mu.Lock()
			delete(r.watchers, in)
			r.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-in:
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// MongoRepo keeps messages in the contactMessages collection.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

func (r *MongoRepo) Insert(ctx context.Context, m Message) error {
	if _, err := r.col.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("insert contact message: %w", err)
	}
	return nil
}

// WatchInserts opens a change stream (replica set required) on inserts.
func (r *MongoRepo) WatchInserts(ctx context.Context) (<-chan Message, error) {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{"operationType": "insert"}}}}
	cs, err := r.col.Watch(ctx, pipeline, options.ChangeStream())
	if err != nil {
		return nil, fmt.Errorf("watch contact messages: %w", err)
	}
	out := make(chan Message)
	go func() {
		defer close(out)
		defer cs.Close(context.Background())
		for cs.Next(ctx) {
			var ev struct {
				FullDocument Message `bson:"fullDocument"`
			}
			if err := cs.Decode(&ev); err != nil {
				logger.Warnf("contact watch: decode change event: %v", err)
				continue
			}
			select {
			case out <- ev.FullDocument:
			case <-ctx.Done():
				return
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			logger.Errorf("contact watch: change stream ended: %v", err)
		}
	}()
	return out, nil
}
