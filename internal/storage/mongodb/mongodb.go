// Package mongodb implements the storage backend over a MongoDB collection
// with one document per object. The driver has no server-side byte-range
// projection for binary fields, so range reads fetch the document and slice
// locally; the raw stream's memoized header keeps repeated stats cheap.
package mongodb

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/objstream/objstream-go/internal/stream"
)

// DefaultCollection is the collection used when the mount does not name one.
const DefaultCollection = "objects"

// objectDocument is one stored object.
type objectDocument struct {
	Path      string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	Size      int64     `bson:"size"`
	Mtime     time.Time `bson:"mtime"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Backend stores objects in a MongoDB collection.
type Backend struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// New connects to uri and binds the backend to database/collection.
func New(ctx context.Context, uri, database, collection string) (*Backend, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	return &Backend{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// Object returns a handle for key.
func (b *Backend) Object(key string) stream.Object {
	return &object{key: key, b: b}
}

// Limits reports the backend buffer bounds. BSON documents cap at 16MB, so
// buffers stay below that with headroom for the envelope.
func (b *Backend) Limits() stream.Limits {
	return stream.Limits{
		DefaultBufferSize: 8 << 20,
		MaxBufferSize:     12 << 20,
	}
}

// Close disconnects the client.
func (b *Backend) Close() error {
	return b.client.Disconnect(context.Background())
}

// object implements stream.Object on one document.
type object struct {
	key string
	b   *Backend
}

func (o *object) Name() string          { return o.key }
func (o *object) Limits() stream.Limits { return o.b.Limits() }

func (o *object) Head(ctx context.Context) (stream.Header, error) {
	var doc objectDocument
	err := o.b.collection.FindOne(ctx, bson.M{"_id": o.key},
		options.FindOne().SetProjection(bson.M{"size": 1, "mtime": 1})).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return stream.Header{}, fmt.Errorf("object %s: %w", o.key, os.ErrNotExist)
	}
	if err != nil {
		return stream.Header{}, fmt.Errorf("head object: %w", err)
	}
	return stream.Header{Size: doc.Size, ModTime: doc.Mtime}, nil
}

func (o *object) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	data, err := o.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	size := int64(len(data))
	if start >= size {
		return nil, nil
	}
	if end <= 0 || end > size {
		end = size
	}
	return data[start:end], nil
}

func (o *object) ReadAll(ctx context.Context) ([]byte, error) {
	var doc objectDocument
	err := o.b.collection.FindOne(ctx, bson.M{"_id": o.key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("object %s: %w", o.key, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return doc.Data, nil
}

func (o *object) Flush(ctx context.Context, data []byte) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"data":       data,
			"size":       int64(len(data)),
			"mtime":      now,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	_, err := o.b.collection.UpdateOne(ctx, bson.M{"_id": o.key}, update,
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

func (o *object) Create(ctx context.Context) error {
	return o.Flush(ctx, []byte{})
}

func (o *object) Delete(ctx context.Context) error {
	result, err := o.b.collection.DeleteOne(ctx, bson.M{"_id": o.key})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("object %s: %w", o.key, os.ErrNotExist)
	}
	return nil
}
