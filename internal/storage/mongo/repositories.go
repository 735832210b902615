package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lugondev/anchorlite/internal/storage"
)

const selectionDocumentID = "chain_selection"

type selectionDocument struct {
	ID        string    `bson:"_id"`
	Key       string    `bson:"key"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type mongoSelectionRepository struct {
	collection *mongo.Collection
}

func (r *mongoSelectionRepository) Load(ctx context.Context) (string, error) {
	var doc selectionDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": selectionDocumentID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", storage.ErrNotFound
		}
		return "", err
	}
	return doc.Key, nil
}

func (r *mongoSelectionRepository) Save(ctx context.Context, key string) error {
	opts := options.Replace().SetUpsert(true)
	doc := selectionDocument{ID: selectionDocumentID, Key: key, UpdatedAt: time.Now().UTC()}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": selectionDocumentID}, doc, opts)
	return err
}

type mongoAttemptRepository struct {
	collection *mongo.Collection
}

func (r *mongoAttemptRepository) Save(ctx context.Context, attempt *storage.AttemptModel) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": attempt.ID}, attempt, opts)
	return err
}

func (r *mongoAttemptRepository) FindBySignature(ctx context.Context, signature string) (*storage.AttemptModel, error) {
	var attempt storage.AttemptModel
	err := r.collection.FindOne(ctx, bson.M{"signature": signature}).Decode(&attempt)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *mongoAttemptRepository) FindRecent(ctx context.Context, wallet string, limit int) ([]*storage.AttemptModel, error) {
	filter := bson.M{}
	if wallet != "" {
		filter["wallet"] = wallet
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var attempts []*storage.AttemptModel
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}
