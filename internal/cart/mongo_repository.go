package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

// addItemAttempts bounds the retries when two requests create the same cart at once.
const addItemAttempts = 3

type mongoRepository struct {
	collection *mongo.Collection
}

// ConnectMongoDB opens a client and returns the carts database. The client is disconnected
// again when the server does not answer the ping.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetAppName("auto-purch").
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(50)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoRepository) GetCart(ctx context.Context, buyerID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"buyer_id": buyerID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *mongoRepository) UpsertCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	items := cart.Items
	if items == nil {
		items = []domain.CartItem{}
	}

	filter := bson.M{"buyer_id": cart.BuyerID}
	update := bson.M{"$set": bson.M{
		"buyer_id":   cart.BuyerID,
		"items":      items,
		"created_at": cart.CreatedAt,
		"updated_at": cart.UpdatedAt,
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

// AddItem increments the quantity of an existing line in place. Otherwise it pushes a new line,
// guarded by a filter that fails when another request has pushed the same product meanwhile.
func (m *mongoRepository) AddItem(ctx context.Context, buyerID string, item domain.CartItem) error {
	now := time.Now()
	item.AddedAt = now

	// lines already above this would overflow the int32 quantity
	limit := math.MaxInt32 - item.Quantity

	for attempt := 0; attempt < addItemAttempts; attempt++ {
		incFilter := bson.M{
			"buyer_id": buyerID,
			"items":    bson.M{"$elemMatch": bson.M{"product_id": item.ProductID, "quantity": bson.M{"$lte": limit}}},
		}
		incUpdate := bson.M{
			"$inc": bson.M{"items.$.quantity": item.Quantity},
			"$set": bson.M{"items.$.added_at": now, "updated_at": now},
		}
		res, err := m.collection.UpdateOne(ctx, incFilter, incUpdate)
		if err != nil {
			return fmt.Errorf("failed to update existing item: %w", err)
		}
		if res.MatchedCount > 0 {
			return nil
		}

		pushFilter := bson.M{"buyer_id": buyerID, "items.product_id": bson.M{"$ne": item.ProductID}}
		pushUpdate := bson.M{
			"$push":        bson.M{"items": item},
			"$set":         bson.M{"updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		}
		_, err = m.collection.UpdateOne(ctx, pushFilter, pushUpdate, options.Update().SetUpsert(true))
		if err == nil {
			return nil
		}
		// The upsert collided with the unique buyer_id index: the line exists now, increment it.
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to add new item: %w", err)
		}
		full, err := m.collection.CountDocuments(ctx, bson.M{
			"buyer_id": buyerID,
			"items":    bson.M{"$elemMatch": bson.M{"product_id": item.ProductID, "quantity": bson.M{"$gt": limit}}},
		})
		if err != nil {
			return fmt.Errorf("failed to check item quantity: %w", err)
		}
		if full > 0 {
			return domain.ErrInvalidQuantity
		}
	}

	return fmt.Errorf("failed to add item for buyer %s: too many concurrent updates", buyerID)
}

func (m *mongoRepository) RemoveItem(ctx context.Context, buyerID string, productID int64) error {
	filter := bson.M{"buyer_id": buyerID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, buyerID string) error {
	filter := bson.M{"buyer_id": buyerID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "buyer_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// CreateIndexes creates the indexes of a repository returned by NewMongoRepository.
func CreateIndexes(ctx context.Context, repo Repository) error {
	m, ok := repo.(*mongoRepository)
	if !ok {
		return nil
	}
	return m.CreateIndexes(ctx)
}
