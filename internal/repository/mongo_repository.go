package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, buyerID string) (*d.Cart, error) {
	var cart d.Cart

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

// AddItem appends a new line, creating the cart document on first use.
func (m *MongoRepository) AddItem(ctx context.Context, buyerID string, item d.CartItem) error {
	now := time.Now().UTC()
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}

	filter := bson.M{"buyer_id": buyerID}
	update := bson.M{
		"$push":        bson.M{"items": item},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to add item: %w", err)
	}
	return nil
}

func (m *MongoRepository) UpdateItemQuantity(ctx context.Context, buyerID, itemID string, quantity int) error {
	filter := bson.M{
		"buyer_id": buyerID,
		"items.id": itemID,
	}

	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity": quantity,
			"updated_at":             time.Now().UTC(),
		},
	}

	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.id": itemID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}

	if result.MatchedCount == 0 {
		return d.ErrItemNotFound
	}
	return nil
}

func (m *MongoRepository) RemoveItems(ctx context.Context, buyerID string, itemIDs ...string) error {
	filter := bson.M{"buyer_id": buyerID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"id": bson.M{"$in": itemIDs}},
		},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove items: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

// ConsumeItems takes the given quantities off the matching lines. A line
// holding no more than the consumed quantity is removed; a larger one keeps
// the difference.
func (m *MongoRepository) ConsumeItems(ctx context.Context, buyerID string, lines ...d.CartItem) error {
	now := time.Now().UTC()
	for _, line := range lines {
		pull := bson.M{
			"$pull": bson.M{
				"items": bson.M{"id": line.ID, "quantity": bson.M{"$lte": line.Quantity}},
			},
			"$set": bson.M{"updated_at": now},
		}
		result, err := m.collection.UpdateOne(ctx, bson.M{"buyer_id": buyerID}, pull)
		if err != nil {
			return fmt.Errorf("failed to consume item %s: %w", line.ID, err)
		}
		if result.MatchedCount == 0 {
			return ErrCartNotFound
		}

		// pulled lines no longer match the quantity filter
		filter := bson.M{
			"buyer_id": buyerID,
			"items": bson.M{"$elemMatch": bson.M{
				"id":       line.ID,
				"quantity": bson.M{"$gt": line.Quantity},
			}},
		}
		dec := bson.M{
			"$inc": bson.M{"items.$[elem].quantity": -line.Quantity},
			"$set": bson.M{"updated_at": now},
		}
		arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.id": line.ID},
			},
		})
		if _, err := m.collection.UpdateOne(ctx, filter, dec, arrayFilters); err != nil {
			return fmt.Errorf("failed to consume item %s: %w", line.ID, err)
		}
	}
	return nil
}

func (m *MongoRepository) DeleteCart(ctx context.Context, buyerID string) error {
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

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
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

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
