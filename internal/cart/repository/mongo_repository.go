package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"meatline/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
)

// cartDoc is the persisted shape of a cart. Money is stored as strings so
// decimals round-trip exactly.
type cartDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Items     []lineDoc          `bson:"items"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

type lineDoc struct {
	ProductID       int64     `bson:"product_id"`
	Name            string    `bson:"name"`
	Price           string    `bson:"price"`
	DiscountedPrice string    `bson:"discounted_price"`
	Spec            string    `bson:"spec"`
	Style           string    `bson:"style"`
	Quantity        int       `bson:"quantity"`
	AddedAt         time.Time `bson:"added_at"`
}

func toLineDoc(l domain.CartLine) lineDoc {
	return lineDoc{
		ProductID:       l.ProductID,
		Name:            l.Name,
		Price:           l.Price.String(),
		DiscountedPrice: l.DiscountedPrice.String(),
		Spec:            l.Spec,
		Style:           l.Style,
		Quantity:        l.Quantity,
		AddedAt:         l.AddedAt,
	}
}

func (d lineDoc) toDomain() domain.CartLine {
	// Unparseable stored prices read as zero rather than failing the cart.
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		price = decimal.Zero
	}
	discounted, err := decimal.NewFromString(d.DiscountedPrice)
	if err != nil {
		discounted = decimal.Zero
	}
	return domain.CartLine{
		ProductID:       d.ProductID,
		Name:            d.Name,
		Price:           price,
		DiscountedPrice: discounted,
		Spec:            d.Spec,
		Style:           d.Style,
		Quantity:        d.Quantity,
		AddedAt:         d.AddedAt,
	}
}

func (d cartDoc) toDomain() *domain.Cart {
	cart := &domain.Cart{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Items:     make([]domain.CartLine, 0, len(d.Items)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, l := range d.Items {
		cart.Items = append(cart.Items, l.toDomain())
	}
	return cart
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var doc cartDoc

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return doc.toDomain(), nil
}

// AddLine increments the quantity of an existing line by one, or appends a
// new line copied from the product. An existing line keeps the attributes it
// was created with; price or pack-size changes on the incoming product are
// ignored.
func (m *MongoRepository) AddLine(ctx context.Context, userID string, product domain.Product) error {
	now := time.Now()

	// The increment only matches carts already holding the product, so a
	// miss means the line has to be pushed instead.
	incFilter := bson.M{"user_id": userID, "items.product_id": product.ID}
	incUpdate := bson.M{
		"$inc": bson.M{"items.$[elem].quantity": 1},
		"$set": bson.M{"updated_at": now},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": product.ID},
		},
	})

	res, err := m.collection.UpdateOne(ctx, incFilter, incUpdate, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to increment existing line: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// The push is guarded against the line's presence so two concurrent
	// first-adds cannot append two lines with the same product id. The
	// upsert creates the cart on first use; when two first-adds race on
	// cart creation the unique user_id index fails the loser with a
	// duplicate key, and the add lands as an increment instead.
	pushFilter := bson.M{"user_id": userID, "items.product_id": bson.M{"$ne": product.ID}}
	pushUpdate := bson.M{
		"$push":        bson.M{"items": toLineDoc(domain.NewCartLine(product, now))},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}

	_, err = m.collection.UpdateOne(ctx, pushFilter, pushUpdate, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		if _, err := m.collection.UpdateOne(ctx, incFilter, incUpdate, arrayFilters); err != nil {
			return fmt.Errorf("failed to increment line after create race: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to add new line: %w", err)
	}
	return nil
}

// DecrementLine lowers a line's quantity by one, removing the line entirely
// when it would reach zero. A missing cart or line is a silent no-op.
func (m *MongoRepository) DecrementLine(ctx context.Context, userID string, productID int64) error {
	// The quantity guard sits in the match itself, so no interleaving of
	// decrements can ever leave a stored line at zero. A line at one
	// falls through to removal.
	filter := bson.M{
		"user_id": userID,
		"items": bson.M{"$elemMatch": bson.M{
			"product_id": productID,
			"quantity":   bson.M{"$gt": 1},
		}},
	}
	update := bson.M{
		"$inc": bson.M{"items.$[elem].quantity": -1},
		"$set": bson.M{"updated_at": time.Now()},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	res, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to decrement line: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// No cart held the line above one: either it sits at one and has to
	// go, or it is absent and the pull is a no-op.
	return m.RemoveLine(ctx, userID, productID)
}

// RemoveLine drops a line unconditionally. Removing an absent line is a
// no-op, so the call is idempotent.
func (m *MongoRepository) RemoveLine(ctx context.Context, userID string, productID int64) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to remove line: %w", err)
	}
	return nil
}

// RemoveLines drops the given product ids in one write. Used after a partial
// order submission to keep only the lines that still need retrying.
func (m *MongoRepository) RemoveLines(ctx context.Context, userID string, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": bson.M{"$in": productIDs}},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to remove lines: %w", err)
	}
	return nil
}

func (m *MongoRepository) DeleteCart(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}

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
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(30 * 24 * 60 * 60), // 30 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
