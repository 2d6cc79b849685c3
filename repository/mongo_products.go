package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/goliatone/go-shop-auth/catalog"
)

// MongoProducts implements catalog.Products on a document database.
type MongoProducts struct {
	coll *mongo.Collection
}

func NewMongoProducts(db *mongo.Database) *MongoProducts {
	return &MongoProducts{coll: db.Collection(ProductsCollection)}
}

var _ catalog.Products = (*MongoProducts)(nil)

func (s *MongoProducts) Create(ctx context.Context, product *catalog.Product) (*catalog.Product, error) {
	record := product.Clone()
	if _, err := s.coll.InsertOne(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *MongoProducts) List(ctx context.Context) ([]*catalog.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}

	products := []*catalog.Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *MongoProducts) FindByID(ctx context.Context, id string) (*catalog.Product, error) {
	var product catalog.Product
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, catalog.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *MongoProducts) Update(ctx context.Context, product *catalog.Product) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": product.ID}, product)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func (s *MongoProducts) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}
