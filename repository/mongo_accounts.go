package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	auth "github.com/goliatone/go-shop-auth"
)

// MongoAccounts implements auth.AccountStore on a document database. The
// bootstrap marker is a document keyed by _id in its own collection.
type MongoAccounts struct {
	accounts *mongo.Collection
	markers  *mongo.Collection
}

// NewMongoAccounts binds to db and ensures the unique email index
func NewMongoAccounts(ctx context.Context, db *mongo.Database) (*MongoAccounts, error) {
	accounts := db.Collection(AccountsCollection)

	_, err := accounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "role", Value: 1}, {Key: "created_at", Value: 1}},
		},
	})
	if err != nil {
		return nil, err
	}

	return &MongoAccounts{
		accounts: accounts,
		markers:  db.Collection(MarkersCollection),
	}, nil
}

var _ auth.AccountStore = (*MongoAccounts)(nil)

// FindByEmail implements auth.Accounts.
func (s *MongoAccounts) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return s.findOne(ctx, bson.M{"email": auth.NormalizeEmail(email)})
}

// FindByID implements auth.Accounts.
func (s *MongoAccounts) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoAccounts) findOne(ctx context.Context, filter any) (*auth.Account, error) {
	var account auth.Account
	err := s.accounts.FindOne(ctx, filter).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, auth.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Count implements auth.Accounts.
func (s *MongoAccounts) Count(ctx context.Context) (int64, error) {
	return s.accounts.CountDocuments(ctx, bson.M{})
}

// Create implements auth.Accounts.
func (s *MongoAccounts) Create(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	record := account.Clone()
	record.Email = auth.NormalizeEmail(record.Email)

	if record.Role == auth.RoleAdmin {
		holder, err := s.bootstrapHolder(ctx)
		if err != nil {
			return nil, err
		}
		if holder != record.ID {
			return nil, auth.ErrBootstrapViolation
		}
	}

	if _, err := s.accounts.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, auth.ErrEmailTaken
		}
		return nil, err
	}
	return record, nil
}

// Save implements auth.Accounts.
func (s *MongoAccounts) Save(ctx context.Context, account *auth.Account) error {
	record := account.Clone()
	record.Email = auth.NormalizeEmail(record.Email)

	res, err := s.accounts.ReplaceOne(ctx, bson.M{"_id": record.ID}, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return auth.ErrEmailTaken
		}
		return err
	}
	if res.MatchedCount == 0 {
		return auth.ErrAccountNotFound
	}
	return nil
}

// ListByRole implements auth.Accounts.
func (s *MongoAccounts) ListByRole(ctx context.Context, role auth.Role) ([]*auth.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.accounts.Find(ctx, bson.M{"role": role}, opts)
	if err != nil {
		return nil, err
	}

	accounts := []*auth.Account{}
	if err := cur.All(ctx, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ClaimBootstrap implements auth.BootstrapClaimer. The _id index lets
// exactly one insert through.
func (s *MongoAccounts) ClaimBootstrap(ctx context.Context, accountID string) (bool, error) {
	_, err := s.markers.InsertOne(ctx, bson.M{
		"_id":        bootstrapMarker,
		"account_id": accountID,
	})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseBootstrap implements auth.BootstrapClaimer.
func (s *MongoAccounts) ReleaseBootstrap(ctx context.Context, accountID string) error {
	n, err := s.accounts.CountDocuments(ctx, bson.M{"_id": accountID})
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	_, err = s.markers.DeleteOne(ctx, bson.M{
		"_id":        bootstrapMarker,
		"account_id": accountID,
	})
	return err
}

func (s *MongoAccounts) bootstrapHolder(ctx context.Context) (string, error) {
	var doc struct {
		AccountID string `bson:"account_id"`
	}
	err := s.markers.FindOne(ctx, bson.M{"_id": bootstrapMarker}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	return doc.AccountID, err
}
