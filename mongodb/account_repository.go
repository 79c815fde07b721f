package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.pilab.hu/gatekeeper/domain"
)

// AccountRepository is the MongoDB implementation of
// domain.AccountRepository.
type AccountRepository struct {
	coll *mongo.Collection
}

// NewAccountRepository creates an account repository over the given
// database.
func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{
		coll: db.Collection(AccountsCollection),
	}
}

// GetAccount resolves an account by its identifier.
func (r *AccountRepository) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetAccountByUsername resolves an account by its unique username.
func (r *AccountRepository) GetAccountByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var account domain.Account

	err := r.coll.FindOne(ctx, filter).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("account: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	return &account, nil
}
