package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.pilab.hu/gatekeeper/domain"
)

// ClientRepository is the MongoDB implementation of
// domain.ClientRepository.
type ClientRepository struct {
	coll *mongo.Collection
}

// NewClientRepository creates a client repository over the given database.
func NewClientRepository(db *mongo.Database) *ClientRepository {
	return &ClientRepository{
		coll: db.Collection(ClientsCollection),
	}
}

// GetClient resolves a client by its identifier.
func (r *ClientRepository) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	var client domain.Client

	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&client)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("client %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find client: %w", err)
	}

	return &client, nil
}
