package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.pilab.hu/gatekeeper/domain"
)

// TokenRepository is the MongoDB implementation of domain.TokenRepository.
type TokenRepository struct {
	coll *mongo.Collection
}

// NewTokenRepository creates a token repository over the given database.
func NewTokenRepository(db *mongo.Database) *TokenRepository {
	return &TokenRepository{
		coll: db.Collection(TokensCollection),
	}
}

// StoreToken persists a new token record.
func (r *TokenRepository) StoreToken(ctx context.Context, token *domain.AccessToken) error {
	if _, err := r.coll.InsertOne(ctx, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	return nil
}

// GetToken resolves a token record by its identifier.
func (r *TokenRepository) GetToken(ctx context.Context, id string) (*domain.AccessToken, error) {
	var token domain.AccessToken

	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("token %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}

	return &token, nil
}

// GetTokenByRefreshID resolves the record a refresh identifier renews,
// scoped to the submitting client so one client cannot consume another's
// refresh token.
func (r *TokenRepository) GetTokenByRefreshID(ctx context.Context, refreshID, clientID string) (*domain.AccessToken, error) {
	var token domain.AccessToken

	err := r.coll.FindOne(ctx, bson.M{"refresh_id": refreshID, "client_id": clientID}).Decode(&token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("refresh token: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}

	return &token, nil
}

// DeleteToken removes a record and reports whether one existed.
func (r *TokenRepository) DeleteToken(ctx context.Context, id string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete token: %w", err)
	}

	return res.DeletedCount > 0, nil
}

// RotateToken replaces old with replacement as one logical unit. On a
// replica set both writes run inside a transaction; on a standalone server
// the replacement is made durable first and the stale delete failure is
// logged rather than losing the user's only refresh token.
func (r *TokenRepository) RotateToken(ctx context.Context, old, replacement *domain.AccessToken) error {
	session, err := r.coll.Database().Client().StartSession()
	if err != nil {
		return r.rotateWithoutTxn(ctx, old, replacement)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		if _, err := r.coll.InsertOne(ctx, replacement); err != nil {
			return nil, fmt.Errorf("failed to store replacement token: %w", err)
		}

		res, err := r.coll.DeleteOne(ctx, bson.M{"_id": old.ID})
		if err != nil {
			return nil, fmt.Errorf("failed to delete consumed token: %w", err)
		}
		if res.DeletedCount == 0 {
			return nil, errors.New("refresh token was already consumed")
		}

		return nil, nil
	})
	if err != nil && transactionsUnsupported(err) {
		return r.rotateWithoutTxn(ctx, old, replacement)
	}

	return err
}

func (r *TokenRepository) rotateWithoutTxn(ctx context.Context, old, replacement *domain.AccessToken) error {
	if _, err := r.coll.InsertOne(ctx, replacement); err != nil {
		return fmt.Errorf("failed to store replacement token: %w", err)
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": old.ID})
	if err != nil {
		// The replacement is durable; the stale record briefly stays
		// resolvable until the next rotation or cleanup. Never fail the
		// grant here, that would leave the user holding two valid tokens
		// and a spurious error.
		log.Error().Err(err).
			Str("old_token_id", old.ID).
			Str("token_id", replacement.ID).
			Msg("failed to delete consumed refresh token after rotation")
		return nil
	}
	if res.DeletedCount == 0 {
		log.Warn().Str("old_token_id", old.ID).Msg("consumed refresh token was already removed")
	}

	return nil
}

func transactionsUnsupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == 20 {
		return true
	}

	return strings.Contains(err.Error(), "Transaction numbers are only allowed")
}
