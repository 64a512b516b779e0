package repository

import (
	"context"
	"fmt"

	"leadmarket/database"

	"go.mongodb.org/mongo-driver/mongo"
)

// TxnManager runs a function inside one atomic multi-document transaction.
// Repository operations invoked with the callback's context join the
// transaction; any error aborts the whole transaction.
type TxnManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// MongoTxnManager implements TxnManager over a Mongo session.
type MongoTxnManager struct {
	Client *mongo.Client
}

func NewMongoTxnManager() *MongoTxnManager {
	return &MongoTxnManager{Client: database.MongoClient}
}

func (m *MongoTxnManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := m.Client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	if err := mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := fn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	}); err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}
