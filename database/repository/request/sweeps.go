package requestRepo

import (
	"context"
	"fmt"
	"time"

	"leadmarket/models"

	"go.mongodb.org/mongo-driver/bson"
)

// ExpireStale bulk-expires unassigned PENDING/MATCHED requests created
// before the cutoff. Coarse backstop only; per-document hold expiry stays
// lazy in the service layer.
func (repo *MongoRequestRepo) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status":    bson.M{"$in": bson.A{models.RequestPending, models.RequestMatched}},
		"createdAt": bson.M{"$lt": cutoff},
	}
	update := bson.M{
		"$set": bson.M{"status": models.RequestExpired, "updatedAt": time.Now().UTC()},
	}
	res, err := repo.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale requests: %w", err)
	}
	return res.ModifiedCount, nil
}

// AutoApproveCompleted bulk-approves COMPLETED requests that were never
// reviewed and have sat untouched since before the cutoff.
func (repo *MongoRequestRepo) AutoApproveCompleted(ctx context.Context, cutoff, at time.Time) (int64, error) {
	filter := bson.M{
		"status":    models.RequestCompleted,
		"reviewed":  false,
		"updatedAt": bson.M{"$lt": cutoff},
	}
	update := bson.M{
		"$set": bson.M{
			"status":         models.RequestApproved,
			"autoApprovedAt": at,
			"updatedAt":      at,
		},
	}
	res, err := repo.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to auto-approve completed requests: %w", err)
	}
	return res.ModifiedCount, nil
}
