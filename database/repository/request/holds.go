package requestRepo

import (
	"context"
	"fmt"
	"time"

	"leadmarket/models"

	"go.mongodb.org/mongo-driver/bson"
)

// unassigned matches documents whose assignedProvider was never set.
var unassigned = bson.M{"$in": bson.A{nil, ""}}

// OpenHold places the 5-minute payment lease for the provider. The filter is
// the compare-and-swap: no assignment yet, the candidate is still PENDING,
// and any existing hold is expired or belongs to the same provider (retry).
func (repo *MongoRequestRepo) OpenHold(ctx context.Context, id, providerID string, now, holdUntil time.Time) (bool, error) {
	filter := bson.M{
		"id":               id,
		"status":           models.RequestPending,
		"assignedProvider": unassigned,
		"potentialProviders": bson.M{
			"$elemMatch": bson.M{
				"providerId": providerID,
				"status":     bson.M{"$in": bson.A{models.CandidatePending, models.CandidateAwaitingPayment}},
			},
		},
		"$or": bson.A{
			bson.M{"paymentHoldUntil": nil},
			bson.M{"paymentHoldUntil": bson.M{"$lt": now}},
			bson.M{"paymentHoldBy": providerID},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"paymentHoldBy":    providerID,
			"paymentHoldUntil": holdUntil,
			"potentialProviders.$.status":             models.CandidateAwaitingPayment,
			"potentialProviders.$.paymentWindowStart": now,
			"updatedAt": now,
		},
	}
	res, err := repo.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to open payment hold: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// ReleaseHold reverts a hold owned by the provider: the held candidate goes
// back to PENDING, both hold fields clear, and the aggregate status resets to
// PENDING. Only unassigned requests match, so a finalized assignment is never
// rolled back; releasing an absent hold matches nothing, which keeps the
// operation idempotent.
func (repo *MongoRequestRepo) ReleaseHold(ctx context.Context, id, providerID string) (bool, error) {
	filter := bson.M{
		"id":               id,
		"paymentHoldBy":    providerID,
		"assignedProvider": unassigned,
		"potentialProviders.providerId": providerID,
	}
	update := bson.M{
		"$set": bson.M{
			"status": models.RequestPending,
			"potentialProviders.$.status": models.CandidatePending,
			"updatedAt":                   time.Now().UTC(),
		},
		"$unset": bson.M{
			"paymentHoldBy":    "",
			"paymentHoldUntil": "",
			"potentialProviders.$.paymentWindowStart": "",
		},
	}
	res, err := repo.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to release payment hold: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// ClearHold drops the hold fields owned by the provider and resets the
// aggregate to PENDING without touching the candidate entry. Used by the
// decline path, where the candidate has already been marked DECLINED.
func (repo *MongoRequestRepo) ClearHold(ctx context.Context, id, providerID string) (bool, error) {
	filter := bson.M{
		"id":               id,
		"paymentHoldBy":    providerID,
		"assignedProvider": unassigned,
	}
	update := bson.M{
		"$set": bson.M{
			"status":    models.RequestPending,
			"updatedAt": time.Now().UTC(),
		},
		"$unset": bson.M{
			"paymentHoldBy":    "",
			"paymentHoldUntil": "",
		},
	}
	res, err := repo.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to clear payment hold: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// AssignProvider finalizes a free-lead (or already-purchased) accept in one
// conditional write: only an unassigned, non-terminal request with the
// provider still on the candidate list matches. The loser of a race gets
// MatchedCount zero, never a silent overwrite.
func (repo *MongoRequestRepo) AssignProvider(ctx context.Context, id, providerID string, at time.Time) (bool, error) {
	filter := bson.M{
		"id":               id,
		"status":           bson.M{"$in": bson.A{models.RequestPending, models.RequestMatched}},
		"assignedProvider": unassigned,
		"potentialProviders.providerId": providerID,
	}
	update := bson.M{
		"$set": bson.M{
			"status":           models.RequestInProgress,
			"assignedProvider": providerID,
			"potentialProviders.$.status":     models.CandidateAccepted,
			"potentialProviders.$.acceptedAt": at,
			"updatedAt":                       at,
		},
		"$unset": bson.M{
			"paymentHoldBy":    "",
			"paymentHoldUntil": "",
		},
	}
	res, err := repo.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to assign provider: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// AssignIfUnassigned is the webhook-path assignment guard: the purchasing
// provider wins the assignment only when nobody else holds it. A request
// already assigned elsewhere matches nothing and the purchase stays an
// audit-trail entry only.
func (repo *MongoRequestRepo) AssignIfUnassigned(ctx context.Context, id, providerID string, at time.Time) (bool, error) {
	filter := bson.M{
		"id":               id,
		"status":           bson.M{"$in": bson.A{models.RequestPending, models.RequestMatched, models.RequestProcessing, models.RequestOnProcess}},
		"assignedProvider": unassigned,
	}
	update := bson.M{
		"$set": bson.M{
			"status":           models.RequestInProgress,
			"assignedProvider": providerID,
			"updatedAt":        at,
		},
	}
	res, err := repo.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to assign provider from purchase: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// FinalizeCandidatePurchase marks the purchasing provider's candidate entry
// ACCEPTED with a paid timestamp and clears any hold the provider owned.
// Purchased-and-accepted deliberately converge on one candidate state.
func (repo *MongoRequestRepo) FinalizeCandidatePurchase(ctx context.Context, id, providerID string, at time.Time) error {
	filter := bson.M{
		"id": id,
		"potentialProviders.providerId": providerID,
	}
	update := bson.M{
		"$set": bson.M{
			"potentialProviders.$.status":     models.CandidateAccepted,
			"potentialProviders.$.acceptedAt": at,
			"potentialProviders.$.paidAt":     at,
			"updatedAt":                       at,
		},
	}
	if _, err := repo.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to finalize candidate purchase: %w", err)
	}

	// Clear hold fields only when this provider owns the hold.
	holdFilter := bson.M{"id": id, "paymentHoldBy": providerID}
	holdUpdate := bson.M{"$unset": bson.M{"paymentHoldBy": "", "paymentHoldUntil": ""}}
	if _, err := repo.coll.UpdateOne(ctx, holdFilter, holdUpdate); err != nil {
		return fmt.Errorf("failed to clear payment hold: %w", err)
	}
	return nil
}
