package purchaseRepo

import (
	"context"
	"fmt"
	"time"

	"leadmarket/database"
	"leadmarket/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoPurchaseRepo is the MongoDB-backed PurchaseRepository. The collection
// carries unique indexes on checkoutSessionId and (sparse) paymentIntentId.
type MongoPurchaseRepo struct {
	coll *mongo.Collection
}

func NewMongoPurchaseRepo() *MongoPurchaseRepo {
	return &MongoPurchaseRepo{coll: database.Collection("lead_purchases")}
}

func (repo *MongoPurchaseRepo) Create(ctx context.Context, purchase *models.LeadPurchase) error {
	if _, err := repo.coll.InsertOne(ctx, purchase); err != nil {
		return fmt.Errorf("failed to insert lead purchase: %w", err)
	}
	return nil
}

func (repo *MongoPurchaseRepo) getOne(ctx context.Context, filter bson.M) (*models.LeadPurchase, error) {
	var purchase models.LeadPurchase
	err := repo.coll.FindOne(ctx, filter).Decode(&purchase)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lead purchase: %w", err)
	}
	return &purchase, nil
}

func (repo *MongoPurchaseRepo) GetByCheckoutSession(ctx context.Context, sessionID string) (*models.LeadPurchase, error) {
	return repo.getOne(ctx, bson.M{"checkoutSessionId": sessionID})
}

func (repo *MongoPurchaseRepo) GetByPaymentIntent(ctx context.Context, intentID string) (*models.LeadPurchase, error) {
	return repo.getOne(ctx, bson.M{"paymentIntentId": intentID})
}

func (repo *MongoPurchaseRepo) FindCompleted(ctx context.Context, providerID, serviceRequestID string) (*models.LeadPurchase, error) {
	return repo.getOne(ctx, bson.M{
		"providerId":       providerID,
		"serviceRequestId": serviceRequestID,
		"status":           models.PurchaseCompleted,
	})
}

func (repo *MongoPurchaseRepo) FindPending(ctx context.Context, providerID, serviceRequestID string) (*models.LeadPurchase, error) {
	return repo.getOne(ctx, bson.M{
		"providerId":       providerID,
		"serviceRequestId": serviceRequestID,
		"status":           models.PurchasePending,
	})
}

func (repo *MongoPurchaseRepo) CountCompleted(ctx context.Context, serviceRequestID string) (int64, error) {
	n, err := repo.coll.CountDocuments(ctx, bson.M{
		"serviceRequestId": serviceRequestID,
		"status":           models.PurchaseCompleted,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count completed purchases: %w", err)
	}
	return n, nil
}

// MarkCompleted flips the purchase from PENDING to COMPLETED. A replayed
// event matches nothing and returns false.
func (repo *MongoPurchaseRepo) MarkCompleted(ctx context.Context, purchaseID, paymentIntentID string, at time.Time) (bool, error) {
	filter := bson.M{
		"id":     purchaseID,
		"status": models.PurchasePending,
	}
	set := bson.M{
		"status":      models.PurchaseCompleted,
		"purchasedAt": at,
		"updatedAt":   at,
	}
	if paymentIntentID != "" {
		set["paymentIntentId"] = paymentIntentID
	}
	res, err := repo.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to complete lead purchase: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (repo *MongoPurchaseRepo) MarkFailed(ctx context.Context, purchaseID, reason string) error {
	filter := bson.M{
		"id":     purchaseID,
		"status": models.PurchasePending,
	}
	update := bson.M{
		"$set": bson.M{
			"status":        models.PurchaseFailed,
			"failureReason": reason,
			"updatedAt":     time.Now().UTC(),
		},
	}
	if _, err := repo.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to mark lead purchase failed: %w", err)
	}
	return nil
}
