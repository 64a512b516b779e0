package requestRepo

import (
	"context"
	"fmt"
	"time"

	"leadmarket/database"
	"leadmarket/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRequestRepo is the MongoDB-backed RequestRepository.
type MongoRequestRepo struct {
	coll *mongo.Collection
}

func NewMongoRequestRepo() *MongoRequestRepo {
	return &MongoRequestRepo{coll: database.Collection("service_requests")}
}

func (repo *MongoRequestRepo) Create(ctx context.Context, req *models.ServiceRequest) error {
	if _, err := repo.coll.InsertOne(ctx, req); err != nil {
		return fmt.Errorf("failed to insert service request: %w", err)
	}
	return nil
}

func (repo *MongoRequestRepo) GetByID(ctx context.Context, id string) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	err := repo.coll.FindOne(ctx, bson.M{"id": id}).Decode(&req)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service request %s: %w", id, err)
	}
	return &req, nil
}

func (repo *MongoRequestRepo) GetByRequestID(ctx context.Context, requestID string) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	err := repo.coll.FindOne(ctx, bson.M{"requestId": requestID}).Decode(&req)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service request %s: %w", requestID, err)
	}
	return &req, nil
}

func (repo *MongoRequestRepo) CountAll(ctx context.Context) (int64, error) {
	n, err := repo.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count service requests: %w", err)
	}
	return n, nil
}

// FindPendingByCategories returns PENDING requests in the given categories
// that do not already carry the excluded provider as a candidate.
func (repo *MongoRequestRepo) FindPendingByCategories(ctx context.Context, categoryIDs []string, excludeProviderID string) ([]models.ServiceRequest, error) {
	filter := bson.M{
		"status":     models.RequestPending,
		"categoryId": bson.M{"$in": categoryIDs},
		"potentialProviders.providerId": bson.M{"$ne": excludeProviderID},
	}
	cur, err := repo.coll.Find(ctx, filter, options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer cur.Close(ctx)

	var requests []models.ServiceRequest
	if err := cur.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode pending requests: %w", err)
	}
	return requests, nil
}

func (repo *MongoRequestRepo) FindByCandidate(ctx context.Context, providerID string) ([]models.ServiceRequest, error) {
	filter := bson.M{"potentialProviders.providerId": providerID}
	cur, err := repo.coll.Find(ctx, filter, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, fmt.Errorf("failed to query requests for provider %s: %w", providerID, err)
	}
	defer cur.Close(ctx)

	var requests []models.ServiceRequest
	if err := cur.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode requests for provider %s: %w", providerID, err)
	}
	return requests, nil
}

// AppendCandidate adds the candidate only if the provider is not yet listed.
func (repo *MongoRequestRepo) AppendCandidate(ctx context.Context, id string, cand models.Candidate) (bool, error) {
	filter := bson.M{
		"id": id,
		"potentialProviders.providerId": bson.M{"$ne": cand.ProviderID},
	}
	update := bson.M{
		"$push": bson.M{"potentialProviders": cand},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := repo.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to append candidate: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// MarkCandidateDeclined flips the candidate to DECLINED from any
// non-terminal candidate state.
func (repo *MongoRequestRepo) MarkCandidateDeclined(ctx context.Context, id, providerID string, at time.Time) (bool, error) {
	filter := bson.M{
		"id": id,
		"potentialProviders": bson.M{
			"$elemMatch": bson.M{
				"providerId": providerID,
				"status":     bson.M{"$in": bson.A{models.CandidatePending, models.CandidateAwaitingPayment}},
			},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"potentialProviders.$.status":     models.CandidateDeclined,
			"potentialProviders.$.declinedAt": at,
			"updatedAt":                       at,
		},
		"$unset": bson.M{"potentialProviders.$.paymentWindowStart": ""},
	}
	res, err := repo.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to decline candidate: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (repo *MongoRequestRepo) RecordPurchase(ctx context.Context, id string, rec models.PurchaseRecord) error {
	update := bson.M{
		"$push": bson.M{"purchasedBy": rec},
		"$set":  bson.M{"updatedAt": rec.PurchasedAt},
	}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("failed to record purchase: %w", err)
	}
	return nil
}

func (repo *MongoRequestRepo) MarkCompleted(ctx context.Context, id, providerID string, at time.Time) (bool, error) {
	filter := bson.M{
		"id":               id,
		"status":           models.RequestInProgress,
		"assignedProvider": providerID,
	}
	update := bson.M{
		"$set": bson.M{
			"status":      models.RequestCompleted,
			"completedAt": at,
			"updatedAt":   at,
		},
	}
	res, err := repo.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to mark request completed: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (repo *MongoRequestRepo) MarkReviewed(ctx context.Context, id string) (bool, error) {
	filter := bson.M{
		"id":       id,
		"status":   models.RequestCompleted,
		"reviewed": false,
	}
	update := bson.M{
		"$set": bson.M{"reviewed": true, "updatedAt": time.Now().UTC()},
	}
	res, err := repo.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to mark request reviewed: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// SetStatus applies an admin override. Overrides bypass transition checks.
func (repo *MongoRequestRepo) SetStatus(ctx context.Context, id string, status models.RequestStatus) error {
	update := bson.M{
		"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()},
	}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("failed to set request status: %w", err)
	}
	return nil
}
