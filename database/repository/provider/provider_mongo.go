package providerRepo

import (
	"context"
	"fmt"
	"time"

	"leadmarket/database"
	"leadmarket/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoProviderRepo is the MongoDB-backed ProviderRepository.
type MongoProviderRepo struct {
	coll *mongo.Collection
}

func NewMongoProviderRepo() *MongoProviderRepo {
	return &MongoProviderRepo{coll: database.Collection("providers")}
}

func (repo *MongoProviderRepo) Create(ctx context.Context, provider *models.Provider) error {
	if _, err := repo.coll.InsertOne(ctx, provider); err != nil {
		return fmt.Errorf("failed to insert provider: %w", err)
	}
	return nil
}

func (repo *MongoProviderRepo) getOne(ctx context.Context, filter bson.M) (*models.Provider, error) {
	var provider models.Provider
	err := repo.coll.FindOne(ctx, filter).Decode(&provider)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch provider: %w", err)
	}
	return &provider, nil
}

func (repo *MongoProviderRepo) GetByID(ctx context.Context, id string) (*models.Provider, error) {
	return repo.getOne(ctx, bson.M{"id": id})
}

func (repo *MongoProviderRepo) GetByAuthID(ctx context.Context, authID string) (*models.Provider, error) {
	return repo.getOne(ctx, bson.M{"authId": authID})
}

// FindEligible returns verified, active providers servicing the category.
// Distance and availability gates stay in the matching engine.
func (repo *MongoProviderRepo) FindEligible(ctx context.Context, categoryID string) ([]models.Provider, error) {
	filter := bson.M{
		"verified":   true,
		"active":     true,
		"categories": categoryID,
	}
	cur, err := repo.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible providers: %w", err)
	}
	defer cur.Close(ctx)

	var providers []models.Provider
	if err := cur.All(ctx, &providers); err != nil {
		return nil, fmt.Errorf("failed to decode eligible providers: %w", err)
	}
	return providers, nil
}

func (repo *MongoProviderRepo) StagePendingUpdates(ctx context.Context, id string, updates *models.PendingUpdates) error {
	update := bson.M{
		"$set": bson.M{"pendingUpdates": updates, "updatedAt": time.Now().UTC()},
	}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("failed to stage provider updates: %w", err)
	}
	return nil
}

// ApplyPendingUpdates promotes the staged profile edits onto the live
// document and clears the staging object. Returns the refreshed provider.
func (repo *MongoProviderRepo) ApplyPendingUpdates(ctx context.Context, id string) (*models.Provider, error) {
	provider, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if provider == nil || provider.PendingUpdates == nil {
		return provider, nil
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	pu := provider.PendingUpdates
	if pu.Name != nil {
		set["profile.name"] = *pu.Name
	}
	if pu.PhoneNumber != nil {
		set["profile.phoneNumber"] = *pu.PhoneNumber
	}
	if pu.Location != nil {
		set["profile.location"] = *pu.Location
	}
	if pu.Categories != nil {
		set["categories"] = pu.Categories
	}
	if pu.CoveredRadius != nil {
		set["coveredRadius"] = *pu.CoveredRadius
	}
	if pu.WorkingHours != nil {
		set["workingHours"] = pu.WorkingHours
	}

	update := bson.M{
		"$set":   set,
		"$unset": bson.M{"pendingUpdates": ""},
	}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return nil, fmt.Errorf("failed to apply provider updates: %w", err)
	}
	return repo.GetByID(ctx, id)
}

func (repo *MongoProviderRepo) SetVerified(ctx context.Context, id string, verified bool) error {
	update := bson.M{
		"$set": bson.M{"verified": verified, "updatedAt": time.Now().UTC()},
	}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("failed to set provider verified flag: %w", err)
	}
	return nil
}

func (repo *MongoProviderRepo) IncrementPurchaseStats(ctx context.Context, id string, amount int64) error {
	update := bson.M{
		"$inc": bson.M{
			"stats.totalSpent":     amount,
			"stats.leadsPurchased": 1,
		},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("failed to increment provider purchase stats: %w", err)
	}
	return nil
}

func (repo *MongoProviderRepo) IncrementJobsCompleted(ctx context.Context, id string) error {
	update := bson.M{
		"$inc": bson.M{"stats.jobsCompleted": 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("failed to increment provider jobs completed: %w", err)
	}
	return nil
}

func (repo *MongoProviderRepo) AppendNotification(ctx context.Context, id string, notif models.Notification) error {
	update := bson.M{
		"$push": bson.M{"notifications": notif},
	}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("failed to append provider notification: %w", err)
	}
	return nil
}
