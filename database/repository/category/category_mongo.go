package categoryRepo

import (
	"context"
	"fmt"

	"leadmarket/database"
	"leadmarket/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CategoryRepository looks up service categories.
type CategoryRepository interface {
	GetByID(ctx context.Context, id string) (*models.Category, error)
	ListActive(ctx context.Context) ([]models.Category, error)
}

// MongoCategoryRepo is the MongoDB-backed CategoryRepository.
type MongoCategoryRepo struct {
	coll *mongo.Collection
}

func NewMongoCategoryRepo() *MongoCategoryRepo {
	return &MongoCategoryRepo{coll: database.Collection("categories")}
}

func (repo *MongoCategoryRepo) GetByID(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	err := repo.coll.FindOne(ctx, bson.M{"id": id}).Decode(&category)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch category %s: %w", id, err)
	}
	return &category, nil
}

func (repo *MongoCategoryRepo) ListActive(ctx context.Context) ([]models.Category, error) {
	cur, err := repo.coll.Find(ctx, bson.M{"active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer cur.Close(ctx)

	var categories []models.Category
	if err := cur.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	return categories, nil
}
