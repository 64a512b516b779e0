package providerRepo

import (
	"context"

	"leadmarket/models"
)

// ProviderRepository persists Provider documents.
type ProviderRepository interface {
	Create(ctx context.Context, provider *models.Provider) error
	GetByID(ctx context.Context, id string) (*models.Provider, error)
	GetByAuthID(ctx context.Context, authID string) (*models.Provider, error)
	FindEligible(ctx context.Context, categoryID string) ([]models.Provider, error)
	StagePendingUpdates(ctx context.Context, id string, updates *models.PendingUpdates) error
	ApplyPendingUpdates(ctx context.Context, id string) (*models.Provider, error)
	SetVerified(ctx context.Context, id string, verified bool) error
	IncrementPurchaseStats(ctx context.Context, id string, amount int64) error
	IncrementJobsCompleted(ctx context.Context, id string) error
	AppendNotification(ctx context.Context, id string, notif models.Notification) error
}
