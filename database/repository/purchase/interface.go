package purchaseRepo

import (
	"context"
	"time"

	"leadmarket/models"
)

// PurchaseRepository persists LeadPurchase rows. MarkCompleted is the
// idempotency pivot of webhook reconciliation: it flips PENDING to COMPLETED
// conditionally and reports whether anything flipped.
type PurchaseRepository interface {
	Create(ctx context.Context, purchase *models.LeadPurchase) error
	GetByCheckoutSession(ctx context.Context, sessionID string) (*models.LeadPurchase, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*models.LeadPurchase, error)
	FindCompleted(ctx context.Context, providerID, serviceRequestID string) (*models.LeadPurchase, error)
	FindPending(ctx context.Context, providerID, serviceRequestID string) (*models.LeadPurchase, error)
	CountCompleted(ctx context.Context, serviceRequestID string) (int64, error)
	MarkCompleted(ctx context.Context, purchaseID, paymentIntentID string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, purchaseID, reason string) error
}
