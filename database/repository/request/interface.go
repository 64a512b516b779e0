package requestRepo

import (
	"context"
	"time"

	"leadmarket/models"
)

// RequestRepository persists ServiceRequest aggregates. Every state-changing
// method is a single conditional update; the boolean result reports whether
// the document matched the precondition, so callers can surface lost races
// as conflicts instead of silently overwriting.
type RequestRepository interface {
	Create(ctx context.Context, req *models.ServiceRequest) error
	GetByID(ctx context.Context, id string) (*models.ServiceRequest, error)
	GetByRequestID(ctx context.Context, requestID string) (*models.ServiceRequest, error)
	CountAll(ctx context.Context) (int64, error)

	// Matching queries.
	FindPendingByCategories(ctx context.Context, categoryIDs []string, excludeProviderID string) ([]models.ServiceRequest, error)
	FindByCandidate(ctx context.Context, providerID string) ([]models.ServiceRequest, error)

	// Candidate-list mutations.
	AppendCandidate(ctx context.Context, id string, cand models.Candidate) (bool, error)
	MarkCandidateDeclined(ctx context.Context, id, providerID string, at time.Time) (bool, error)

	// Hold lease mutations.
	OpenHold(ctx context.Context, id, providerID string, now, holdUntil time.Time) (bool, error)
	ReleaseHold(ctx context.Context, id, providerID string) (bool, error)
	ClearHold(ctx context.Context, id, providerID string) (bool, error)

	// Assignment and lifecycle.
	AssignProvider(ctx context.Context, id, providerID string, at time.Time) (bool, error)
	AssignIfUnassigned(ctx context.Context, id, providerID string, at time.Time) (bool, error)
	RecordPurchase(ctx context.Context, id string, rec models.PurchaseRecord) error
	FinalizeCandidatePurchase(ctx context.Context, id, providerID string, at time.Time) error
	MarkCompleted(ctx context.Context, id, providerID string, at time.Time) (bool, error)
	MarkReviewed(ctx context.Context, id string) (bool, error)
	SetStatus(ctx context.Context, id string, status models.RequestStatus) error

	// Scheduler sweeps (bulk, no per-document logic).
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
	AutoApproveCompleted(ctx context.Context, cutoff, at time.Time) (int64, error)
}
