package provider

import (
	"context"
	"fmt"
	"time"

	providerRepo "leadmarket/database/repository/provider"
	"leadmarket/models"
	"leadmarket/services/matching"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterInput carries a provider registration payload. Identity and
// credential handling live in the external auth service; only the authId
// linkage arrives here.
type RegisterInput struct {
	AuthID        string                `json:"authId" binding:"required"`
	Profile       models.ProviderProfile `json:"profile"`
	Categories    []string              `json:"categories" binding:"required"`
	CoveredRadius float64               `json:"coveredRadius"`
	WorkingHours  []models.WorkingHours `json:"workingHours"`
}

// ProviderService covers provider onboarding and the staged-update approval
// workflow. Verification and approval both re-run matching, because they
// change eligibility inputs.
type ProviderService interface {
	Register(ctx context.Context, input RegisterInput) (*models.Provider, error)
	GetByAuthID(ctx context.Context, authID string) (*models.Provider, error)
	Verify(ctx context.Context, providerID string) (int, error)
	StageUpdates(ctx context.Context, providerAuthID string, updates models.PendingUpdates) error
	ApproveUpdates(ctx context.Context, providerID string) (*models.Provider, error)
}

// DefaultProviderService is the production implementation.
type DefaultProviderService struct {
	Repo        providerRepo.ProviderRepository
	MatchingSvc matching.MatchingService
	Logger      *zap.Logger
}

func NewDefaultProviderService(
	repo providerRepo.ProviderRepository,
	matchingSvc matching.MatchingService,
	logger *zap.Logger,
) (*DefaultProviderService, error) {
	if repo == nil || logger == nil {
		return nil, fmt.Errorf("provider service initialization error: one or more dependencies are nil")
	}
	return &DefaultProviderService{Repo: repo, MatchingSvc: matchingSvc, Logger: logger}, nil
}

func (s *DefaultProviderService) Register(ctx context.Context, input RegisterInput) (*models.Provider, error) {
	if existing, err := s.Repo.GetByAuthID(ctx, input.AuthID); err != nil {
		return nil, err
	} else if existing != nil {
		// Re-registration: rescan open requests for the returning provider.
		s.rematch(ctx, existing)
		return existing, nil
	}

	if len(input.Categories) == 0 {
		return nil, fmt.Errorf("provider must declare at least one category")
	}
	radius := input.CoveredRadius
	if radius <= 0 {
		radius = matching.MaxLeadDistance
	}

	now := time.Now().UTC()
	provider := &models.Provider{
		ID:            uuid.New().String(),
		AuthID:        input.AuthID,
		Profile:       input.Profile,
		Categories:    input.Categories,
		CoveredRadius: radius,
		WorkingHours:  input.WorkingHours,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Repo.Create(ctx, provider); err != nil {
		return nil, err
	}
	s.Logger.Info("provider registered", zap.String("providerId", provider.ID))
	return provider, nil
}

func (s *DefaultProviderService) GetByAuthID(ctx context.Context, authID string) (*models.Provider, error) {
	return s.Repo.GetByAuthID(ctx, authID)
}

// Verify flips the verification flag and scans open requests for the newly
// eligible provider. Returns the number of requests matched.
func (s *DefaultProviderService) Verify(ctx context.Context, providerID string) (int, error) {
	if err := s.Repo.SetVerified(ctx, providerID, true); err != nil {
		return 0, err
	}
	provider, err := s.Repo.GetByID(ctx, providerID)
	if err != nil {
		return 0, err
	}
	if provider == nil {
		return 0, fmt.Errorf("provider %s not found after verification", providerID)
	}
	return s.rematch(ctx, provider), nil
}

// StageUpdates records profile edits for admin approval instead of applying
// them directly.
func (s *DefaultProviderService) StageUpdates(ctx context.Context, providerAuthID string, updates models.PendingUpdates) error {
	provider, err := s.Repo.GetByAuthID(ctx, providerAuthID)
	if err != nil {
		return err
	}
	if provider == nil {
		return fmt.Errorf("provider not found")
	}
	updates.RequestedAt = time.Now().UTC()
	return s.Repo.StagePendingUpdates(ctx, provider.ID, &updates)
}

// ApproveUpdates applies the staged edits and, since categories, location,
// radius and working hours all feed eligibility, re-runs matching.
func (s *DefaultProviderService) ApproveUpdates(ctx context.Context, providerID string) (*models.Provider, error) {
	provider, err := s.Repo.ApplyPendingUpdates(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if provider != nil {
		s.rematch(ctx, provider)
	}
	return provider, nil
}

func (s *DefaultProviderService) rematch(ctx context.Context, provider *models.Provider) int {
	if s.MatchingSvc == nil {
		return 0
	}
	matched, err := s.MatchingSvc.MatchProviderToRequests(ctx, provider)
	if err != nil {
		s.Logger.Warn("matching scan failed",
			zap.String("providerId", provider.ID), zap.Error(err))
		return 0
	}
	return matched
}
