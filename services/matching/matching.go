package matching

import (
	"context"
	"fmt"
	"math"
	"time"

	providerRepo "leadmarket/database/repository/provider"
	requestRepo "leadmarket/database/repository/request"
	"leadmarket/models"
	"leadmarket/services/notification"

	"go.uber.org/zap"
)

// MaxLeadDistance is the hard cap on provider-to-request distance, in the
// same unit as the haversine earth radius (6371).
const MaxLeadDistance = 50.0

// MatchingService computes provider-to-request eligibility in both
// directions: a newly verified provider is fanned in to open requests, and a
// newly created request is fanned out to eligible providers.
type MatchingService interface {
	MatchProviderToRequests(ctx context.Context, provider *models.Provider) (int, error)
	MatchRequestToProviders(ctx context.Context, req *models.ServiceRequest) (int, error)
}

// DefaultMatchingService implements MatchingService.
type DefaultMatchingService struct {
	RequestRepo  requestRepo.RequestRepository
	ProviderRepo providerRepo.ProviderRepository
	Notifier     notification.NotificationService
	Logger       *zap.Logger
}

func NewDefaultMatchingService(
	requests requestRepo.RequestRepository,
	providers providerRepo.ProviderRepository,
	notifier notification.NotificationService,
	logger *zap.Logger,
) (*DefaultMatchingService, error) {
	if requests == nil || providers == nil || logger == nil {
		return nil, fmt.Errorf("matching service initialization error: one or more dependencies are nil")
	}
	return &DefaultMatchingService{
		RequestRepo:  requests,
		ProviderRepo: providers,
		Notifier:     notifier,
		Logger:       logger,
	}, nil
}

// Eligible applies the full matching gate: verified, active, at least one
// available working-hours entry, category membership, and distance within
// the tighter of the hard cap and the provider's own coverage radius.
func Eligible(provider *models.Provider, req *models.ServiceRequest) bool {
	if !provider.Verified || !provider.Active || !provider.HasAvailability() {
		return false
	}
	if !provider.ServesCategory(req.CategoryID) {
		return false
	}
	bound := math.Min(MaxLeadDistance, provider.CoveredRadius)
	d := Haversine(
		req.Location.Latitude, req.Location.Longitude,
		provider.Profile.Location.Latitude, provider.Profile.Location.Longitude,
	)
	return d <= bound
}

// MatchProviderToRequests scans open requests for a (re)verified or
// re-registered provider, appends the provider as a PENDING candidate on
// every match, and emits one count-based notification summarizing the batch.
func (s *DefaultMatchingService) MatchProviderToRequests(ctx context.Context, provider *models.Provider) (int, error) {
	if !provider.Verified || !provider.Active || !provider.HasAvailability() {
		return 0, nil
	}
	if len(provider.Categories) == 0 {
		return 0, nil
	}

	requests, err := s.RequestRepo.FindPendingByCategories(ctx, provider.Categories, provider.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to find matchable requests: %w", err)
	}

	matched := 0
	for i := range requests {
		req := &requests[i]
		if !Eligible(provider, req) {
			continue
		}
		ok, err := s.RequestRepo.AppendCandidate(ctx, req.ID, models.Candidate{
			ProviderID: provider.ID,
			Status:     models.CandidatePending,
		})
		if err != nil {
			return matched, err
		}
		if ok {
			matched++
		}
	}

	if matched > 0 {
		s.notifyMatches(ctx, provider.ID, matched)
	}
	return matched, nil
}

// MatchRequestToProviders fans a newly created request out to every eligible
// provider. Each provider receives its own notification.
func (s *DefaultMatchingService) MatchRequestToProviders(ctx context.Context, req *models.ServiceRequest) (int, error) {
	providers, err := s.ProviderRepo.FindEligible(ctx, req.CategoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to find eligible providers: %w", err)
	}

	matched := 0
	for i := range providers {
		provider := &providers[i]
		if !Eligible(provider, req) {
			continue
		}
		ok, err := s.RequestRepo.AppendCandidate(ctx, req.ID, models.Candidate{
			ProviderID: provider.ID,
			Status:     models.CandidatePending,
		})
		if err != nil {
			return matched, err
		}
		if ok {
			matched++
			s.notifyMatches(ctx, provider.ID, 1)
		}
	}

	s.Logger.Info("request fanned out to providers",
		zap.String("requestId", req.ID), zap.Int("matched", matched))
	return matched, nil
}

func (s *DefaultMatchingService) notifyMatches(ctx context.Context, providerID string, count int) {
	if s.Notifier == nil {
		return
	}
	message := fmt.Sprintf("%d new service requests match your profile", count)
	if count == 1 {
		message = "A new service request matches your profile"
	}
	if err := s.Notifier.Notify(ctx, "New leads available", message, providerID, map[string]interface{}{
		"matchedCount": count,
		"matchedAt":    time.Now().UTC(),
	}); err != nil {
		s.Logger.Warn("failed to notify provider of matches",
			zap.String("providerId", providerID), zap.Error(err))
	}
}

// Haversine returns the great-circle distance between two coordinates given
// in degrees, using earth radius 6371.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371
	dLat := (lat2 - lat1) * (math.Pi / 180)
	dLon := (lon2 - lon1) * (math.Pi / 180)
	lat1Rad := lat1 * (math.Pi / 180)
	lat2Rad := lat2 * (math.Pi / 180)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
