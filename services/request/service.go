package request

import (
	"context"
	"fmt"
	"time"

	categoryRepo "leadmarket/database/repository/category"
	providerRepo "leadmarket/database/repository/provider"
	requestRepo "leadmarket/database/repository/request"
	"leadmarket/config"
	"leadmarket/models"
	"leadmarket/services/matching"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateRequestInput carries the customer's request-creation payload.
type CreateRequestInput struct {
	CategoryID   string                 `json:"categoryId" binding:"required"`
	Subcategory  string                 `json:"subcategory" binding:"required"`
	Priority     models.RequestPriority `json:"priority"`
	Schedule     models.ScheduleWindow  `json:"schedule"`
	Location     models.GeoLocation     `json:"location"`
	Description  string                 `json:"description"`
	Attachments  []string               `json:"attachments"`
	MaxProviders int                    `json:"maxProviders"`
}

// RequestService covers the customer- and admin-facing lifecycle operations.
type RequestService interface {
	CreateRequest(ctx context.Context, customerID string, input CreateRequestInput) (*models.ServiceRequest, error)
	GetRequest(ctx context.Context, id string) (*models.ServiceRequest, error)
	CompleteRequest(ctx context.Context, providerAuthID, requestID string) error
	ReviewRequest(ctx context.Context, customerID, requestID string) error
	OverrideStatus(ctx context.Context, requestID string, status models.RequestStatus) error
}

// DefaultRequestService is the production implementation.
type DefaultRequestService struct {
	Repo         requestRepo.RequestRepository
	ProviderRepo providerRepo.ProviderRepository
	CategoryRepo categoryRepo.CategoryRepository
	MatchingSvc  matching.MatchingService
	Logger       *zap.Logger
}

func NewDefaultRequestService(
	repo requestRepo.RequestRepository,
	providers providerRepo.ProviderRepository,
	categories categoryRepo.CategoryRepository,
	matchingSvc matching.MatchingService,
	logger *zap.Logger,
) (*DefaultRequestService, error) {
	if repo == nil || providers == nil || categories == nil || logger == nil {
		return nil, fmt.Errorf("request service initialization error: one or more dependencies are nil")
	}
	return &DefaultRequestService{
		Repo:         repo,
		ProviderRepo: providers,
		CategoryRepo: categories,
		MatchingSvc:  matchingSvc,
		Logger:       logger,
	}, nil
}

// CreateRequest validates and persists a new service request, then fans it
// out to eligible providers.
func (s *DefaultRequestService) CreateRequest(ctx context.Context, customerID string, input CreateRequestInput) (*models.ServiceRequest, error) {
	category, err := s.CategoryRepo.GetByID(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil || !category.Active {
		return nil, NewValidationError("unknown or inactive category")
	}
	sub := category.Subcategory(input.Subcategory)
	if sub == nil || !sub.Active {
		return nil, NewValidationError("unknown or inactive subcategory")
	}

	if input.Location.Latitude < -90 || input.Location.Latitude > 90 ||
		input.Location.Longitude < -180 || input.Location.Longitude > 180 {
		return nil, NewValidationError("invalid geo coordinates")
	}
	if err := validateSchedule(input.Schedule); err != nil {
		return nil, err
	}

	priority := input.Priority
	switch priority {
	case "":
		priority = models.PriorityNormal
	case models.PriorityLow, models.PriorityNormal, models.PriorityUrgent:
	default:
		return nil, NewValidationError("invalid priority")
	}

	maxProviders := input.MaxProviders
	if maxProviders <= 0 {
		maxProviders = config.AppConfig.DefaultMaxProviders
	}
	if maxProviders <= 0 {
		maxProviders = 3
	}

	now := time.Now().UTC()
	humanID, err := s.nextRequestID(ctx)
	if err != nil {
		return nil, err
	}

	req := &models.ServiceRequest{
		ID:         uuid.New().String(),
		RequestID:  humanID,
		CustomerID: customerID,
		CategoryID: category.ID,
		// Subcategories are mutable sub-documents, so the chosen name is
		// snapshotted here rather than re-resolved later.
		Subcategory:        sub.Name,
		Priority:           priority,
		Schedule:           input.Schedule,
		Location:           input.Location,
		Description:        input.Description,
		Attachments:        input.Attachments,
		Status:             models.RequestPending,
		PotentialProviders: []models.Candidate{},
		PurchasedBy:        []models.PurchaseRecord{},
		MaxProviders:       maxProviders,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Repo.Create(ctx, req); err != nil {
		return nil, err
	}

	// Fan out to providers already on the books. Best-effort: the hourly
	// provider-side matching converges on anything missed here.
	if s.MatchingSvc != nil {
		if _, err := s.MatchingSvc.MatchRequestToProviders(ctx, req); err != nil {
			s.Logger.Warn("provider fan-out failed for new request",
				zap.String("requestId", req.ID), zap.Error(err))
		}
	}

	s.Logger.Info("service request created",
		zap.String("requestId", req.RequestID), zap.String("category", category.ID))
	return req, nil
}

// validateSchedule checks a non-empty schedule window for well-formed dates
// in the right order. An empty window means "as soon as possible" and is
// always valid.
func validateSchedule(s models.ScheduleWindow) error {
	if s.StartDate == "" && s.EndDate == "" {
		return nil
	}
	start, err := time.Parse("2006-01-02", s.StartDate)
	if err != nil {
		return NewValidationError("invalid schedule start date")
	}
	if s.EndDate != "" {
		end, err := time.Parse("2006-01-02", s.EndDate)
		if err != nil {
			return NewValidationError("invalid schedule end date")
		}
		if end.Before(start) {
			return NewValidationError("schedule end date precedes start date")
		}
	}
	return nil
}

// nextRequestID derives the human-readable sequential id from the current
// document count. Concurrent creations may race onto the same number; the
// scheme is kept as the collision-tolerant display id it is, with the
// internal uuid as the real identity.
func (s *DefaultRequestService) nextRequestID(ctx context.Context) (string, error) {
	n, err := s.Repo.CountAll(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("REQ-%06d", n+1), nil
}

func (s *DefaultRequestService) GetRequest(ctx context.Context, id string) (*models.ServiceRequest, error) {
	req, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, NewNotFoundError("service request not found")
	}
	return req, nil
}

// CompleteRequest moves an IN_PROGRESS request to COMPLETED. Only the
// assigned provider may complete; the conditional write enforces both.
func (s *DefaultRequestService) CompleteRequest(ctx context.Context, providerAuthID, requestID string) error {
	provider, err := s.ProviderRepo.GetByAuthID(ctx, providerAuthID)
	if err != nil {
		return err
	}
	if provider == nil {
		return NewNotFoundError("provider not found")
	}

	ok, err := s.Repo.MarkCompleted(ctx, requestID, provider.ID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return NewConflictError("request is not in progress or not assigned to this provider")
	}

	if err := s.ProviderRepo.IncrementJobsCompleted(ctx, provider.ID); err != nil {
		s.Logger.Warn("failed to bump provider completion counter",
			zap.String("providerId", provider.ID), zap.Error(err))
	}
	return nil
}

// ReviewRequest records the customer's review on a COMPLETED request,
// terminalizing it before the auto-approval sweep can claim it.
func (s *DefaultRequestService) ReviewRequest(ctx context.Context, customerID, requestID string) error {
	req, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.CustomerID != customerID {
		return NewValidationError("request does not belong to this customer")
	}

	ok, err := s.Repo.MarkReviewed(ctx, requestID)
	if err != nil {
		return err
	}
	if !ok {
		return NewConflictError("request is not awaiting review")
	}
	return nil
}

// OverrideStatus applies an admin status override. CANCELLED and PROCESSING
// overrides bypass the transition table; everything else must follow it.
func (s *DefaultRequestService) OverrideStatus(ctx context.Context, requestID string, status models.RequestStatus) error {
	req, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}

	if status != models.RequestCancelled && status != models.RequestProcessing {
		if !CanTransition(req.Status, status) {
			return NewConflictError(fmt.Sprintf("cannot move request from %s to %s", req.Status, status))
		}
	}
	return s.Repo.SetStatus(ctx, requestID, status)
}
