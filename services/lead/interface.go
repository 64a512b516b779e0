package lead

import (
	"context"
	"fmt"
	"time"

	categoryRepo "leadmarket/database/repository/category"
	providerRepo "leadmarket/database/repository/provider"
	purchaseRepo "leadmarket/database/repository/purchase"
	requestRepo "leadmarket/database/repository/request"
	"leadmarket/models"
	"leadmarket/services/notification"
	"leadmarket/services/payment"

	"go.uber.org/zap"
)

// AcceptResult is the outcome of a provider accepting a lead. Either the
// request was assigned outright (free lead or prior purchase) or a payment
// hold opened and the provider must complete checkout before it expires.
type AcceptResult struct {
	Assigned      bool       `json:"assigned"`
	CheckoutURL   string     `json:"checkoutUrl,omitempty"`
	HoldExpiresAt *time.Time `json:"holdExpiresAt,omitempty"`
	Price         *LeadPrice `json:"price,omitempty"`
}

// CheckoutResult identifies an opened payment session and its pending purchase.
type CheckoutResult struct {
	PurchaseID  string `json:"purchaseId"`
	SessionID   string `json:"sessionId"`
	CheckoutURL string `json:"checkoutUrl"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// LeadService covers the provider-facing lead marketplace operations.
type LeadService interface {
	ListLeads(ctx context.Context, providerAuthID string) ([]models.ServiceRequest, error)
	PreviewLeadPrice(ctx context.Context, requestID string) (*LeadPrice, error)
	AcceptLead(ctx context.Context, providerAuthID, requestID string) (*AcceptResult, error)
	DeclineLead(ctx context.Context, providerAuthID, requestID string) error
	CreateCheckoutSession(ctx context.Context, providerAuthID, requestID string) (*CheckoutResult, error)
}

// DefaultLeadService is the production implementation.
type DefaultLeadService struct {
	RequestRepo  requestRepo.RequestRepository
	PurchaseRepo purchaseRepo.PurchaseRepository
	ProviderRepo providerRepo.ProviderRepository
	CategoryRepo categoryRepo.CategoryRepository
	Checkout     payment.CheckoutClient
	Notifier     notification.NotificationService
	Logger       *zap.Logger
	SuccessURL   string
	CancelURL    string
}

func NewDefaultLeadService(
	requests requestRepo.RequestRepository,
	purchases purchaseRepo.PurchaseRepository,
	providers providerRepo.ProviderRepository,
	categories categoryRepo.CategoryRepository,
	checkout payment.CheckoutClient,
	notifier notification.NotificationService,
	logger *zap.Logger,
	successURL, cancelURL string,
) (*DefaultLeadService, error) {
	if requests == nil || purchases == nil || providers == nil || categories == nil || checkout == nil || logger == nil {
		return nil, fmt.Errorf("lead service initialization error: one or more dependencies are nil")
	}
	return &DefaultLeadService{
		RequestRepo:  requests,
		PurchaseRepo: purchases,
		ProviderRepo: providers,
		CategoryRepo: categories,
		Checkout:     checkout,
		Notifier:     notifier,
		Logger:       logger,
		SuccessURL:   successURL,
		CancelURL:    cancelURL,
	}, nil
}

// ListLeads returns the requests on which the provider is a candidate.
func (s *DefaultLeadService) ListLeads(ctx context.Context, providerAuthID string) ([]models.ServiceRequest, error) {
	provider, err := s.resolveProvider(ctx, providerAuthID)
	if err != nil {
		return nil, err
	}
	return s.RequestRepo.FindByCandidate(ctx, provider.ID)
}

// PreviewLeadPrice quotes the current lead price for a request.
func (s *DefaultLeadService) PreviewLeadPrice(ctx context.Context, requestID string) (*LeadPrice, error) {
	req, err := s.resolveRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return s.CalculateLeadPrice(ctx, req)
}

func (s *DefaultLeadService) resolveProvider(ctx context.Context, providerAuthID string) (*models.Provider, error) {
	provider, err := s.ProviderRepo.GetByAuthID(ctx, providerAuthID)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, NewNotFoundError("provider not found")
	}
	return provider, nil
}

func (s *DefaultLeadService) resolveRequest(ctx context.Context, requestID string) (*models.ServiceRequest, error) {
	req, err := s.RequestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, NewNotFoundError("service request not found")
	}
	return req, nil
}
