package lead

import (
	"context"
	"fmt"
	"time"

	"leadmarket/models"
	"leadmarket/services/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// purchaseType tags checkout metadata so webhook events for unrelated
// products are ignored.
const purchaseType = "LEAD_PURCHASE"

// CreateCheckoutSession opens an external payment session for a lead
// purchase and records the pending purchase row. It never mutates the
// ServiceRequest itself; only the webhook path does that, so client-side
// "I paid" claims are never trusted.
func (s *DefaultLeadService) CreateCheckoutSession(ctx context.Context, providerAuthID, requestID string) (*CheckoutResult, error) {
	provider, err := s.resolveProvider(ctx, providerAuthID)
	if err != nil {
		return nil, err
	}
	req, err := s.resolveRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status == models.RequestExpired || req.Status == models.RequestCancelled {
		return nil, NewConflictError("request is expired or cancelled")
	}

	existing, err := s.PurchaseRepo.FindCompleted(ctx, provider.ID, req.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError("lead already purchased by this provider")
	}

	completed, err := s.PurchaseRepo.CountCompleted(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if req.MaxProviders > 0 && completed >= int64(req.MaxProviders) {
		return nil, NewSoldOutError("maximum providers reached for this lead")
	}

	price, err := s.CalculateLeadPrice(ctx, req)
	if err != nil {
		return nil, err
	}

	return s.openCheckout(ctx, provider, req, price)
}

// openCheckout performs the shared session-creation tail for both the accept
// path and direct purchase initiation.
func (s *DefaultLeadService) openCheckout(ctx context.Context, provider *models.Provider, req *models.ServiceRequest, price *LeadPrice) (*CheckoutResult, error) {
	// A provider retrying an abandoned checkout supersedes the previous
	// attempt, keeping at most one live purchase per (provider, request).
	// The old session is expired at the processor first so its payment link
	// cannot be paid after the purchase row is marked FAILED; if expiry is
	// refused the session may be mid-payment, so the retry is turned away
	// and the webhook is left to settle the pending purchase.
	if pending, err := s.PurchaseRepo.FindPending(ctx, provider.ID, req.ID); err != nil {
		return nil, err
	} else if pending != nil {
		if err := s.Checkout.ExpireCheckoutSession(ctx, pending.CheckoutSession); err != nil {
			s.Logger.Warn("could not expire superseded checkout session",
				zap.String("checkoutSession", pending.CheckoutSession),
				zap.String("providerId", provider.ID), zap.Error(err))
			return nil, NewConflictError("a previous checkout for this lead is still settling, try again shortly")
		}
		if err := s.PurchaseRepo.MarkFailed(ctx, pending.ID, "superseded by a new checkout session"); err != nil {
			return nil, err
		}
	}

	metadata := map[string]string{
		"requestId":        req.RequestID,
		"serviceRequestId": req.ID,
		"providerId":       provider.ID,
		"type":             purchaseType,
	}
	sess, err := s.Checkout.CreateCheckoutSession(ctx, payment.CheckoutParams{
		Amount:      price.Amount,
		Currency:    price.Currency,
		Description: fmt.Sprintf("Lead %s (%s)", req.RequestID, req.Subcategory),
		Metadata:    metadata,
		SuccessURL:  s.SuccessURL,
		CancelURL:   s.CancelURL,
	})
	if err != nil {
		s.Logger.Error("checkout session creation failed",
			zap.String("requestId", req.ID), zap.String("providerId", provider.ID), zap.Error(err))
		return nil, NewProcessorError("payment processor rejected the checkout session")
	}

	now := time.Now().UTC()
	purchase := &models.LeadPurchase{
		ID:               uuid.New().String(),
		ProviderID:       provider.ID,
		ServiceRequestID: req.ID,
		Amount:           price.Amount,
		Currency:         price.Currency,
		CheckoutSession:  sess.ID,
		Status:           models.PurchasePending,
		Metadata:         metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.PurchaseRepo.Create(ctx, purchase); err != nil {
		return nil, err
	}

	return &CheckoutResult{
		PurchaseID:  purchase.ID,
		SessionID:   sess.ID,
		CheckoutURL: sess.URL,
		Amount:      price.Amount,
		Currency:    price.Currency,
	}, nil
}
