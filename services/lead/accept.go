package lead

import (
	"context"
	"time"

	"leadmarket/models"

	"go.uber.org/zap"
)

// AcceptLead processes a provider's acceptance of a lead. A free lead (or a
// lead the provider already purchased) assigns immediately; a paid lead opens
// a payment hold and hands off to checkout. The aggregate status stays
// PENDING while the hold is open; only the candidate sub-status and the hold
// fields change until the payment webhook lands.
func (s *DefaultLeadService) AcceptLead(ctx context.Context, providerAuthID, requestID string) (*AcceptResult, error) {
	provider, err := s.resolveProvider(ctx, providerAuthID)
	if err != nil {
		return nil, err
	}
	req, err := s.resolveRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	req, err = s.expireHoldIfStale(ctx, req, now)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case models.RequestExpired, models.RequestCancelled, models.RequestCompleted, models.RequestApproved:
		return nil, NewConflictError("request is no longer available")
	}
	if req.AssignedProvider != "" {
		return nil, NewConflictError("request is already assigned to another provider")
	}

	cand := req.Candidate(provider.ID)
	if cand == nil {
		return nil, NewValidationError("provider is not listed for this request")
	}
	if cand.Status == models.CandidateDeclined {
		return nil, NewConflictError("request was already declined by this provider")
	}

	if IsHoldActive(req, now) && req.PaymentHoldBy != provider.ID {
		return nil, NewConflictError("request is in payment process by another provider")
	}

	price, err := s.CalculateLeadPrice(ctx, req)
	if err != nil {
		return nil, err
	}

	// Free lead, or the provider already purchased this lead earlier: assign
	// outright. The conditional write is the race arbiter; the loser of two
	// simultaneous accepts sees no match and gets a conflict.
	if price.Amount == 0 || req.HasPurchase(provider.ID) {
		ok, err := s.RequestRepo.AssignProvider(ctx, req.ID, provider.ID, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, NewConflictError("request was just assigned to another provider")
		}
		s.Logger.Info("lead assigned",
			zap.String("requestId", req.ID), zap.String("providerId", provider.ID))
		return &AcceptResult{Assigned: true, Price: price}, nil
	}

	// Paid lead: open the payment lease, then hand off to checkout.
	holdUntil := now.Add(HoldWindow)
	ok, err := s.RequestRepo.OpenHold(ctx, req.ID, provider.ID, now, holdUntil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewConflictError("request is in payment process by another provider")
	}

	checkout, err := s.openCheckout(ctx, provider, req, price)
	if err != nil {
		// The hold would expire on its own, but release eagerly so the slot
		// reopens for other providers right away.
		if _, releaseErr := s.RequestRepo.ReleaseHold(ctx, req.ID, provider.ID); releaseErr != nil {
			s.Logger.Warn("failed to release hold after checkout failure",
				zap.String("requestId", req.ID), zap.Error(releaseErr))
		}
		return nil, err
	}

	s.Logger.Info("payment hold opened",
		zap.String("requestId", req.ID),
		zap.String("providerId", provider.ID),
		zap.Time("holdUntil", holdUntil))

	return &AcceptResult{
		Assigned:      false,
		CheckoutURL:   checkout.CheckoutURL,
		HoldExpiresAt: &holdUntil,
		Price:         price,
	}, nil
}

// DeclineLead marks the provider's candidacy DECLINED. When the decliner
// owns the current hold, the hold is released as well; the aggregate reverts
// to PENDING only if no assignment exists yet.
func (s *DefaultLeadService) DeclineLead(ctx context.Context, providerAuthID, requestID string) error {
	provider, err := s.resolveProvider(ctx, providerAuthID)
	if err != nil {
		return err
	}
	req, err := s.resolveRequest(ctx, requestID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	req, err = s.expireHoldIfStale(ctx, req, now)
	if err != nil {
		return err
	}

	cand := req.Candidate(provider.ID)
	if cand == nil {
		return NewValidationError("provider is not listed for this request")
	}
	if cand.Status == models.CandidateAccepted || cand.Status == models.CandidatePaid {
		return NewConflictError("an accepted lead cannot be declined")
	}

	ok, err := s.RequestRepo.MarkCandidateDeclined(ctx, req.ID, provider.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return NewConflictError("request can no longer be declined")
	}

	if req.PaymentHoldBy == provider.ID {
		if _, err := s.RequestRepo.ClearHold(ctx, req.ID, provider.ID); err != nil {
			return err
		}
	}

	s.Logger.Info("lead declined",
		zap.String("requestId", req.ID), zap.String("providerId", provider.ID))
	return nil
}
