package lead

import (
	"context"
	"time"

	"leadmarket/models"

	"go.uber.org/zap"
)

// HoldWindow is the fixed duration of a payment hold.
const HoldWindow = 5 * time.Minute

// IsHoldActive reports whether the request carries a live payment lease:
// the deadline is set and in the future and no assignment happened. A hold
// on an assigned request is stale and void regardless of timestamp.
func IsHoldActive(req *models.ServiceRequest, now time.Time) bool {
	if req.AssignedProvider != "" {
		return false
	}
	if req.PaymentHoldBy == "" || req.PaymentHoldUntil == nil {
		return false
	}
	return req.PaymentHoldUntil.After(now)
}

// expireHoldIfStale lazily cleans up a hold whose deadline passed without an
// assignment, reverting the held candidate and the aggregate to PENDING.
// Invoked at the head of every operation that reads or writes hold state;
// there is no timer, only the scheduler's coarse sweep as a backstop. Safe to
// run twice: the conditional release matches nothing the second time. Returns
// the refreshed request when a release happened.
func (s *DefaultLeadService) expireHoldIfStale(ctx context.Context, req *models.ServiceRequest, now time.Time) (*models.ServiceRequest, error) {
	if req.AssignedProvider != "" || req.PaymentHoldBy == "" || req.PaymentHoldUntil == nil {
		return req, nil
	}
	if req.PaymentHoldUntil.After(now) {
		return req, nil
	}

	released, err := s.RequestRepo.ReleaseHold(ctx, req.ID, req.PaymentHoldBy)
	if err != nil {
		return nil, err
	}
	if !released {
		// Lost to a concurrent cleanup or a finalized payment; re-read either way.
		s.Logger.Debug("stale hold already released elsewhere", zap.String("requestId", req.ID))
	}
	refreshed, err := s.RequestRepo.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if refreshed == nil {
		return nil, NewNotFoundError("service request not found")
	}
	return refreshed, nil
}
