package lead

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"leadmarket/models"
	"leadmarket/services/payment"
)

// memRequestRepo is an in-memory RequestRepository mirroring the conditional
// update semantics of the Mongo implementation.
type memRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*models.ServiceRequest
}

func newMemRequestRepo(reqs ...*models.ServiceRequest) *memRequestRepo {
	m := &memRequestRepo{requests: make(map[string]*models.ServiceRequest)}
	for _, r := range reqs {
		cp := *r
		m.requests[r.ID] = &cp
	}
	return m
}

func (m *memRequestRepo) get(id string) *models.ServiceRequest {
	return m.requests[id]
}

func (m *memRequestRepo) Create(ctx context.Context, req *models.ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *memRequestRepo) GetByID(ctx context.Context, id string) (*models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	cp.PotentialProviders = append([]models.Candidate(nil), req.PotentialProviders...)
	return &cp, nil
}

func (m *memRequestRepo) GetByRequestID(ctx context.Context, requestID string) (*models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range m.requests {
		if req.RequestID == requestID {
			cp := *req
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRequestRepo) CountAll(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.requests)), nil
}

func (m *memRequestRepo) FindPendingByCategories(ctx context.Context, categoryIDs []string, excludeProviderID string) ([]models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ServiceRequest
	for _, req := range m.requests {
		if req.Status != models.RequestPending && req.Status != models.RequestMatched {
			continue
		}
		if req.Candidate(excludeProviderID) != nil {
			continue
		}
		for _, cat := range categoryIDs {
			if req.CategoryID == cat {
				out = append(out, *req)
				break
			}
		}
	}
	return out, nil
}

func (m *memRequestRepo) FindByCandidate(ctx context.Context, providerID string) ([]models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ServiceRequest
	for _, req := range m.requests {
		if req.Candidate(providerID) != nil {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (m *memRequestRepo) AppendCandidate(ctx context.Context, id string, cand models.Candidate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Candidate(cand.ProviderID) != nil {
		return false, nil
	}
	req.PotentialProviders = append(req.PotentialProviders, cand)
	return true, nil
}

func (m *memRequestRepo) MarkCandidateDeclined(ctx context.Context, id, providerID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return false, nil
	}
	cand := req.Candidate(providerID)
	if cand == nil || (cand.Status != models.CandidatePending && cand.Status != models.CandidateAwaitingPayment) {
		return false, nil
	}
	cand.Status = models.CandidateDeclined
	cand.DeclinedAt = &at
	cand.PaymentWindowStart = nil
	return true, nil
}

func (m *memRequestRepo) OpenHold(ctx context.Context, id, providerID string, now, holdUntil time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Status != models.RequestPending || req.AssignedProvider != "" {
		return false, nil
	}
	cand := req.Candidate(providerID)
	if cand == nil || (cand.Status != models.CandidatePending && cand.Status != models.CandidateAwaitingPayment) {
		return false, nil
	}
	holdFree := req.PaymentHoldUntil == nil || req.PaymentHoldUntil.Before(now) || req.PaymentHoldBy == providerID
	if !holdFree {
		return false, nil
	}
	req.PaymentHoldBy = providerID
	req.PaymentHoldUntil = &holdUntil
	cand.Status = models.CandidateAwaitingPayment
	cand.PaymentWindowStart = &now
	return true, nil
}

func (m *memRequestRepo) ReleaseHold(ctx context.Context, id, providerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.PaymentHoldBy != providerID || req.AssignedProvider != "" {
		return false, nil
	}
	cand := req.Candidate(providerID)
	if cand == nil {
		return false, nil
	}
	req.Status = models.RequestPending
	req.PaymentHoldBy = ""
	req.PaymentHoldUntil = nil
	cand.Status = models.CandidatePending
	cand.PaymentWindowStart = nil
	return true, nil
}

func (m *memRequestRepo) ClearHold(ctx context.Context, id, providerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.PaymentHoldBy != providerID || req.AssignedProvider != "" {
		return false, nil
	}
	req.Status = models.RequestPending
	req.PaymentHoldBy = ""
	req.PaymentHoldUntil = nil
	return true, nil
}

func (m *memRequestRepo) AssignProvider(ctx context.Context, id, providerID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.AssignedProvider != "" {
		return false, nil
	}
	if req.Status != models.RequestPending && req.Status != models.RequestMatched {
		return false, nil
	}
	cand := req.Candidate(providerID)
	if cand == nil {
		return false, nil
	}
	req.Status = models.RequestInProgress
	req.AssignedProvider = providerID
	req.PaymentHoldBy = ""
	req.PaymentHoldUntil = nil
	cand.Status = models.CandidateAccepted
	cand.AcceptedAt = &at
	return true, nil
}

func (m *memRequestRepo) AssignIfUnassigned(ctx context.Context, id, providerID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.AssignedProvider != "" {
		return false, nil
	}
	switch req.Status {
	case models.RequestPending, models.RequestMatched, models.RequestProcessing, models.RequestOnProcess:
	default:
		return false, nil
	}
	req.Status = models.RequestInProgress
	req.AssignedProvider = providerID
	return true, nil
}

func (m *memRequestRepo) RecordPurchase(ctx context.Context, id string, rec models.PurchaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req, ok := m.requests[id]; ok {
		req.PurchasedBy = append(req.PurchasedBy, rec)
	}
	return nil
}

func (m *memRequestRepo) FinalizeCandidatePurchase(ctx context.Context, id, providerID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil
	}
	if cand := req.Candidate(providerID); cand != nil {
		cand.Status = models.CandidateAccepted
		cand.AcceptedAt = &at
		cand.PaidAt = &at
	}
	if req.PaymentHoldBy == providerID {
		req.PaymentHoldBy = ""
		req.PaymentHoldUntil = nil
	}
	return nil
}

func (m *memRequestRepo) MarkCompleted(ctx context.Context, id, providerID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Status != models.RequestInProgress || req.AssignedProvider != providerID {
		return false, nil
	}
	req.Status = models.RequestCompleted
	req.CompletedAt = &at
	return true, nil
}

func (m *memRequestRepo) MarkReviewed(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Status != models.RequestCompleted || req.Reviewed {
		return false, nil
	}
	req.Reviewed = true
	return true, nil
}

func (m *memRequestRepo) SetStatus(ctx context.Context, id string, status models.RequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req, ok := m.requests[id]; ok {
		req.Status = status
	}
	return nil
}

func (m *memRequestRepo) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, req := range m.requests {
		if (req.Status == models.RequestPending || req.Status == models.RequestMatched) && req.CreatedAt.Before(cutoff) {
			req.Status = models.RequestExpired
			n++
		}
	}
	return n, nil
}

func (m *memRequestRepo) AutoApproveCompleted(ctx context.Context, cutoff, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, req := range m.requests {
		if req.Status == models.RequestCompleted && !req.Reviewed && req.UpdatedAt.Before(cutoff) {
			req.Status = models.RequestApproved
			req.AutoApprovedAt = &at
			n++
		}
	}
	return n, nil
}

// memPurchaseRepo is an in-memory PurchaseRepository.
type memPurchaseRepo struct {
	mu        sync.Mutex
	purchases map[string]*models.LeadPurchase
}

func newMemPurchaseRepo(purchases ...*models.LeadPurchase) *memPurchaseRepo {
	m := &memPurchaseRepo{purchases: make(map[string]*models.LeadPurchase)}
	for _, p := range purchases {
		cp := *p
		m.purchases[p.ID] = &cp
	}
	return m
}

func (m *memPurchaseRepo) Create(ctx context.Context, purchase *models.LeadPurchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *purchase
	m.purchases[purchase.ID] = &cp
	return nil
}

func (m *memPurchaseRepo) GetByCheckoutSession(ctx context.Context, sessionID string) (*models.LeadPurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		if p.CheckoutSession == sessionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memPurchaseRepo) GetByPaymentIntent(ctx context.Context, intentID string) (*models.LeadPurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		if p.PaymentIntent == intentID && intentID != "" {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memPurchaseRepo) FindCompleted(ctx context.Context, providerID, serviceRequestID string) (*models.LeadPurchase, error) {
	return m.findByStatus(providerID, serviceRequestID, models.PurchaseCompleted), nil
}

func (m *memPurchaseRepo) FindPending(ctx context.Context, providerID, serviceRequestID string) (*models.LeadPurchase, error) {
	return m.findByStatus(providerID, serviceRequestID, models.PurchasePending), nil
}

func (m *memPurchaseRepo) findByStatus(providerID, serviceRequestID string, status models.PurchaseStatus) *models.LeadPurchase {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		if p.ProviderID == providerID && p.ServiceRequestID == serviceRequestID && p.Status == status {
			cp := *p
			return &cp
		}
	}
	return nil
}

func (m *memPurchaseRepo) CountCompleted(ctx context.Context, serviceRequestID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.purchases {
		if p.ServiceRequestID == serviceRequestID && p.Status == models.PurchaseCompleted {
			n++
		}
	}
	return n, nil
}

func (m *memPurchaseRepo) MarkCompleted(ctx context.Context, purchaseID, paymentIntentID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[purchaseID]
	if !ok || p.Status != models.PurchasePending {
		return false, nil
	}
	p.Status = models.PurchaseCompleted
	p.PaymentIntent = paymentIntentID
	p.PurchasedAt = &at
	return true, nil
}

func (m *memPurchaseRepo) MarkFailed(ctx context.Context, purchaseID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.purchases[purchaseID]; ok {
		p.Status = models.PurchaseFailed
		p.FailureReason = reason
	}
	return nil
}

// memProviderRepo is an in-memory ProviderRepository.
type memProviderRepo struct {
	mu        sync.Mutex
	providers map[string]*models.Provider
}

func newMemProviderRepo(providers ...*models.Provider) *memProviderRepo {
	m := &memProviderRepo{providers: make(map[string]*models.Provider)}
	for _, p := range providers {
		cp := *p
		m.providers[p.ID] = &cp
	}
	return m
}

func (m *memProviderRepo) Create(ctx context.Context, provider *models.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *provider
	m.providers[provider.ID] = &cp
	return nil
}

func (m *memProviderRepo) GetByID(ctx context.Context, id string) (*models.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.providers[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memProviderRepo) GetByAuthID(ctx context.Context, authID string) (*models.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.providers {
		if p.AuthID == authID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memProviderRepo) FindEligible(ctx context.Context, categoryID string) ([]models.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Provider
	for _, p := range m.providers {
		if p.Verified && p.Active && p.ServesCategory(categoryID) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProviderRepo) StagePendingUpdates(ctx context.Context, id string, updates *models.PendingUpdates) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.providers[id]; ok {
		p.PendingUpdates = updates
	}
	return nil
}

func (m *memProviderRepo) ApplyPendingUpdates(ctx context.Context, id string) (*models.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, nil
	}
	if u := p.PendingUpdates; u != nil {
		if u.Categories != nil {
			p.Categories = u.Categories
		}
		if u.CoveredRadius != nil {
			p.CoveredRadius = *u.CoveredRadius
		}
		if u.WorkingHours != nil {
			p.WorkingHours = u.WorkingHours
		}
		p.PendingUpdates = nil
	}
	cp := *p
	return &cp, nil
}

func (m *memProviderRepo) SetVerified(ctx context.Context, id string, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.providers[id]; ok {
		p.Verified = verified
	}
	return nil
}

func (m *memProviderRepo) IncrementPurchaseStats(ctx context.Context, id string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.providers[id]; ok {
		p.Stats.TotalSpent += amount
		p.Stats.LeadsPurchased++
	}
	return nil
}

func (m *memProviderRepo) IncrementJobsCompleted(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.providers[id]; ok {
		p.Stats.JobsCompleted++
	}
	return nil
}

func (m *memProviderRepo) AppendNotification(ctx context.Context, id string, notif models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.providers[id]; ok {
		p.Notifications = append(p.Notifications, notif)
	}
	return nil
}

// memCategoryRepo is an in-memory CategoryRepository.
type memCategoryRepo struct {
	categories map[string]*models.Category
}

func newMemCategoryRepo(categories ...*models.Category) *memCategoryRepo {
	m := &memCategoryRepo{categories: make(map[string]*models.Category)}
	for _, c := range categories {
		cp := *c
		m.categories[c.ID] = &cp
	}
	return m
}

func (m *memCategoryRepo) GetByID(ctx context.Context, id string) (*models.Category, error) {
	if c, ok := m.categories[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *memCategoryRepo) ListActive(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	for _, c := range m.categories {
		if c.Active {
			out = append(out, *c)
		}
	}
	return out, nil
}

// stubCheckout records created and expired sessions and can be forced to
// fail either operation.
type stubCheckout struct {
	fail       bool
	failExpire bool
	sessions   []payment.CheckoutParams
	expired    []string
	counter    int
}

func (s *stubCheckout) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (*payment.CheckoutSession, error) {
	if s.fail {
		return nil, errors.New("processor unavailable")
	}
	s.counter++
	s.sessions = append(s.sessions, params)
	id := fmt.Sprintf("cs_test_%04d", s.counter)
	return &payment.CheckoutSession{ID: id, URL: "https://checkout.test/" + id}, nil
}

func (s *stubCheckout) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	if s.failExpire {
		return errors.New("session cannot be expired")
	}
	s.expired = append(s.expired, sessionID)
	return nil
}

// stubNotifier records notifications.
type stubNotifier struct {
	mu    sync.Mutex
	sent  []string
	metas []map[string]interface{}
}

func (s *stubNotifier) Notify(ctx context.Context, title, message, recipientID string, meta map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, recipientID)
	s.metas = append(s.metas, meta)
	return nil
}
