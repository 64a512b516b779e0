package payment

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"leadmarket/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// passthroughTxn runs the transaction body directly; the reconciler's logic
// is what's under test, not session plumbing.
type passthroughTxn struct{}

func (passthroughTxn) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakePurchases struct {
	mu        sync.Mutex
	purchases map[string]*models.LeadPurchase
}

func newFakePurchases(purchases ...*models.LeadPurchase) *fakePurchases {
	f := &fakePurchases{purchases: make(map[string]*models.LeadPurchase)}
	for _, p := range purchases {
		cp := *p
		f.purchases[p.ID] = &cp
	}
	return f
}

func (f *fakePurchases) Create(ctx context.Context, purchase *models.LeadPurchase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *purchase
	f.purchases[purchase.ID] = &cp
	return nil
}

func (f *fakePurchases) GetByCheckoutSession(ctx context.Context, sessionID string) (*models.LeadPurchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.purchases {
		if p.CheckoutSession == sessionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePurchases) GetByPaymentIntent(ctx context.Context, intentID string) (*models.LeadPurchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if intentID == "" {
		return nil, nil
	}
	for _, p := range f.purchases {
		if p.PaymentIntent == intentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePurchases) FindCompleted(ctx context.Context, providerID, serviceRequestID string) (*models.LeadPurchase, error) {
	return f.find(providerID, serviceRequestID, models.PurchaseCompleted), nil
}

func (f *fakePurchases) FindPending(ctx context.Context, providerID, serviceRequestID string) (*models.LeadPurchase, error) {
	return f.find(providerID, serviceRequestID, models.PurchasePending), nil
}

func (f *fakePurchases) find(providerID, serviceRequestID string, status models.PurchaseStatus) *models.LeadPurchase {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.purchases {
		if p.ProviderID == providerID && p.ServiceRequestID == serviceRequestID && p.Status == status {
			cp := *p
			return &cp
		}
	}
	return nil
}

func (f *fakePurchases) CountCompleted(ctx context.Context, serviceRequestID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.purchases {
		if p.ServiceRequestID == serviceRequestID && p.Status == models.PurchaseCompleted {
			n++
		}
	}
	return n, nil
}

func (f *fakePurchases) MarkCompleted(ctx context.Context, purchaseID, paymentIntentID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.purchases[purchaseID]
	if !ok || p.Status != models.PurchasePending {
		return false, nil
	}
	p.Status = models.PurchaseCompleted
	p.PaymentIntent = paymentIntentID
	p.PurchasedAt = &at
	return true, nil
}

func (f *fakePurchases) MarkFailed(ctx context.Context, purchaseID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.purchases[purchaseID]; ok {
		p.Status = models.PurchaseFailed
		p.FailureReason = reason
	}
	return nil
}

// fakeRequests implements only the methods the reconciler touches; the rest
// report "no match".
type fakeRequests struct {
	mu       sync.Mutex
	requests map[string]*models.ServiceRequest
}

func newFakeRequests(reqs ...*models.ServiceRequest) *fakeRequests {
	f := &fakeRequests{requests: make(map[string]*models.ServiceRequest)}
	for _, r := range reqs {
		cp := *r
		f.requests[r.ID] = &cp
	}
	return f
}

func (f *fakeRequests) Create(ctx context.Context, req *models.ServiceRequest) error { return nil }
func (f *fakeRequests) GetByID(ctx context.Context, id string) (*models.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.requests[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}
func (f *fakeRequests) GetByRequestID(ctx context.Context, requestID string) (*models.ServiceRequest, error) {
	return nil, nil
}
func (f *fakeRequests) CountAll(ctx context.Context) (int64, error) { return 0, nil }
func (f *fakeRequests) FindPendingByCategories(ctx context.Context, categoryIDs []string, excludeProviderID string) ([]models.ServiceRequest, error) {
	return nil, nil
}
func (f *fakeRequests) FindByCandidate(ctx context.Context, providerID string) ([]models.ServiceRequest, error) {
	return nil, nil
}
func (f *fakeRequests) AppendCandidate(ctx context.Context, id string, cand models.Candidate) (bool, error) {
	return false, nil
}
func (f *fakeRequests) MarkCandidateDeclined(ctx context.Context, id, providerID string, at time.Time) (bool, error) {
	return false, nil
}
func (f *fakeRequests) OpenHold(ctx context.Context, id, providerID string, now, holdUntil time.Time) (bool, error) {
	return false, nil
}
func (f *fakeRequests) ReleaseHold(ctx context.Context, id, providerID string) (bool, error) {
	return false, nil
}
func (f *fakeRequests) ClearHold(ctx context.Context, id, providerID string) (bool, error) {
	return false, nil
}
func (f *fakeRequests) AssignProvider(ctx context.Context, id, providerID string, at time.Time) (bool, error) {
	return false, nil
}

func (f *fakeRequests) AssignIfUnassigned(ctx context.Context, id, providerID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.AssignedProvider != "" {
		return false, nil
	}
	req.Status = models.RequestInProgress
	req.AssignedProvider = providerID
	return true, nil
}

func (f *fakeRequests) RecordPurchase(ctx context.Context, id string, rec models.PurchaseRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req, ok := f.requests[id]; ok {
		req.PurchasedBy = append(req.PurchasedBy, rec)
	}
	return nil
}

func (f *fakeRequests) FinalizeCandidatePurchase(ctx context.Context, id, providerID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil
	}
	if cand := req.Candidate(providerID); cand != nil {
		cand.Status = models.CandidateAccepted
		cand.PaidAt = &at
	}
	if req.PaymentHoldBy == providerID {
		req.PaymentHoldBy = ""
		req.PaymentHoldUntil = nil
	}
	return nil
}

func (f *fakeRequests) MarkCompleted(ctx context.Context, id, providerID string, at time.Time) (bool, error) {
	return false, nil
}
func (f *fakeRequests) MarkReviewed(ctx context.Context, id string) (bool, error) { return false, nil }
func (f *fakeRequests) SetStatus(ctx context.Context, id string, status models.RequestStatus) error {
	return nil
}
func (f *fakeRequests) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeRequests) AutoApproveCompleted(ctx context.Context, cutoff, at time.Time) (int64, error) {
	return 0, nil
}

type fakeProviders struct {
	mu    sync.Mutex
	stats map[string]*models.ProviderStats
}

func newFakeProviders() *fakeProviders {
	return &fakeProviders{stats: make(map[string]*models.ProviderStats)}
}

func (f *fakeProviders) Create(ctx context.Context, provider *models.Provider) error { return nil }
func (f *fakeProviders) GetByID(ctx context.Context, id string) (*models.Provider, error) {
	return nil, nil
}
func (f *fakeProviders) GetByAuthID(ctx context.Context, authID string) (*models.Provider, error) {
	return nil, nil
}
func (f *fakeProviders) FindEligible(ctx context.Context, categoryID string) ([]models.Provider, error) {
	return nil, nil
}
func (f *fakeProviders) StagePendingUpdates(ctx context.Context, id string, updates *models.PendingUpdates) error {
	return nil
}
func (f *fakeProviders) ApplyPendingUpdates(ctx context.Context, id string) (*models.Provider, error) {
	return nil, nil
}
func (f *fakeProviders) SetVerified(ctx context.Context, id string, verified bool) error { return nil }

func (f *fakeProviders) IncrementPurchaseStats(ctx context.Context, id string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stats[id]
	if !ok {
		s = &models.ProviderStats{}
		f.stats[id] = s
	}
	s.TotalSpent += amount
	s.LeadsPurchased++
	return nil
}

func (f *fakeProviders) IncrementJobsCompleted(ctx context.Context, id string) error { return nil }
func (f *fakeProviders) AppendNotification(ctx context.Context, id string, notif models.Notification) error {
	return nil
}

func checkoutCompletedEvent(t *testing.T, sessionID, intentID string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":             sessionID,
		"payment_intent": map[string]interface{}{"id": intentID},
	})
	require.NoError(t, err)
	return stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventType(EventCheckoutCompleted),
		Data: &stripe.EventData{Raw: raw},
	}
}

func intentFailedEvent(t *testing.T, intentID, providerID, requestID, msg string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id": intentID,
		"metadata": map[string]string{
			"providerId":       providerID,
			"serviceRequestId": requestID,
		},
		"last_payment_error": map[string]interface{}{"message": msg},
	})
	require.NoError(t, err)
	return stripe.Event{
		ID:   "evt_2",
		Type: stripe.EventType(EventPaymentIntentFailed),
		Data: &stripe.EventData{Raw: raw},
	}
}

// recordingNotifier captures pushes so tests can assert on what, if
// anything, the provider was told.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(ctx context.Context, title, message, recipientID string, meta map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, title+": "+message)
	return nil
}

type webhookFixture struct {
	reconciler *Reconciler
	requests   *fakeRequests
	purchases  *fakePurchases
	providers  *fakeProviders
}

func newWebhookFixture(t *testing.T, req *models.ServiceRequest, purchase *models.LeadPurchase) *webhookFixture {
	t.Helper()
	requests := newFakeRequests(req)
	purchases := newFakePurchases(purchase)
	providers := newFakeProviders()
	reconciler, err := NewReconciler(requests, purchases, providers, passthroughTxn{}, nil, zap.NewNop())
	require.NoError(t, err)
	return &webhookFixture{reconciler: reconciler, requests: requests, purchases: purchases, providers: providers}
}

func pendingPurchase() *models.LeadPurchase {
	return &models.LeadPurchase{
		ID:               "pur-1",
		ProviderID:       "p1",
		ServiceRequestID: "r1",
		Amount:           12900,
		Currency:         "USD",
		CheckoutSession:  "cs_test_0001",
		Status:           models.PurchasePending,
	}
}

func heldRequest() *models.ServiceRequest {
	until := time.Now().UTC().Add(4 * time.Minute)
	return &models.ServiceRequest{
		ID:        "r1",
		RequestID: "REQ-000001",
		Status:    models.RequestPending,
		PotentialProviders: []models.Candidate{
			{ProviderID: "p1", Status: models.CandidateAwaitingPayment},
		},
		PaymentHoldBy:    "p1",
		PaymentHoldUntil: &until,
		MaxProviders:     3,
	}
}

func TestCheckoutCompletedPromotesEverything(t *testing.T) {
	f := newWebhookFixture(t, heldRequest(), pendingPurchase())

	err := f.reconciler.HandleEvent(context.Background(), checkoutCompletedEvent(t, "cs_test_0001", "pi_1"))
	require.NoError(t, err)

	purchase := f.purchases.purchases["pur-1"]
	assert.Equal(t, models.PurchaseCompleted, purchase.Status)
	assert.Equal(t, "pi_1", purchase.PaymentIntent)

	req := f.requests.requests["r1"]
	assert.Equal(t, "p1", req.AssignedProvider)
	assert.Equal(t, models.RequestInProgress, req.Status)
	assert.Empty(t, req.PaymentHoldBy)
	require.Len(t, req.PurchasedBy, 1)
	assert.Equal(t, "pur-1", req.PurchasedBy[0].PurchaseID)
	assert.Equal(t, models.CandidateAccepted, req.Candidate("p1").Status)

	stats := f.providers.stats["p1"]
	require.NotNil(t, stats)
	assert.Equal(t, int64(12900), stats.TotalSpent)
	assert.Equal(t, 1, stats.LeadsPurchased)
}

func TestCheckoutCompletedReplayIsNoop(t *testing.T) {
	f := newWebhookFixture(t, heldRequest(), pendingPurchase())
	event := checkoutCompletedEvent(t, "cs_test_0001", "pi_1")

	require.NoError(t, f.reconciler.HandleEvent(context.Background(), event))
	require.NoError(t, f.reconciler.HandleEvent(context.Background(), event))
	require.NoError(t, f.reconciler.HandleEvent(context.Background(), event))

	req := f.requests.requests["r1"]
	assert.Len(t, req.PurchasedBy, 1, "replays must not re-record the purchase")

	stats := f.providers.stats["p1"]
	assert.Equal(t, 1, stats.LeadsPurchased, "replays must not double-count stats")
	assert.Equal(t, int64(12900), stats.TotalSpent)
}

func TestCheckoutCompletedDoesNotStealAssignment(t *testing.T) {
	req := heldRequest()
	req.AssignedProvider = "p2"
	req.Status = models.RequestInProgress
	req.PaymentHoldBy = ""
	req.PaymentHoldUntil = nil
	f := newWebhookFixture(t, req, pendingPurchase())

	err := f.reconciler.HandleEvent(context.Background(), checkoutCompletedEvent(t, "cs_test_0001", "pi_1"))
	require.NoError(t, err)

	// The purchase still completes and is recorded for audit.
	assert.Equal(t, models.PurchaseCompleted, f.purchases.purchases["pur-1"].Status)
	assert.Len(t, f.requests.requests["r1"].PurchasedBy, 1)

	// But the existing assignment is never overwritten.
	assert.Equal(t, "p2", f.requests.requests["r1"].AssignedProvider)
}

func TestCheckoutCompletedUnknownSessionIgnored(t *testing.T) {
	f := newWebhookFixture(t, heldRequest(), pendingPurchase())

	err := f.reconciler.HandleEvent(context.Background(), checkoutCompletedEvent(t, "cs_unknown", "pi_1"))
	require.NoError(t, err)
	assert.Equal(t, models.PurchasePending, f.purchases.purchases["pur-1"].Status)
}

func TestCheckoutCompletedNotifiesOnlyWhenFinalized(t *testing.T) {
	notifier := &recordingNotifier{}
	requests := newFakeRequests(heldRequest())
	purchases := newFakePurchases(pendingPurchase())
	reconciler, err := NewReconciler(requests, purchases, newFakeProviders(), passthroughTxn{}, notifier, zap.NewNop())
	require.NoError(t, err)

	event := checkoutCompletedEvent(t, "cs_test_0001", "pi_1")
	require.NoError(t, reconciler.HandleEvent(context.Background(), event))
	require.Len(t, notifier.messages, 1)

	// Replays never re-notify.
	require.NoError(t, reconciler.HandleEvent(context.Background(), event))
	assert.Len(t, notifier.messages, 1)
}

func TestCheckoutCompletedSupersededPurchaseNotNotified(t *testing.T) {
	purchase := pendingPurchase()
	purchase.Status = models.PurchaseFailed
	purchase.FailureReason = "superseded by a new checkout session"

	notifier := &recordingNotifier{}
	requests := newFakeRequests(heldRequest())
	purchases := newFakePurchases(purchase)
	reconciler, err := NewReconciler(requests, purchases, newFakeProviders(), passthroughTxn{}, notifier, zap.NewNop())
	require.NoError(t, err)

	err = reconciler.HandleEvent(context.Background(), checkoutCompletedEvent(t, "cs_test_0001", "pi_1"))
	require.NoError(t, err)

	// Nothing was finalized, so the provider hears nothing.
	assert.Equal(t, models.PurchaseFailed, purchases.purchases["pur-1"].Status)
	assert.Empty(t, requests.requests["r1"].PurchasedBy)
	assert.Empty(t, requests.requests["r1"].AssignedProvider)
	assert.Empty(t, notifier.messages)
}

func TestPaymentIntentFailedMarksPurchase(t *testing.T) {
	f := newWebhookFixture(t, heldRequest(), pendingPurchase())

	err := f.reconciler.HandleEvent(context.Background(),
		intentFailedEvent(t, "pi_9", "p1", "r1", "card declined"))
	require.NoError(t, err)

	purchase := f.purchases.purchases["pur-1"]
	assert.Equal(t, models.PurchaseFailed, purchase.Status)
	assert.Equal(t, "card declined", purchase.FailureReason)
}

func TestUnrecognizedEventIgnored(t *testing.T) {
	f := newWebhookFixture(t, heldRequest(), pendingPurchase())

	err := f.reconciler.HandleEvent(context.Background(), stripe.Event{
		ID:   "evt_3",
		Type: stripe.EventType("customer.created"),
		Data: &stripe.EventData{Raw: []byte("{}")},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PurchasePending, f.purchases.purchases["pur-1"].Status)
}
