package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leadmarket/database/repository"
	providerRepo "leadmarket/database/repository/provider"
	purchaseRepo "leadmarket/database/repository/purchase"
	requestRepo "leadmarket/database/repository/request"
	"leadmarket/models"
	"leadmarket/services/notification"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// Recognized webhook event types.
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventCheckoutCompleted      = "checkout.session.completed"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
)

// Reconciler brings internal purchase and request state in line with
// authoritative payment events. Processing is idempotent per purchase and
// all writes for one success event share a single transaction; a failure
// anywhere aborts the whole event so the sender's redelivery can retry it.
type Reconciler struct {
	Requests  requestRepo.RequestRepository
	Purchases purchaseRepo.PurchaseRepository
	Providers providerRepo.ProviderRepository
	Txn       repository.TxnManager
	Notifier  notification.NotificationService
	Logger    *zap.Logger
}

func NewReconciler(
	requests requestRepo.RequestRepository,
	purchases purchaseRepo.PurchaseRepository,
	providers providerRepo.ProviderRepository,
	txn repository.TxnManager,
	notifier notification.NotificationService,
	logger *zap.Logger,
) (*Reconciler, error) {
	if requests == nil || purchases == nil || providers == nil || txn == nil || logger == nil {
		return nil, fmt.Errorf("reconciler initialization error: one or more dependencies are nil")
	}
	return &Reconciler{
		Requests:  requests,
		Purchases: purchases,
		Providers: providers,
		Txn:       txn,
		Notifier:  notifier,
		Logger:    logger,
	}, nil
}

// HandleEvent processes one verified payment event. Unrecognized types are
// logged and ignored.
func (r *Reconciler) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch string(event.Type) {
	case EventPaymentIntentSucceeded:
		return r.handleIntentSucceeded(ctx, event)
	case EventCheckoutCompleted:
		return r.handleCheckoutCompleted(ctx, event)
	case EventPaymentIntentFailed:
		return r.handleIntentFailed(ctx, event)
	default:
		r.Logger.Info("ignoring unrecognized webhook event", zap.String("type", string(event.Type)))
		return nil
	}
}

func (r *Reconciler) handleIntentSucceeded(ctx context.Context, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("failed to parse payment intent event: %w", err)
	}

	purchase, err := r.resolveByIntent(ctx, &intent)
	if err != nil {
		return err
	}
	if purchase == nil {
		r.Logger.Info("no purchase for payment intent, ignoring",
			zap.String("paymentIntent", intent.ID))
		return nil
	}
	return r.finalizeSuccess(ctx, purchase, intent.ID)
}

func (r *Reconciler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to parse checkout session event: %w", err)
	}

	purchase, err := r.Purchases.GetByCheckoutSession(ctx, sess.ID)
	if err != nil {
		return err
	}
	if purchase == nil {
		r.Logger.Info("no purchase for checkout session, ignoring",
			zap.String("checkoutSession", sess.ID))
		return nil
	}

	intentID := ""
	if sess.PaymentIntent != nil {
		intentID = sess.PaymentIntent.ID
	}
	return r.finalizeSuccess(ctx, purchase, intentID)
}

func (r *Reconciler) handleIntentFailed(ctx context.Context, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("failed to parse payment intent event: %w", err)
	}

	purchase, err := r.resolveByIntent(ctx, &intent)
	if err != nil {
		return err
	}
	if purchase == nil || purchase.Status != models.PurchasePending {
		return nil
	}

	reason := "payment failed"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		reason = intent.LastPaymentError.Msg
	}
	return r.Purchases.MarkFailed(ctx, purchase.ID, reason)
}

// resolveByIntent finds the purchase for an intent-level event, first by the
// recorded intent id, then through the metadata stamped on the intent at
// session creation.
func (r *Reconciler) resolveByIntent(ctx context.Context, intent *stripe.PaymentIntent) (*models.LeadPurchase, error) {
	purchase, err := r.Purchases.GetByPaymentIntent(ctx, intent.ID)
	if err != nil || purchase != nil {
		return purchase, err
	}

	providerID := intent.Metadata["providerId"]
	requestID := intent.Metadata["serviceRequestId"]
	if providerID == "" || requestID == "" {
		return nil, nil
	}
	return r.Purchases.FindPending(ctx, providerID, requestID)
}

// finalizeSuccess completes the purchase and promotes request and provider
// state. The conditional PENDING to COMPLETED flip is the idempotency pivot:
// a replayed event flips nothing and performs no further writes, so stats
// are never double-incremented.
func (r *Reconciler) finalizeSuccess(ctx context.Context, purchase *models.LeadPurchase, intentID string) error {
	if purchase.Status == models.PurchaseCompleted {
		r.Logger.Debug("purchase already completed, replay ignored", zap.String("purchase", purchase.ID))
		return nil
	}

	now := time.Now().UTC()
	assigned := false
	flipped := false
	err := r.Txn.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		flipped, err = r.Purchases.MarkCompleted(txCtx, purchase.ID, intentID, now)
		if err != nil {
			return err
		}
		if !flipped {
			// A concurrent delivery won the flip, or the purchase was
			// superseded after the session was paid; nothing left to do.
			return nil
		}

		rec := models.PurchaseRecord{
			ProviderID:  purchase.ProviderID,
			PurchaseID:  purchase.ID,
			PurchasedAt: now,
		}
		if err := r.Requests.RecordPurchase(txCtx, purchase.ServiceRequestID, rec); err != nil {
			return err
		}
		if err := r.Requests.FinalizeCandidatePurchase(txCtx, purchase.ServiceRequestID, purchase.ProviderID, now); err != nil {
			return err
		}

		// The assignment is single-exclusive: if another provider already
		// holds it (their hold expired and the slot moved on), the purchase
		// still completes but the assignment is left untouched.
		assigned, err = r.Requests.AssignIfUnassigned(txCtx, purchase.ServiceRequestID, purchase.ProviderID, now)
		if err != nil {
			return err
		}
		if !assigned {
			r.Logger.Warn("purchase completed for an already-assigned request",
				zap.String("purchase", purchase.ID),
				zap.String("provider", purchase.ProviderID),
				zap.String("request", purchase.ServiceRequestID))
		}

		return r.Providers.IncrementPurchaseStats(txCtx, purchase.ProviderID, purchase.Amount)
	})
	if err != nil {
		return fmt.Errorf("failed to reconcile purchase %s: %w", purchase.ID, err)
	}

	if !flipped {
		r.Logger.Info("purchase was not flipped to COMPLETED, skipping notification",
			zap.String("purchase", purchase.ID))
		return nil
	}

	// Best-effort: a failed notification never rolls back the purchase.
	if r.Notifier != nil {
		title := "Lead purchased"
		message := "Your lead purchase was successful. The customer's contact details are now available."
		if notifyErr := r.Notifier.Notify(ctx, title, message, purchase.ProviderID, map[string]interface{}{
			"purchaseId":       purchase.ID,
			"serviceRequestId": purchase.ServiceRequestID,
			"assigned":         assigned,
		}); notifyErr != nil {
			r.Logger.Warn("failed to notify provider of completed purchase",
				zap.String("provider", purchase.ProviderID), zap.Error(notifyErr))
		}
	}
	return nil
}
