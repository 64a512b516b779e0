package payment

import (
	"context"
	"fmt"

	"leadmarket/config"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

// CheckoutParams describes one payment session to open with the processor.
type CheckoutParams struct {
	Amount      int64 // minor currency units
	Currency    string
	Description string
	Metadata    map[string]string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is the processor's handle for a created session.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutClient opens and expires external payment sessions.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
}

// StripeCheckoutClient is the production CheckoutClient.
type StripeCheckoutClient struct{}

func NewStripeCheckoutClient() *StripeCheckoutClient {
	return &StripeCheckoutClient{}
}

func (c *StripeCheckoutClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.Currency),
					UnitAmount: stripe.Int64(p.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		// Copy the metadata onto the payment intent so intent-level webhook
		// events resolve back to the purchase as well.
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: p.Metadata,
		},
	}
	params.Metadata = p.Metadata

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session creation failed: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ExpireCheckoutSession invalidates an open session so its payment link can
// no longer be paid. Stripe rejects the call once the session is already
// complete or expired.
func (c *StripeCheckoutClient) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	if _, err := session.Expire(sessionID, &stripe.CheckoutSessionExpireParams{}); err != nil {
		return fmt.Errorf("stripe checkout session expiry failed: %w", err)
	}
	return nil
}

// VerifyWebhookEvent checks the Stripe signature over the raw body and
// returns the parsed event. Callers must pass the unparsed request body.
func VerifyWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, config.AppConfig.StripeWebhookSecret)
}
