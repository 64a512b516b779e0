package models

import "time"

// PurchaseStatus is the lifecycle status of a lead purchase attempt.
type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "PENDING"
	PurchaseCompleted PurchaseStatus = "COMPLETED"
	PurchaseFailed    PurchaseStatus = "FAILED"
	PurchaseRefunded  PurchaseStatus = "REFUNDED"
)

// LeadPurchase records one purchase attempt by a provider for a request.
// Created PENDING when a checkout session is opened; only the webhook
// reconciler moves it to COMPLETED or FAILED.
type LeadPurchase struct {
	ID               string         `bson:"id" json:"id"`
	ProviderID       string         `bson:"providerId" json:"providerId"`
	ServiceRequestID string         `bson:"serviceRequestId" json:"serviceRequestId"`
	Amount           int64          `bson:"amount" json:"amount"` // minor currency units
	Currency         string         `bson:"currency" json:"currency"`
	CheckoutSession  string         `bson:"checkoutSessionId" json:"checkoutSessionId"` // unique
	PaymentIntent    string         `bson:"paymentIntentId,omitempty" json:"paymentIntentId,omitempty"`
	Status           PurchaseStatus `bson:"status" json:"status"`
	FailureReason    string         `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	PurchasedAt      *time.Time     `bson:"purchasedAt,omitempty" json:"purchasedAt,omitempty"`
	RefundedAt       *time.Time     `bson:"refundedAt,omitempty" json:"refundedAt,omitempty"`
	Metadata         map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt        time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time      `bson:"updatedAt" json:"updatedAt"`
}
