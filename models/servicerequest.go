package models

import "time"

// RequestStatus is the lifecycle status of a service request.
type RequestStatus string

const (
	RequestPending    RequestStatus = "PENDING"
	RequestMatched    RequestStatus = "MATCHED"
	RequestProcessing RequestStatus = "PROCESSING"
	RequestOnProcess  RequestStatus = "ON_PROCESS"
	RequestInProgress RequestStatus = "IN_PROGRESS"
	RequestOngoing    RequestStatus = "ONGOING"
	RequestCompleted  RequestStatus = "COMPLETED"
	RequestApproved   RequestStatus = "APPROVED"
	RequestCancelled  RequestStatus = "CANCELLED"
	RequestExpired    RequestStatus = "EXPIRED"
)

// CandidateStatus is a provider's standing on one request's candidate list.
type CandidateStatus string

const (
	CandidatePending         CandidateStatus = "PENDING"
	CandidateAwaitingPayment CandidateStatus = "AWAITING_PAYMENT"
	CandidateAccepted        CandidateStatus = "ACCEPTED"
	CandidateDeclined        CandidateStatus = "DECLINED"
	CandidatePaid            CandidateStatus = "PAID"
)

// RequestPriority is the customer-declared urgency of a request.
type RequestPriority string

const (
	PriorityLow    RequestPriority = "Low"
	PriorityNormal RequestPriority = "Normal"
	PriorityUrgent RequestPriority = "Urgent"
)

// GeoLocation is a street address with coordinates in degrees.
type GeoLocation struct {
	Address   string  `bson:"address" json:"address"`
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// ScheduleWindow is the customer's requested service window.
type ScheduleWindow struct {
	StartDate string `bson:"startDate" json:"startDate"` // YYYY-MM-DD
	EndDate   string `bson:"endDate" json:"endDate"`
	StartTime string `bson:"startTime" json:"startTime"` // HH:MM
	EndTime   string `bson:"endTime" json:"endTime"`
}

// Candidate is one provider's relationship to a request. At most one entry
// may hold ACCEPTED or PAID at a time; at most one may sit in
// AWAITING_PAYMENT while a hold is active.
type Candidate struct {
	ProviderID         string          `bson:"providerId" json:"providerId"`
	Status             CandidateStatus `bson:"status" json:"status"`
	AcceptedAt         *time.Time      `bson:"acceptedAt,omitempty" json:"acceptedAt,omitempty"`
	DeclinedAt         *time.Time      `bson:"declinedAt,omitempty" json:"declinedAt,omitempty"`
	PaidAt             *time.Time      `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	PaymentWindowStart *time.Time      `bson:"paymentWindowStart,omitempty" json:"paymentWindowStart,omitempty"`
}

// PurchaseRecord is one finalized lead purchase on a request. The list is
// append-only audit data and is never pruned.
type PurchaseRecord struct {
	ProviderID  string    `bson:"providerId" json:"providerId"`
	PurchaseID  string    `bson:"purchaseId" json:"purchaseId"`
	PurchasedAt time.Time `bson:"purchasedAt" json:"purchasedAt"`
}

// ServiceRequest is the aggregate root of the lead marketplace. All mutations
// go through single conditional updates or the webhook transaction.
type ServiceRequest struct {
	ID          string `bson:"id" json:"id"`
	RequestID   string `bson:"requestId" json:"requestId"` // human-readable, sequential
	CustomerID  string `bson:"customerId" json:"customerId"`
	CategoryID  string `bson:"categoryId" json:"categoryId"`
	Subcategory string `bson:"subcategory" json:"subcategory"` // snapshotted at creation

	Priority    RequestPriority `bson:"priority" json:"priority"`
	Schedule    ScheduleWindow  `bson:"schedule" json:"schedule"`
	Location    GeoLocation     `bson:"location" json:"location"`
	Description string          `bson:"description" json:"description,omitempty"`
	Attachments []string        `bson:"attachments,omitempty" json:"attachments,omitempty"`

	Status             RequestStatus `bson:"status" json:"status"`
	PotentialProviders []Candidate   `bson:"potentialProviders" json:"potentialProviders"`

	// Hold fields: both set together or both empty. PaymentHoldBy must
	// reference an entry present in PotentialProviders.
	PaymentHoldBy    string     `bson:"paymentHoldBy,omitempty" json:"paymentHoldBy,omitempty"`
	PaymentHoldUntil *time.Time `bson:"paymentHoldUntil,omitempty" json:"paymentHoldUntil,omitempty"`

	// AssignedProvider is set exactly once, on finalization.
	AssignedProvider string `bson:"assignedProvider,omitempty" json:"assignedProvider,omitempty"`

	PurchasedBy  []PurchaseRecord `bson:"purchasedBy" json:"purchasedBy"`
	MaxProviders int              `bson:"maxProviders" json:"maxProviders"`

	Reviewed       bool       `bson:"reviewed" json:"reviewed"`
	CompletedAt    *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	AutoApprovedAt *time.Time `bson:"autoApprovedAt,omitempty" json:"autoApprovedAt,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Candidate returns the candidate entry for the given provider, or nil.
func (r *ServiceRequest) Candidate(providerID string) *Candidate {
	for i := range r.PotentialProviders {
		if r.PotentialProviders[i].ProviderID == providerID {
			return &r.PotentialProviders[i]
		}
	}
	return nil
}

// HasPurchase reports whether the provider already appears in the purchase log.
func (r *ServiceRequest) HasPurchase(providerID string) bool {
	for _, p := range r.PurchasedBy {
		if p.ProviderID == providerID {
			return true
		}
	}
	return false
}
