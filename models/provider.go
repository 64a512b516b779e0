package models

import "time"

// WorkingHours is one weekly availability window declared by a provider.
type WorkingHours struct {
	Day       string `bson:"day" json:"day"` // e.g. "monday"
	StartTime string `bson:"startTime" json:"startTime"`
	EndTime   string `bson:"endTime" json:"endTime"`
	Available bool   `bson:"available" json:"available"`
}

// ProviderProfile holds the public-facing provider fields.
type ProviderProfile struct {
	Name        string      `bson:"name" json:"name"`
	Email       string      `bson:"email" json:"email,omitempty"`
	PhoneNumber string      `bson:"phoneNumber" json:"phoneNumber,omitempty"`
	Location    GeoLocation `bson:"location" json:"location"`
	Rating      float64     `bson:"rating" json:"rating,omitempty"`
}

// PendingUpdates stages profile edits awaiting admin approval. Fields are
// pointers so unset fields stay untouched when the staged set is applied.
type PendingUpdates struct {
	Name          *string      `bson:"name,omitempty" json:"name,omitempty"`
	PhoneNumber   *string      `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	Location      *GeoLocation `bson:"location,omitempty" json:"location,omitempty"`
	Categories    []string     `bson:"categories,omitempty" json:"categories,omitempty"`
	CoveredRadius *float64     `bson:"coveredRadius,omitempty" json:"coveredRadius,omitempty"`
	WorkingHours  []WorkingHours `bson:"workingHours,omitempty" json:"workingHours,omitempty"`
	RequestedAt   time.Time    `bson:"requestedAt" json:"requestedAt"`
}

// ProviderStats tracks cumulative marketplace counters for a provider.
type ProviderStats struct {
	TotalSpent     int64 `bson:"totalSpent" json:"totalSpent"` // minor currency units
	LeadsPurchased int   `bson:"leadsPurchased" json:"leadsPurchased"`
	JobsCompleted  int   `bson:"jobsCompleted" json:"jobsCompleted"`
}

// Provider is a category-tagged actor that browses and purchases leads.
type Provider struct {
	ID            string          `bson:"id" json:"id"`
	AuthID        string          `bson:"authId" json:"authId"`
	Profile       ProviderProfile `bson:"profile" json:"profile"`
	Categories    []string        `bson:"categories" json:"categories"`
	CoveredRadius float64         `bson:"coveredRadius" json:"coveredRadius"` // same unit as the 50-unit cap
	WorkingHours  []WorkingHours  `bson:"workingHours" json:"workingHours"`

	Verified bool `bson:"verified" json:"verified"`
	Active   bool `bson:"active" json:"active"`

	PendingUpdates *PendingUpdates `bson:"pendingUpdates,omitempty" json:"pendingUpdates,omitempty"`
	Stats          ProviderStats   `bson:"stats" json:"stats"`

	FCMToken      string         `bson:"fcmToken,omitempty" json:"-"`
	Notifications []Notification `bson:"notifications,omitempty" json:"notifications,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasAvailability reports whether the provider declared at least one
// available working-hours entry.
func (p *Provider) HasAvailability() bool {
	for _, wh := range p.WorkingHours {
		if wh.Available {
			return true
		}
	}
	return false
}

// ServesCategory reports whether the category is among the provider's
// serviced categories.
func (p *Provider) ServesCategory(categoryID string) bool {
	for _, c := range p.Categories {
		if c == categoryID {
			return true
		}
	}
	return false
}
