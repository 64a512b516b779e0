package models

import "time"

// Subcategory is a mutable sub-document of a category. Requests snapshot the
// chosen subcategory name at creation instead of re-resolving it.
type Subcategory struct {
	Name   string `bson:"name" json:"name"`
	Active bool   `bson:"active" json:"active"`
}

// Category groups service requests and carries the lead base price in major
// currency units.
type Category struct {
	ID            string        `bson:"id" json:"id"`
	Name          string        `bson:"name" json:"name"`
	LeadPrice     float64       `bson:"leadPrice" json:"leadPrice"` // major units; 0 means unset
	Active        bool          `bson:"active" json:"active"`
	Subcategories []Subcategory `bson:"subcategories" json:"subcategories"`
	CreatedAt     time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// Subcategory returns the named subcategory, or nil.
func (c *Category) Subcategory(name string) *Subcategory {
	for i := range c.Subcategories {
		if c.Subcategories[i].Name == name {
			return &c.Subcategories[i]
		}
	}
	return nil
}
