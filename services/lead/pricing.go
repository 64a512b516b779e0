package lead

import (
	"context"
	"math"

	"leadmarket/config"
	"leadmarket/models"
)

// defaultBasePrice applies when neither the category nor the configuration
// carries a base price.
const defaultBasePrice = 5.00

// LeadPrice is a quoted lead price in integer minor currency units.
type LeadPrice struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// MinorUnits converts a major-unit price to integer minor units, rounding
// half away from zero.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// CalculateLeadPrice derives the lead price from the request's category. The
// category base price applies when set, otherwise the configured default.
// This is a pure function of category state at call time: the price may
// drift between preview and purchase if an admin edits the category
// concurrently, which is accepted behavior.
func (s *DefaultLeadService) CalculateLeadPrice(ctx context.Context, req *models.ServiceRequest) (*LeadPrice, error) {
	category, err := s.CategoryRepo.GetByID(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, NewNotFoundError("category not found")
	}

	base := category.LeadPrice
	if base <= 0 {
		base = config.AppConfig.DefaultLeadPrice
	}
	if base <= 0 {
		base = defaultBasePrice
	}
	currency := config.AppConfig.DefaultLeadCurrency
	if currency == "" {
		currency = "USD"
	}

	return &LeadPrice{Amount: MinorUnits(base), Currency: currency}, nil
}
