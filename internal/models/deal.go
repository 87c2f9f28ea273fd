package models

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// Deal is a normalized listing produced by the deal source.
// The distribution pipeline only reads deals, it never mutates them.
type Deal struct {
	ID            string    `json:"id" validate:"required"`
	Title         string    `json:"title" validate:"required"`
	Brand         string    `json:"brand"`
	Model         string    `json:"model"`
	Price         float64   `json:"price" validate:"gt=0"`
	OriginalPrice *float64  `json:"original_price,omitempty"`
	Score         float64   `json:"score" validate:"gte=0,lte=100"`
	Source        string    `json:"source"`
	URL           string    `json:"url" validate:"omitempty,url"`
	Category      string    `json:"category"`
	ImageURL      string    `json:"image_url,omitempty"`
	FoundAt       time.Time `json:"found_at"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the wire-level integrity of a deal as fetched from the
// feed. The source drops entries that fail it.
func (d Deal) Validate() error { return validate.Struct(d) }

// DiscountPercent returns the whole-percent discount against the original
// price, rounded to nearest. The second return is false when no original
// price is known or it would not yield a meaningful discount.
func (d Deal) DiscountPercent() (int, bool) {
	if d.OriginalPrice == nil || *d.OriginalPrice <= 0 || d.Price >= *d.OriginalPrice {
		return 0, false
	}
	pct := int(math.Round((*d.OriginalPrice - d.Price) / *d.OriginalPrice * 100))
	if pct <= 0 {
		return 0, false
	}
	return pct, true
}
