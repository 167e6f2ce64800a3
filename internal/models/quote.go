package models

import (
	"fmt"
	"math"
	"time"

	"visionsync/backend/internal/utils"
)

// QuoteStatus tracks the quote lifecycle. There is no transition back to draft.
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRejected QuoteStatus = "rejected"
	QuoteStatusExpired  QuoteStatus = "expired"
)

// quoteTransitions enumerates the allowed lifecycle moves.
var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusDraft: {QuoteStatusSent},
	QuoteStatusSent:  {QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired},
}

// CanTransition reports whether a quote may move from one status to another.
func CanTransition(from, to QuoteStatus) bool {
	for _, allowed := range quoteTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// QuoteLineItem is a single priced line within a quote. Total is always
// recomputed from Quantity and UnitPrice, never edited independently.
type QuoteLineItem struct {
	Description string  `bson:"description" json:"description"`
	Quantity    float64 `bson:"quantity" json:"quantity"`
	UnitPrice   float64 `bson:"unit_price" json:"unit_price"`
	Total       float64 `bson:"total" json:"total"`
}

// Quote represents a sales quote issued against a lead.
type Quote struct {
	Base           `bson:",inline"`
	LeadID         utils.SixID     `bson:"lead_id" json:"lead_id"`
	QuoteNumber    string          `bson:"quote_number" json:"quote_number"`
	Items          []QuoteLineItem `bson:"items" json:"items"`
	CurrencyCode   string          `bson:"currency_code" json:"currency_code"`
	DiscountAmount float64         `bson:"discount_amount" json:"discount_amount"`
	TaxRate        float64         `bson:"tax_rate" json:"tax_rate"`
	Subtotal       float64         `bson:"subtotal" json:"subtotal"`
	Tax            float64         `bson:"tax" json:"tax"`
	Total          float64         `bson:"total" json:"total"`
	Status         QuoteStatus     `bson:"status" json:"status"`
	CreatedAt      time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at" json:"updated_at"`
	SentAt         *time.Time      `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
	AcceptedAt     *time.Time      `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`
	Deleted        bool            `bson:"deleted" json:"-"` // Soft delete flag
}

// QuoteTotals is the result of recomputing a quote's monetary fields.
type QuoteTotals struct {
	Items    []QuoteLineItem
	Subtotal float64
	Tax      float64
	Total    float64
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CalculateQuoteTotals recomputes line totals, subtotal, tax and total.
// The discounted subtotal may legitimately go negative; validating the
// discount against the subtotal is the caller's responsibility.
func CalculateQuoteTotals(items []QuoteLineItem, discountAmount, taxRate float64) QuoteTotals {
	out := QuoteTotals{Items: make([]QuoteLineItem, len(items))}

	subtotal := 0.0
	for i, item := range items {
		item.Total = Round2(item.Quantity * item.UnitPrice)
		out.Items[i] = item
		subtotal += item.Quantity * item.UnitPrice
	}

	discounted := subtotal - discountAmount
	out.Subtotal = Round2(subtotal)
	out.Tax = Round2(discounted * taxRate)
	out.Total = Round2(discounted + discounted*taxRate)
	return out
}

// Apply writes the recomputed totals back onto a quote.
func (t QuoteTotals) Apply(q *Quote) {
	q.Items = t.Items
	q.Subtotal = t.Subtotal
	q.Tax = t.Tax
	q.Total = t.Total
}

// NewQuoteNumber renders a human-readable quote number from an ID.
func NewQuoteNumber(id utils.SixID, issued time.Time) string {
	return fmt.Sprintf("Q-%d-%s", issued.Year(), id.String())
}
