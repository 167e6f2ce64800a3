package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"visionsync/backend/internal/config"
	"visionsync/backend/internal/currency"
	"visionsync/backend/internal/db"
	"visionsync/backend/internal/models"
	"visionsync/backend/internal/utils"
)

// IQuoteService defines the interface for quote management.
type IQuoteService interface {
	CreateQuote(ctx context.Context, leadID utils.SixID, items []models.QuoteLineItem, currencyCode string, discountAmount float64, taxRate *float64) (*models.Quote, error)
	GetQuote(ctx context.Context, id utils.SixID) (*models.Quote, error)
	GetQuotesForLead(ctx context.Context, leadID utils.SixID) ([]models.Quote, error)
	UpdateQuoteItems(ctx context.Context, id utils.SixID, items []models.QuoteLineItem, discountAmount float64, taxRate float64) (*models.Quote, error)
	TransitionQuote(ctx context.Context, id utils.SixID, to models.QuoteStatus) (*models.Quote, error)
	ExpireStaleQuotes(ctx context.Context) (int, error)
	DeleteQuote(ctx context.Context, id utils.SixID) error
}

const quotesCollection = "quotes"

// ErrQuoteTransition is returned when a lifecycle move is not allowed.
var ErrQuoteTransition = errors.New("quote status transition not allowed")

// quoteService implements IQuoteService.
type quoteService struct {
	db          *mongo.Database
	cfg         *config.Config
	leadService ILeadService
}

// NewQuoteService creates a new QuoteService. The lead service is used to
// verify the target lead exists before issuing a quote against it.
func NewQuoteService(database *mongo.Database, cfg *config.Config, leadService ILeadService) IQuoteService {
	return &quoteService{db: database, cfg: cfg, leadService: leadService}
}

// CreateQuote creates a draft quote against an existing lead. Totals are
// computed server-side; a nil taxRate falls back to the configured default.
// The currency must be one of the supported codes.
func (s *quoteService) CreateQuote(ctx context.Context, leadID utils.SixID, items []models.QuoteLineItem, currencyCode string, discountAmount float64, taxRate *float64) (*models.Quote, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("quote must have at least one line item")
	}
	if _, ok := currency.Get(currencyCode); !ok {
		return nil, fmt.Errorf("unsupported currency %q", currencyCode)
	}
	if _, err := s.leadService.GetLead(ctx, leadID); err != nil {
		return nil, err
	}

	rate := s.cfg.DefaultTaxRate
	if taxRate != nil {
		rate = *taxRate
	}

	now := time.Now().UTC()
	quote := &models.Quote{
		LeadID:         leadID,
		CurrencyCode:   currencyCode,
		DiscountAmount: discountAmount,
		TaxRate:        rate,
		Status:         models.QuoteStatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	models.CalculateQuoteTotals(items, discountAmount, rate).Apply(quote)

	doc, err := db.InsertOne(ctx, s.db.Collection(quotesCollection), quote)
	if err != nil {
		return nil, fmt.Errorf("failed to insert quote: %w", err)
	}
	quote = doc.(*models.Quote)

	// The quote number embeds the generated ID, so it is written in a
	// second step once the insert has settled on one.
	quote.QuoteNumber = models.NewQuoteNumber(quote.ID, now)
	_, err = s.db.Collection(quotesCollection).UpdateOne(ctx,
		bson.M{"_id": quote.ID},
		bson.M{"$set": bson.M{"quote_number": quote.QuoteNumber}})
	if err != nil {
		return nil, fmt.Errorf("failed to set quote number: %w", err)
	}
	return quote, nil
}

// GetQuote fetches a single non-deleted quote by ID.
// Returns mongo.ErrNoDocuments if none found.
func (s *quoteService) GetQuote(ctx context.Context, id utils.SixID) (*models.Quote, error) {
	var quote models.Quote
	err := s.db.Collection(quotesCollection).FindOne(ctx, bson.M{"_id": id, "deleted": bson.M{"$ne": true}}).Decode(&quote)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to fetch quote %s: %w", id.String(), err)
	}
	return &quote, nil
}

// GetQuotesForLead returns all non-deleted quotes for a lead, newest first.
func (s *quoteService) GetQuotesForLead(ctx context.Context, leadID utils.SixID) ([]models.Quote, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(quotesCollection).Find(ctx,
		bson.M{"lead_id": leadID, "deleted": bson.M{"$ne": true}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes for lead %s: %w", leadID.String(), err)
	}
	defer cursor.Close(ctx)

	quotes := []models.Quote{}
	if err := cursor.All(ctx, &quotes); err != nil {
		return nil, fmt.Errorf("failed to decode quotes: %w", err)
	}
	return quotes, nil
}

// UpdateQuoteItems replaces the line items and pricing inputs of a draft
// quote and recomputes the totals. Only drafts are editable.
func (s *quoteService) UpdateQuoteItems(ctx context.Context, id utils.SixID, items []models.QuoteLineItem, discountAmount float64, taxRate float64) (*models.Quote, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("quote must have at least one line item")
	}

	totals := models.CalculateQuoteTotals(items, discountAmount, taxRate)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var quote models.Quote
	err := s.db.Collection(quotesCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.QuoteStatusDraft, "deleted": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{
			"items":           totals.Items,
			"discount_amount": discountAmount,
			"tax_rate":        taxRate,
			"subtotal":        totals.Subtotal,
			"tax":             totals.Tax,
			"total":           totals.Total,
			"updated_at":      time.Now().UTC(),
		}}, opts).Decode(&quote)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Distinguish "no such quote" from "not a draft" for the caller.
			if _, getErr := s.GetQuote(ctx, id); getErr == nil {
				return nil, fmt.Errorf("%w: only draft quotes are editable", ErrQuoteTransition)
			}
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update quote %s: %w", id.String(), err)
	}
	return &quote, nil
}

// TransitionQuote moves a quote through its lifecycle, stamping SentAt or
// AcceptedAt as appropriate. Returns ErrQuoteTransition for disallowed moves.
func (s *quoteService) TransitionQuote(ctx context.Context, id utils.SixID, to models.QuoteStatus) (*models.Quote, error) {
	quote, err := s.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(quote.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrQuoteTransition, quote.Status, to)
	}

	now := time.Now().UTC()
	set := bson.M{"status": to, "updated_at": now}
	switch to {
	case models.QuoteStatusSent:
		set["sent_at"] = now
	case models.QuoteStatusAccepted:
		set["accepted_at"] = now
	}

	// Guard on the previous status so a concurrent transition loses cleanly.
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Quote
	err = s.db.Collection(quotesCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": quote.Status, "deleted": bson.M{"$ne": true}},
		bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: quote changed concurrently", ErrQuoteTransition)
		}
		return nil, fmt.Errorf("failed to transition quote %s: %w", id.String(), err)
	}
	return &updated, nil
}

// ExpireStaleQuotes marks sent quotes older than the configured validity
// window as expired. Returns the number of quotes expired. Called from the
// periodic background task.
func (s *quoteService) ExpireStaleQuotes(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.QuoteValidityDays)
	res, err := s.db.Collection(quotesCollection).UpdateMany(ctx,
		bson.M{
			"status":  models.QuoteStatusSent,
			"sent_at": bson.M{"$lt": cutoff},
			"deleted": bson.M{"$ne": true},
		},
		bson.M{"$set": bson.M{"status": models.QuoteStatusExpired, "updated_at": time.Now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale quotes: %w", err)
	}
	return int(res.ModifiedCount), nil
}

// DeleteQuote soft-deletes a quote.
func (s *quoteService) DeleteQuote(ctx context.Context, id utils.SixID) error {
	res, err := s.db.Collection(quotesCollection).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to delete quote %s: %w", id.String(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
