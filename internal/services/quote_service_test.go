package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"visionsync/backend/internal/config"
	"visionsync/backend/internal/models"
	"visionsync/backend/internal/utils"
)

func setupQuoteService(t *testing.T, dbName string) (IQuoteService, ILeadService) {
	db := utils.SetupTestDB(t, dbName, quotesCollection, leadsCollection)
	cfg := &config.Config{DefaultTaxRate: 0.21, QuoteValidityDays: 30}
	leadSvc := NewLeadService(db, cfg)
	return NewQuoteService(db, cfg, leadSvc), leadSvc
}

func makeTestLead(t *testing.T, leadSvc ILeadService) *models.Lead {
	lead, err := leadSvc.SaveLead(context.Background(), &models.Lead{
		Source: models.LeadSourceCustomBuild,
		Name:   "Quinn",
		Email:  "quinn@example.com",
		CustomBuild: &models.CustomBuildDetails{
			ProjectType: "marketplace",
			Budget:      models.Budget50KTo100K,
		},
	})
	require.NoError(t, err)
	return lead
}

func TestQuoteService_CreateComputesTotals(t *testing.T) {
	svc, leadSvc := setupQuoteService(t, "testdb_quote_create")
	ctx := context.Background()
	lead := makeTestLead(t, leadSvc)

	items := []models.QuoteLineItem{
		{Description: "Design", Quantity: 2, UnitPrice: 500},
		{Description: "Build", Quantity: 1, UnitPrice: 4000},
	}
	quote, err := svc.CreateQuote(ctx, lead.ID, items, "EUR", 100, nil)
	require.NoError(t, err)

	assert.Equal(t, models.QuoteStatusDraft, quote.Status)
	assert.Equal(t, 5000.0, quote.Subtotal)
	assert.Equal(t, 1029.0, quote.Tax) // (5000-100) * 0.21
	assert.Equal(t, 5929.0, quote.Total)
	assert.Equal(t, 0.21, quote.TaxRate) // Default tax rate applied
	assert.True(t, strings.HasPrefix(quote.QuoteNumber, "Q-"))
	assert.Contains(t, quote.QuoteNumber, quote.ID.String())

	fetched, err := svc.GetQuote(ctx, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, quote.QuoteNumber, fetched.QuoteNumber)
}

func TestQuoteService_CreateValidation(t *testing.T) {
	svc, leadSvc := setupQuoteService(t, "testdb_quote_validation")
	ctx := context.Background()
	lead := makeTestLead(t, leadSvc)
	items := []models.QuoteLineItem{{Description: "X", Quantity: 1, UnitPrice: 1}}

	_, err := svc.CreateQuote(ctx, lead.ID, nil, "EUR", 0, nil)
	assert.Error(t, err)

	_, err = svc.CreateQuote(ctx, lead.ID, items, "DOGE", 0, nil)
	assert.Error(t, err)

	_, err = svc.CreateQuote(ctx, utils.NewSixID(), items, "EUR", 0, nil)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestQuoteService_Lifecycle(t *testing.T) {
	svc, leadSvc := setupQuoteService(t, "testdb_quote_lifecycle")
	ctx := context.Background()
	lead := makeTestLead(t, leadSvc)
	items := []models.QuoteLineItem{{Description: "Build", Quantity: 1, UnitPrice: 1000}}

	quote, err := svc.CreateQuote(ctx, lead.ID, items, "EUR", 0, nil)
	require.NoError(t, err)

	// Draft cannot be accepted directly.
	_, err = svc.TransitionQuote(ctx, quote.ID, models.QuoteStatusAccepted)
	assert.ErrorIs(t, err, ErrQuoteTransition)

	sent, err := svc.TransitionQuote(ctx, quote.ID, models.QuoteStatusSent)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)

	// Sent quotes are no longer editable.
	_, err = svc.UpdateQuoteItems(ctx, quote.ID, items, 0, 0.21)
	assert.ErrorIs(t, err, ErrQuoteTransition)

	accepted, err := svc.TransitionQuote(ctx, quote.ID, models.QuoteStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)

	// Terminal states admit no further moves, including back to draft.
	_, err = svc.TransitionQuote(ctx, quote.ID, models.QuoteStatusDraft)
	assert.ErrorIs(t, err, ErrQuoteTransition)
	_, err = svc.TransitionQuote(ctx, quote.ID, models.QuoteStatusRejected)
	assert.ErrorIs(t, err, ErrQuoteTransition)
}

func TestQuoteService_UpdateRecomputesTotals(t *testing.T) {
	svc, leadSvc := setupQuoteService(t, "testdb_quote_update")
	ctx := context.Background()
	lead := makeTestLead(t, leadSvc)

	quote, err := svc.CreateQuote(ctx, lead.ID,
		[]models.QuoteLineItem{{Description: "Build", Quantity: 1, UnitPrice: 1000}}, "EUR", 0, nil)
	require.NoError(t, err)

	updated, err := svc.UpdateQuoteItems(ctx, quote.ID,
		[]models.QuoteLineItem{{Description: "Build", Quantity: 3, UnitPrice: 1000}}, 500, 0.10)
	require.NoError(t, err)

	assert.Equal(t, 3000.0, updated.Subtotal)
	assert.Equal(t, 250.0, updated.Tax)    // (3000-500) * 0.10
	assert.Equal(t, 2750.0, updated.Total) // 2500 + 250
	require.Len(t, updated.Items, 1)
	assert.Equal(t, 3000.0, updated.Items[0].Total)
}

func TestQuoteService_GetQuotesForLead(t *testing.T) {
	svc, leadSvc := setupQuoteService(t, "testdb_quote_forlead")
	ctx := context.Background()
	lead := makeTestLead(t, leadSvc)
	other := makeTestLead(t, leadSvc)
	items := []models.QuoteLineItem{{Description: "X", Quantity: 1, UnitPrice: 100}}

	q1, err := svc.CreateQuote(ctx, lead.ID, items, "EUR", 0, nil)
	require.NoError(t, err)
	_, err = svc.CreateQuote(ctx, other.ID, items, "USD", 0, nil)
	require.NoError(t, err)

	quotes, err := svc.GetQuotesForLead(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, q1.ID, quotes[0].ID)

	require.NoError(t, svc.DeleteQuote(ctx, q1.ID))
	quotes, err = svc.GetQuotesForLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}
