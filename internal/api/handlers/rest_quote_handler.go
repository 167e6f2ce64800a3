package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
	"visionsync/backend/internal/config"
	"visionsync/backend/internal/models"
	"visionsync/backend/internal/services"
	"visionsync/backend/internal/tasks"
	"visionsync/backend/internal/utils"
)

// RestQuoteHandler handles the admin quote endpoints.
type RestQuoteHandler struct {
	quoteService services.IQuoteService
	leadService  services.ILeadService
	taskClient   ITaskClient
	cfg          *config.Config
}

// NewRestQuoteHandler creates a new RestQuoteHandler.
func NewRestQuoteHandler(quoteService services.IQuoteService, leadService services.ILeadService, taskClient ITaskClient, cfg *config.Config) *RestQuoteHandler {
	return &RestQuoteHandler{
		quoteService: quoteService,
		leadService:  leadService,
		taskClient:   taskClient,
		cfg:          cfg,
	}
}

// CreateQuoteArgs is the request body for creating a draft quote.
type CreateQuoteArgs struct {
	LeadID         string                 `json:"lead_id" binding:"required"`
	Items          []models.QuoteLineItem `json:"items" binding:"required"`
	CurrencyCode   string                 `json:"currency_code"`
	DiscountAmount float64                `json:"discount_amount"`
	TaxRate        *float64               `json:"tax_rate,omitempty"`
}

// CreateQuote handles POST /v1/admin/quotes
func (h *RestQuoteHandler) CreateQuote(c *gin.Context) {
	var args CreateQuoteArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	leadID, err := utils.ParseSixID(args.LeadID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead ID format"})
		return
	}

	quote, err := h.quoteService.CreateQuote(c.Request.Context(), leadID, args.Items, args.CurrencyCode, args.DiscountAmount, args.TaxRate)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, quote)
}

// GetQuote handles GET /v1/admin/quotes/:id
func (h *RestQuoteHandler) GetQuote(c *gin.Context) {
	quoteID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quote ID format"})
		return
	}

	quote, err := h.quoteService.GetQuote(c.Request.Context(), quoteID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch quote"})
		return
	}
	c.JSON(http.StatusOK, quote)
}

// ListQuotesForLead handles GET /v1/admin/leads/:id/quotes
func (h *RestQuoteHandler) ListQuotesForLead(c *gin.Context) {
	leadID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead ID format"})
		return
	}

	quotes, err := h.quoteService.GetQuotesForLead(c.Request.Context(), leadID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list quotes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": quotes})
}

// UpdateQuoteArgs replaces the line items and pricing knobs of a draft quote.
type UpdateQuoteArgs struct {
	Items          []models.QuoteLineItem `json:"items" binding:"required"`
	DiscountAmount float64                `json:"discount_amount"`
	TaxRate        float64                `json:"tax_rate"`
}

// UpdateQuote handles PUT /v1/admin/quotes/:id
func (h *RestQuoteHandler) UpdateQuote(c *gin.Context) {
	quoteID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quote ID format"})
		return
	}

	var args UpdateQuoteArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	quote, err := h.quoteService.UpdateQuoteItems(c.Request.Context(), quoteID, args.Items, args.DiscountAmount, args.TaxRate)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
		case errors.Is(err, services.ErrQuoteTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "Only draft quotes can be edited"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, quote)
}

// TransitionQuote handles POST /v1/admin/quotes/:id/transition with body
// {"to": "<status>"}. Sending a quote also queues the customer email.
func (h *RestQuoteHandler) TransitionQuote(c *gin.Context) {
	quoteID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quote ID format"})
		return
	}

	var args struct {
		To models.QuoteStatus `json:"to" binding:"required"`
	}
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	quote, err := h.quoteService.TransitionQuote(c.Request.Context(), quoteID, args.To)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
		case errors.Is(err, services.ErrQuoteTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	if args.To == models.QuoteStatusSent {
		h.enqueueQuoteSentEmail(c, quote)
	}

	c.JSON(http.StatusOK, quote)
}

func (h *RestQuoteHandler) enqueueQuoteSentEmail(c *gin.Context, quote *models.Quote) {
	lead, err := h.leadService.GetLead(c.Request.Context(), quote.LeadID)
	if err != nil {
		log.Printf("ERROR failed to load lead %s for quote email: %v", quote.LeadID.String(), err)
		return
	}

	payloadBytes, err := json.Marshal(tasks.EmailTaskPayload{
		To:         lead.Email,
		TemplateID: "quote_sent",
		Data: map[string]interface{}{
			"name":          lead.Name,
			"quote_number":  quote.QuoteNumber,
			"subtotal":      fmt.Sprintf("%.2f", quote.Subtotal),
			"tax":           fmt.Sprintf("%.2f", quote.Tax),
			"total":         fmt.Sprintf("%.2f", quote.Total),
			"currency":      quote.CurrencyCode,
			"validity_days": fmt.Sprintf("%d", h.cfg.QuoteValidityDays),
		},
	})
	if err != nil {
		return
	}
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes, asynq.Queue("critical"))
	if _, enqueueErr := h.taskClient.EnqueueContext(c.Request.Context(), task); enqueueErr != nil {
		log.Printf("ERROR failed to enqueue quote email for %s: %v", quote.ID.String(), enqueueErr)
	}
}

// DeleteQuote handles DELETE /v1/admin/quotes/:id
func (h *RestQuoteHandler) DeleteQuote(c *gin.Context) {
	quoteID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quote ID format"})
		return
	}

	if err := h.quoteService.DeleteQuote(c.Request.Context(), quoteID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete quote"})
		return
	}
	c.Status(http.StatusNoContent)
}
