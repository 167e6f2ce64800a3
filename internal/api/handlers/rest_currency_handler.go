package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"visionsync/backend/internal/currency"
	"visionsync/backend/internal/services"
)

// RestCurrencyHandler handles the public currency endpoints. The client is
// identified by the X-SPA session header, the same value rate limiting keys
// on.
type RestCurrencyHandler struct {
	currencyService services.ICurrencyService
}

// NewRestCurrencyHandler creates a new RestCurrencyHandler.
func NewRestCurrencyHandler(currencyService services.ICurrencyService) *RestCurrencyHandler {
	return &RestCurrencyHandler{currencyService: currencyService}
}

func clientIDFromRequest(c *gin.Context) string {
	if spa := c.GetHeader("X-SPA"); spa != "" {
		return spa
	}
	return c.GetHeader("X-BFP")
}

// ListCurrencies handles GET /v1/currencies
func (h *RestCurrencyHandler) ListCurrencies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"base": currency.BaseCode, "data": currency.All()})
}

// GetSelection handles GET /v1/currencies/selection
func (h *RestCurrencyHandler) GetSelection(c *gin.Context) {
	info, err := h.currencyService.GetSelection(c.Request.Context(), clientIDFromRequest(c))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read currency selection"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// SetSelection handles PUT /v1/currencies/selection with body {"code": "USD"}.
func (h *RestCurrencyHandler) SetSelection(c *gin.Context) {
	var args struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	clientID := clientIDFromRequest(c)
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing client session header"})
		return
	}

	info, err := h.currencyService.SetSelection(c.Request.Context(), clientID, args.Code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// Convert handles GET /v1/currencies/convert?amount=1500&to=USD
func (h *RestCurrencyHandler) Convert(c *gin.Context) {
	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
		return
	}

	info, ok := currency.Get(c.Query("to"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unsupported currency code: %s", c.Query("to"))})
		return
	}

	converted := info.Convert(amount)
	c.JSON(http.StatusOK, gin.H{
		"amount":    amount,
		"base":      currency.BaseCode,
		"code":      info.Code,
		"converted": converted,
		"formatted": info.Format(amount, false),
	})
}
