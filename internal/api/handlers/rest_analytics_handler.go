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
	"visionsync/backend/internal/models"
	"visionsync/backend/internal/services"
	"visionsync/backend/internal/tasks"
)

// RestAnalyticsHandler handles public event tracking and the admin
// analytics dashboard endpoints.
type RestAnalyticsHandler struct {
	analyticsService services.IAnalyticsService
	taskClient       ITaskClient
}

// NewRestAnalyticsHandler creates a new RestAnalyticsHandler.
func NewRestAnalyticsHandler(analyticsService services.IAnalyticsService, taskClient ITaskClient) *RestAnalyticsHandler {
	return &RestAnalyticsHandler{
		analyticsService: analyticsService,
		taskClient:       taskClient,
	}
}

// TrackPageView handles POST /v1/track/page-view
func (h *RestAnalyticsHandler) TrackPageView(c *gin.Context) {
	var ev models.PageViewEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if ev.UserAgent == "" {
		ev.UserAgent = c.Request.UserAgent()
	}
	if err := h.analyticsService.TrackPageView(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

// TrackInteraction handles POST /v1/track/interaction
func (h *RestAnalyticsHandler) TrackInteraction(c *gin.Context) {
	var ev models.InteractionEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if err := h.analyticsService.TrackInteraction(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

// TrackConversion handles POST /v1/track/conversion. Intent-stage events
// carrying a lead reference additionally queue a best-effort task that marks
// the lead as converted.
func (h *RestAnalyticsHandler) TrackConversion(c *gin.Context) {
	var ev models.ConversionEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if err := h.analyticsService.TrackConversion(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if ev.Stage == models.StageIntent && ev.LeadID != nil {
		payloadBytes, err := json.Marshal(tasks.LeadConversionMarkPayload{
			LeadID:    ev.LeadID.String(),
			Timestamp: ev.Timestamp,
		})
		if err == nil {
			task := asynq.NewTask(tasks.TypeLeadConversionMark, payloadBytes)
			if _, enqueueErr := h.taskClient.EnqueueContext(c.Request.Context(), task); enqueueErr != nil {
				log.Printf("ERROR failed to enqueue conversion mark for lead %s: %v", ev.LeadID.String(), enqueueErr)
			}
		}
	}

	c.Status(http.StatusAccepted)
}

// GetAnalytics handles GET /v1/admin/analytics
func (h *RestAnalyticsHandler) GetAnalytics(c *gin.Context) {
	data, err := h.analyticsService.GetAnalyticsData(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate analytics"})
		return
	}
	c.JSON(http.StatusOK, data)
}

// GetLatestSnapshot handles GET /v1/admin/analytics/snapshot
func (h *RestAnalyticsHandler) GetLatestSnapshot(c *gin.Context) {
	snapshot, err := h.analyticsService.GetLatestSnapshot(c.Request.Context())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No snapshot captured yet"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch snapshot"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// TakeSnapshot handles POST /v1/admin/analytics/snapshot
func (h *RestAnalyticsHandler) TakeSnapshot(c *gin.Context) {
	snapshot, err := h.analyticsService.Snapshot(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to capture snapshot"})
		return
	}
	c.JSON(http.StatusCreated, snapshot)
}

// ClearEvents handles DELETE /v1/admin/analytics/events
func (h *RestAnalyticsHandler) ClearEvents(c *gin.Context) {
	if err := h.analyticsService.ClearEvents(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear analytics events"})
		return
	}
	c.Status(http.StatusNoContent)
}
