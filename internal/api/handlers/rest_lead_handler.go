package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
	"visionsync/backend/internal/config"
	"visionsync/backend/internal/models"
	"visionsync/backend/internal/services"
	"visionsync/backend/internal/tasks"
	"visionsync/backend/internal/utils"
)

// ITaskClient defines the interface for enqueuing background tasks.
// Allows mocking the asynq client in tests.
type ITaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RestLeadHandler handles REST requests for lead capture and management.
type RestLeadHandler struct {
	leadService   services.ILeadService
	configService services.IConfigService
	taskClient    ITaskClient
	cfg           *config.Config
}

// NewRestLeadHandler creates a new RestLeadHandler.
func NewRestLeadHandler(leadService services.ILeadService, configService services.IConfigService, taskClient ITaskClient, cfg *config.Config) *RestLeadHandler {
	return &RestLeadHandler{
		leadService:   leadService,
		configService: configService,
		taskClient:    taskClient,
		cfg:           cfg,
	}
}

// SubmitLeadArgs is the public form submission body. Exactly the detail
// block matching Source should be present.
type SubmitLeadArgs struct {
	Source  models.LeadSource `json:"source" binding:"required"`
	Name    string            `json:"name" binding:"required"`
	Email   string            `json:"email" binding:"required,email"`
	Phone   string            `json:"phone"`
	Company string            `json:"company"`
	Message string            `json:"message"`

	Contact        *models.ContactDetails        `json:"contact,omitempty"`
	CustomBuild    *models.CustomBuildDetails    `json:"custom_build,omitempty"`
	Investor       *models.InvestorDetails       `json:"investor,omitempty"`
	ProjectInquiry *models.ProjectInquiryDetails `json:"project_inquiry,omitempty"`
}

// SubmitLead handles POST /v1/leads (public form endpoint).
func (h *RestLeadHandler) SubmitLead(c *gin.Context) {
	var args SubmitLeadArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if !models.ValidLeadSource(args.Source) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown lead source"})
		return
	}

	lead, err := h.leadService.SaveLead(c.Request.Context(), &models.Lead{
		Source:         args.Source,
		Name:           args.Name,
		Email:          args.Email,
		Phone:          args.Phone,
		Company:        args.Company,
		Message:        args.Message,
		Contact:        args.Contact,
		CustomBuild:    args.CustomBuild,
		Investor:       args.Investor,
		ProjectInquiry: args.ProjectInquiry,
	})
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save lead"})
		return
	}

	h.enqueueLeadEmails(c.Request.Context(), lead)

	c.JSON(http.StatusCreated, lead)
}

// enqueueLeadEmails queues the admin notification and visitor
// acknowledgement for a freshly captured lead. Failures are logged, never
// surfaced: the lead is already stored.
func (h *RestLeadHandler) enqueueLeadEmails(ctx context.Context, lead *models.Lead) {
	notifyAddress := h.configService.GetString(ctx, "NOTIFY_EMAIL_ADDRESS", h.cfg.NotifyEmailAddress)
	if notifyAddress != "" {
		payloadBytes, err := json.Marshal(tasks.EmailTaskPayload{
			To:         notifyAddress,
			TemplateID: "lead_notification",
			Data: map[string]interface{}{
				"name":     lead.Name,
				"email":    lead.Email,
				"company":  lead.Company,
				"source":   string(lead.Source),
				"priority": string(lead.Priority),
				"message":  lead.Message,
			},
			LeadID: lead.ID.String(),
		})
		if err == nil {
			task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)
			if _, enqueueErr := h.taskClient.EnqueueContext(ctx, task, asynq.Queue("critical")); enqueueErr != nil {
				log.Printf("ERROR failed to enqueue lead notification email for %s: %v", lead.ID.String(), enqueueErr)
			}
		}
	}

	ackBytes, err := json.Marshal(tasks.EmailTaskPayload{
		To:         lead.Email,
		TemplateID: "lead_acknowledgement",
		Data:       map[string]interface{}{"name": lead.Name},
	})
	if err == nil {
		task := asynq.NewTask(tasks.TypeEmailDelivery, ackBytes)
		if _, enqueueErr := h.taskClient.EnqueueContext(ctx, task); enqueueErr != nil {
			log.Printf("ERROR failed to enqueue lead acknowledgement for %s: %v", lead.ID.String(), enqueueErr)
		}
	}
}

// ListLeads handles GET /v1/admin/leads
func (h *RestLeadHandler) ListLeads(c *gin.Context) {
	filter, ok := leadFilterFromQuery(c)
	if !ok {
		return
	}

	leads, err := h.leadService.GetAllLeads(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list leads"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": leads})
}

func leadFilterFromQuery(c *gin.Context) (services.LeadFilter, bool) {
	filter := services.LeadFilter{
		Source:   models.LeadSource(c.Query("source")),
		Status:   models.LeadStatus(c.Query("status")),
		Priority: models.LeadPriority(c.Query("priority")),
	}
	if filter.Source != "" && !models.ValidLeadSource(filter.Source) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown lead source"})
		return filter, false
	}
	if filter.Status != "" && !models.ValidLeadStatus(filter.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown lead status"})
		return filter, false
	}
	if sinceStr := c.Query("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since timestamp (want RFC 3339)"})
			return filter, false
		}
		filter.Since = &since
	}
	return filter, true
}

// GetLead handles GET /v1/admin/leads/:id
func (h *RestLeadHandler) GetLead(c *gin.Context) {
	leadID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead ID format"})
		return
	}

	lead, err := h.leadService.GetLead(c.Request.Context(), leadID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch lead"})
		return
	}
	c.JSON(http.StatusOK, lead)
}

// UpdateLeadArgs carries the editable fields of a lead. Absent fields are
// left untouched.
type UpdateLeadArgs struct {
	Status  *models.LeadStatus `json:"status,omitempty"`
	Name    *string            `json:"name,omitempty"`
	Email   *string            `json:"email,omitempty"`
	Phone   *string            `json:"phone,omitempty"`
	Company *string            `json:"company,omitempty"`
	Message *string            `json:"message,omitempty"`
}

// UpdateLead handles PATCH /v1/admin/leads/:id
func (h *RestLeadHandler) UpdateLead(c *gin.Context) {
	leadID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead ID format"})
		return
	}

	var args UpdateLeadArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if args.Status != nil && !models.ValidLeadStatus(*args.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown lead status"})
		return
	}

	lead, err := h.leadService.UpdateLead(c.Request.Context(), leadID, services.LeadUpdate{
		Status:  args.Status,
		Name:    args.Name,
		Email:   args.Email,
		Phone:   args.Phone,
		Company: args.Company,
		Message: args.Message,
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update lead"})
		return
	}
	c.JSON(http.StatusOK, lead)
}

// DeleteLead handles DELETE /v1/admin/leads/:id
func (h *RestLeadHandler) DeleteLead(c *gin.Context) {
	leadID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead ID format"})
		return
	}

	if err := h.leadService.DeleteLead(c.Request.Context(), leadID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete lead"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetLeadStats handles GET /v1/admin/leads/stats
func (h *RestLeadHandler) GetLeadStats(c *gin.Context) {
	stats, err := h.leadService.GetLeadStats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute lead stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ExportLeads handles GET /v1/admin/leads/export. Responds with the CSV
// directly; with ?archive=true it additionally queues an S3 archive run.
func (h *RestLeadHandler) ExportLeads(c *gin.Context) {
	filter, ok := leadFilterFromQuery(c)
	if !ok {
		return
	}

	csvData, err := h.leadService.ExportLeads(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export leads"})
		return
	}

	if c.Query("archive") == "true" {
		payloadBytes, marshalErr := json.Marshal(tasks.LeadExportArchivePayload{
			Source: string(filter.Source),
			Status: string(filter.Status),
		})
		if marshalErr == nil {
			task := asynq.NewTask(tasks.TypeLeadExportArchive, payloadBytes, asynq.Queue("low"))
			if _, enqueueErr := h.taskClient.EnqueueContext(c.Request.Context(), task); enqueueErr != nil {
				log.Printf("ERROR failed to enqueue lead export archive: %v", enqueueErr)
			}
		}
	}

	filename := fmt.Sprintf("leads-%s.csv", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", csvData)
}
