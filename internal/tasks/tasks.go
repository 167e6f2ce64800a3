package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"visionsync/backend/internal/utils"

	"visionsync/backend/internal/config"
	"visionsync/backend/internal/email"
	"visionsync/backend/internal/models"
	"visionsync/backend/internal/services"
	"visionsync/backend/internal/storage"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery      = "email:deliver"
	TypeLeadConversionMark = "lead:conversion:mark"
	TypeLeadExportArchive  = "lead:export:archive"
	TypeAnalyticsSnapshot  = "analytics:snapshot"
	TypeQuoteExpireSweep   = "quote:expire:sweep"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
		// Add Password, DB if needed from rdb.Options()
	}
	return asynq.NewClient(clientOpt)
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg                  *config.Config
	emailSender          email.Sender
	storageService       storage.IS3Storage
	leadService          services.ILeadService
	analyticsService     services.IAnalyticsService
	quoteService         services.IQuoteService
	configService        services.IConfigService
	emailTemplateService services.IEmailTemplateService
	taskClient           *asynq.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	leadService services.ILeadService,
	analyticsService services.IAnalyticsService,
	quoteService services.IQuoteService,
	configService services.IConfigService,
	emailTemplateService services.IEmailTemplateService,
	taskClient *asynq.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		emailSender:          emailSender,
		storageService:       storageService,
		leadService:          leadService,
		analyticsService:     analyticsService,
		quoteService:         quoteService,
		configService:        configService,
		emailTemplateService: emailTemplateService,
		taskClient:           taskClient,
	}
}

// SetupServer configures and runs an Asynq server instance.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isBgWorker bool) *asynq.Server {
	serverOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
		// Add Password, DB if needed
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				fmt.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v\n", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	if !isBgWorker {
		// API mode doesn't run a task server, but still enqueues tasks
		fmt.Println("Running in API mode, no task server started.")
		return nil
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
	mux.HandleFunc(TypeLeadConversionMark, processor.HandleLeadConversionMarkTask)
	mux.HandleFunc(TypeLeadExportArchive, processor.HandleLeadExportArchiveTask)
	mux.HandleFunc(TypeAnalyticsSnapshot, processor.HandleAnalyticsSnapshotTask)
	mux.HandleFunc(TypeQuoteExpireSweep, processor.HandleQuoteExpireSweepTask)
	fmt.Println("Registered background task handlers.")

	if err := srv.Run(mux); err != nil {
		log.Fatalf("Could not run Asynq server: %v", err)
	}

	return srv
}

// --- Task Handlers ---

// EmailTaskPayload carries a templated email delivery request. LeadID, when
// set, marks the lead as notified once the message is handed off.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"` // Optional locale
	Data       map[string]interface{} `json:"data"`
	LeadID     string                 `json:"lead_id,omitempty"`
}

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	fmt.Printf("Sending email task: To=%s, Template=%s\n", payload.To, payload.TemplateID)

	// Determine locale (use default if not provided)
	locale := payload.Locale
	if locale == "" {
		locale = "en-US"
	}

	// Get Email Template from DB
	tmpl, err := p.emailTemplateService.GetTemplate(ctx, payload.TemplateID, locale)
	if err != nil {
		log.Printf("Error getting email template %s/%s: %v", payload.TemplateID, locale, err)
		// Non-retryable if template not found
		return fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	// Simple placeholder replacement (replace {{.key}})
	subjectRendered := tmpl.Subject
	bodyRendered := tmpl.Body
	for key, val := range payload.Data {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		valueStr := fmt.Sprintf("%v", val) // Basic string conversion
		subjectRendered = strings.ReplaceAll(subjectRendered, placeholder, valueStr)
		bodyRendered = strings.ReplaceAll(bodyRendered, placeholder, valueStr)
	}

	// Construct the raw email message including headers
	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}

	// Basic email structure with essential headers.
	// Note: Proper MIME encoding for HTML or attachments would be more complex.
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subjectRendered))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n") // End of headers
	sb.WriteString(bodyRendered)
	sb.WriteString("\r\n")

	rawMessage := []byte(sb.String())

	err = p.emailSender.Send(ctx, []string{payload.To}, subjectRendered, rawMessage)
	if err != nil {
		fmt.Printf("Email sending failed (will retry?): %v\n", err)
		return err
	}

	if payload.LeadID != "" && payload.TemplateID == "lead_notification" {
		leadID, idErr := utils.ParseSixID(payload.LeadID)
		if idErr != nil {
			log.Printf("Invalid LeadID in email task payload: %s", payload.LeadID)
		} else if markErr := p.leadService.MarkNotified(ctx, leadID); markErr != nil {
			// Email went out; a failed flag update is not worth a resend.
			log.Printf("Error marking lead %s notified: %v", payload.LeadID, markErr)
		}
	}

	fmt.Printf("Email task processed successfully: To=%s, Template=%s\n", payload.To, payload.TemplateID)
	return nil
}

// LeadConversionMarkPayload identifies the lead to flip when an intent-stage
// conversion event arrives from tracking. Either Email or LeadID must be
// set; LeadID wins when both are present.
type LeadConversionMarkPayload struct {
	Email     string    `json:"email,omitempty"`
	LeadID    string    `json:"lead_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleLeadConversionMarkTask marks the most recent lead for the given
// email as converted. Missing leads are skipped: conversions are
// best-effort and anonymous visitors legitimately have no lead.
func (p *TaskProcessor) HandleLeadConversionMarkTask(ctx context.Context, t *asynq.Task) error {
	var payload LeadConversionMarkPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal conversion mark payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.LeadID != "" {
		leadID, err := utils.ParseSixID(payload.LeadID)
		if err != nil {
			return fmt.Errorf("invalid lead ID in conversion mark payload: %v: %w", err, asynq.SkipRetry)
		}
		lead, err := p.leadService.GetLead(ctx, leadID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				log.Printf("No lead %s to mark converted. Skipping.", payload.LeadID)
				return nil
			}
			return err
		}
		payload.Email = lead.Email
	}
	if payload.Email == "" {
		return fmt.Errorf("conversion mark payload has no email or lead ID: %w", asynq.SkipRetry)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}

	lead, err := p.leadService.MarkConversion(ctx, payload.Email, payload.Timestamp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Printf("No lead to mark converted for %s. Skipping.", payload.Email)
			return nil
		}
		return err
	}

	log.Printf("Marked lead %s (%s) as converted.", lead.ID.String(), payload.Email)
	return nil
}

// LeadExportArchivePayload configures an export archive run. Empty filters
// archive the full lead collection.
type LeadExportArchivePayload struct {
	Source string `json:"source,omitempty"`
	Status string `json:"status,omitempty"`
}

// HandleLeadExportArchiveTask renders the lead CSV, uploads it to S3 and
// emails a time-limited download link to the notification address.
func (p *TaskProcessor) HandleLeadExportArchiveTask(ctx context.Context, t *asynq.Task) error {
	var payload LeadExportArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal export archive payload: %v: %w", err, asynq.SkipRetry)
	}

	filter := services.LeadFilter{}
	if payload.Source != "" {
		filter.Source = models.LeadSource(payload.Source)
	}
	if payload.Status != "" {
		filter.Status = models.LeadStatus(payload.Status)
	}

	csvData, err := p.leadService.ExportLeads(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to export leads for archive: %w", err)
	}

	objectKey, err := p.storageService.ArchiveExport(ctx, csvData, "text/csv")
	if err != nil {
		return err
	}
	log.Printf("Archived lead export to %s (%d bytes).", objectKey, len(csvData))

	notifyAddress := p.configService.GetString(ctx, "NOTIFY_EMAIL_ADDRESS", p.cfg.NotifyEmailAddress)
	if notifyAddress == "" {
		return nil
	}

	downloadURL, err := p.storageService.GeneratePresignedGetURL(ctx, objectKey)
	if err != nil {
		log.Printf("Error generating download URL for archive %s: %v", objectKey, err)
		return nil
	}

	emailPayload, err := json.Marshal(EmailTaskPayload{
		To:         notifyAddress,
		TemplateID: "export_ready",
		Data: map[string]interface{}{
			"object_key":   objectKey,
			"download_url": downloadURL,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal export email payload: %w", err)
	}
	if _, err := p.taskClient.EnqueueContext(ctx, asynq.NewTask(TypeEmailDelivery, emailPayload)); err != nil {
		log.Printf("ERROR failed to enqueue export ready email: %v", err)
	}
	return nil
}

// HandleAnalyticsSnapshotTask persists the current analytics aggregate.
// Scheduling is owned by the periodic task manager (see periodic.go).
func (p *TaskProcessor) HandleAnalyticsSnapshotTask(ctx context.Context, t *asynq.Task) error {
	snap, err := p.analyticsService.Snapshot(ctx)
	if err != nil {
		log.Printf("Error capturing analytics snapshot: %v", err)
		return err
	}
	log.Printf("Captured analytics snapshot %s (%d page views).", snap.ID.String(), snap.Data.TotalPageViews)
	return nil
}

// HandleQuoteExpireSweepTask expires sent quotes past their validity window.
func (p *TaskProcessor) HandleQuoteExpireSweepTask(ctx context.Context, t *asynq.Task) error {
	expired, err := p.quoteService.ExpireStaleQuotes(ctx)
	if err != nil {
		log.Printf("Error expiring stale quotes: %v", err)
		return err
	}
	if expired > 0 {
		log.Printf("Expired %d stale quotes.", expired)
	}
	return nil
}
