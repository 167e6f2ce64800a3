package services

import (
	"context"
	"fmt"

	"visionsync/backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Default email templates used as fallback when not found in database
var defaultEmailTemplates = map[string]models.EmailTemplate{
	"lead_notification": {
		TemplateID: "lead_notification",
		Locale:     "en-US",
		Subject:    "New lead: {{.name}} ({{.source}})",
		Body:       "A new {{.priority}} priority lead came in via the {{.source}} form.\n\nName: {{.name}}\nEmail: {{.email}}\nCompany: {{.company}}\n\nMessage:\n{{.message}}",
	},
	"lead_acknowledgement": {
		TemplateID: "lead_acknowledgement",
		Locale:     "en-US",
		Subject:    "Thanks for reaching out to VisionSync",
		Body:       "Hi {{.name}},\n\nThanks for getting in touch. We received your message and will get back to you shortly.\n\nThe VisionSync team",
	},
	"export_ready": {
		TemplateID: "export_ready",
		Locale:     "en-US",
		Subject:    "Lead export ready",
		Body:       "The lead export archive is ready.\n\nObject: {{.object_key}}\nDownload (expires in 15 minutes): {{.download_url}}",
	},
	"quote_sent": {
		TemplateID: "quote_sent",
		Locale:     "en-US",
		Subject:    "Your VisionSync quote {{.quote_number}}",
		Body:       "Hi {{.name}},\n\nPlease find your quote {{.quote_number}} below.\n\nSubtotal: {{.subtotal}}\nTax: {{.tax}}\nTotal: {{.total}}\n\nThis quote is valid for {{.validity_days}} days.",
	},
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
}

const emailTemplatesCollection = "email_templates"

// EmailTemplateService handles operations related to email templates
type EmailTemplateService struct {
	db *mongo.Database
}

// NewEmailTemplateService creates a new instance of EmailTemplateService
func NewEmailTemplateService(db *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{
		db: db,
	}
}

// GetTemplate retrieves an email template by ID and locale
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	collection := s.db.Collection(emailTemplatesCollection)
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	var template models.EmailTemplate
	err := collection.FindOne(ctx, filter).Decode(&template)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// If template not found in DB, try to get from defaults
			if defaultTemplate, ok := defaultEmailTemplates[templateID]; ok {
				return &defaultTemplate, nil
			}
			return nil, fmt.Errorf("template not found: %s (locale: %s)", templateID, locale)
		}
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}

	return &template, nil
}

// SaveTemplate saves an email template to the database
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	collection := s.db.Collection(emailTemplatesCollection)
	filter := bson.M{
		"template_id": template.TemplateID,
		"locale":      template.Locale,
	}

	update := bson.M{"$set": template}
	opts := options.Update().SetUpsert(true)

	_, err := collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}

	return nil
}

// DeleteTemplate deletes an email template from the database
func (s *EmailTemplateService) DeleteTemplate(ctx context.Context, templateID string, locale string) error {
	collection := s.db.Collection(emailTemplatesCollection)
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	_, err := collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("error deleting template: %w", err)
	}

	return nil
}
