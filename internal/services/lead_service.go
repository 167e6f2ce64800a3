package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"visionsync/backend/internal/config"
	"visionsync/backend/internal/db"
	"visionsync/backend/internal/models"
	"visionsync/backend/internal/utils"
)

// ILeadService defines the interface for lead capture and management.
type ILeadService interface {
	SaveLead(ctx context.Context, lead *models.Lead) (*models.Lead, error)
	GetLead(ctx context.Context, id utils.SixID) (*models.Lead, error)
	GetAllLeads(ctx context.Context, filter LeadFilter) ([]models.Lead, error)
	UpdateLead(ctx context.Context, id utils.SixID, update LeadUpdate) (*models.Lead, error)
	DeleteLead(ctx context.Context, id utils.SixID) error
	GetLeadStats(ctx context.Context) (*models.LeadStats, error)
	ExportLeads(ctx context.Context, filter LeadFilter) ([]byte, error)
	MarkConversion(ctx context.Context, email string, at time.Time) (*models.Lead, error)
	MarkNotified(ctx context.Context, id utils.SixID) error
}

const leadsCollection = "leads"

// LeadFilter narrows GetAllLeads/ExportLeads. Zero values mean "any".
type LeadFilter struct {
	Source   models.LeadSource
	Status   models.LeadStatus
	Priority models.LeadPriority
	Since    *time.Time
}

// LeadUpdate carries the mutable fields of a lead. Nil pointers are left
// untouched. Priority is deliberately absent: it is derived once at capture
// time and kept stable afterwards.
type LeadUpdate struct {
	Status  *models.LeadStatus
	Name    *string
	Email   *string
	Phone   *string
	Company *string
	Message *string
}

// leadService implements ILeadService.
type leadService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewLeadService creates a new LeadService.
func NewLeadService(db *mongo.Database, cfg *config.Config) ILeadService {
	return &leadService{db: db, cfg: cfg}
}

// SaveLead validates and persists a captured lead. The caller fills Source,
// the contact fields and the per-source details; status, priority and
// timestamps are set here. Detail blocks that do not match Source are
// dropped before priority is derived from the submitted urgency and budget
// hints; priority is stored on the document and never recomputed on reads.
func (s *leadService) SaveLead(ctx context.Context, lead *models.Lead) (*models.Lead, error) {
	if !models.ValidLeadSource(lead.Source) {
		return nil, fmt.Errorf("unknown lead source %q", lead.Source)
	}
	if lead.Name == "" || lead.Email == "" {
		return nil, fmt.Errorf("lead must have a name and an email")
	}

	now := time.Now().UTC()
	lead.PruneDetails()
	lead.Status = models.LeadStatusNew
	lead.Priority = lead.DerivedPriority()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	lead.Notified = false
	lead.Deleted = false
	lead.ConversionMarkedAt = nil

	doc, err := db.InsertOne(ctx, s.db.Collection(leadsCollection), lead)
	if err != nil {
		return nil, fmt.Errorf("failed to insert lead: %w", err)
	}
	return doc.(*models.Lead), nil
}

// GetLead fetches a single non-deleted lead by ID.
// Returns mongo.ErrNoDocuments if none found.
func (s *leadService) GetLead(ctx context.Context, id utils.SixID) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.Collection(leadsCollection).FindOne(ctx, bson.M{"_id": id, "deleted": bson.M{"$ne": true}}).Decode(&lead)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to fetch lead %s: %w", id.String(), err)
	}
	return &lead, nil
}

// GetAllLeads returns non-deleted leads matching the filter, newest first.
// Storage errors are logged and degrade to an empty list.
func (s *leadService) GetAllLeads(ctx context.Context, filter LeadFilter) ([]models.Lead, error) {
	query := buildLeadFilterQuery(filter)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(leadsCollection).Find(ctx, query, opts)
	if err != nil {
		log.Printf("ERROR failed to query leads: %v", err)
		return []models.Lead{}, nil
	}
	defer cursor.Close(ctx)

	leads := []models.Lead{}
	if err := cursor.All(ctx, &leads); err != nil {
		log.Printf("ERROR failed to decode leads: %v", err)
		return []models.Lead{}, nil
	}
	return leads, nil
}

func buildLeadFilterQuery(filter LeadFilter) bson.M {
	query := bson.M{"deleted": bson.M{"$ne": true}}
	if filter.Source != "" {
		query["source"] = filter.Source
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Priority != "" {
		query["priority"] = filter.Priority
	}
	if filter.Since != nil {
		query["created_at"] = bson.M{"$gte": *filter.Since}
	}
	return query
}

// UpdateLead applies the given field updates to a lead. Returns the updated
// document, or mongo.ErrNoDocuments when the lead is unknown or deleted.
func (s *leadService) UpdateLead(ctx context.Context, id utils.SixID, update LeadUpdate) (*models.Lead, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Status != nil {
		if !models.ValidLeadStatus(*update.Status) {
			return nil, fmt.Errorf("unknown lead status %q", *update.Status)
		}
		set["status"] = *update.Status
	}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}
	if update.Company != nil {
		set["company"] = *update.Company
	}
	if update.Message != nil {
		set["message"] = *update.Message
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var lead models.Lead
	err := s.db.Collection(leadsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "deleted": bson.M{"$ne": true}},
		bson.M{"$set": set}, opts).Decode(&lead)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update lead %s: %w", id.String(), err)
	}
	return &lead, nil
}

// DeleteLead soft-deletes a lead. Deleted leads drop out of listings, stats
// and exports but stay in the collection.
func (s *leadService) DeleteLead(ctx context.Context, id utils.SixID) error {
	res, err := s.db.Collection(leadsCollection).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to delete lead %s: %w", id.String(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// GetLeadStats computes the dashboard aggregate over all non-deleted leads.
func (s *leadService) GetLeadStats(ctx context.Context) (*models.LeadStats, error) {
	leads, err := s.GetAllLeads(ctx, LeadFilter{})
	if err != nil {
		return nil, err
	}
	return models.ComputeLeadStats(leads, time.Now().UTC()), nil
}

// ExportLeads renders the filtered leads as CSV. Zero matching leads still
// yield the header row.
func (s *leadService) ExportLeads(ctx context.Context, filter LeadFilter) ([]byte, error) {
	leads, err := s.GetAllLeads(ctx, filter)
	if err != nil {
		return nil, err
	}
	csvData, err := models.LeadsToCSV(leads)
	if err != nil {
		return nil, fmt.Errorf("failed to render lead CSV: %w", err)
	}
	return []byte(csvData), nil
}

// MarkConversion flips the most recent non-converted lead for the given
// email to converted. Called from the background task handling intent-stage
// conversion events. Returns mongo.ErrNoDocuments when no candidate exists.
func (s *leadService) MarkConversion(ctx context.Context, email string, at time.Time) (*models.Lead, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "created_at", Value: -1}})
	var lead models.Lead
	err := s.db.Collection(leadsCollection).FindOneAndUpdate(ctx,
		bson.M{
			"email":   email,
			"status":  bson.M{"$ne": models.LeadStatusConverted},
			"deleted": bson.M{"$ne": true},
		},
		bson.M{"$set": bson.M{
			"status":               models.LeadStatusConverted,
			"conversion_marked_at": at,
			"updated_at":           time.Now().UTC(),
		}}, opts).Decode(&lead)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to mark conversion for %s: %w", email, err)
	}
	return &lead, nil
}

// MarkNotified records that the admin notification email for a lead went out.
func (s *leadService) MarkNotified(ctx context.Context, id utils.SixID) error {
	_, err := s.db.Collection(leadsCollection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"notified": true}})
	if err != nil {
		return fmt.Errorf("failed to mark lead %s notified: %w", id.String(), err)
	}
	return nil
}
