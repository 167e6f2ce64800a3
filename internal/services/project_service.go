package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"visionsync/backend/internal/db"
	"visionsync/backend/internal/models"
	"visionsync/backend/internal/utils"
)

// IProjectService defines the interface for the public project and template
// catalogue.
type IProjectService interface {
	CreateProject(ctx context.Context, project *models.Project) (*models.Project, error)
	GetProject(ctx context.Context, id utils.SixID) (*models.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]models.Project, error)
	UpdateProject(ctx context.Context, id utils.SixID, project *models.Project) (*models.Project, error)
	PublishProject(ctx context.Context, id utils.SixID) (*models.Project, error)
	DeleteProject(ctx context.Context, id utils.SixID) error

	CreateTemplate(ctx context.Context, tmpl *models.Template) (*models.Template, error)
	ListTemplates(ctx context.Context, industry string) ([]models.Template, error)
	GetTemplateBySlug(ctx context.Context, slug string) (*models.Template, error)

	ListIndustries(ctx context.Context) ([]models.Industry, error)
}

const (
	projectsCollection   = "projects"
	templatesCollection  = "templates"
	industriesCollection = "industries"
)

// ProjectFilter narrows ListProjects. Zero values mean "any".
type ProjectFilter struct {
	Industry      string
	Tag           string
	FeaturedOnly  bool
	IncludeDrafts bool // Admin listings only; public reads keep drafts hidden
}

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify lowercases a title and collapses runs of non-alphanumerics to
// single hyphens.
func Slugify(title string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

// projectService implements IProjectService.
type projectService struct {
	db *mongo.Database
}

// NewProjectService creates a new ProjectService.
func NewProjectService(database *mongo.Database) IProjectService {
	return &projectService{db: database}
}

// CreateProject persists a new catalogue project. Projects are created as
// drafts unless explicitly published later. A missing slug is derived from
// the title; slugs must be unique among non-deleted projects.
func (s *projectService) CreateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	if project.Title == "" {
		return nil, fmt.Errorf("project must have a title")
	}
	if project.Slug == "" {
		project.Slug = Slugify(project.Title)
	}
	if !slugPattern.MatchString(project.Slug) {
		return nil, fmt.Errorf("invalid slug %q", project.Slug)
	}
	if err := s.checkSlugFree(ctx, projectsCollection, project.Slug); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	project.IsDraft = true
	project.PublishedAt = nil
	project.CreatedAt = now
	project.UpdatedAt = now
	project.Deleted = false

	doc, err := db.InsertOne(ctx, s.db.Collection(projectsCollection), project)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}
	return doc.(*models.Project), nil
}

func (s *projectService) checkSlugFree(ctx context.Context, collection, slug string) error {
	count, err := s.db.Collection(collection).CountDocuments(ctx,
		bson.M{"slug": slug, "deleted": bson.M{"$ne": true}})
	if err != nil {
		return fmt.Errorf("failed to check slug %q: %w", slug, err)
	}
	if count > 0 {
		return fmt.Errorf("slug %q is already taken", slug)
	}
	return nil
}

// GetProject fetches a single non-deleted project by ID.
// Returns mongo.ErrNoDocuments if none found.
func (s *projectService) GetProject(ctx context.Context, id utils.SixID) (*models.Project, error) {
	var project models.Project
	err := s.db.Collection(projectsCollection).FindOne(ctx,
		bson.M{"_id": id, "deleted": bson.M{"$ne": true}}).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to fetch project %s: %w", id.String(), err)
	}
	return &project, nil
}

// GetProjectBySlug fetches a published project by its public slug.
func (s *projectService) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	var project models.Project
	err := s.db.Collection(projectsCollection).FindOne(ctx,
		bson.M{"slug": slug, "is_draft": false, "deleted": bson.M{"$ne": true}}).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to fetch project %q: %w", slug, err)
	}
	return &project, nil
}

// ListProjects returns catalogue projects matching the filter, featured
// first, then newest.
func (s *projectService) ListProjects(ctx context.Context, filter ProjectFilter) ([]models.Project, error) {
	query := bson.M{"deleted": bson.M{"$ne": true}}
	if !filter.IncludeDrafts {
		query["is_draft"] = false
	}
	if filter.Industry != "" {
		query["industry"] = filter.Industry
	}
	if filter.Tag != "" {
		query["tags"] = filter.Tag
	}
	if filter.FeaturedOnly {
		query["featured"] = true
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "featured", Value: -1},
		{Key: "created_at", Value: -1},
	})
	cursor, err := s.db.Collection(projectsCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer cursor.Close(ctx)

	projects := []models.Project{}
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}
	return projects, nil
}

// UpdateProject replaces the editable fields of a project. Slug changes are
// re-validated; draft/published state is managed via PublishProject.
func (s *projectService) UpdateProject(ctx context.Context, id utils.SixID, project *models.Project) (*models.Project, error) {
	existing, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.Slug != "" && project.Slug != existing.Slug {
		if !slugPattern.MatchString(project.Slug) {
			return nil, fmt.Errorf("invalid slug %q", project.Slug)
		}
		if err := s.checkSlugFree(ctx, projectsCollection, project.Slug); err != nil {
			return nil, err
		}
	} else {
		project.Slug = existing.Slug
	}

	set := bson.M{
		"title":       project.Title,
		"slug":        project.Slug,
		"description": project.Description,
		"industry":    project.Industry,
		"tags":        project.Tags,
		"price":       project.Price,
		"images":      project.Images,
		"featured":    project.Featured,
		"updated_at":  time.Now().UTC(),
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Project
	err = s.db.Collection(projectsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "deleted": bson.M{"$ne": true}},
		bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update project %s: %w", id.String(), err)
	}
	return &updated, nil
}

// PublishProject flips a draft to published and stamps PublishedAt.
// Publishing an already published project is a no-op returning the project.
func (s *projectService) PublishProject(ctx context.Context, id utils.SixID) (*models.Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if !project.IsDraft {
		return project, nil
	}

	now := time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Project
	err = s.db.Collection(projectsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "deleted": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"is_draft": false, "published_at": now, "updated_at": now}}, opts).Decode(&updated)
	if err != nil {
		return nil, fmt.Errorf("failed to publish project %s: %w", id.String(), err)
	}
	return &updated, nil
}

// DeleteProject soft-deletes a project, removing it from all listings.
func (s *projectService) DeleteProject(ctx context.Context, id utils.SixID) error {
	res, err := s.db.Collection(projectsCollection).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id.String(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// CreateTemplate persists a new sellable template.
func (s *projectService) CreateTemplate(ctx context.Context, tmpl *models.Template) (*models.Template, error) {
	if tmpl.Name == "" {
		return nil, fmt.Errorf("template must have a name")
	}
	if tmpl.Slug == "" {
		tmpl.Slug = Slugify(tmpl.Name)
	}
	if !slugPattern.MatchString(tmpl.Slug) {
		return nil, fmt.Errorf("invalid slug %q", tmpl.Slug)
	}
	if err := s.checkSlugFree(ctx, templatesCollection, tmpl.Slug); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now
	tmpl.Deleted = false

	doc, err := db.InsertOne(ctx, s.db.Collection(templatesCollection), tmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to insert template: %w", err)
	}
	return doc.(*models.Template), nil
}

// ListTemplates returns templates, optionally filtered by industry.
func (s *projectService) ListTemplates(ctx context.Context, industry string) ([]models.Template, error) {
	query := bson.M{"deleted": bson.M{"$ne": true}}
	if industry != "" {
		query["industry"] = industry
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.db.Collection(templatesCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer cursor.Close(ctx)

	templates := []models.Template{}
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, fmt.Errorf("failed to decode templates: %w", err)
	}
	return templates, nil
}

// GetTemplateBySlug fetches a template by its public slug.
func (s *projectService) GetTemplateBySlug(ctx context.Context, slug string) (*models.Template, error) {
	var tmpl models.Template
	err := s.db.Collection(templatesCollection).FindOne(ctx,
		bson.M{"slug": slug, "deleted": bson.M{"$ne": true}}).Decode(&tmpl)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to fetch template %q: %w", slug, err)
	}
	return &tmpl, nil
}

// ListIndustries returns the catalogue filter dimensions, sorted by name.
func (s *projectService) ListIndustries(ctx context.Context) ([]models.Industry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.db.Collection(industriesCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query industries: %w", err)
	}
	defer cursor.Close(ctx)

	industries := []models.Industry{}
	if err := cursor.All(ctx, &industries); err != nil {
		return nil, fmt.Errorf("failed to decode industries: %w", err)
	}
	return industries, nil
}
