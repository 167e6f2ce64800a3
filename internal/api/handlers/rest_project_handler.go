package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"visionsync/backend/internal/models"
	"visionsync/backend/internal/services"
	"visionsync/backend/internal/utils"
)

// RestProjectHandler handles the public portfolio catalogue and the admin
// project management endpoints.
type RestProjectHandler struct {
	projectService services.IProjectService
}

// NewRestProjectHandler creates a new RestProjectHandler.
func NewRestProjectHandler(projectService services.IProjectService) *RestProjectHandler {
	return &RestProjectHandler{projectService: projectService}
}

// ListProjects handles GET /v1/projects (public, published only) and
// GET /v1/admin/projects (drafts included).
func (h *RestProjectHandler) ListProjects(includeDrafts bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := services.ProjectFilter{
			Industry:      c.Query("industry"),
			Tag:           c.Query("tag"),
			FeaturedOnly:  c.Query("featured") == "true",
			IncludeDrafts: includeDrafts,
		}
		projects, err := h.projectService.ListProjects(c.Request.Context(), filter)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list projects"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": projects})
	}
}

// GetProjectBySlug handles GET /v1/projects/:slug
func (h *RestProjectHandler) GetProjectBySlug(c *gin.Context) {
	project, err := h.projectService.GetProjectBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch project"})
		return
	}
	c.JSON(http.StatusOK, project)
}

// CreateProject handles POST /v1/admin/projects
func (h *RestProjectHandler) CreateProject(c *gin.Context) {
	var project models.Project
	if err := c.ShouldBindJSON(&project); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	created, err := h.projectService.CreateProject(c.Request.Context(), &project)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateProject handles PUT /v1/admin/projects/:id
func (h *RestProjectHandler) UpdateProject(c *gin.Context) {
	projectID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format"})
		return
	}

	var project models.Project
	if err := c.ShouldBindJSON(&project); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	updated, err := h.projectService.UpdateProject(c.Request.Context(), projectID, &project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// PublishProject handles POST /v1/admin/projects/:id/publish
func (h *RestProjectHandler) PublishProject(c *gin.Context) {
	projectID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format"})
		return
	}

	project, err := h.projectService.PublishProject(c.Request.Context(), projectID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to publish project"})
		return
	}
	c.JSON(http.StatusOK, project)
}

// DeleteProject handles DELETE /v1/admin/projects/:id
func (h *RestProjectHandler) DeleteProject(c *gin.Context) {
	projectID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format"})
		return
	}

	if err := h.projectService.DeleteProject(c.Request.Context(), projectID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTemplates handles GET /v1/templates
func (h *RestProjectHandler) ListTemplates(c *gin.Context) {
	templates, err := h.projectService.ListTemplates(c.Request.Context(), c.Query("industry"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list templates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": templates})
}

// GetTemplateBySlug handles GET /v1/templates/:slug
func (h *RestProjectHandler) GetTemplateBySlug(c *gin.Context) {
	template, err := h.projectService.GetTemplateBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch template"})
		return
	}
	c.JSON(http.StatusOK, template)
}

// CreateTemplate handles POST /v1/admin/templates
func (h *RestProjectHandler) CreateTemplate(c *gin.Context) {
	var template models.Template
	if err := c.ShouldBindJSON(&template); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	created, err := h.projectService.CreateTemplate(c.Request.Context(), &template)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListIndustries handles GET /v1/industries
func (h *RestProjectHandler) ListIndustries(c *gin.Context) {
	industries, err := h.projectService.ListIndustries(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list industries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": industries})
}
