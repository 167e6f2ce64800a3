package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"visionsync/backend/internal/auth"
	"visionsync/backend/internal/config"
)

// RestAuthHandler handles admin authentication. There is a single admin
// identity configured through the environment; no user accounts exist.
type RestAuthHandler struct {
	cfg *config.Config
}

// NewRestAuthHandler creates a new RestAuthHandler.
func NewRestAuthHandler(cfg *config.Config) *RestAuthHandler {
	return &RestAuthHandler{cfg: cfg}
}

// LoginArgs is the admin login request body.
type LoginArgs struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /v1/admin/login
func (h *RestAuthHandler) Login(c *gin.Context) {
	var args LoginArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	if h.cfg.AdminEmail == "" || h.cfg.AdminPasswordHash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin login is not configured"})
		return
	}

	if !strings.EqualFold(args.Email, h.cfg.AdminEmail) || !auth.CheckPasswordHash(args.Password, h.cfg.AdminPasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := auth.GenerateJWT(h.cfg.AdminEmail, true, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int(h.cfg.JwtTTL.Seconds())})
}
