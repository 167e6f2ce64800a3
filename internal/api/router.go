package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"visionsync/backend/internal/api/handlers"
	"visionsync/backend/internal/api/middleware"
	"visionsync/backend/internal/captcha"
	"visionsync/backend/internal/config"
	"visionsync/backend/internal/services"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.ITaskClient, configSvc services.IConfigService) *gin.Engine {
	// Initialize services needed by API handlers
	leadService := services.NewLeadService(db, cfg)
	analyticsService := services.NewAnalyticsService(db, rdb, cfg)
	quoteService := services.NewQuoteService(db, cfg, leadService)
	projectService := services.NewProjectService(db)
	currencyService := services.NewCurrencyService(rdb)

	// Initialize Captcha Verifier
	captchaVerifier := captcha.NewTurnstileVerifier(cfg)

	r := gin.Default()

	// Initialize Middleware
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, configSvc)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier))
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	restConfigHandler := handlers.NewRestConfigHandler(configSvc)
	restAuthHandler := handlers.NewRestAuthHandler(cfg)
	restLeadHandler := handlers.NewRestLeadHandler(leadService, configSvc, taskClient, cfg)
	restAnalyticsHandler := handlers.NewRestAnalyticsHandler(analyticsService, taskClient)
	restQuoteHandler := handlers.NewRestQuoteHandler(quoteService, leadService, taskClient, cfg)
	restProjectHandler := handlers.NewRestProjectHandler(projectService)
	restCurrencyHandler := handlers.NewRestCurrencyHandler(currencyService)

	v1 := r.Group("/v1")
	{
		// Public routes (rate limiting already applied globally)
		v1.GET("/config", restConfigHandler.GetPublicConfig)
		v1.POST("/leads", restLeadHandler.SubmitLead)

		// Event tracking
		v1.POST("/track/page-view", restAnalyticsHandler.TrackPageView)
		v1.POST("/track/interaction", restAnalyticsHandler.TrackInteraction)
		v1.POST("/track/conversion", restAnalyticsHandler.TrackConversion)

		// Portfolio catalogue
		v1.GET("/projects", restProjectHandler.ListProjects(false))
		v1.GET("/projects/:slug", restProjectHandler.GetProjectBySlug)
		v1.GET("/templates", restProjectHandler.ListTemplates)
		v1.GET("/templates/:slug", restProjectHandler.GetTemplateBySlug)
		v1.GET("/industries", restProjectHandler.ListIndustries)

		// Currency
		v1.GET("/currencies", restCurrencyHandler.ListCurrencies)
		v1.GET("/currencies/selection", restCurrencyHandler.GetSelection)
		v1.PUT("/currencies/selection", restCurrencyHandler.SetSelection)
		v1.GET("/currencies/convert", restCurrencyHandler.Convert)

		v1.POST("/admin/login", restAuthHandler.Login)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Admin routes (already have rate limiting from global middleware)
		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.GET("/leads", restLeadHandler.ListLeads)
			adminRequired.GET("/leads/stats", restLeadHandler.GetLeadStats)
			adminRequired.GET("/leads/export", restLeadHandler.ExportLeads)
			adminRequired.GET("/leads/:id", restLeadHandler.GetLead)
			adminRequired.PATCH("/leads/:id", restLeadHandler.UpdateLead)
			adminRequired.DELETE("/leads/:id", restLeadHandler.DeleteLead)
			adminRequired.GET("/leads/:id/quotes", restQuoteHandler.ListQuotesForLead)

			adminRequired.POST("/quotes", restQuoteHandler.CreateQuote)
			adminRequired.GET("/quotes/:id", restQuoteHandler.GetQuote)
			adminRequired.PUT("/quotes/:id", restQuoteHandler.UpdateQuote)
			adminRequired.POST("/quotes/:id/transition", restQuoteHandler.TransitionQuote)
			adminRequired.DELETE("/quotes/:id", restQuoteHandler.DeleteQuote)

			adminRequired.GET("/analytics", restAnalyticsHandler.GetAnalytics)
			adminRequired.GET("/analytics/snapshot", restAnalyticsHandler.GetLatestSnapshot)
			adminRequired.POST("/analytics/snapshot", restAnalyticsHandler.TakeSnapshot)
			adminRequired.DELETE("/analytics/events", restAnalyticsHandler.ClearEvents)

			adminRequired.GET("/projects", restProjectHandler.ListProjects(true))
			adminRequired.POST("/projects", restProjectHandler.CreateProject)
			adminRequired.PUT("/projects/:id", restProjectHandler.UpdateProject)
			adminRequired.POST("/projects/:id/publish", restProjectHandler.PublishProject)
			adminRequired.DELETE("/projects/:id", restProjectHandler.DeleteProject)
			adminRequired.POST("/templates", restProjectHandler.CreateTemplate)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine.
// Requires Redis for the getTestEmail endpoint used by integration tests.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestEmail":
			var args []string // Expect ["kind", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [kind, email]"})
				return
			}
			kind := args[0]
			emailAddr := args[1]
			redisKey := fmt.Sprintf("mockemail:%s:%s", emailAddr, kind)

			// Poll Redis briefly for the key
			var emailJsonData string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ { // Poll up to ~2 seconds
				emailJsonData, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey) // Delete after fetching
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				// If redis.Nil, wait and retry
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJsonData), &emailData); err != nil {
				log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
