package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"kanzlei/insolvenzpanel/internal/api/handlers"
	"kanzlei/insolvenzpanel/internal/api/middleware"
	"kanzlei/insolvenzpanel/internal/cache"
	"kanzlei/insolvenzpanel/internal/captcha"
	"kanzlei/insolvenzpanel/internal/config"
	"kanzlei/insolvenzpanel/internal/services"
	"kanzlei/insolvenzpanel/internal/storage"
	"kanzlei/insolvenzpanel/internal/utils"
)

// RegisterValidations attaches the custom binding validators. "chassis"
// checks the 17-character VIN alphabet (no I, O or Q).
func RegisterValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("chassis", func(fl validator.FieldLevel) bool {
			return utils.IsValidChassis(fl.Field().String())
		})
	}
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient services.TaskEnqueuer, brandingService services.IBrandingService) *gin.Engine {
	queryCache := cache.NewQueryCache(rdb, cfg.GetCacheTTL)

	vehicleService := services.NewVehicleService(db, cfg, queryCache)
	inquiryService := services.NewInquiryService(db, cfg, vehicleService, queryCache)
	noteService := services.NewNoteService(db)
	leadService := services.NewLeadService(db)
	userService := services.NewUserService(db)
	templateService := services.NewEmailTemplateService(db)
	transferService := services.NewTransferService(cfg, inquiryService, queryCache, nil)

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	reportService := services.NewReportService(vehicleService, s3StorageService)
	documentService := services.NewDocumentService(cfg, inquiryService, brandingService, s3StorageService, taskClient, nil)

	captchaVerifier := captcha.NewTurnstileVerifier(cfg)

	RegisterValidations()

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Order matters: captcha has to run before the rate limiter so verified
	// humans bypass the soft limit.
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CaptchaMiddleware(captchaVerifier))
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewRestAuthHandler(cfg, userService)
	vehicleHandler := handlers.NewRestVehicleHandler(vehicleService, reportService, s3StorageService, taskClient)
	inquiryHandler := handlers.NewRestInquiryHandler(
		inquiryService, noteService, transferService, documentService, leadService, brandingService, taskClient)
	leadHandler := handlers.NewRestLeadHandler(leadService)
	brandingHandler := handlers.NewRestBrandingHandler(brandingService)
	templateHandler := handlers.NewRestTemplateHandler(templateService)

	v1 := r.Group("/v1")
	{
		// Public storefront routes
		v1.POST("/auth/login", authHandler.Login)
		v1.GET("/branding", brandingHandler.GetBrandingForHost)
		v1.GET("/vehicle/search", vehicleHandler.SearchVehicles)
		v1.GET("/vehicle/:id", vehicleHandler.GetVehicleByID)
		v1.POST("/inquiry", inquiryHandler.SubmitInquiry)
		v1.POST("/lead/verify", leadHandler.VerifyLead)
		v1.GET("/lead/:id/reserved", leadHandler.ListReservedVehicles)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Staff routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/inquiry", inquiryHandler.ListInquiries)
			authRequired.GET("/inquiry/:id", inquiryHandler.GetInquiry)
			authRequired.PUT("/inquiry/:id/status", inquiryHandler.UpdateStatus)
			authRequired.PUT("/inquiry/:id/discount", inquiryHandler.SetDiscount)
			authRequired.PUT("/inquiry/:id/vehicles", inquiryHandler.UpdateVehicleSelection)
			authRequired.PUT("/inquiry/:id/customer", inquiryHandler.UpdateCustomer)
			authRequired.PUT("/inquiry/:id/call-priority", inquiryHandler.SetCallPriority)
			authRequired.GET("/inquiry/:id/notes", inquiryHandler.ListNotes)
			authRequired.POST("/inquiry/:id/notes", inquiryHandler.AddNote)
			authRequired.POST("/inquiry/:id/mailbox", inquiryHandler.AddMailboxMarker)
			authRequired.GET("/inquiry/:id/history", inquiryHandler.ListStatusHistory)
			authRequired.POST("/inquiry/:id/transfer", inquiryHandler.TransferInquiry)
			authRequired.POST("/inquiry/:id/documents", inquiryHandler.GenerateDocuments)

			authRequired.POST("/vehicle", vehicleHandler.CreateVehicle)
			authRequired.PUT("/vehicle/:id", vehicleHandler.UpdateVehicle)
			authRequired.DELETE("/vehicle/:id", vehicleHandler.DeleteVehicle)
			authRequired.POST("/vehicle/:id/image-upload-url", vehicleHandler.GetImageUploadURL)
			authRequired.POST("/vehicle/:id/images", vehicleHandler.ConfirmImageUpload)
			authRequired.POST("/vehicle/reports", vehicleHandler.UploadReports)

			authRequired.GET("/campaign", leadHandler.ListCampaigns)
			authRequired.POST("/campaign", leadHandler.CreateCampaign)
			authRequired.GET("/campaign/:id/leads", leadHandler.ListLeads)
			authRequired.POST("/campaign/:id/leads", leadHandler.CreateLead)
			authRequired.POST("/lead/:id/reserve", leadHandler.ReserveVehicle)
		}

		// Admin routes
		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.POST("/user", authHandler.CreateUser)
			adminRequired.GET("/branding", brandingHandler.ListBrandings)
			adminRequired.POST("/branding", brandingHandler.CreateBranding)
			adminRequired.GET("/branding/:id", brandingHandler.GetBranding)
			adminRequired.PUT("/branding/:id", brandingHandler.UpdateBranding)
			adminRequired.GET("/template/:template_id", templateHandler.GetTemplate)
			adminRequired.PUT("/template/:template_id", templateHandler.SaveTemplate)
		}
	}

	return r
}

// SetupServiceRouter configures the internal service engine. It only answers
// on the service port and is never exposed publicly: remote shutdown for
// deploys, plus mock-email retrieval for end-to-end tests.
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
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
			}
		case "getTestEmail":
			var args []string // ["kind", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [kind, email]"})
				return
			}
			redisKey := fmt.Sprintf("mockemail:%s:%s", args[1], args[0])

			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()

			var emailJSON string
			found := false
			for i := 0; i < 10; i++ {
				val, getErr := rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					emailJSON = val
					found = true
					rdb.Del(ctx, redisKey)
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}
			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found for key %s", redisKey)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJSON), &emailData); err != nil {
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
