package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"kanzlei/insolvenzpanel/internal/models"
	"kanzlei/insolvenzpanel/internal/services"
	"kanzlei/insolvenzpanel/internal/utils"
)

// RestBrandingHandler serves tenant configuration: a public lookup for the
// storefront and admin-only CRUD. SMTP credentials never leave the server;
// the model's JSON tags keep them out of every response.
type RestBrandingHandler struct {
	brandingService services.IBrandingService
}

func NewRestBrandingHandler(brandingService services.IBrandingService) *RestBrandingHandler {
	return &RestBrandingHandler{brandingService: brandingService}
}

// GetBrandingForHost resolves the tenant for the requesting storefront. The
// host comes from an explicit ?host= query or the Origin header.
func (h *RestBrandingHandler) GetBrandingForHost(c *gin.Context) {
	host := c.Query("host")
	if host == "" {
		host = c.GetHeader("Origin")
	}
	if host == "" {
		host = c.Request.Host
	}

	branding, err := h.brandingService.MatchByURL(c.Request.Context(), host)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No branding configured for this host"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not resolve branding"})
		return
	}
	c.JSON(http.StatusOK, branding)
}

// ListBrandings lists all tenants for the admin panel.
func (h *RestBrandingHandler) ListBrandings(c *gin.Context) {
	brandings, err := h.brandingService.ListBrandings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list brandings"})
		return
	}
	c.JSON(http.StatusOK, brandings)
}

// GetBranding returns one tenant by ID.
func (h *RestBrandingHandler) GetBranding(c *gin.Context) {
	id, ok := parseBrandingID(c)
	if !ok {
		return
	}
	branding, err := h.brandingService.FindBrandingByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Branding not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load branding"})
		return
	}
	c.JSON(http.StatusOK, branding)
}

// CreateBranding registers a new tenant.
func (h *RestBrandingHandler) CreateBranding(c *gin.Context) {
	var branding models.Branding
	if err := c.ShouldBindJSON(&branding); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.brandingService.CreateBranding(c.Request.Context(), &branding); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, branding)
}

// UpdateBranding applies a partial update to a tenant. Unknown fields are
// rejected by the service.
func (h *RestBrandingHandler) UpdateBranding(c *gin.Context) {
	id, ok := parseBrandingID(c)
	if !ok {
		return
	}
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.brandingService.UpdateBranding(c.Request.Context(), id, updates); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Branding not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func parseBrandingID(c *gin.Context) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil || id == (utils.SixID{}) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid branding ID"})
		return utils.SixID{}, false
	}
	return id, true
}
