package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"kanzlei/insolvenzpanel/internal/services"
	"kanzlei/insolvenzpanel/internal/utils"
)

// RestLeadHandler exposes the cold-call lead flow: a public credential check
// for prospects and staff endpoints for campaigns, leads and reservations.
type RestLeadHandler struct {
	leadService services.ILeadService
}

func NewRestLeadHandler(leadService services.ILeadService) *RestLeadHandler {
	return &RestLeadHandler{leadService: leadService}
}

type verifyLeadRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// VerifyLead checks a prospect's pre-issued credentials. Wrong email and
// wrong password are indistinguishable in the response.
func (h *RestLeadHandler) VerifyLead(c *gin.Context) {
	var req verifyLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	lead, err := h.leadService.VerifyLeadPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrLeadAuthFailed) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		return
	}
	c.JSON(http.StatusOK, lead)
}

type createCampaignRequest struct {
	BrandingID string `json:"branding_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
}

// CreateCampaign opens a new lead campaign under a branding.
func (h *RestLeadHandler) CreateCampaign(c *gin.Context) {
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	brandingID, err := utils.ParseSixID(req.BrandingID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid branding ID"})
		return
	}

	campaign, err := h.leadService.CreateCampaign(c.Request.Context(), brandingID, req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

// ListCampaigns lists campaigns, optionally filtered by branding_id.
func (h *RestLeadHandler) ListCampaigns(c *gin.Context) {
	brandingID, ok := parseBrandingQuery(c)
	if !ok {
		return
	}
	campaigns, err := h.leadService.ListCampaigns(c.Request.Context(), brandingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list campaigns"})
		return
	}
	c.JSON(http.StatusOK, campaigns)
}

type createLeadRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// CreateLead issues a credential for a prospect. The generated password is
// returned exactly once, in this response.
func (h *RestLeadHandler) CreateLead(c *gin.Context) {
	campaignID, err := utils.ParseSixID(c.Param("id"))
	if err != nil || campaignID == (utils.SixID{}) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign ID"})
		return
	}
	var req createLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	lead, password, err := h.leadService.CreateLead(c.Request.Context(), campaignID, req.Email)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"lead": lead, "password": password})
}

// ListLeads lists the leads of a campaign.
func (h *RestLeadHandler) ListLeads(c *gin.Context) {
	campaignID, err := utils.ParseSixID(c.Param("id"))
	if err != nil || campaignID == (utils.SixID{}) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign ID"})
		return
	}
	leads, err := h.leadService.ListLeads(c.Request.Context(), campaignID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list leads"})
		return
	}
	c.JSON(http.StatusOK, leads)
}

type reserveVehicleRequest struct {
	Chassis string `json:"chassis" binding:"required"`
}

// ReserveVehicle pins a catalog vehicle to a lead. Reserving the same chassis
// twice is a no-op.
func (h *RestLeadHandler) ReserveVehicle(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}
	var req reserveVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.leadService.ReserveVehicle(c.Request.Context(), leadID, req.Chassis); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListReservedVehicles lists the vehicles held for a lead.
func (h *RestLeadHandler) ListReservedVehicles(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}
	reserved, err := h.leadService.ListReservedVehicles(c.Request.Context(), leadID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list reserved vehicles"})
		return
	}
	c.JSON(http.StatusOK, reserved)
}

func parseLeadID(c *gin.Context) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil || id == (utils.SixID{}) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead ID"})
		return utils.SixID{}, false
	}
	return id, true
}
