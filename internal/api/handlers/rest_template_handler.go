package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kanzlei/insolvenzpanel/internal/models"
	"kanzlei/insolvenzpanel/internal/services"
)

// RestTemplateHandler lets admins read and override the email templates.
// Reads fall back to the compiled-in defaults when no override is stored.
type RestTemplateHandler struct {
	templateService services.IEmailTemplateService
}

func NewRestTemplateHandler(templateService services.IEmailTemplateService) *RestTemplateHandler {
	return &RestTemplateHandler{templateService: templateService}
}

// GetTemplate handles GET /v1/admin/template/:template_id.
func (h *RestTemplateHandler) GetTemplate(c *gin.Context) {
	locale := c.Query("locale")
	if locale == "" {
		locale = "de-DE"
	}
	template, err := h.templateService.GetTemplate(c.Request.Context(), c.Param("template_id"), locale)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return
	}
	c.JSON(http.StatusOK, template)
}

// SaveTemplate handles PUT /v1/admin/template/:template_id.
func (h *RestTemplateHandler) SaveTemplate(c *gin.Context) {
	var template models.EmailTemplate
	if err := c.ShouldBindJSON(&template); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	template.TemplateID = c.Param("template_id")
	if template.Locale == "" {
		template.Locale = "de-DE"
	}
	if template.Subject == "" || template.Body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subject and body are required"})
		return
	}

	if err := h.templateService.SaveTemplate(c.Request.Context(), &template); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save template"})
		return
	}
	c.JSON(http.StatusOK, template)
}
