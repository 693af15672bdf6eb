package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"

	"kanzlei/insolvenzpanel/internal/api/handlers"
	"kanzlei/insolvenzpanel/internal/models"
	"kanzlei/insolvenzpanel/internal/services"
	"kanzlei/insolvenzpanel/internal/utils"
)

func newLeadRouter(leadService *MockLeadService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewRestLeadHandler(leadService)
	r := gin.New()
	r.POST("/v1/lead/verify", handler.VerifyLead)
	r.POST("/v1/campaign", handler.CreateCampaign)
	r.POST("/v1/campaign/:id/leads", handler.CreateLead)
	r.POST("/v1/lead/:id/reserve", handler.ReserveVehicle)
	r.GET("/v1/lead/:id/reserved", handler.ListReservedVehicles)
	return r
}

func TestVerifyLead_Success(t *testing.T) {
	leadService := new(MockLeadService)
	r := newLeadRouter(leadService)

	lead := &models.Lead{ID: utils.NewSixID(), Email: "prospect@example.com"}
	leadService.On("VerifyLeadPassword", mock.Anything, "prospect@example.com", "ausgeteilt").Return(lead, nil)

	body := jsonBody(t, map[string]string{"email": "prospect@example.com", "password": "ausgeteilt"})
	req, _ := http.NewRequest("POST", "/v1/lead/verify", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password_hash")
	leadService.AssertExpectations(t)
}

func TestVerifyLead_InvalidCredentials(t *testing.T) {
	leadService := new(MockLeadService)
	r := newLeadRouter(leadService)

	leadService.On("VerifyLeadPassword", mock.Anything, "prospect@example.com", "falsch").Return(nil, services.ErrLeadAuthFailed)

	body := jsonBody(t, map[string]string{"email": "prospect@example.com", "password": "falsch"})
	req, _ := http.NewRequest("POST", "/v1/lead/verify", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")
}

func TestCreateLead_ReturnsPasswordOnce(t *testing.T) {
	leadService := new(MockLeadService)
	r := newLeadRouter(leadService)

	campaignID := utils.NewSixID()
	lead := &models.Lead{ID: utils.NewSixID(), CampaignID: campaignID, Email: "prospect@example.com"}
	leadService.On("CreateLead", mock.Anything, campaignID, "prospect@example.com").Return(lead, "xK9-zufall", nil)

	body := jsonBody(t, map[string]string{"email": "prospect@example.com"})
	req, _ := http.NewRequest("POST", "/v1/campaign/"+campaignID.String()+"/leads", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "xK9-zufall", resp["password"])
	leadService.AssertExpectations(t)
}

func TestReserveVehicle_Success(t *testing.T) {
	leadService := new(MockLeadService)
	r := newLeadRouter(leadService)

	leadID := utils.NewSixID()
	leadService.On("ReserveVehicle", mock.Anything, leadID, "WDB1234561N123456").Return(nil)

	body := jsonBody(t, map[string]string{"chassis": "WDB1234561N123456"})
	req, _ := http.NewRequest("POST", "/v1/lead/"+leadID.String()+"/reserve", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	leadService.AssertExpectations(t)
}

func TestListReservedVehicles_UnknownLead(t *testing.T) {
	leadService := new(MockLeadService)
	r := newLeadRouter(leadService)

	leadID := utils.NewSixID()
	leadService.On("ListReservedVehicles", mock.Anything, leadID).Return(nil, mongo.ErrNoDocuments)

	req, _ := http.NewRequest("GET", "/v1/lead/"+leadID.String()+"/reserved", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateCampaign_InvalidBrandingID(t *testing.T) {
	leadService := new(MockLeadService)
	r := newLeadRouter(leadService)

	body := jsonBody(t, map[string]string{"branding_id": "not-an-id", "name": "Herbstaktion"})
	req, _ := http.NewRequest("POST", "/v1/campaign", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	leadService.AssertNotCalled(t, "CreateCampaign", mock.Anything, mock.Anything, mock.Anything)
}
