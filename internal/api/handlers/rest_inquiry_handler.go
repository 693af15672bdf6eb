package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"kanzlei/insolvenzpanel/internal/api/middleware"
	"kanzlei/insolvenzpanel/internal/models"
	"kanzlei/insolvenzpanel/internal/services"
	"kanzlei/insolvenzpanel/internal/tasks"
	"kanzlei/insolvenzpanel/internal/utils"
)

// RestInquiryHandler exposes the inquiry workflow over REST: the public
// storefront submission plus the staff endpoints that drive an inquiry
// through its lifecycle.
type RestInquiryHandler struct {
	inquiryService  services.IInquiryService
	noteService     services.INoteService
	transferService services.ITransferService
	documentService services.IDocumentService
	leadService     services.ILeadService
	brandingService services.IBrandingService
	taskClient      services.TaskEnqueuer
}

func NewRestInquiryHandler(
	inquiryService services.IInquiryService,
	noteService services.INoteService,
	transferService services.ITransferService,
	documentService services.IDocumentService,
	leadService services.ILeadService,
	brandingService services.IBrandingService,
	taskClient services.TaskEnqueuer,
) *RestInquiryHandler {
	return &RestInquiryHandler{
		inquiryService:  inquiryService,
		noteService:     noteService,
		transferService: transferService,
		documentService: documentService,
		leadService:     leadService,
		brandingService: brandingService,
		taskClient:      taskClient,
	}
}

type submitInquiryRequest struct {
	Customer   models.Customer `json:"customer" binding:"required"`
	ChassisSet []string        `json:"chassis_set" binding:"required,min=1"`
	BrandingID string          `json:"branding_id"`
	LeadID     string          `json:"lead_id"`
}

// SubmitInquiry is the public storefront entry point. The tenant is resolved
// from an explicit branding_id when given, otherwise from the request host.
func (h *RestInquiryHandler) SubmitInquiry(c *gin.Context) {
	var req submitInquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.Customer.Email == "" || req.Customer.LastName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Customer email and last name are required"})
		return
	}

	brandingID, branding := h.resolveBranding(c, req.BrandingID)

	var leadID *utils.SixID
	if req.LeadID != "" {
		id, err := utils.ParseSixID(req.LeadID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead ID"})
			return
		}
		leadID = &id
	}

	inquiry, err := h.inquiryService.CreateInquiry(c.Request.Context(), req.Customer, req.ChassisSet, brandingID, leadID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if leadID != nil {
		if err := h.leadService.LinkInquiry(c.Request.Context(), *leadID, inquiry.ID); err != nil {
			log.Printf("WARN: could not link lead %s to inquiry %s: %v", leadID.String(), inquiry.ID.String(), err)
		}
	}

	h.enqueueConfirmationEmail(c, inquiry, branding)

	c.JSON(http.StatusCreated, inquiry)
}

func (h *RestInquiryHandler) resolveBranding(c *gin.Context, explicitID string) (*utils.SixID, *models.Branding) {
	if explicitID != "" {
		id, err := utils.ParseSixID(explicitID)
		if err == nil {
			if branding, findErr := h.brandingService.FindBrandingByID(c.Request.Context(), id); findErr == nil {
				return &branding.ID, branding
			}
		}
	}
	host := c.GetHeader("Origin")
	if host == "" {
		host = c.Request.Host
	}
	branding, err := h.brandingService.MatchByURL(c.Request.Context(), host)
	if err != nil {
		return nil, nil
	}
	return &branding.ID, branding
}

func (h *RestInquiryHandler) enqueueConfirmationEmail(c *gin.Context, inquiry *models.Inquiry, branding *models.Branding) {
	if h.taskClient == nil {
		return
	}
	payload := tasks.EmailTaskPayload{
		To:         inquiry.Customer.Email,
		TemplateID: services.ConfirmationTemplateID(len(inquiry.SelectedVehicles)),
		Tokens: map[string]string{
			"NACHNAME": inquiry.Customer.LastName,
		},
	}
	if branding != nil {
		payload.BrandingID = branding.ID.String()
		payload.Tokens["ANWALT_NAME"] = branding.AttorneyName
	}
	task, err := tasks.NewEmailDeliveryTask(payload)
	if err != nil {
		log.Printf("ERROR: could not build confirmation email task for inquiry %s: %v", inquiry.ID.String(), err)
		return
	}
	if _, err := h.taskClient.EnqueueContext(c.Request.Context(), task); err != nil {
		log.Printf("ERROR: could not enqueue confirmation email for inquiry %s: %v", inquiry.ID.String(), err)
	}
}

// ListInquiries returns inquiries for the staff panel, optionally filtered by
// branding_id and status.
func (h *RestInquiryHandler) ListInquiries(c *gin.Context) {
	brandingID, ok := parseBrandingQuery(c)
	if !ok {
		return
	}

	var status *models.InquiryStatus
	if raw := c.Query("status"); raw != "" {
		s := models.InquiryStatus(raw)
		if !s.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
			return
		}
		status = &s
	}

	inquiries, err := h.inquiryService.ListInquiries(c.Request.Context(), brandingID, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list inquiries"})
		return
	}
	c.JSON(http.StatusOK, inquiries)
}

// GetInquiry returns a single inquiry by ID.
func (h *RestInquiryHandler) GetInquiry(c *gin.Context) {
	id, ok := parseInquiryID(c)
	if !ok {
		return
	}
	inquiry, err := h.inquiryService.FindInquiryByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Inquiry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load inquiry"})
		return
	}
	c.JSON(http.StatusOK, inquiry)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus moves an inquiry to a new status. The acting staff member is
// taken from the auth context and stamped on any history row the move writes.
func (h *RestInquiryHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseInquiryID(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	newStatus := models.InquiryStatus(req.Status)
	if !newStatus.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
		return
	}

	inquiry, err := h.inquiryService.UpdateStatus(c.Request.Context(), id, newStatus, middleware.ActorEmail(c))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Inquiry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update status"})
		return
	}
	c.JSON(http.StatusOK, inquiry)
}

type setDiscountRequest struct {
	Percentage float64 `json:"percentage"`
}

// SetDiscount records a discount percentage on an inquiry.
func (h *RestInquiryHandler) SetDiscount(c *gin.Context) {
	id, ok := parseInquiryID(c)
	if !ok {
		return
	}
	var req setDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	inquiry, err := h.inquiryService.SetDiscount(c.Request.Context(), id, req.Percentage, middleware.ActorEmail(c))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Inquiry not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, inquiry)
}

type updateSelectionRequest struct {
	ChassisSet []string `json:"chassis_set" binding:"required,min=1"`
}

// UpdateVehicleSelection replaces the inquiry's vehicle snapshots with fresh
// ones for the given chassis set and recomputes the total.
func (h *RestInquiryHandler) UpdateVehicleSelection(c *gin.Context) {
	id, ok := parseInquiryID(c)
	if !ok {
		return
	}
	var req updateSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	inquiry, err := h.inquiryService.UpdateVehicleSelection(c.Request.Context(), id, req.ChassisSet)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Inquiry not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, inquiry)
}

// UpdateCustomer overwrites the customer block of an inquiry.
func (h *RestInquiryHandler) UpdateCustomer(c *gin.Context) {
	id, ok := parseInquiryID(c)
	if !ok {
		return
	}
	var customer models.Customer
	if err := c.ShouldBindJSON(&customer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	inquiry, err := h.inquiryService.UpdateCustomer(c.Request.Context(), id, customer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Inquiry not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, inquiry)
}

type setCallPriorityRequest struct {
	Priority *bool `json:"priority" binding:"required"`
}

// SetCallPriority flips the call priority flag.
func (h *RestInquiryHandler) SetCallPriority(c *gin.Context) {
	id, ok := parseInquiryID(c)
	if !ok {
		return
	}
	var req setCallPriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.inquiryService.SetCallPriority(c.Request.Context(), id, *req.Priority); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Inquiry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update call priority"})
		return
	}
	c.Status(http.StatusNoContent)
}

// noteView is an InquiryNote enriched with the display attributes the panel
// derives from the note list as a whole.
type noteView struct {
	models.InquiryNote
	BadgeNumber int    `json:"badge_number"`
	AuthorColor string `json:"author_color"`
}

// ListNotes returns all notes of an inquiry, newest first, with countdown
// badge numbers and the author's display color.
func (h *RestInquiryHandler) ListNotes(c *gin.Context) {
	id, ok := parseInquiryID(c)
	if !ok {
		return
	}
	notes, err := h.noteService.ListNotes(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list notes"})
		return
	}

	badges := services.BadgeNumbers(notes)
	views := make([]noteView, 0, len(notes))
	for _, n := range notes {
		views = append(views, noteView{
			InquiryNote: n,
			BadgeNumber: badges[n.ID],
			AuthorColor: utils.UserColor(n.AuthorEmail),
		})
	}
	c.JSON(http.StatusOK, views)
}

type addNoteRequest struct {
	Body string `json:"body" binding:"required"`
}

// AddNote appends a freeform note, authored by the logged-in staff member.
func (h *RestInquiryHandler) AddNote(c *gin.Context) {
	id, ok := parseInquiryID(c)
	if !ok {
		return
	}
	var req addNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	note, err := h.noteService.AddNote(c.Request.Context(), id, middleware.ActorEmail(c), req.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, note)
}

// AddMailboxMarker appends a mailbox marker for the logged-in staff member.
func (h *RestInquiryHandler) AddMailboxMarker(c *gin.Context) {
	id, ok := parseInquiryID(c)
	if !ok {
		return
	}
	marker, err := h.noteService.AddMailboxMarker(c.Request.Context(), id, middleware.ActorEmail(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, marker)
}

// ListStatusHistory returns the Amtsgericht history ledger of an inquiry,
// oldest first.
func (h *RestInquiryHandler) ListStatusHistory(c *gin.Context) {
	id, ok := parseInquiryID(c)
	if !ok {
		return
	}
	entries, err := h.inquiryService.ListStatusHistory(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list status history"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// TransferInquiry hands the inquiry over to the external order system. The
// response deliberately carries no upstream detail on failure.
func (h *RestInquiryHandler) TransferInquiry(c *gin.Context) {
	id, ok := parseInquiryID(c)
	if !ok {
		return
	}
	if err := h.transferService.TransferInquiry(c.Request.Context(), id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Inquiry not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Transfer failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "transferred"})
}

// GenerateDocuments triggers generation of the invoice and contract PDFs,
// archives them and sends them to the customer by email.
func (h *RestInquiryHandler) GenerateDocuments(c *gin.Context) {
	id, ok := parseInquiryID(c)
	if !ok {
		return
	}
	var input services.DocumentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := h.documentService.GenerateAndSendDocuments(c.Request.Context(), id, input)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Inquiry not found"})
			return
		}
		if result != nil {
			// The documents went out but a follow-up step failed; return
			// what exists so staff can retry the rest.
			c.JSON(http.StatusOK, gin.H{"result": result, "warning": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Document generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func parseInquiryID(c *gin.Context) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil || id == (utils.SixID{}) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid inquiry ID"})
		return utils.SixID{}, false
	}
	return id, true
}
