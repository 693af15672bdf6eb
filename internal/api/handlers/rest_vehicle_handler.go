package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"

	"kanzlei/insolvenzpanel/internal/models"
	"kanzlei/insolvenzpanel/internal/services"
	"kanzlei/insolvenzpanel/internal/storage"
	"kanzlei/insolvenzpanel/internal/tasks"
	"kanzlei/insolvenzpanel/internal/utils"
)

const maxReportUploadBytes = 25 << 20

// RestVehicleHandler handles REST requests for the vehicle catalog.
type RestVehicleHandler struct {
	vehicleService services.IVehicleService
	reportService  services.IReportService
	storageService storage.IS3Storage
	taskClient     services.TaskEnqueuer
}

// NewRestVehicleHandler creates a new RestVehicleHandler.
func NewRestVehicleHandler(vehicleService services.IVehicleService, reportService services.IReportService, storageService storage.IS3Storage, taskClient services.TaskEnqueuer) *RestVehicleHandler {
	return &RestVehicleHandler{
		vehicleService: vehicleService,
		reportService:  reportService,
		storageService: storageService,
		taskClient:     taskClient,
	}
}

func parseBrandingQuery(c *gin.Context) (*utils.SixID, bool) {
	brandingParam := c.Query("branding_id")
	if brandingParam == "" {
		return nil, true
	}
	id, err := utils.ParseSixID(brandingParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid branding_id"})
		return nil, false
	}
	return &id, true
}

// SearchVehicles handles GET /v1/vehicle/search
func (h *RestVehicleHandler) SearchVehicles(c *gin.Context) {
	brandingID, ok := parseBrandingQuery(c)
	if !ok {
		return
	}

	vehicles, err := h.vehicleService.SearchVehicles(c.Request.Context(), brandingID, c.Query("q"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search vehicles"})
		return
	}

	// selected puts an inquiry's current chassis set first in the result.
	if selected, exists := c.GetQueryArray("selected"); exists {
		vehicles = services.SortForSelection(vehicles, selected)
	}

	c.JSON(http.StatusOK, gin.H{"data": vehicles})
}

// GetVehicleByID handles GET /v1/vehicle/:id
func (h *RestVehicleHandler) GetVehicleByID(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle ID format"})
		return
	}

	vehicle, err := h.vehicleService.FindVehicleByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get vehicle"})
		return
	}

	c.JSON(http.StatusOK, vehicle)
}

// CreateVehicle handles POST /v1/vehicle
func (h *RestVehicleHandler) CreateVehicle(c *gin.Context) {
	var vehicle models.Vehicle
	if err := c.ShouldBindJSON(&vehicle); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	created, err := h.vehicleService.CreateVehicle(c.Request.Context(), &vehicle)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// UpdateVehicle handles PUT /v1/vehicle/:id
func (h *RestVehicleHandler) UpdateVehicle(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle ID format"})
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	updated, err := h.vehicleService.UpdateVehicle(c.Request.Context(), id, updates)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteVehicle handles DELETE /v1/vehicle/:id
func (h *RestVehicleHandler) DeleteVehicle(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle ID format"})
		return
	}

	if err := h.vehicleService.DeleteVehicle(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

type imageUploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// GetImageUploadURL handles POST /v1/vehicle/:id/image-upload-url
func (h *RestVehicleHandler) GetImageUploadURL(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle ID format"})
		return
	}

	var req imageUploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	// The vehicle must exist before we hand out an upload slot.
	if _, err := h.vehicleService.FindVehicleByID(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
		return
	}

	url, key, err := h.storageService.GeneratePresignedPutURL(c.Request.Context(), id.String(), req.Filename, req.ContentType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate upload URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"upload_url": url, "key": key})
}

// UploadReports handles POST /v1/vehicle/reports (multipart, bulk). Each PDF
// is matched to a vehicle by its report number prefix; the response carries a
// per-file outcome and a failing file never aborts the batch.
func (h *RestVehicleHandler) UploadReports(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form: " + err.Error()})
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
		return
	}

	var rejected []services.ReportUploadResult
	files := make([]services.ReportFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		if fh.Size > maxReportUploadBytes {
			rejected = append(rejected, services.ReportUploadResult{
				Filename: fh.Filename,
				Outcome:  services.ReportUploadError,
				Message:  "file exceeds the upload size limit",
			})
			continue
		}
		f, openErr := fh.Open()
		if openErr != nil {
			rejected = append(rejected, services.ReportUploadResult{
				Filename: fh.Filename,
				Outcome:  services.ReportUploadError,
				Message:  "could not read uploaded file",
			})
			continue
		}
		data, readErr := io.ReadAll(f)
		f.Close()
		if readErr != nil {
			rejected = append(rejected, services.ReportUploadResult{
				Filename: fh.Filename,
				Outcome:  services.ReportUploadError,
				Message:  "could not read uploaded file",
			})
			continue
		}
		files = append(files, services.ReportFile{Filename: fh.Filename, Data: data})
	}

	results := h.reportService.ProcessReportUploads(c.Request.Context(), files)
	c.JSON(http.StatusOK, gin.H{"results": append(results, rejected...)})
}

type confirmImageUploadRequest struct {
	Key string `json:"key" binding:"required"`
}

// ConfirmImageUpload handles POST /v1/vehicle/:id/images. The client calls
// this after PUTting the image to its presigned URL; normalization and
// attachment happen asynchronously on the image queue.
func (h *RestVehicleHandler) ConfirmImageUpload(c *gin.Context) {
	vehicleID, err := utils.ParseSixID(c.Param("id"))
	if err != nil || vehicleID == (utils.SixID{}) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle ID"})
		return
	}
	var req confirmImageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if _, err := h.vehicleService.FindVehicleByID(c.Request.Context(), vehicleID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load vehicle"})
		return
	}

	task, err := tasks.NewImageProcessTask(tasks.ImageTaskPayload{
		S3Key:     req.Key,
		VehicleID: vehicleID.String(),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build image task"})
		return
	}
	if _, err := h.taskClient.EnqueueContext(c.Request.Context(), task, asynq.Queue("images")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue image task"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
