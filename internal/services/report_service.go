package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"

	"kanzlei/insolvenzpanel/internal/storage"
)

// IReportService handles bulk upload of DEKRA report PDFs and their
// assignment to catalog vehicles by report number.
type IReportService interface {
	ProcessReportUploads(ctx context.Context, files []ReportFile) []ReportUploadResult
}

// ReportFile is one uploaded PDF.
type ReportFile struct {
	Filename string
	Data     []byte
}

// ReportUploadOutcome classifies the per-file result.
type ReportUploadOutcome string

const (
	ReportUploadSuccess ReportUploadOutcome = "success"
	ReportUploadWarning ReportUploadOutcome = "warning"
	ReportUploadError   ReportUploadOutcome = "error"
)

// ReportUploadResult reports what happened to one file of the batch.
type ReportUploadResult struct {
	Filename string              `json:"filename"`
	ReportNr string              `json:"report_nr"`
	Outcome  ReportUploadOutcome `json:"outcome"`
	Message  string              `json:"message,omitempty"`
	Chassis  string              `json:"chassis,omitempty"`
}

type reportService struct {
	vehicleService IVehicleService
	storage        storage.IS3Storage
}

// NewReportService creates a new ReportService.
func NewReportService(vehicleService IVehicleService, s3 storage.IS3Storage) IReportService {
	return &reportService{vehicleService: vehicleService, storage: s3}
}

// reportNrFromFilename extracts the report number prefix, everything before
// the first underscore. A filename without an underscore is used whole,
// minus its extension.
func reportNrFromFilename(filename string) string {
	name := filename
	if i := strings.IndexByte(name, '_'); i >= 0 {
		return name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

// ProcessReportUploads matches each PDF to a vehicle by report number,
// uploads it and records the report URL on the vehicle. Files process
// sequentially and a failure never halts the batch: unmatched files yield a
// warning with no write, upload or DB failures yield an error, and processing
// continues either way.
func (s *reportService) ProcessReportUploads(ctx context.Context, files []ReportFile) []ReportUploadResult {
	results := make([]ReportUploadResult, 0, len(files))

	for _, file := range files {
		reportNr := reportNrFromFilename(file.Filename)
		result := ReportUploadResult{Filename: file.Filename, ReportNr: reportNr}

		if reportNr == "" {
			result.Outcome = ReportUploadWarning
			result.Message = "could not extract a report number from the filename"
			results = append(results, result)
			continue
		}

		vehicle, err := s.vehicleService.FindByReportNr(ctx, reportNr)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				result.Outcome = ReportUploadWarning
				result.Message = fmt.Sprintf("no vehicle with report number %s", reportNr)
			} else {
				result.Outcome = ReportUploadError
				result.Message = fmt.Sprintf("lookup failed: %v", err)
			}
			results = append(results, result)
			continue
		}
		result.Chassis = vehicle.Chassis

		key, url, err := s.storage.UploadReport(ctx, file.Filename, file.Data)
		if err != nil {
			result.Outcome = ReportUploadError
			result.Message = fmt.Sprintf("upload failed: %v", err)
			results = append(results, result)
			continue
		}

		if err := s.vehicleService.SetReportURL(ctx, vehicle.ID, url); err != nil {
			result.Outcome = ReportUploadError
			result.Message = fmt.Sprintf("uploaded as %s but failed to record on vehicle: %v", key, err)
			results = append(results, result)
			continue
		}

		result.Outcome = ReportUploadSuccess
		results = append(results, result)
		log.Printf("Report %s assigned to vehicle %s (chassis %s)", reportNr, vehicle.ID.String(), vehicle.Chassis)
	}

	return results
}
