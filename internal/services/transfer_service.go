package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"kanzlei/insolvenzpanel/internal/cache"
	"kanzlei/insolvenzpanel/internal/config"
	"kanzlei/insolvenzpanel/internal/models"
	"kanzlei/insolvenzpanel/internal/utils"
)

// ITransferService defines the interface for handing an inquiry over to the
// external order system. The transfer is one-shot and fire-and-forget: no
// retry, no idempotency key, so a re-trigger after a partial failure can
// duplicate the order at the partner. That risk is accepted.
type ITransferService interface {
	TransferInquiry(ctx context.Context, inquiryID utils.SixID) error
}

// transferPayload is the fixed shape the partner endpoint expects.
type transferPayload struct {
	CustomerType       string   `json:"customer_type"`
	Salutation         string   `json:"salutation"`
	FirstName          string   `json:"first_name"`
	LastName           string   `json:"last_name"`
	Company            string   `json:"company,omitempty"`
	Street             string   `json:"street"`
	PostalCode         string   `json:"postal_code"`
	City               string   `json:"city"`
	Email              string   `json:"email"`
	Phone              string   `json:"phone"`
	ReportNumbers      []string `json:"report_numbers"`
	DiscountPercentage *float64 `json:"discount_percentage,omitempty"`
	CaseNumber         string   `json:"case_number,omitempty"`
}

type transferService struct {
	cfg            *config.Config
	inquiryService IInquiryService
	queryCache     *cache.QueryCache
	httpClient     *http.Client
}

// NewTransferService creates a new TransferService. A nil httpClient falls
// back to http.DefaultClient, so transport defaults govern the timeout.
func NewTransferService(cfg *config.Config, inquiryService IInquiryService, queryCache *cache.QueryCache, httpClient *http.Client) ITransferService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &transferService{cfg: cfg, inquiryService: inquiryService, queryCache: queryCache, httpClient: httpClient}
}

// TransferInquiry POSTs the inquiry to the partner order endpoint. On any
// failure the partner may or may not have recorded the order; nothing is
// rolled back and nothing is retried here.
func (s *transferService) TransferInquiry(ctx context.Context, inquiryID utils.SixID) error {
	if s.cfg.BestellungApiURL == "" {
		return fmt.Errorf("transfer endpoint is not configured")
	}

	inquiry, err := s.inquiryService.FindInquiryByID(ctx, inquiryID)
	if err != nil {
		return fmt.Errorf("failed to load inquiry %s for transfer: %w", inquiryID.String(), err)
	}

	payload := buildTransferPayload(inquiry)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal transfer payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BestellungApiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.BestellungApiKey != "" {
		req.Header.Set("X-Api-Key", s.cfg.BestellungApiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transfer request for inquiry %s failed: %w", inquiryID.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read a little of the body for the log; the caller only sees a
		// generic failure.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("ERROR: transfer of inquiry %s rejected with status %d: %s", inquiryID.String(), resp.StatusCode, snippet)
		return fmt.Errorf("transfer of inquiry %s failed with status %d", inquiryID.String(), resp.StatusCode)
	}

	if s.queryCache != nil {
		s.queryCache.Invalidate(ctx, "inquiries")
	}
	log.Printf("Inquiry %s transferred to order system", inquiryID.String())
	return nil
}

func buildTransferPayload(inquiry *models.Inquiry) transferPayload {
	reportNumbers := make([]string, 0, len(inquiry.SelectedVehicles))
	for _, v := range inquiry.SelectedVehicles {
		if v.ReportNr != "" {
			reportNumbers = append(reportNumbers, v.ReportNr)
		}
	}
	return transferPayload{
		CustomerType:       string(inquiry.Customer.Type),
		Salutation:         inquiry.Customer.Salutation,
		FirstName:          inquiry.Customer.FirstName,
		LastName:           inquiry.Customer.LastName,
		Company:            inquiry.Customer.Company,
		Street:             inquiry.Customer.Street,
		PostalCode:         inquiry.Customer.PostalCode,
		City:               inquiry.Customer.City,
		Email:              inquiry.Customer.Email,
		Phone:              inquiry.Customer.Phone,
		ReportNumbers:      reportNumbers,
		DiscountPercentage: inquiry.DiscountPercentage,
		CaseNumber:         inquiry.CaseNumber,
	}
}
