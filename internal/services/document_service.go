package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/hibiken/asynq"

	"kanzlei/insolvenzpanel/internal/config"
	"kanzlei/insolvenzpanel/internal/models"
	"kanzlei/insolvenzpanel/internal/storage"
	"kanzlei/insolvenzpanel/internal/utils"
)

// IDocumentService composes the external document generator, object storage
// and email dispatch into one operation: generate the three sales documents
// for an inquiry, archive them, and mail them to the customer.
type IDocumentService interface {
	GenerateAndSendDocuments(ctx context.Context, inquiryID utils.SixID, input DocumentInput) (*DocumentResult, error)
}

// DocumentInput carries the staff-entered parameters the generator needs on
// top of the stored inquiry.
type DocumentInput struct {
	CaseNumber    string `json:"case_number"`
	BankName      string `json:"bank_name"`
	IBAN          string `json:"iban"`
	BIC           string `json:"bic"`
	AccountHolder string `json:"account_holder"`
}

// DocumentResult reports the archived object keys of the three documents.
type DocumentResult struct {
	InvoiceKey          string `json:"invoice_key"`
	PurchaseContractKey string `json:"purchase_contract_key"`
	EscrowContractKey   string `json:"escrow_contract_key"`
}

// documentFunctionRequest is the generator's fixed input shape.
type documentFunctionRequest struct {
	CaseNumber         string   `json:"case_number"`
	Salutation         string   `json:"salutation"`
	FirstName          string   `json:"first_name"`
	LastName           string   `json:"last_name"`
	Company            string   `json:"company,omitempty"`
	Street             string   `json:"street"`
	PostalCode         string   `json:"postal_code"`
	City               string   `json:"city"`
	BankName           string   `json:"bank_name"`
	IBAN               string   `json:"iban"`
	BIC                string   `json:"bic"`
	AccountHolder      string   `json:"account_holder"`
	DiscountPercentage *float64 `json:"discount_percentage,omitempty"`
	ReportNumbers      []string `json:"report_numbers"`
}

// documentFunctionResponse carries the three generated PDFs, base64-encoded.
type documentFunctionResponse struct {
	Invoice          string `json:"invoice"`
	PurchaseContract string `json:"purchase_contract"`
	EscrowContract   string `json:"escrow_contract"`
}

// TaskEnqueuer is the slice of asynq.Client the document service needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type documentService struct {
	cfg             *config.Config
	inquiryService  IInquiryService
	brandingService IBrandingService
	storage         storage.IS3Storage
	taskClient      TaskEnqueuer
	httpClient      *http.Client
}

// EmailAttachmentRef mirrors the attachment reference shape of the email
// task payload. Redeclared here so services does not import tasks (tasks
// already imports services).
type EmailAttachmentRef struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	S3Key       string `json:"s3_key"`
}

type documentEmailPayload struct {
	To          string               `json:"to"`
	TemplateID  string               `json:"template_id"`
	Locale      string               `json:"locale,omitempty"`
	Tokens      map[string]string    `json:"tokens,omitempty"`
	BrandingID  string               `json:"branding_id,omitempty"`
	Attachments []EmailAttachmentRef `json:"attachments,omitempty"`
}

const emailDeliveryTaskType = "email:deliver"

// NewDocumentService creates a new DocumentService. A nil httpClient falls
// back to http.DefaultClient.
func NewDocumentService(cfg *config.Config, inquiryService IInquiryService, brandingService IBrandingService, s3 storage.IS3Storage, taskClient TaskEnqueuer, httpClient *http.Client) IDocumentService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &documentService{
		cfg:             cfg,
		inquiryService:  inquiryService,
		brandingService: brandingService,
		storage:         s3,
		taskClient:      taskClient,
		httpClient:      httpClient,
	}
}

// GenerateAndSendDocuments runs the full dispatch: call the generator, decode
// and archive the three PDFs, enqueue the customer email with all three
// attached, record the case number and advance the inquiry to RG/KV gesendet.
// Steps run sequentially; a failure aborts before any status change.
func (s *documentService) GenerateAndSendDocuments(ctx context.Context, inquiryID utils.SixID, input DocumentInput) (*DocumentResult, error) {
	if s.cfg.DocumentFunctionURL == "" {
		return nil, fmt.Errorf("document generator is not configured")
	}

	inquiry, err := s.inquiryService.FindInquiryByID(ctx, inquiryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load inquiry %s: %w", inquiryID.String(), err)
	}
	if inquiry.Customer.Email == "" {
		return nil, fmt.Errorf("inquiry %s has no customer email", inquiryID.String())
	}

	docs, err := s.callDocumentFunction(ctx, inquiry, input)
	if err != nil {
		return nil, err
	}

	customerName := inquiry.Customer.DisplayName()
	result := &DocumentResult{}
	attachments := make([]EmailAttachmentRef, 0, 3)

	for _, doc := range []struct {
		b64      string
		filename string
		keyDest  *string
	}{
		{docs.Invoice, "Rechnung.pdf", &result.InvoiceKey},
		{docs.PurchaseContract, "Kaufvertrag.pdf", &result.PurchaseContractKey},
		{docs.EscrowContract, "Treuhandvertrag.pdf", &result.EscrowContractKey},
	} {
		data, decodeErr := base64.StdEncoding.DecodeString(doc.b64)
		if decodeErr != nil {
			return nil, fmt.Errorf("generator returned malformed base64 for %s: %w", doc.filename, decodeErr)
		}
		key, _, uploadErr := s.storage.UploadDocument(ctx, customerName, doc.filename, "application/pdf", data)
		if uploadErr != nil {
			return nil, fmt.Errorf("failed to archive %s: %w", doc.filename, uploadErr)
		}
		*doc.keyDest = key
		attachments = append(attachments, EmailAttachmentRef{
			Filename:    doc.filename,
			ContentType: "application/pdf",
			S3Key:       key,
		})
	}

	if input.CaseNumber != "" && input.CaseNumber != inquiry.CaseNumber {
		if err := s.inquiryService.SetCaseNumber(ctx, inquiryID, input.CaseNumber); err != nil {
			return nil, err
		}
	}

	if err := s.enqueueDocumentsEmail(ctx, inquiry, input.CaseNumber, attachments); err != nil {
		return nil, err
	}

	if _, err := s.inquiryService.UpdateStatus(ctx, inquiryID, models.StatusRGKVGesendet, "system"); err != nil {
		// Documents are archived and the email is queued; the status write is
		// the last step and its failure must be visible to the operator.
		return result, fmt.Errorf("documents sent but status update failed: %w", err)
	}

	log.Printf("Documents generated and dispatched for inquiry %s", inquiryID.String())
	return result, nil
}

func (s *documentService) callDocumentFunction(ctx context.Context, inquiry *models.Inquiry, input DocumentInput) (*documentFunctionResponse, error) {
	reportNumbers := make([]string, 0, len(inquiry.SelectedVehicles))
	for _, v := range inquiry.SelectedVehicles {
		if v.ReportNr != "" {
			reportNumbers = append(reportNumbers, v.ReportNr)
		}
	}

	reqBody := documentFunctionRequest{
		CaseNumber:         input.CaseNumber,
		Salutation:         inquiry.Customer.Salutation,
		FirstName:          inquiry.Customer.FirstName,
		LastName:           inquiry.Customer.LastName,
		Company:            inquiry.Customer.Company,
		Street:             inquiry.Customer.Street,
		PostalCode:         inquiry.Customer.PostalCode,
		City:               inquiry.Customer.City,
		BankName:           input.BankName,
		IBAN:               input.IBAN,
		BIC:                input.BIC,
		AccountHolder:      input.AccountHolder,
		DiscountPercentage: inquiry.DiscountPercentage,
		ReportNumbers:      reportNumbers,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.DocumentFunctionURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build document request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.DocumentFunctionKey != "" {
		req.Header.Set("X-Functions-Key", s.cfg.DocumentFunctionKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document generator call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("document generator returned status %d", resp.StatusCode)
	}

	var docs documentFunctionResponse
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to decode document generator response: %w", err)
	}
	if docs.Invoice == "" || docs.PurchaseContract == "" || docs.EscrowContract == "" {
		return nil, fmt.Errorf("document generator response is missing documents")
	}
	return &docs, nil
}

func (s *documentService) enqueueDocumentsEmail(ctx context.Context, inquiry *models.Inquiry, caseNumber string, attachments []EmailAttachmentRef) error {
	templateID := DocumentsTemplateID(len(inquiry.SelectedVehicles), inquiry.Customer.Salutation)

	attorneyName := ""
	brandingID := ""
	if inquiry.BrandingID != nil {
		brandingID = inquiry.BrandingID.String()
		if branding, err := s.brandingService.FindBrandingByID(ctx, *inquiry.BrandingID); err == nil {
			attorneyName = branding.AttorneyName
		} else {
			log.Printf("WARNING: could not resolve branding %s for documents email: %v", brandingID, err)
		}
	}

	payload := documentEmailPayload{
		To:         inquiry.Customer.Email,
		TemplateID: templateID,
		Tokens: map[string]string{
			"AKTENZEICHEN": caseNumber,
			"NACHNAME":     inquiry.Customer.LastName,
			"ANWALT_NAME":  attorneyName,
		},
		BrandingID:  brandingID,
		Attachments: attachments,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal documents email payload: %w", err)
	}

	task := asynq.NewTask(emailDeliveryTaskType, data)
	if _, err := s.taskClient.EnqueueContext(ctx, task, asynq.Queue("critical")); err != nil {
		return fmt.Errorf("failed to enqueue documents email: %w", err)
	}
	return nil
}
