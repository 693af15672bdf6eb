package handlers_test

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"kanzlei/insolvenzpanel/internal/models"
	"kanzlei/insolvenzpanel/internal/services"
	"kanzlei/insolvenzpanel/internal/utils"
)

// --- Mocks ---

// MockInquiryService implements services.IInquiryService
type MockInquiryService struct {
	mock.Mock
}

func (m *MockInquiryService) CreateInquiry(ctx context.Context, customer models.Customer, chassisSet []string, brandingID, leadID *utils.SixID) (*models.Inquiry, error) {
	args := m.Called(ctx, customer, chassisSet, brandingID, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) FindInquiryByID(ctx context.Context, inquiryID utils.SixID) (*models.Inquiry, error) {
	args := m.Called(ctx, inquiryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) ListInquiries(ctx context.Context, brandingID *utils.SixID, status *models.InquiryStatus) ([]models.Inquiry, error) {
	args := m.Called(ctx, brandingID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) UpdateStatus(ctx context.Context, inquiryID utils.SixID, newStatus models.InquiryStatus, actor string) (*models.Inquiry, error) {
	args := m.Called(ctx, inquiryID, newStatus, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) SetDiscount(ctx context.Context, inquiryID utils.SixID, percentage float64, grantedBy string) (*models.Inquiry, error) {
	args := m.Called(ctx, inquiryID, percentage, grantedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) UpdateVehicleSelection(ctx context.Context, inquiryID utils.SixID, chassisSet []string) (*models.Inquiry, error) {
	args := m.Called(ctx, inquiryID, chassisSet)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) UpdateCustomer(ctx context.Context, inquiryID utils.SixID, customer models.Customer) (*models.Inquiry, error) {
	args := m.Called(ctx, inquiryID, customer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) SetCallPriority(ctx context.Context, inquiryID utils.SixID, priority bool) error {
	args := m.Called(ctx, inquiryID, priority)
	return args.Error(0)
}

func (m *MockInquiryService) SetCaseNumber(ctx context.Context, inquiryID utils.SixID, caseNumber string) error {
	args := m.Called(ctx, inquiryID, caseNumber)
	return args.Error(0)
}

func (m *MockInquiryService) ListStatusHistory(ctx context.Context, inquiryID utils.SixID) ([]models.StatusHistoryEntry, error) {
	args := m.Called(ctx, inquiryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StatusHistoryEntry), args.Error(1)
}

// MockNoteService implements services.INoteService
type MockNoteService struct {
	mock.Mock
}

func (m *MockNoteService) AddNote(ctx context.Context, inquiryID utils.SixID, authorEmail, body string) (*models.InquiryNote, error) {
	args := m.Called(ctx, inquiryID, authorEmail, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InquiryNote), args.Error(1)
}

func (m *MockNoteService) AddMailboxMarker(ctx context.Context, inquiryID utils.SixID, authorEmail string) (*models.InquiryNote, error) {
	args := m.Called(ctx, inquiryID, authorEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InquiryNote), args.Error(1)
}

func (m *MockNoteService) ListNotes(ctx context.Context, inquiryID utils.SixID) ([]models.InquiryNote, error) {
	args := m.Called(ctx, inquiryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InquiryNote), args.Error(1)
}

// MockTransferService implements services.ITransferService
type MockTransferService struct {
	mock.Mock
}

func (m *MockTransferService) TransferInquiry(ctx context.Context, inquiryID utils.SixID) error {
	args := m.Called(ctx, inquiryID)
	return args.Error(0)
}

// MockDocumentService implements services.IDocumentService
type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) GenerateAndSendDocuments(ctx context.Context, inquiryID utils.SixID, input services.DocumentInput) (*services.DocumentResult, error) {
	args := m.Called(ctx, inquiryID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DocumentResult), args.Error(1)
}

// MockLeadService implements services.ILeadService
type MockLeadService struct {
	mock.Mock
}

func (m *MockLeadService) CreateCampaign(ctx context.Context, brandingID utils.SixID, name string) (*models.LeadCampaign, error) {
	args := m.Called(ctx, brandingID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LeadCampaign), args.Error(1)
}

func (m *MockLeadService) ListCampaigns(ctx context.Context, brandingID *utils.SixID) ([]models.LeadCampaign, error) {
	args := m.Called(ctx, brandingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LeadCampaign), args.Error(1)
}

func (m *MockLeadService) CreateLead(ctx context.Context, campaignID utils.SixID, email string) (*models.Lead, string, error) {
	args := m.Called(ctx, campaignID, email)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*models.Lead), args.String(1), args.Error(2)
}

func (m *MockLeadService) VerifyLeadPassword(ctx context.Context, email, password string) (*models.Lead, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockLeadService) FindLeadByID(ctx context.Context, leadID utils.SixID) (*models.Lead, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockLeadService) ListLeads(ctx context.Context, campaignID utils.SixID) ([]models.Lead, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Lead), args.Error(1)
}

func (m *MockLeadService) ReserveVehicle(ctx context.Context, leadID utils.SixID, chassis string) error {
	args := m.Called(ctx, leadID, chassis)
	return args.Error(0)
}

func (m *MockLeadService) ListReservedVehicles(ctx context.Context, leadID utils.SixID) ([]models.LeadReservedVehicle, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LeadReservedVehicle), args.Error(1)
}

func (m *MockLeadService) LinkInquiry(ctx context.Context, leadID, inquiryID utils.SixID) error {
	args := m.Called(ctx, leadID, inquiryID)
	return args.Error(0)
}

// MockBrandingService implements services.IBrandingService
type MockBrandingService struct {
	mock.Mock
}

func (m *MockBrandingService) CreateBranding(ctx context.Context, branding *models.Branding) error {
	args := m.Called(ctx, branding)
	return args.Error(0)
}

func (m *MockBrandingService) UpdateBranding(ctx context.Context, brandingID utils.SixID, updates map[string]interface{}) error {
	args := m.Called(ctx, brandingID, updates)
	return args.Error(0)
}

func (m *MockBrandingService) FindBrandingByID(ctx context.Context, brandingID utils.SixID) (*models.Branding, error) {
	args := m.Called(ctx, brandingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Branding), args.Error(1)
}

func (m *MockBrandingService) MatchByURL(ctx context.Context, host string) (*models.Branding, error) {
	args := m.Called(ctx, host)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Branding), args.Error(1)
}

func (m *MockBrandingService) ListBrandings(ctx context.Context) ([]models.Branding, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Branding), args.Error(1)
}

// MockVehicleService implements services.IVehicleService
type MockVehicleService struct {
	mock.Mock
}

func (m *MockVehicleService) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error) {
	args := m.Called(ctx, vehicle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleService) FindVehicleByID(ctx context.Context, vehicleID utils.SixID) (*models.Vehicle, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleService) FindByChassis(ctx context.Context, chassis string) (*models.Vehicle, error) {
	args := m.Called(ctx, chassis)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleService) FindByChassisSet(ctx context.Context, chassisSet []string) ([]models.Vehicle, error) {
	args := m.Called(ctx, chassisSet)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vehicle), args.Error(1)
}

func (m *MockVehicleService) FindByReportNr(ctx context.Context, reportNr string) (*models.Vehicle, error) {
	args := m.Called(ctx, reportNr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleService) UpdateVehicle(ctx context.Context, vehicleID utils.SixID, updates map[string]interface{}) (*models.Vehicle, error) {
	args := m.Called(ctx, vehicleID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleService) DeleteVehicle(ctx context.Context, vehicleID utils.SixID) error {
	args := m.Called(ctx, vehicleID)
	return args.Error(0)
}

func (m *MockVehicleService) ListVehicles(ctx context.Context, brandingID *utils.SixID) ([]models.Vehicle, error) {
	args := m.Called(ctx, brandingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vehicle), args.Error(1)
}

func (m *MockVehicleService) SearchVehicles(ctx context.Context, brandingID *utils.SixID, query string) ([]models.Vehicle, error) {
	args := m.Called(ctx, brandingID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vehicle), args.Error(1)
}

func (m *MockVehicleService) AddImageToVehicle(ctx context.Context, vehicleID utils.SixID, imageKey string) error {
	args := m.Called(ctx, vehicleID, imageKey)
	return args.Error(0)
}

func (m *MockVehicleService) SetReportURL(ctx context.Context, vehicleID utils.SixID, reportURL string) error {
	args := m.Called(ctx, vehicleID, reportURL)
	return args.Error(0)
}

// MockReportService implements services.IReportService
type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) ProcessReportUploads(ctx context.Context, files []services.ReportFile) []services.ReportUploadResult {
	args := m.Called(ctx, files)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]services.ReportUploadResult)
}

// MockUserService implements services.IUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) CreateUser(ctx context.Context, email, password string, isAdmin bool) (*models.User, error) {
	args := m.Called(ctx, email, password, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockS3Storage implements storage.IS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) UploadDocument(ctx context.Context, customerName, filename, contentType string, data []byte) (string, string, error) {
	args := m.Called(ctx, customerName, filename, contentType, data)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockS3Storage) UploadReport(ctx context.Context, filename string, data []byte) (string, string, error) {
	args := m.Called(ctx, filename, data)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockS3Storage) GeneratePresignedPutURL(ctx context.Context, vehicleID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, vehicleID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockS3Storage) PublicURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

// MockTaskEnqueuer implements services.TaskEnqueuer
type MockTaskEnqueuer struct {
	mock.Mock
}

func (m *MockTaskEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	mockArgs := []interface{}{ctx, task}
	for _, opt := range opts {
		mockArgs = append(mockArgs, opt)
	}
	args := m.Called(mockArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

// MockEmailTemplateService implements services.IEmailTemplateService
type MockEmailTemplateService struct {
	mock.Mock
}

func (m *MockEmailTemplateService) GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error) {
	args := m.Called(ctx, templateID, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTemplate), args.Error(1)
}

func (m *MockEmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}
