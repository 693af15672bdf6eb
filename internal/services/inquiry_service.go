package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kanzlei/insolvenzpanel/internal/cache"
	"kanzlei/insolvenzpanel/internal/config"
	"kanzlei/insolvenzpanel/internal/db"
	"kanzlei/insolvenzpanel/internal/models"
	"kanzlei/insolvenzpanel/internal/utils"
)

// IInquiryService defines the interface for inquiry workflow operations.
type IInquiryService interface {
	CreateInquiry(ctx context.Context, customer models.Customer, chassisSet []string, brandingID, leadID *utils.SixID) (*models.Inquiry, error)
	FindInquiryByID(ctx context.Context, inquiryID utils.SixID) (*models.Inquiry, error)
	ListInquiries(ctx context.Context, brandingID *utils.SixID, status *models.InquiryStatus) ([]models.Inquiry, error)
	UpdateStatus(ctx context.Context, inquiryID utils.SixID, newStatus models.InquiryStatus, actor string) (*models.Inquiry, error)
	SetDiscount(ctx context.Context, inquiryID utils.SixID, percentage float64, grantedBy string) (*models.Inquiry, error)
	UpdateVehicleSelection(ctx context.Context, inquiryID utils.SixID, chassisSet []string) (*models.Inquiry, error)
	UpdateCustomer(ctx context.Context, inquiryID utils.SixID, customer models.Customer) (*models.Inquiry, error)
	SetCallPriority(ctx context.Context, inquiryID utils.SixID, priority bool) error
	SetCaseNumber(ctx context.Context, inquiryID utils.SixID, caseNumber string) error
	ListStatusHistory(ctx context.Context, inquiryID utils.SixID) ([]models.StatusHistoryEntry, error)
}

const (
	inquiriesCollection     = "inquiries"
	statusHistoryCollection = "amtsgericht_status_history"
)

// inquiryService implements IInquiryService.
type inquiryService struct {
	db             *mongo.Database
	cfg            *config.Config
	vehicleService IVehicleService
	queryCache     *cache.QueryCache
}

// NewInquiryService creates a new InquiryService.
func NewInquiryService(database *mongo.Database, cfg *config.Config, vehicleService IVehicleService, queryCache *cache.QueryCache) IInquiryService {
	return &inquiryService{db: database, cfg: cfg, vehicleService: vehicleService, queryCache: queryCache}
}

// resolveSelection resolves a chassis set against the current catalog and
// returns the rebuilt by-value snapshots in request order. Chassis without a
// live catalog row are dropped; the caller logs the difference.
func (s *inquiryService) resolveSelection(ctx context.Context, chassisSet []string) ([]models.SelectedVehicle, []string, error) {
	vehicles, err := s.vehicleService.FindByChassisSet(ctx, chassisSet)
	if err != nil {
		return nil, nil, err
	}

	byChassis := make(map[string]models.Vehicle, len(vehicles))
	for _, v := range vehicles {
		byChassis[v.Chassis] = v
	}

	snapshots := make([]models.SelectedVehicle, 0, len(chassisSet))
	var dropped []string
	seen := make(map[string]bool, len(chassisSet))
	for _, chassis := range chassisSet {
		if seen[chassis] {
			continue
		}
		seen[chassis] = true
		v, ok := byChassis[chassis]
		if !ok {
			dropped = append(dropped, chassis)
			continue
		}
		snapshots = append(snapshots, v.Snapshot())
	}
	return snapshots, dropped, nil
}

// CreateInquiry creates a new inquiry from a storefront submission. Vehicles
// are copied into the inquiry by value so later catalog edits never change
// the historical record.
func (s *inquiryService) CreateInquiry(ctx context.Context, customer models.Customer, chassisSet []string, brandingID, leadID *utils.SixID) (*models.Inquiry, error) {
	if customer.Email == "" {
		return nil, fmt.Errorf("inquiry must have a customer email")
	}

	snapshots, dropped, err := s.resolveSelection(ctx, chassisSet)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vehicle selection: %w", err)
	}
	if len(dropped) > 0 {
		log.Printf("WARN: inquiry submission by %s referenced unknown chassis %v; dropped", customer.Email, dropped)
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("inquiry must select at least one known vehicle")
	}

	collection := s.db.Collection(inquiriesCollection)
	now := time.Now().UTC()

	var inquiry *models.Inquiry
	operation := func() error {
		inquiry = &models.Inquiry{
			ID:               utils.NewSixID(),
			BrandingID:       brandingID,
			LeadID:           leadID,
			Customer:         customer,
			SelectedVehicles: snapshots,
			TotalPrice:       models.SumVehiclePrices(snapshots),
			Status:           models.StatusNeu,
			StatusUpdatedAt:  now,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		_, insertErr := collection.InsertOne(ctx, inquiry)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert inquiry for %s after multiple retries: %w", customer.Email, err)
	}

	s.invalidate(ctx)
	return inquiry, nil
}

// FindInquiryByID finds an inquiry by its ID. Inquiries are never deleted.
func (s *inquiryService) FindInquiryByID(ctx context.Context, inquiryID utils.SixID) (*models.Inquiry, error) {
	var inquiry models.Inquiry
	err := s.db.Collection(inquiriesCollection).FindOne(ctx, bson.M{"_id": inquiryID}).Decode(&inquiry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding inquiry by ID %s: %w", inquiryID.String(), err)
	}
	return &inquiry, nil
}

// ListInquiries returns inquiries newest first, optionally filtered by
// branding and status.
func (s *inquiryService) ListInquiries(ctx context.Context, brandingID *utils.SixID, status *models.InquiryStatus) ([]models.Inquiry, error) {
	filter := bson.M{}
	if brandingID != nil {
		filter["branding_id"] = *brandingID
	}
	if status != nil {
		filter["status"] = *status
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(inquiriesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list inquiries: %w", err)
	}
	defer cursor.Close(ctx)

	var inquiries []models.Inquiry
	if err = cursor.All(ctx, &inquiries); err != nil {
		return nil, fmt.Errorf("failed to decode inquiry list: %w", err)
	}
	return inquiries, nil
}

// UpdateStatus writes a new status and stamps status_updated_at. When the
// transition enters or leaves the Amtsgericht family, exactly one row is
// appended to the history ledger. A failed write leaves the stored status
// untouched; there is no automatic retry.
func (s *inquiryService) UpdateStatus(ctx context.Context, inquiryID utils.SixID, newStatus models.InquiryStatus, actor string) (*models.Inquiry, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("unknown inquiry status: %q", newStatus)
	}

	current, err := s.FindInquiryByID(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	oldStatus := current.Status

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"status":            newStatus,
		"status_updated_at": now,
		"updated_at":        now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Inquiry
	err = s.db.Collection(inquiriesCollection).FindOneAndUpdate(ctx, bson.M{"_id": inquiryID}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update status of inquiry %s: %w", inquiryID.String(), err)
	}

	// Amtsgericht transitions are the only audited ones; the ledger is
	// append-only and never rewritten.
	if (oldStatus.IsAmtsgericht() || newStatus.IsAmtsgericht()) && oldStatus != newStatus {
		entry := models.StatusHistoryEntry{
			ID:          utils.NewSixID(),
			InquiryID:   inquiryID,
			OldStatus:   oldStatus,
			NewStatus:   newStatus,
			Actor:       actor,
			InquiryName: updated.Customer.DisplayName(),
			CreatedAt:   now,
		}
		if _, histErr := s.db.Collection(statusHistoryCollection).InsertOne(ctx, entry); histErr != nil {
			// The status write already went through; surface the ledger
			// failure loudly instead of unwinding it.
			log.Printf("CRITICAL: status of inquiry %s changed %s -> %s but history append failed: %v",
				inquiryID.String(), oldStatus, newStatus, histErr)
		}
	}

	s.invalidate(ctx)
	return &updated, nil
}

// SetDiscount persists a discount percentage in [0,100] with one decimal of
// precision, plus the grant timestamp and acting user. Out-of-range values
// are rejected before any write. TotalPrice is untouched; the discount is
// applied later at document-generation time.
func (s *inquiryService) SetDiscount(ctx context.Context, inquiryID utils.SixID, percentage float64, grantedBy string) (*models.Inquiry, error) {
	if math.IsNaN(percentage) || percentage < 0 || percentage > 100 {
		return nil, fmt.Errorf("discount percentage must be between 0 and 100, got %v", percentage)
	}
	rounded := math.Round(percentage*10) / 10

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"discount_percentage": rounded,
		"discount_granted_at": now,
		"discount_granted_by": grantedBy,
		"updated_at":          now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Inquiry
	err := s.db.Collection(inquiriesCollection).FindOneAndUpdate(ctx, bson.M{"_id": inquiryID}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to set discount on inquiry %s: %w", inquiryID.String(), err)
	}

	s.invalidate(ctx)
	return &updated, nil
}

// UpdateVehicleSelection rebuilds selected_vehicles from the current catalog
// and recomputes total_price, writing both fields in a single update. A
// previously selected chassis missing from the catalog is dropped from the
// rebuilt set; this replicates the upstream behavior and is logged because it
// silently discards inquiry line items.
func (s *inquiryService) UpdateVehicleSelection(ctx context.Context, inquiryID utils.SixID, chassisSet []string) (*models.Inquiry, error) {
	if len(chassisSet) == 0 {
		return nil, fmt.Errorf("vehicle selection cannot be empty")
	}

	snapshots, dropped, err := s.resolveSelection(ctx, chassisSet)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vehicle selection: %w", err)
	}
	if len(dropped) > 0 {
		log.Printf("WARN: re-selection on inquiry %s dropped chassis %v no longer in catalog", inquiryID.String(), dropped)
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("none of the selected chassis resolve against the catalog")
	}

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"selected_vehicles": snapshots,
		"total_price":       models.SumVehiclePrices(snapshots),
		"updated_at":        now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Inquiry
	err = s.db.Collection(inquiriesCollection).FindOneAndUpdate(ctx, bson.M{"_id": inquiryID}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update vehicle selection on inquiry %s: %w", inquiryID.String(), err)
	}

	s.invalidate(ctx)
	return &updated, nil
}

// UpdateCustomer overwrites the customer identity block. Last write wins;
// there is no version check.
func (s *inquiryService) UpdateCustomer(ctx context.Context, inquiryID utils.SixID, customer models.Customer) (*models.Inquiry, error) {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"customer": customer, "updated_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Inquiry
	err := s.db.Collection(inquiriesCollection).FindOneAndUpdate(ctx, bson.M{"_id": inquiryID}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update customer on inquiry %s: %w", inquiryID.String(), err)
	}

	s.invalidate(ctx)
	return &updated, nil
}

// SetCallPriority flags an inquiry for the cold-call list.
func (s *inquiryService) SetCallPriority(ctx context.Context, inquiryID utils.SixID, priority bool) error {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"call_priority": priority, "updated_at": now}}
	result, err := s.db.Collection(inquiriesCollection).UpdateOne(ctx, bson.M{"_id": inquiryID}, update)
	if err != nil {
		return fmt.Errorf("db error setting call priority on inquiry %s: %w", inquiryID.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("inquiry %s not found", inquiryID.String())
	}
	s.invalidate(ctx)
	return nil
}

// SetCaseNumber records the Aktenzeichen used in generated documents.
func (s *inquiryService) SetCaseNumber(ctx context.Context, inquiryID utils.SixID, caseNumber string) error {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"case_number": caseNumber, "updated_at": now}}
	result, err := s.db.Collection(inquiriesCollection).UpdateOne(ctx, bson.M{"_id": inquiryID}, update)
	if err != nil {
		return fmt.Errorf("db error setting case number on inquiry %s: %w", inquiryID.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("inquiry %s not found", inquiryID.String())
	}
	s.invalidate(ctx)
	return nil
}

// ListStatusHistory returns the ledger rows for one inquiry, oldest first.
func (s *inquiryService) ListStatusHistory(ctx context.Context, inquiryID utils.SixID) ([]models.StatusHistoryEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(statusHistoryCollection).Find(ctx, bson.M{"inquiry_id": inquiryID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list status history for inquiry %s: %w", inquiryID.String(), err)
	}
	defer cursor.Close(ctx)

	var entries []models.StatusHistoryEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode status history: %w", err)
	}
	return entries, nil
}

func (s *inquiryService) invalidate(ctx context.Context) {
	if s.queryCache != nil {
		s.queryCache.Invalidate(ctx, "inquiries")
	}
}
