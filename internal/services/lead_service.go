package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kanzlei/insolvenzpanel/internal/auth"
	"kanzlei/insolvenzpanel/internal/models"
	"kanzlei/insolvenzpanel/internal/utils"
)

// ILeadService defines the interface for campaign and lead management. Leads
// are pre-provisioned credentials handed out during cold calls; a prospect
// verifies with email and generated password to see their scoped catalog.
type ILeadService interface {
	CreateCampaign(ctx context.Context, brandingID utils.SixID, name string) (*models.LeadCampaign, error)
	ListCampaigns(ctx context.Context, brandingID *utils.SixID) ([]models.LeadCampaign, error)
	CreateLead(ctx context.Context, campaignID utils.SixID, email string) (*models.Lead, string, error)
	VerifyLeadPassword(ctx context.Context, email, password string) (*models.Lead, error)
	FindLeadByID(ctx context.Context, leadID utils.SixID) (*models.Lead, error)
	ListLeads(ctx context.Context, campaignID utils.SixID) ([]models.Lead, error)
	ReserveVehicle(ctx context.Context, leadID utils.SixID, chassis string) error
	ListReservedVehicles(ctx context.Context, leadID utils.SixID) ([]models.LeadReservedVehicle, error)
	LinkInquiry(ctx context.Context, leadID, inquiryID utils.SixID) error
}

const (
	campaignsCollection        = "lead_campaigns"
	leadsCollection            = "leads"
	reservedVehiclesCollection = "lead_reserved_vehicles"
)

// ErrLeadAuthFailed is returned for both unknown emails and wrong passwords,
// so a caller cannot probe which emails exist.
var ErrLeadAuthFailed = errors.New("lead verification failed")

type leadService struct {
	db *mongo.Database
}

// NewLeadService creates a new LeadService.
func NewLeadService(database *mongo.Database) ILeadService {
	return &leadService{db: database}
}

// CreateCampaign creates a lead campaign under a branding.
func (s *leadService) CreateCampaign(ctx context.Context, brandingID utils.SixID, name string) (*models.LeadCampaign, error) {
	if name == "" {
		return nil, fmt.Errorf("campaign name is required")
	}
	campaign := &models.LeadCampaign{
		ID:         utils.NewSixID(),
		BrandingID: brandingID,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.db.Collection(campaignsCollection).InsertOne(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to insert campaign %s: %w", name, err)
	}
	return campaign, nil
}

// ListCampaigns returns live campaigns, optionally scoped to one branding.
func (s *leadService) ListCampaigns(ctx context.Context, brandingID *utils.SixID) ([]models.LeadCampaign, error) {
	filter := bson.M{"deleted": bson.M{"$ne": true}}
	if brandingID != nil {
		filter["branding_id"] = *brandingID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(campaignsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer cursor.Close(ctx)

	var campaigns []models.LeadCampaign
	if err = cursor.All(ctx, &campaigns); err != nil {
		return nil, fmt.Errorf("failed to decode campaign list: %w", err)
	}
	return campaigns, nil
}

// CreateLead provisions a lead credential under a campaign. The generated
// plaintext password is returned exactly once, for the caller to hand to the
// prospect; only the bcrypt hash is stored.
func (s *leadService) CreateLead(ctx context.Context, campaignID utils.SixID, email string) (*models.Lead, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, "", fmt.Errorf("lead email is required")
	}

	password := auth.GenerateLeadPassword()
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash lead password: %w", err)
	}

	lead := &models.Lead{
		ID:           utils.NewSixID(),
		CampaignID:   campaignID,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.db.Collection(leadsCollection).InsertOne(ctx, lead); err != nil {
		return nil, "", fmt.Errorf("failed to insert lead %s: %w", email, err)
	}
	return lead, password, nil
}

// VerifyLeadPassword checks a prospect's credential. The failure mode is
// identical for unknown email and wrong password.
func (s *leadService) VerifyLeadPassword(ctx context.Context, email, password string) (*models.Lead, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var lead models.Lead
	err := s.db.Collection(leadsCollection).FindOne(ctx, bson.M{
		"email":   email,
		"deleted": bson.M{"$ne": true},
	}).Decode(&lead)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrLeadAuthFailed
		}
		return nil, fmt.Errorf("error finding lead by email: %w", err)
	}

	if !auth.CheckPasswordHash(password, lead.PasswordHash) {
		return nil, ErrLeadAuthFailed
	}
	return &lead, nil
}

// FindLeadByID finds a lead by its ID.
func (s *leadService) FindLeadByID(ctx context.Context, leadID utils.SixID) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.Collection(leadsCollection).FindOne(ctx, bson.M{"_id": leadID, "deleted": bson.M{"$ne": true}}).Decode(&lead)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding lead %s: %w", leadID.String(), err)
	}
	return &lead, nil
}

// ListLeads returns the leads of one campaign, newest first.
func (s *leadService) ListLeads(ctx context.Context, campaignID utils.SixID) ([]models.Lead, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(leadsCollection).Find(ctx, bson.M{
		"campaign_id": campaignID,
		"deleted":     bson.M{"$ne": true},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads for campaign %s: %w", campaignID.String(), err)
	}
	defer cursor.Close(ctx)

	var leads []models.Lead
	if err = cursor.All(ctx, &leads); err != nil {
		return nil, fmt.Errorf("failed to decode lead list: %w", err)
	}
	return leads, nil
}

// ReserveVehicle pins a catalog vehicle to a lead. Reserving the same chassis
// twice is a no-op.
func (s *leadService) ReserveVehicle(ctx context.Context, leadID utils.SixID, chassis string) error {
	if chassis == "" {
		return fmt.Errorf("chassis is required to reserve a vehicle")
	}

	filter := bson.M{"lead_id": leadID, "chassis": chassis}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":        utils.NewSixID(),
		"lead_id":    leadID,
		"chassis":    chassis,
		"created_at": time.Now().UTC(),
	}}
	opts := options.Update().SetUpsert(true)
	if _, err := s.db.Collection(reservedVehiclesCollection).UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to reserve vehicle %s for lead %s: %w", chassis, leadID.String(), err)
	}
	return nil
}

// ListReservedVehicles returns the vehicles pinned to a lead.
func (s *leadService) ListReservedVehicles(ctx context.Context, leadID utils.SixID) ([]models.LeadReservedVehicle, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(reservedVehiclesCollection).Find(ctx, bson.M{"lead_id": leadID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list reserved vehicles for lead %s: %w", leadID.String(), err)
	}
	defer cursor.Close(ctx)

	var reserved []models.LeadReservedVehicle
	if err = cursor.All(ctx, &reserved); err != nil {
		return nil, fmt.Errorf("failed to decode reserved vehicle list: %w", err)
	}
	return reserved, nil
}

// LinkInquiry records the 1:1 link from a lead to the inquiry it produced.
// A lead already linked to a different inquiry is not relinked.
func (s *leadService) LinkInquiry(ctx context.Context, leadID, inquiryID utils.SixID) error {
	filter := bson.M{"_id": leadID, "inquiry_id": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"inquiry_id": inquiryID}}
	result, err := s.db.Collection(leadsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error linking inquiry %s to lead %s: %w", inquiryID.String(), leadID.String(), err)
	}
	if result.MatchedCount == 0 {
		// Either the lead is unknown or it already carries a link.
		var existing models.Lead
		findErr := s.db.Collection(leadsCollection).FindOne(ctx, bson.M{"_id": leadID}).Decode(&existing)
		if findErr != nil {
			if errors.Is(findErr, mongo.ErrNoDocuments) {
				return fmt.Errorf("lead %s not found", leadID.String())
			}
			return fmt.Errorf("db error checking lead %s after failed link: %w", leadID.String(), findErr)
		}
		if existing.InquiryID != nil && *existing.InquiryID != inquiryID {
			return fmt.Errorf("lead %s is already linked to inquiry %s", leadID.String(), existing.InquiryID.String())
		}
	}
	return nil
}
