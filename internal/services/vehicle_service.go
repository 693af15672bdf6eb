package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
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

// IVehicleService defines the interface for catalog operations.
type IVehicleService interface {
	CreateVehicle(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error)
	FindVehicleByID(ctx context.Context, vehicleID utils.SixID) (*models.Vehicle, error)
	FindByChassis(ctx context.Context, chassis string) (*models.Vehicle, error)
	FindByChassisSet(ctx context.Context, chassisSet []string) ([]models.Vehicle, error)
	FindByReportNr(ctx context.Context, reportNr string) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, vehicleID utils.SixID, updates map[string]interface{}) (*models.Vehicle, error)
	DeleteVehicle(ctx context.Context, vehicleID utils.SixID) error
	ListVehicles(ctx context.Context, brandingID *utils.SixID) ([]models.Vehicle, error)
	SearchVehicles(ctx context.Context, brandingID *utils.SixID, query string) ([]models.Vehicle, error)
	AddImageToVehicle(ctx context.Context, vehicleID utils.SixID, imageKey string) error
	SetReportURL(ctx context.Context, vehicleID utils.SixID, reportURL string) error
}

const vehiclesCollection = "vehicles"

// vehicleService implements IVehicleService.
type vehicleService struct {
	db         *mongo.Database
	cfg        *config.Config
	queryCache *cache.QueryCache
}

// NewVehicleService creates a new VehicleService. queryCache may be nil, in
// which case listing reads always hit the store.
func NewVehicleService(database *mongo.Database, cfg *config.Config, queryCache *cache.QueryCache) IVehicleService {
	return &vehicleService{db: database, cfg: cfg, queryCache: queryCache}
}

// CreateVehicle inserts a new catalog entry. The chassis number carries a
// unique index, so a collision surfaces as a duplicate key error.
func (s *vehicleService) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error) {
	if vehicle.Chassis == "" {
		return nil, fmt.Errorf("vehicle must have a chassis number")
	}
	collection := s.db.Collection(vehiclesCollection)
	now := time.Now().UTC()

	operation := func() error {
		vehicle.ID = utils.NewSixID()
		vehicle.CreatedAt = now
		vehicle.UpdatedAt = now
		if vehicle.Images == nil {
			vehicle.Images = []string{}
		}
		_, insertErr := collection.InsertOne(ctx, vehicle)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, fmt.Errorf("vehicle with chassis %s already exists: %w", vehicle.Chassis, err)
		}
		return nil, fmt.Errorf("failed to insert vehicle (chassis %s): %w", vehicle.Chassis, err)
	}

	s.invalidate(ctx)
	return vehicle, nil
}

// FindVehicleByID finds a non-deleted vehicle by its ID.
func (s *vehicleService) FindVehicleByID(ctx context.Context, vehicleID utils.SixID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	filter := bson.M{"_id": vehicleID, "deleted": false}
	err := s.db.Collection(vehiclesCollection).FindOne(ctx, filter).Decode(&vehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding vehicle by ID %s: %w", vehicleID.String(), err)
	}
	return &vehicle, nil
}

// FindByChassis finds a non-deleted vehicle by its chassis number.
func (s *vehicleService) FindByChassis(ctx context.Context, chassis string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	filter := bson.M{"chassis": chassis, "deleted": false}
	err := s.db.Collection(vehiclesCollection).FindOne(ctx, filter).Decode(&vehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding vehicle by chassis %s: %w", chassis, err)
	}
	return &vehicle, nil
}

// FindByChassisSet resolves a set of chassis numbers against the current
// catalog. Chassis without a live catalog row are simply absent from the
// result; callers decide what to do about the difference.
func (s *vehicleService) FindByChassisSet(ctx context.Context, chassisSet []string) ([]models.Vehicle, error) {
	if len(chassisSet) == 0 {
		return []models.Vehicle{}, nil
	}
	filter := bson.M{"chassis": bson.M{"$in": chassisSet}, "deleted": false}
	cursor, err := s.db.Collection(vehiclesCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error resolving chassis set: %w", err)
	}
	defer cursor.Close(ctx)

	var vehicles []models.Vehicle
	if err = cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("error decoding resolved vehicles: %w", err)
	}
	return vehicles, nil
}

// FindByReportNr finds a non-deleted vehicle by its DEKRA report number.
func (s *vehicleService) FindByReportNr(ctx context.Context, reportNr string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	filter := bson.M{"report_nr": reportNr, "deleted": false}
	err := s.db.Collection(vehiclesCollection).FindOne(ctx, filter).Decode(&vehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding vehicle by report nr %s: %w", reportNr, err)
	}
	return &vehicle, nil
}

// UpdateVehicle updates mutable catalog fields. Updates never propagate into
// inquiry snapshots; those are copies by value.
func (s *vehicleService) UpdateVehicle(ctx context.Context, vehicleID utils.SixID, updates map[string]interface{}) (*models.Vehicle, error) {
	allowedUpdates := bson.M{}
	for key, value := range updates {
		switch key {
		case "brand", "model", "price", "kilometers", "first_registration",
			"report_nr", "fuel_type", "transmission", "power_kw", "color", "branding_id":
			allowedUpdates[key] = value
		default:
			return nil, fmt.Errorf("field '%s' cannot be updated via UpdateVehicle", key)
		}
	}
	if len(allowedUpdates) == 0 {
		return nil, fmt.Errorf("no valid fields provided for update")
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	filter := bson.M{"_id": vehicleID, "deleted": false}
	update := bson.M{"$set": allowedUpdates}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updatedVehicle models.Vehicle
	err := s.db.Collection(vehiclesCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&updatedVehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("vehicle not found or cannot be updated")
		}
		return nil, fmt.Errorf("failed to update vehicle %s: %w", vehicleID.String(), err)
	}

	s.invalidate(ctx)
	return &updatedVehicle, nil
}

// DeleteVehicle performs a soft delete. Snapshots on existing inquiries are
// unaffected; the chassis just stops resolving on future saves.
func (s *vehicleService) DeleteVehicle(ctx context.Context, vehicleID utils.SixID) error {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"deleted": true, "updated_at": now}}
	result, err := s.db.Collection(vehiclesCollection).UpdateOne(ctx, bson.M{"_id": vehicleID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("db error deleting vehicle %s: %w", vehicleID.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("vehicle %s not found", vehicleID.String())
	}
	s.invalidate(ctx)
	return nil
}

// ListVehicles returns the live catalog, optionally scoped to one branding,
// sorted alphabetically by brand+model. List reads go through the query
// cache; mutations invalidate it.
func (s *vehicleService) ListVehicles(ctx context.Context, brandingID *utils.SixID) ([]models.Vehicle, error) {
	variant := "all"
	if brandingID != nil {
		variant = brandingID.String()
	}
	if s.queryCache != nil {
		var cached []models.Vehicle
		if s.queryCache.Get(ctx, "vehicles", variant, &cached) {
			return cached, nil
		}
	}

	filter := bson.M{"deleted": false}
	if brandingID != nil {
		filter["branding_id"] = *brandingID
	}
	opts := options.Find().SetSort(bson.D{{Key: "brand", Value: 1}, {Key: "model", Value: 1}})
	cursor, err := s.db.Collection(vehiclesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer cursor.Close(ctx)

	var vehicles []models.Vehicle
	if err = cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("failed to decode vehicle list: %w", err)
	}

	if s.queryCache != nil {
		s.queryCache.Set(ctx, "vehicles", variant, vehicles)
	}
	return vehicles, nil
}

// SearchVehicles matches the query case-insensitively across brand, model,
// chassis and report number.
func (s *vehicleService) SearchVehicles(ctx context.Context, brandingID *utils.SixID, query string) ([]models.Vehicle, error) {
	vehicles, err := s.ListVehicles(ctx, brandingID)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return vehicles, nil
	}

	q := strings.ToLower(query)
	matched := make([]models.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if strings.Contains(strings.ToLower(v.Brand), q) ||
			strings.Contains(strings.ToLower(v.Model), q) ||
			strings.Contains(strings.ToLower(v.Chassis), q) ||
			strings.Contains(strings.ToLower(v.ReportNr), q) {
			matched = append(matched, v)
		}
	}
	return matched, nil
}

// AddImageToVehicle adds a processed image key to a vehicle's image array.
// Called after the image normalization task completes.
func (s *vehicleService) AddImageToVehicle(ctx context.Context, vehicleID utils.SixID, imageKey string) error {
	filter := bson.M{"_id": vehicleID, "deleted": false}
	update := bson.M{
		"$addToSet": bson.M{"images": imageKey},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := s.db.Collection(vehiclesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error adding image %s to vehicle %s: %w", imageKey, vehicleID.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("vehicle %s not found when adding image", vehicleID.String())
	}
	if result.ModifiedCount == 0 {
		log.Printf("Image key %s already present on vehicle %s", imageKey, vehicleID.String())
	}
	s.invalidate(ctx)
	return nil
}

// SetReportURL records the public URL of an uploaded DEKRA report.
func (s *vehicleService) SetReportURL(ctx context.Context, vehicleID utils.SixID, reportURL string) error {
	filter := bson.M{"_id": vehicleID, "deleted": false}
	update := bson.M{"$set": bson.M{"report_url": reportURL, "updated_at": time.Now().UTC()}}
	result, err := s.db.Collection(vehiclesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error setting report URL on vehicle %s: %w", vehicleID.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("vehicle %s not found when setting report URL", vehicleID.String())
	}
	s.invalidate(ctx)
	return nil
}

func (s *vehicleService) invalidate(ctx context.Context) {
	if s.queryCache != nil {
		s.queryCache.Invalidate(ctx, "vehicles")
	}
}

// SortForSelection orders vehicles for the admin re-selection list:
// already-selected chassis first, then alphabetical by brand+model. The
// case fold keeps German brand names grouped regardless of input casing.
func SortForSelection(vehicles []models.Vehicle, selectedChassis []string) []models.Vehicle {
	selected := make(map[string]bool, len(selectedChassis))
	for _, ch := range selectedChassis {
		selected[ch] = true
	}

	sorted := make([]models.Vehicle, len(vehicles))
	copy(sorted, vehicles)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := selected[sorted[i].Chassis], selected[sorted[j].Chassis]
		if si != sj {
			return si
		}
		ni := strings.ToLower(sorted[i].Brand + " " + sorted[i].Model)
		nj := strings.ToLower(sorted[j].Brand + " " + sorted[j].Model)
		return ni < nj
	})
	return sorted
}
