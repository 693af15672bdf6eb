package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kanzlei/insolvenzpanel/internal/config"
	"kanzlei/insolvenzpanel/internal/models"
	"kanzlei/insolvenzpanel/internal/utils"
)

// IBrandingService defines the interface for tenant branding access.
// Brandings change rarely and are read on nearly every request, so they are
// held in an in-memory cache refreshed through a Redis pub/sub channel.
type IBrandingService interface {
	CreateBranding(ctx context.Context, branding *models.Branding) error
	UpdateBranding(ctx context.Context, brandingID utils.SixID, updates map[string]interface{}) error
	FindBrandingByID(ctx context.Context, brandingID utils.SixID) (*models.Branding, error)
	MatchByURL(ctx context.Context, host string) (*models.Branding, error)
	ListBrandings(ctx context.Context) ([]models.Branding, error)
}

const (
	brandingsCollection    = "brandings"
	brandingUpdateChannel  = "branding_updates"
	brandingReloadInterval = time.Hour
)

// brandingService implements IBrandingService.
type brandingService struct {
	db    *mongo.Database
	cfg   *config.Config
	rdb   *redis.Client
	cache map[utils.SixID]*models.Branding
	byURL map[string]*models.Branding
	mutex sync.RWMutex
}

// NewBrandingService creates a new BrandingService, primes its cache and
// starts the pub/sub listener. Callers get a ready service; there are no
// further lifecycle calls to make.
func NewBrandingService(database *mongo.Database, cfg *config.Config, rdb *redis.Client) IBrandingService {
	s := &brandingService{
		db:    database,
		cfg:   cfg,
		rdb:   rdb,
		cache: make(map[utils.SixID]*models.Branding),
		byURL: make(map[string]*models.Branding),
	}
	if err := s.load(context.Background()); err != nil {
		log.Printf("WARNING: failed to load brandings from DB: %v. Cache starts empty", err)
	}
	if rdb != nil {
		go func() {
			if err := s.subscribeToChanges(context.Background()); err != nil {
				log.Printf("CRITICAL: branding pub/sub listener stopped: %v", err)
			}
		}()
	}
	return s
}

// load replaces the in-memory cache with the current DB contents.
func (s *brandingService) load(ctx context.Context) error {
	cursor, err := s.db.Collection(brandingsCollection).Find(ctx, bson.M{"deleted": bson.M{"$ne": true}})
	if err != nil {
		return fmt.Errorf("failed to query brandings: %w", err)
	}
	defer cursor.Close(ctx)

	var brandings []models.Branding
	if err = cursor.All(ctx, &brandings); err != nil {
		return fmt.Errorf("failed to decode brandings: %w", err)
	}

	cache := make(map[utils.SixID]*models.Branding, len(brandings))
	byURL := make(map[string]*models.Branding, len(brandings))
	for i := range brandings {
		b := &brandings[i]
		cache[b.ID] = b
		if b.URL != "" {
			byURL[normalizeHost(b.URL)] = b
		}
	}

	s.mutex.Lock()
	s.cache = cache
	s.byURL = byURL
	s.mutex.Unlock()
	log.Printf("Loaded %d brandings into cache", len(brandings))
	return nil
}

// subscribeToChanges reloads the cache whenever another instance publishes on
// the branding update channel. Blocks until ctx is cancelled, so the
// constructor runs it in its own goroutine.
func (s *brandingService) subscribeToChanges(ctx context.Context) error {
	pubsub := s.rdb.Subscribe(ctx, brandingUpdateChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	ticker := time.NewTicker(brandingReloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.load(ctx); err != nil {
				log.Printf("WARNING: periodic branding reload failed: %v", err)
			}
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("branding pub/sub channel closed")
			}
			log.Printf("Branding update notification received (%s), reloading", msg.Payload)
			if err := s.load(ctx); err != nil {
				log.Printf("WARNING: branding reload after notification failed: %v", err)
			}
		}
	}
}

func (s *brandingService) notifyChange(ctx context.Context, brandingID utils.SixID) {
	if err := s.load(ctx); err != nil {
		log.Printf("WARNING: branding cache reload failed: %v", err)
	}
	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, brandingUpdateChannel, brandingID.String()).Err(); err != nil {
			log.Printf("WARNING: failed to publish branding update: %v", err)
		}
	}
}

// CreateBranding inserts a new tenant branding.
func (s *brandingService) CreateBranding(ctx context.Context, branding *models.Branding) error {
	if branding.FirmName == "" {
		return fmt.Errorf("branding firm name is required")
	}
	if branding.ID == (utils.SixID{}) {
		branding.ID = utils.NewSixID()
	}
	branding.CreatedAt = time.Now().UTC()
	branding.UpdatedAt = branding.CreatedAt

	if _, err := s.db.Collection(brandingsCollection).InsertOne(ctx, branding); err != nil {
		return fmt.Errorf("failed to insert branding %s: %w", branding.FirmName, err)
	}
	s.notifyChange(ctx, branding.ID)
	return nil
}

// UpdateBranding applies a field update to a branding. Unknown fields are
// rejected so SMTP secrets can only change through their named keys.
func (s *brandingService) UpdateBranding(ctx context.Context, brandingID utils.SixID, updates map[string]interface{}) error {
	allowed := bson.M{}
	for key, value := range updates {
		switch key {
		case "firm_name", "attorney_name", "street", "postal_code", "city", "phone", "email", "url",
			"smtp_host", "smtp_port", "smtp_username", "smtp_password", "smtp_from_address":
			allowed[key] = value
		default:
			return fmt.Errorf("field %q cannot be updated on a branding", key)
		}
	}
	if len(allowed) == 0 {
		return fmt.Errorf("no updatable branding fields provided")
	}
	allowed["updated_at"] = time.Now().UTC()

	result, err := s.db.Collection(brandingsCollection).UpdateOne(ctx, bson.M{"_id": brandingID}, bson.M{"$set": allowed})
	if err != nil {
		return fmt.Errorf("db error updating branding %s: %w", brandingID.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("branding %s not found", brandingID.String())
	}
	s.notifyChange(ctx, brandingID)
	return nil
}

// FindBrandingByID serves from cache, falling back to the DB on a miss.
func (s *brandingService) FindBrandingByID(ctx context.Context, brandingID utils.SixID) (*models.Branding, error) {
	s.mutex.RLock()
	cached, ok := s.cache[brandingID]
	s.mutex.RUnlock()
	if ok {
		return cached, nil
	}

	var branding models.Branding
	err := s.db.Collection(brandingsCollection).FindOne(ctx, bson.M{"_id": brandingID}).Decode(&branding)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding branding %s: %w", brandingID.String(), err)
	}
	return &branding, nil
}

// MatchByURL resolves the tenant for an incoming storefront host.
func (s *brandingService) MatchByURL(ctx context.Context, host string) (*models.Branding, error) {
	key := normalizeHost(host)

	s.mutex.RLock()
	cached, ok := s.byURL[key]
	s.mutex.RUnlock()
	if ok {
		return cached, nil
	}

	var branding models.Branding
	err := s.db.Collection(brandingsCollection).FindOne(ctx, bson.M{"url": key, "deleted": bson.M{"$ne": true}}).Decode(&branding)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error matching branding for host %s: %w", host, err)
	}
	return &branding, nil
}

// ListBrandings returns all live brandings sorted by name.
func (s *brandingService) ListBrandings(ctx context.Context) ([]models.Branding, error) {
	opts := options.Find().SetSort(bson.D{{Key: "firm_name", Value: 1}})
	cursor, err := s.db.Collection(brandingsCollection).Find(ctx, bson.M{"deleted": bson.M{"$ne": true}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list brandings: %w", err)
	}
	defer cursor.Close(ctx)

	var brandings []models.Branding
	if err = cursor.All(ctx, &brandings); err != nil {
		return nil, fmt.Errorf("failed to decode branding list: %w", err)
	}
	return brandings, nil
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
