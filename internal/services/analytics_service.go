package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"visionsync/backend/internal/config"
	"visionsync/backend/internal/db"
	"visionsync/backend/internal/models"
)

// IAnalyticsService defines the interface for event tracking and aggregation.
// Raw events live in capped Redis lists (newest first); aggregates are
// derived on demand and periodically snapshotted to MongoDB.
type IAnalyticsService interface {
	TrackPageView(ctx context.Context, ev models.PageViewEvent) error
	TrackInteraction(ctx context.Context, ev models.InteractionEvent) error
	TrackConversion(ctx context.Context, ev models.ConversionEvent) error
	GetPageViews(ctx context.Context) ([]models.PageViewEvent, error)
	GetInteractions(ctx context.Context) ([]models.InteractionEvent, error)
	GetConversions(ctx context.Context) ([]models.ConversionEvent, error)
	GetAnalyticsData(ctx context.Context) (*models.AnalyticsData, error)
	Snapshot(ctx context.Context) (*models.AnalyticsSnapshot, error)
	GetLatestSnapshot(ctx context.Context) (*models.AnalyticsSnapshot, error)
	ClearEvents(ctx context.Context) error
}

const (
	pageViewsKey        = "analytics:page_views"
	interactionsKey     = "analytics:interactions"
	conversionsKey      = "analytics:conversions"
	snapshotsCollection = "analytics_snapshots"
)

// analyticsService implements IAnalyticsService.
type analyticsService struct {
	db  *mongo.Database
	rdb *redis.Client
	cfg *config.Config
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(database *mongo.Database, rdb *redis.Client, cfg *config.Config) IAnalyticsService {
	return &analyticsService{db: database, rdb: rdb, cfg: cfg}
}

// push appends a JSON-encoded event at the head of the list and trims the
// tail so the list never exceeds cap entries. LPUSH keeps newest-first order.
func (s *analyticsService) push(ctx context.Context, key string, ev interface{}, capacity int) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", key, err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(capacity-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push event to %s: %w", key, err)
	}
	return nil
}

// TrackPageView records a page view. Missing timestamps are stamped server-side.
func (s *analyticsService) TrackPageView(ctx context.Context, ev models.PageViewEvent) error {
	if ev.Page == "" {
		return fmt.Errorf("page view must have a page")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return s.push(ctx, pageViewsKey, ev, s.cfg.PageViewLogSize)
}

// TrackInteraction records an element interaction.
func (s *analyticsService) TrackInteraction(ctx context.Context, ev models.InteractionEvent) error {
	if ev.Type == "" {
		return fmt.Errorf("interaction must have a type")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return s.push(ctx, interactionsKey, ev, s.cfg.InteractionLogSize)
}

// TrackConversion records a funnel stage event. Stage must be one of the
// known funnel stages.
func (s *analyticsService) TrackConversion(ctx context.Context, ev models.ConversionEvent) error {
	if !models.ValidFunnelStage(ev.Stage) {
		return fmt.Errorf("unknown funnel stage %q", ev.Stage)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return s.push(ctx, conversionsKey, ev, s.cfg.ConversionLogSize)
}

func readList[T any](ctx context.Context, rdb *redis.Client, key string) ([]T, error) {
	raw, err := rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	events := make([]T, 0, len(raw))
	for _, item := range raw {
		var ev T
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			log.Printf("Warning: skipping undecodable event in %s: %v", key, err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// GetPageViews returns the buffered page views, newest first.
func (s *analyticsService) GetPageViews(ctx context.Context) ([]models.PageViewEvent, error) {
	return readList[models.PageViewEvent](ctx, s.rdb, pageViewsKey)
}

// GetInteractions returns the buffered interactions, newest first.
func (s *analyticsService) GetInteractions(ctx context.Context) ([]models.InteractionEvent, error) {
	return readList[models.InteractionEvent](ctx, s.rdb, interactionsKey)
}

// GetConversions returns the buffered conversion events, newest first.
func (s *analyticsService) GetConversions(ctx context.Context) ([]models.ConversionEvent, error) {
	return readList[models.ConversionEvent](ctx, s.rdb, conversionsKey)
}

// GetAnalyticsData aggregates the current ring buffer contents.
func (s *analyticsService) GetAnalyticsData(ctx context.Context) (*models.AnalyticsData, error) {
	views, err := s.GetPageViews(ctx)
	if err != nil {
		return nil, err
	}
	interactions, err := s.GetInteractions(ctx)
	if err != nil {
		return nil, err
	}
	conversions, err := s.GetConversions(ctx)
	if err != nil {
		return nil, err
	}
	return models.AggregateAnalytics(views, interactions, conversions), nil
}

// Snapshot persists the current aggregate to MongoDB so history survives
// ring buffer eviction. Called by the periodic background task.
func (s *analyticsService) Snapshot(ctx context.Context) (*models.AnalyticsSnapshot, error) {
	data, err := s.GetAnalyticsData(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := db.InsertOne(ctx, s.db.Collection(snapshotsCollection), &models.AnalyticsSnapshot{
		Data:       *data,
		CapturedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist analytics snapshot: %w", err)
	}
	return doc.(*models.AnalyticsSnapshot), nil
}

// GetLatestSnapshot returns the most recently captured snapshot.
// Returns mongo.ErrNoDocuments if no snapshot was taken yet.
func (s *analyticsService) GetLatestSnapshot(ctx context.Context) (*models.AnalyticsSnapshot, error) {
	var snap models.AnalyticsSnapshot
	opts := options.FindOne().SetSort(bson.D{{Key: "captured_at", Value: -1}})
	if err := s.db.Collection(snapshotsCollection).FindOne(ctx, bson.M{}, opts).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ClearEvents drops all buffered events. Admin-only maintenance operation.
func (s *analyticsService) ClearEvents(ctx context.Context) error {
	if err := s.rdb.Del(ctx, pageViewsKey, interactionsKey, conversionsKey).Err(); err != nil {
		return fmt.Errorf("failed to clear analytics buffers: %w", err)
	}
	return nil
}
