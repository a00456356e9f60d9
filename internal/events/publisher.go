package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

type EventType string

const (
	// EventTypeRecordCaptured is published for every newly stored record.
	EventTypeRecordCaptured EventType = "record.captured"

	DefaultStream = "stream:catalog_records"
)

// RedisClient is the subset of the Redis client used for publishing.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// RecordCapturedPayload is the body of a record.captured event.
type RecordCapturedPayload struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	RunID       string    `json:"run_id"`
	Marketplace string    `json:"marketplace"`
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Namespace   string    `json:"namespace"`
	URL         string    `json:"url"`
	Price       int64     `json:"price"`
	CategoryID  int64     `json:"category_id"`
	Target      string    `json:"target"`
}

// Publisher is what the scraper reports captured records to.
type Publisher interface {
	PublishRecordCaptured(ctx context.Context, runID uuid.UUID, target string, rec *models.CanonicalRecord) error
}

type StreamPublisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
}

func NewStreamPublisher(client RedisClient, stream string, logger *slog.Logger) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *StreamPublisher) PublishRecordCaptured(ctx context.Context, runID uuid.UUID, target string, rec *models.CanonicalRecord) error {
	payload := RecordCapturedPayload{
		EventID:     uuid.New().String(),
		EventType:   string(EventTypeRecordCaptured),
		Timestamp:   time.Now().UTC(),
		RunID:       runID.String(),
		Marketplace: rec.Marketplace,
		ID:          rec.ID,
		Name:        rec.Name,
		Namespace:   rec.Namespace,
		URL:         rec.URL,
		Price:       rec.Price,
		CategoryID:  rec.CategoryID,
		Target:      target,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":         string(data),
			"type":         payload.EventType,
			"event_id":     payload.EventID,
			"timestamp":    strconv.FormatInt(payload.Timestamp.UnixNano(), 10),
			"aggregate_id": rec.Key(),
			"run_id":       payload.RunID,
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Debug("event published",
		"stream_id", id,
		"event_type", payload.EventType,
		"aggregate_id", rec.Key())

	return nil
}

// NopPublisher drops events; used when no Redis address is configured.
type NopPublisher struct{}

func (NopPublisher) PublishRecordCaptured(context.Context, uuid.UUID, string, *models.CanonicalRecord) error {
	return nil
}
