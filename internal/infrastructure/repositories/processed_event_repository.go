package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kuya-relay/kuya_relay/internal/domain/entities"
	"github.com/kuya-relay/kuya_relay/pkg/tracing"
	"github.com/redis/go-redis/v9"
)

// ProcessedEventRepository records inbound message IDs so redelivered
// webhooks are dropped instead of triggering a second settlement. Redis
// serves as a fast path in front of the durable PostgreSQL table.
type ProcessedEventRepository struct {
	db    *sqlx.DB
	redis *redis.Client
	ttl   time.Duration
}

func NewProcessedEventRepository(db *sqlx.DB, redisClient *redis.Client, ttl time.Duration) *ProcessedEventRepository {
	return &ProcessedEventRepository{
		db:    db,
		redis: redisClient,
		ttl:   ttl,
	}
}

// MarkProcessed records the event ID and reports whether this delivery is
// the first one seen. Redis failures fall through to the database so the
// cache never blocks processing.
func (r *ProcessedEventRepository) MarkProcessed(ctx context.Context, event *entities.ProcessedEvent) (bool, error) {
	if r.redis != nil {
		cacheKey := "event:" + event.EventID
		acquired, err := r.redis.SetNX(ctx, cacheKey, "1", r.ttl).Result()
		if err == nil && !acquired {
			return false, nil
		}
	}

	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "INSERT",
		Table:     "processed_events",
	})
	query := `
		INSERT INTO processed_events (id, event_id, sender_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query,
		event.ID, event.EventID, string(event.SenderID), event.CreatedAt, event.ExpiresAt)
	if err != nil {
		tracing.EndDBSpan(span, err, 0)
		return false, fmt.Errorf("failed to mark event processed: %w", err)
	}

	rows, _ := result.RowsAffected()
	tracing.EndDBSpan(span, nil, rows)
	return rows > 0, nil
}

// DeleteExpired purges event records whose retention window has passed.
func (r *ProcessedEventRepository) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "DELETE",
		Table:     "processed_events",
	})
	result, err := r.db.ExecContext(ctx, `DELETE FROM processed_events WHERE expires_at < NOW()`)
	if err != nil {
		tracing.EndDBSpan(span, err, 0)
		return 0, fmt.Errorf("failed to delete expired events: %w", err)
	}

	rows, _ := result.RowsAffected()
	tracing.EndDBSpan(span, nil, rows)
	return rows, nil
}
