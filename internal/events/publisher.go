package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	Channel = "comanda:events"

	EventOrderCreated      = "order.created"
	EventOrderUpdated      = "order.updated"
	EventOrderCanceled     = "order.canceled"
	EventItemStatusChanged = "order.item_status_changed"
	EventPaymentProcessed  = "payment.processed"
	EventPrintJobQueued    = "print_job.queued"

	AvailabilityCacheKey = "menu:availability"
	OrderCachePrefix     = "orders:"
)

type envelope struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher emits "something changed" notifications over Redis pub/sub and
// drops the cache keys those changes invalidate. Delivery to UIs is handled
// by a downstream transport; the core only emits, best-effort.
type Publisher struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewPublisher(rdb *redis.Client, log *zap.Logger) *Publisher {
	return &Publisher{rdb: rdb, log: log}
}

func (p *Publisher) Publish(ctx context.Context, event string, data interface{}) {
	if p == nil || p.rdb == nil {
		return
	}

	msg, err := json.Marshal(envelope{Event: event, Data: data, Timestamp: time.Now()})
	if err != nil {
		p.warn("failed to marshal event", event, err)
		return
	}
	if err := p.rdb.Publish(ctx, Channel, msg).Err(); err != nil {
		p.warn("failed to publish event", event, err)
	}
}

// InvalidateAvailability drops the cached recipe availability listing; called
// after any stock mutation.
func (p *Publisher) InvalidateAvailability(ctx context.Context) {
	if p == nil || p.rdb == nil {
		return
	}
	if err := p.rdb.Del(ctx, AvailabilityCacheKey).Err(); err != nil {
		p.warn("failed to invalidate availability cache", AvailabilityCacheKey, err)
	}
}

// InvalidateOrder drops the cached view of one order.
func (p *Publisher) InvalidateOrder(ctx context.Context, orderID int64) {
	if p == nil || p.rdb == nil {
		return
	}
	key := fmt.Sprintf("%s%d", OrderCachePrefix, orderID)
	if err := p.rdb.Del(ctx, key).Err(); err != nil {
		p.warn("failed to invalidate order cache", key, err)
	}
}

func (p *Publisher) warn(msg, subject string, err error) {
	if p.log != nil {
		p.log.Warn(msg, zap.String("subject", subject), zap.Error(err))
	}
}
