package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jashezan/HomifyHub/internal/domain"
	pkgkafka "github.com/jashezan/HomifyHub/pkg/kafka"
	"github.com/jashezan/HomifyHub/pkg/logger"
)

// Kafka topics for storefront events.
const (
	TopicCartUpdated     = "homifyhub.cart.updated"
	TopicWishlistUpdated = "homifyhub.wishlist.updated"
)

// Envelope kinds and the source name.
const (
	KindCartUpdated     = "cart.updated"
	KindWishlistUpdated = "wishlist.updated"
	SourceStorefront    = "storefront"
)

// Actions carried in event payloads.
const (
	ActionAdded   = "added"
	ActionRemoved = "removed"
	ActionUpdated = "updated"
)

// CartUpdatedData is the payload of a cart.updated event.
type CartUpdatedData struct {
	ShopperKey string         `json:"shopper_key"`
	Action     string         `json:"action"`
	ItemID     int64          `json:"item_id"`
	Count      int            `json:"count"`
	TotalCents int64          `json:"total_cents"`
	Items      []CartItemData `json:"items"`
}

// CartItemData is a cart line within cart events.
type CartItemData struct {
	ID         int64  `json:"id"`
	ProductID  int64  `json:"product_id"`
	Slug       string `json:"slug"`
	Variant    string `json:"variant,omitempty"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

// WishlistUpdatedData is the payload of a wishlist.updated event.
type WishlistUpdatedData struct {
	UserID    string `json:"user_id"`
	Action    string `json:"action"`
	ProductID int64  `json:"product_id"`
	Slug      string `json:"slug"`
	Count     int    `json:"count"`
}

// Producer publishes storefront events. A Producer without a Kafka producer
// drops events, which is how the storefront runs when no brokers are set.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer. kafka may be nil.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event for cart.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart, action string, itemID int64) error {
	items := make([]CartItemData, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = CartItemData{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Slug:       item.Slug,
			Variant:    item.Variant,
			PriceCents: item.PriceCents,
			Quantity:   item.Quantity,
		}
	}

	data := CartUpdatedData{
		ShopperKey: cart.ShopperKey,
		Action:     action,
		ItemID:     itemID,
		Count:      cart.Count(),
		TotalCents: cart.TotalCents(),
		Items:      items,
	}
	return p.publish(ctx, TopicCartUpdated, KindCartUpdated, cart.ShopperKey, data)
}

// PublishWishlistUpdated publishes a wishlist.updated event.
func (p *Producer) PublishWishlistUpdated(ctx context.Context, userID string, product *domain.Product, action string, count int) error {
	data := WishlistUpdatedData{
		UserID:    userID,
		Action:    action,
		ProductID: product.ID,
		Slug:      product.Slug,
		Count:     count,
	}
	return p.publish(ctx, TopicWishlistUpdated, KindWishlistUpdated, "user:"+userID, data)
}

func (p *Producer) publish(ctx context.Context, topic, kind, key string, data any) error {
	if p.kafka == nil {
		return nil
	}

	env, err := pkgkafka.Seal(kind, key, SourceStorefront, data, time.Now())
	if err != nil {
		return err
	}
	env.CorrelationID = logger.CorrelationIDFromContext(ctx)

	if err := p.kafka.Publish(ctx, topic, env); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}
