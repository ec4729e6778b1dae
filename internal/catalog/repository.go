// Package catalog reads course/event/digital-product rows. The catalog is
// owned by the admin subsystem and is strictly read-only from here; the cart
// and order services re-check it because it can change underneath them.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/logging"
)

// Item is a catalog snapshot at read time. StartsAt, Capacity and BookedCount
// are only populated for events.
type Item struct {
	Type        domain.ItemType
	ID          int64
	Title       string
	Price       int64
	Published   bool
	StartsAt    *time.Time
	Capacity    int
	BookedCount int
}

type Repository interface {
	GetItem(ctx context.Context, itemType domain.ItemType, itemID int64) (*Item, error)
}

type repo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &repo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("catalog_repository"),
	}
}

func (r *repo) GetItem(ctx context.Context, itemType domain.ItemType, itemID int64) (*Item, error) {
	ctx, span := r.tracer.Start(ctx, "CatalogRepository.GetItem")
	defer span.End()

	span.SetAttributes(
		attribute.String("item_type", string(itemType)),
		attribute.Int64("item_id", itemID),
	)

	item := &Item{Type: itemType, ID: itemID}

	var err error
	switch itemType {
	case domain.ItemTypeCourse:
		query := `
			SELECT title, price, published
			FROM courses
			WHERE id = $1
		`
		err = r.pool.QueryRow(ctx, query, itemID).Scan(&item.Title, &item.Price, &item.Published)
	case domain.ItemTypeEvent:
		query := `
			SELECT title, price, published, starts_at, capacity, booked_count
			FROM events
			WHERE id = $1
		`
		err = r.pool.QueryRow(ctx, query, itemID).Scan(
			&item.Title,
			&item.Price,
			&item.Published,
			&item.StartsAt,
			&item.Capacity,
			&item.BookedCount,
		)
	case domain.ItemTypeDigitalProduct:
		query := `
			SELECT title, price, published
			FROM digital_products
			WHERE id = $1
		`
		err = r.pool.QueryRow(ctx, query, itemID).Scan(&item.Title, &item.Price, &item.Published)
	default:
		return nil, domain.NewValidationError("unknown item type %q", itemType)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError("%s %d not found", itemType, itemID)
	}
	if err != nil {
		logging.Error(
			ctx,
			r.logger,
			"Failed to query catalog item",
			zap.String("item_type", string(itemType)),
			zap.Int64("item_id", itemID),
			zap.Error(err),
		)

		return nil, domain.NewDatabaseError(err)
	}

	return item, nil
}

// CheckAvailability verifies an item can be sold in the given quantity right
// now. Events that already started or are over capacity are the only lines
// that depend on quantity.
func CheckAvailability(item *Item, quantity int, now time.Time) error {
	if !item.Published {
		return domain.NewValidationError("%s %q is no longer available", item.Type, item.Title)
	}

	if item.Type != domain.ItemTypeEvent {
		return nil
	}

	if item.StartsAt != nil && !item.StartsAt.After(now) {
		return domain.NewValidationError("event %q has already started", item.Title)
	}
	if item.Capacity > 0 && item.BookedCount+quantity > item.Capacity {
		return domain.NewConflictError("event %q is fully booked", item.Title)
	}

	return nil
}
