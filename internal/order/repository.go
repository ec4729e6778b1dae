package order

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/logging"
)

// Repository owns all order/order_items writes plus the fulfillment grant
// tables. Methods that take a pgx.Tx participate in the caller's transaction;
// nothing here opens its own.
type Repository interface {
	InsertOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	GetOrderForUpdate(ctx context.Context, tx pgx.Tx, orderID int64) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, orderID int64, from, to domain.OrderStatus) (bool, error)
	MarkCompleted(ctx context.Context, tx pgx.Tx, orderID int64, from domain.OrderStatus) (bool, error)

	GrantEnrollment(ctx context.Context, tx pgx.Tx, userID string, courseID int64) (bool, error)
	RevokeEnrollment(ctx context.Context, tx pgx.Tx, userID string, courseID int64) (bool, error)
	GrantBooking(ctx context.Context, tx pgx.Tx, userID string, eventID int64, quantity int) (bool, error)
	CancelBooking(ctx context.Context, tx pgx.Tx, userID string, eventID int64) (int, error)
	GrantDownload(ctx context.Context, tx pgx.Tx, userID string, productID int64) (bool, error)

	AdjustEnrollmentCount(ctx context.Context, tx pgx.Tx, courseID int64, delta int) error
	AdjustBookedCount(ctx context.Context, tx pgx.Tx, eventID int64, delta int) error
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
		tracer: otel.Tracer("order_repository"),
	}
}

func (r *repo) InsertOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.InsertOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", order.UserID),
		attribute.Int("items_count", len(order.Items)),
	)

	queryOrder := `
		INSERT INTO orders (user_id, user_email, status, subtotal, tax, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	if err := tx.QueryRow(
		ctx,
		queryOrder,
		order.UserID,
		order.UserEmail,
		string(order.Status),
		order.Subtotal,
		order.Tax,
		order.Total,
	).Scan(
		&order.ID,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		span.RecordError(err)

		logging.Error(
			ctx,
			r.logger,
			"Failed to insert order",
			zap.Error(err),
		)

		return err
	}

	queryItem := `
		INSERT INTO order_items (order_id, item_type, item_id, item_title, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		if err := tx.QueryRow(
			ctx,
			queryItem,
			order.ID,
			string(item.ItemType),
			item.ItemID,
			item.ItemTitle,
			item.Price,
			item.Quantity,
		).Scan(&item.ID); err != nil {
			span.RecordError(err)

			logging.Error(
				ctx,
				r.logger,
				"Failed to insert order item",
				zap.Int64("order_id", order.ID),
				zap.Error(err),
			)

			return err
		}
	}

	return nil
}

const orderColumns = `id, user_id, user_email, status, subtotal, tax, total, created_at, updated_at, completed_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.UserEmail,
		&o.Status,
		&o.Subtotal,
		&o.Tax,
		&o.Total,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *repo) loadItems(ctx context.Context, q querier, order *domain.Order) error {
	query := `
		SELECT id, order_id, item_type, item_id, item_title, price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := q.Query(ctx, query, order.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ItemType,
			&item.ItemID,
			&item.ItemTitle,
			&item.Price,
			&item.Quantity,
		); err != nil {
			return err
		}
		order.Items = append(order.Items, item)
	}

	return rows.Err()
}

func (r *repo) getOrder(ctx context.Context, q querier, orderID int64, forUpdate bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(q.QueryRow(ctx, query, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError("order %d not found", orderID)
	}
	if err != nil {
		logging.Error(
			ctx,
			r.logger,
			"Failed to query order",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)

		return nil, domain.NewDatabaseError(err)
	}

	if err := r.loadItems(ctx, q, order); err != nil {
		return nil, domain.NewDatabaseError(err)
	}

	return order, nil
}

func (r *repo) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetOrder")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	return r.getOrder(ctx, r.pool, orderID, false)
}

// GetOrderForUpdate locks the order row so concurrent webhook deliveries for
// the same order serialize at the database.
func (r *repo) GetOrderForUpdate(ctx context.Context, tx pgx.Tx, orderID int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetOrderForUpdate")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	return r.getOrder(ctx, tx, orderID, true)
}

func (r *repo) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListUserOrders")
	defer span.End()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, domain.NewDatabaseError(err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, domain.NewDatabaseError(err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewDatabaseError(err)
	}

	for i := range orders {
		if err := r.loadItems(ctx, r.pool, &orders[i]); err != nil {
			return nil, domain.NewDatabaseError(err)
		}
	}

	return orders, nil
}

// UpdateStatus is a conditional write: it only succeeds when the row still
// holds the expected current status, so a lagging event cannot overwrite a
// later one. Returns false when the row was not in the expected status.
func (r *repo) UpdateStatus(ctx context.Context, tx pgx.Tx, orderID int64, from, to domain.OrderStatus) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	)

	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	tag, err := tx.Exec(ctx, query, string(to), orderID, string(from))
	if err != nil {
		span.RecordError(err)

		logging.Error(
			ctx,
			r.logger,
			"Failed to update order status",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)

		return false, domain.NewDatabaseError(err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *repo) MarkCompleted(ctx context.Context, tx pgx.Tx, orderID int64, from domain.OrderStatus) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.MarkCompleted")
	defer span.End()

	query := `
		UPDATE orders
		SET status = $1, completed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	tag, err := tx.Exec(ctx, query, string(domain.OrderStatusCompleted), orderID, string(from))
	if err != nil {
		span.RecordError(err)
		return false, domain.NewDatabaseError(err)
	}

	return tag.RowsAffected() > 0, nil
}
