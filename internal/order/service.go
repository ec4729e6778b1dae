package order

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

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/catalog"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/notification"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/pricing"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/logging"
)

type Service interface {
	CreateOrder(ctx context.Context, userID, userEmail string, items []domain.CartItem) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, newStatus domain.OrderStatus) (*domain.Order, error)
	FulfillOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	RefundOrder(ctx context.Context, orderID int64, reason string) (*domain.Order, error)
}

type service struct {
	pool       *pgxpool.Pool
	orderRepo  Repository
	catalog    catalog.Repository
	notifier   notification.Sender
	dispatcher *notification.Dispatcher
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewService(
	pool *pgxpool.Pool,
	orderRepo Repository,
	catalogRepo catalog.Repository,
	notifier notification.Sender,
	dispatcher *notification.Dispatcher,
	logger *zap.Logger,
) Service {
	return &service{
		pool:       pool,
		orderRepo:  orderRepo,
		catalog:    catalogRepo,
		notifier:   notifier,
		dispatcher: dispatcher,
		logger:     logger,
		tracer:     otel.Tracer("order_service"),
		now:        time.Now,
	}
}

func (s *service) rollback(ctx context.Context, tx pgx.Tx) {
	cleanupCtx := context.WithoutCancel(ctx)

	if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logging.Warn(
			cleanupCtx,
			s.logger,
			"Error rolling back transaction",
			zap.Error(err),
		)
	}
}

// CreateOrder persists the order and all its items in one transaction. A
// committed order with zero items, or with fewer items than the cart had,
// cannot exist: any failure rolls the whole thing back.
func (s *service) CreateOrder(ctx context.Context, userID, userEmail string, items []domain.CartItem) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("items_count", len(items)),
	)

	if len(items) == 0 {
		return nil, domain.NewValidationError("cannot create an order with no items")
	}

	// Authoritative availability check, independent of the cart's own
	// validation. Names the specific item that fails.
	now := s.now()
	for _, line := range items {
		item, err := s.catalog.GetItem(ctx, line.ItemType, line.ItemID)
		if err != nil {
			if domain.IsKind(err, domain.KindNotFound) {
				return nil, domain.NewValidationError("%s %d is no longer available", line.ItemType, line.ItemID)
			}
			return nil, err
		}
		if err := catalog.CheckAvailability(item, line.Quantity, now); err != nil {
			return nil, err
		}
	}

	totals := pricing.CalculateTotals(items)

	order := &domain.Order{
		UserID:    userID,
		UserEmail: userEmail,
		Status:    domain.OrderStatusPending,
		Subtotal:  totals.Subtotal,
		Tax:       totals.Tax,
		Total:     totals.Total,
	}
	for _, line := range items {
		order.Items = append(order.Items, domain.OrderItem{
			ItemType:  line.ItemType,
			ItemID:    line.ItemID,
			ItemTitle: line.ItemTitle,
			Price:     line.Price,
			Quantity:  line.Quantity,
		})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		logging.Error(ctx, s.logger, "Failed to begin transaction", zap.Error(err))
		return nil, domain.NewDatabaseError(err)
	}
	defer s.rollback(ctx, tx)

	if err := s.orderRepo.InsertOrder(ctx, tx, order); err != nil {
		logging.Error(
			ctx,
			s.logger,
			"Failed to create order",
			zap.String("user_id", userID),
			zap.Error(err),
		)

		return nil, domain.NewDatabaseError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		logging.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return nil, domain.NewDatabaseError(err)
	}

	logging.Info(
		ctx,
		s.logger,
		"Order created",
		zap.Int64("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Int64("total", order.Total),
	)

	return order, nil
}

func (s *service) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	return s.orderRepo.GetOrder(ctx, orderID)
}

func (s *service) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListUserOrders")
	defer span.End()

	return s.orderRepo.ListUserOrders(ctx, userID)
}

// UpdateOrderStatus applies one legal transition. Re-applying a transition
// the order already took is a benign no-op: webhooks are delivered at least
// once, and the second delivery must not fail.
func (s *service) UpdateOrderStatus(ctx context.Context, orderID int64, newStatus domain.OrderStatus) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
		attribute.String("new_status", string(newStatus)),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.NewDatabaseError(err)
	}
	defer s.rollback(ctx, tx)

	order, err := s.orderRepo.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == newStatus {
		logging.Info(
			ctx,
			s.logger,
			"Order already in target status, skipping",
			zap.Int64("order_id", orderID),
			zap.String("status", string(newStatus)),
		)

		return order, nil
	}

	if !domain.CanTransition(order.Status, newStatus) {
		return nil, domain.NewValidationError(
			"cannot transition order %d from %s to %s", orderID, order.Status, newStatus)
	}

	ok, err := s.orderRepo.UpdateStatus(ctx, tx, orderID, order.Status, newStatus)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Row is locked, so a concurrent change is impossible here.
		return nil, domain.NewDatabaseError(errors.New("conditional status update matched no rows"))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.NewDatabaseError(err)
	}

	order.Status = newStatus

	logging.Info(
		ctx,
		s.logger,
		"Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("status", string(newStatus)),
	)

	return order, nil
}

// FulfillOrder grants everything the order bought, all-or-nothing. It only
// runs against a paid or processing order; fulfillment of an unpaid order is
// the failure mode this whole subsystem exists to prevent. An order that is
// already completed is returned as-is so retried webhooks stay idempotent.
func (s *service) FulfillOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.FulfillOrder")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.NewDatabaseError(err)
	}
	defer s.rollback(ctx, tx)

	order, err := s.orderRepo.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == domain.OrderStatusCompleted {
		logging.Info(
			ctx,
			s.logger,
			"Order already fulfilled, skipping",
			zap.Int64("order_id", orderID),
		)

		return order, nil
	}

	if order.Status != domain.OrderStatusPaid && order.Status != domain.OrderStatusProcessing {
		return nil, domain.NewValidationError(
			"cannot fulfill order %d in status %s", orderID, order.Status)
	}

	for _, item := range order.Items {
		if err := s.applyGrant(ctx, tx, order.UserID, item); err != nil {
			logging.Error(
				ctx,
				s.logger,
				"Fulfillment grant failed, rolling back",
				zap.Int64("order_id", orderID),
				zap.String("item_type", string(item.ItemType)),
				zap.Int64("item_id", item.ItemID),
				zap.Error(err),
			)

			return nil, domain.NewDatabaseError(err)
		}
	}

	ok, err := s.orderRepo.MarkCompleted(ctx, tx, orderID, order.Status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NewDatabaseError(errors.New("completion update matched no rows"))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.NewDatabaseError(err)
	}

	completed := s.now()
	order.Status = domain.OrderStatusCompleted
	order.CompletedAt = &completed

	logging.Info(
		ctx,
		s.logger,
		"Order fulfilled",
		zap.Int64("order_id", orderID),
		zap.Int("items_count", len(order.Items)),
	)

	if order.UserEmail != "" {
		to := order.UserEmail
		confirmed := *order
		s.dispatcher.Dispatch("order_confirmation", func(ctx context.Context) error {
			return s.notifier.SendOrderConfirmation(ctx, to, &confirmed)
		})
	}

	return order, nil
}

// RefundOrder is the structural inverse of FulfillOrder, driven by the same
// per-item dispatch. Downloads already taken are not revocable and stay.
func (s *service) RefundOrder(ctx context.Context, orderID int64, reason string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.RefundOrder")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.NewDatabaseError(err)
	}
	defer s.rollback(ctx, tx)

	order, err := s.orderRepo.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == domain.OrderStatusRefunded {
		logging.Info(
			ctx,
			s.logger,
			"Order already refunded, skipping",
			zap.Int64("order_id", orderID),
		)

		return order, nil
	}

	if order.Status != domain.OrderStatusCompleted {
		return nil, domain.NewValidationError(
			"cannot refund order %d in status %s, must be completed", orderID, order.Status)
	}

	for _, item := range order.Items {
		if err := s.reverseGrant(ctx, tx, order.UserID, item); err != nil {
			logging.Error(
				ctx,
				s.logger,
				"Refund reversal failed, rolling back",
				zap.Int64("order_id", orderID),
				zap.String("item_type", string(item.ItemType)),
				zap.Int64("item_id", item.ItemID),
				zap.Error(err),
			)

			return nil, domain.NewDatabaseError(err)
		}
	}

	ok, err := s.orderRepo.UpdateStatus(ctx, tx, orderID, order.Status, domain.OrderStatusRefunded)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NewDatabaseError(errors.New("refund status update matched no rows"))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.NewDatabaseError(err)
	}

	order.Status = domain.OrderStatusRefunded

	logging.Info(
		ctx,
		s.logger,
		"Order refunded",
		zap.Int64("order_id", orderID),
		zap.String("reason", reason),
	)

	if order.UserEmail != "" {
		to := order.UserEmail
		refunded := *order
		s.dispatcher.Dispatch("refund_notice", func(ctx context.Context) error {
			return s.notifier.SendRefundNotice(ctx, to, &refunded, reason)
		})
	}

	return order, nil
}
