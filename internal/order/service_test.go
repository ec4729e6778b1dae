package order

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/catalog"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/notification"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/testsuite"
)

// recordingSender captures notification sends instead of talking to SMTP.
type recordingSender struct {
	mu            sync.Mutex
	confirmations []string
	refundNotices []string
}

func (r *recordingSender) SendOrderConfirmation(_ context.Context, to string, _ *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmations = append(r.confirmations, to)
	return nil
}

func (r *recordingSender) SendRefundNotice(_ context.Context, to string, _ *domain.Order, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refundNotices = append(r.refundNotices, to)
	return nil
}

type OrderServiceSuite struct {
	testsuite.BaseSuite
	svc    Service
	sender *recordingSender
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupSuite() {
	s.SetupInfrastructure("../../migrations")

	logger := zap.NewNop()
	s.sender = &recordingSender{}
	s.svc = NewService(
		s.DbPool,
		NewRepository(s.DbPool, logger),
		catalog.NewRepository(s.DbPool, logger),
		s.sender,
		notification.NewDispatcher(logger),
		logger,
	)
}

func (s *OrderServiceSuite) TearDownSuite() {
	s.TearDownInfrastructure()
}

func (s *OrderServiceSuite) SetupTest() {
	s.TruncateTable("orders")
	s.TruncateTable("courses")
	s.TruncateTable("events")
	s.TruncateTable("digital_products")

	_, err := s.DbPool.Exec(s.Ctx, `
		INSERT INTO courses (id, title, price, published)
		VALUES (1, 'Intro to Tarot', 2999, TRUE)
	`)
	s.Require().NoError(err)

	_, err = s.DbPool.Exec(s.Ctx, `
		INSERT INTO events (id, title, price, published, starts_at, capacity, booked_count)
		VALUES (2, 'Moon Circle', 1500, TRUE, NOW() + INTERVAL '7 days', 10, 0)
	`)
	s.Require().NoError(err)

	_, err = s.DbPool.Exec(s.Ctx, `
		INSERT INTO digital_products (id, title, price, published)
		VALUES (3, 'Crystal Guide PDF', 999, TRUE)
	`)
	s.Require().NoError(err)
}

func testItems() []domain.CartItem {
	return []domain.CartItem{
		{ItemType: domain.ItemTypeCourse, ItemID: 1, ItemTitle: "Intro to Tarot", Price: 2999, Quantity: 1},
		{ItemType: domain.ItemTypeEvent, ItemID: 2, ItemTitle: "Moon Circle", Price: 1500, Quantity: 2},
		{ItemType: domain.ItemTypeDigitalProduct, ItemID: 3, ItemTitle: "Crystal Guide PDF", Price: 999, Quantity: 1},
	}
}

// createCompletedOrder walks a fresh order through to fulfillment.
func (s *OrderServiceSuite) createCompletedOrder() *domain.Order {
	order, err := s.svc.CreateOrder(s.Ctx, "user-1", "luna@example.com", testItems())
	s.Require().NoError(err)

	_, err = s.svc.UpdateOrderStatus(s.Ctx, order.ID, domain.OrderStatusPaymentPending)
	s.Require().NoError(err)
	_, err = s.svc.UpdateOrderStatus(s.Ctx, order.ID, domain.OrderStatusPaid)
	s.Require().NoError(err)

	fulfilled, err := s.svc.FulfillOrder(s.Ctx, order.ID)
	s.Require().NoError(err)
	return fulfilled
}

func (s *OrderServiceSuite) countRows(query string, args ...any) int {
	var n int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, query, args...).Scan(&n))
	return n
}

func (s *OrderServiceSuite) TestCreateOrder() {
	order, err := s.svc.CreateOrder(s.Ctx, "user-1", "luna@example.com", testItems())
	s.Require().NoError(err)

	s.Equal(domain.OrderStatusPending, order.Status)
	s.Equal(int64(6998), order.Subtotal)
	s.Equal(int64(560), order.Tax)
	s.Equal(int64(7558), order.Total)
	s.Equal(order.Total, order.Subtotal+order.Tax)

	// Reload from the database: the order and all its items were committed
	// together.
	loaded, err := s.svc.GetOrder(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Equal("user-1", loaded.UserID)
	s.Equal("luna@example.com", loaded.UserEmail)
	s.Len(loaded.Items, 3)
}

func (s *OrderServiceSuite) TestCreateOrder_NoItems() {
	_, err := s.svc.CreateOrder(s.Ctx, "user-1", "luna@example.com", nil)
	s.True(domain.IsKind(err, domain.KindValidation))
}

func (s *OrderServiceSuite) TestCreateOrder_UnpublishedItem() {
	_, err := s.DbPool.Exec(s.Ctx, `UPDATE courses SET published = FALSE WHERE id = 1`)
	s.Require().NoError(err)

	_, err = s.svc.CreateOrder(s.Ctx, "user-1", "luna@example.com", testItems())
	s.True(domain.IsKind(err, domain.KindValidation))

	// Nothing was committed.
	s.Zero(s.countRows(`SELECT COUNT(*) FROM orders`))
	s.Zero(s.countRows(`SELECT COUNT(*) FROM order_items`))
}

func (s *OrderServiceSuite) TestCreateOrder_FullyBookedEvent() {
	_, err := s.DbPool.Exec(s.Ctx, `UPDATE events SET booked_count = 9 WHERE id = 2`)
	s.Require().NoError(err)

	_, err = s.svc.CreateOrder(s.Ctx, "user-1", "luna@example.com", testItems())
	s.True(domain.IsKind(err, domain.KindConflict))
	s.ErrorContains(err, "fully booked")
}

func (s *OrderServiceSuite) TestGetOrder_NotFound() {
	_, err := s.svc.GetOrder(s.Ctx, 9999)
	s.True(domain.IsKind(err, domain.KindNotFound))
}

func (s *OrderServiceSuite) TestUpdateOrderStatus() {
	order, err := s.svc.CreateOrder(s.Ctx, "user-1", "luna@example.com", testItems())
	s.Require().NoError(err)

	updated, err := s.svc.UpdateOrderStatus(s.Ctx, order.ID, domain.OrderStatusPaymentPending)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPaymentPending, updated.Status)

	// Re-applying the same transition is a no-op, not an error.
	again, err := s.svc.UpdateOrderStatus(s.Ctx, order.ID, domain.OrderStatusPaymentPending)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPaymentPending, again.Status)
}

func (s *OrderServiceSuite) TestUpdateOrderStatus_IllegalTransition() {
	order, err := s.svc.CreateOrder(s.Ctx, "user-1", "luna@example.com", testItems())
	s.Require().NoError(err)

	// pending cannot jump straight to paid.
	_, err = s.svc.UpdateOrderStatus(s.Ctx, order.ID, domain.OrderStatusPaid)
	s.True(domain.IsKind(err, domain.KindValidation))

	loaded, err := s.svc.GetOrder(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPending, loaded.Status)
}

func (s *OrderServiceSuite) TestFulfillOrder() {
	order := s.createCompletedOrder()

	s.Equal(domain.OrderStatusCompleted, order.Status)
	s.NotNil(order.CompletedAt)

	s.Equal(1, s.countRows(`SELECT COUNT(*) FROM course_enrollments WHERE user_id = 'user-1' AND course_id = 1`))
	s.Equal(1, s.countRows(`SELECT COUNT(*) FROM event_bookings WHERE user_id = 'user-1' AND event_id = 2`))
	s.Equal(1, s.countRows(`SELECT COUNT(*) FROM download_grants WHERE user_id = 'user-1' AND product_id = 3`))

	s.Equal(1, s.countRows(`SELECT enrollment_count FROM courses WHERE id = 1`))
	s.Equal(2, s.countRows(`SELECT booked_count FROM events WHERE id = 2`))
}

func (s *OrderServiceSuite) TestFulfillOrder_Idempotent() {
	order := s.createCompletedOrder()

	again, err := s.svc.FulfillOrder(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCompleted, again.Status)

	// The second pass granted nothing and moved no counters.
	s.Equal(1, s.countRows(`SELECT COUNT(*) FROM course_enrollments WHERE user_id = 'user-1'`))
	s.Equal(1, s.countRows(`SELECT enrollment_count FROM courses WHERE id = 1`))
	s.Equal(2, s.countRows(`SELECT booked_count FROM events WHERE id = 2`))
}

func (s *OrderServiceSuite) TestFulfillOrder_UnpaidOrder() {
	order, err := s.svc.CreateOrder(s.Ctx, "user-1", "luna@example.com", testItems())
	s.Require().NoError(err)

	_, err = s.svc.FulfillOrder(s.Ctx, order.ID)
	s.True(domain.IsKind(err, domain.KindValidation))

	// No grants leaked out of the rejected fulfillment.
	s.Zero(s.countRows(`SELECT COUNT(*) FROM course_enrollments`))
	s.Zero(s.countRows(`SELECT COUNT(*) FROM event_bookings`))
	s.Zero(s.countRows(`SELECT COUNT(*) FROM download_grants`))
}

func (s *OrderServiceSuite) TestRefundOrder() {
	order := s.createCompletedOrder()

	refunded, err := s.svc.RefundOrder(s.Ctx, order.ID, "customer request")
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusRefunded, refunded.Status)

	// Enrollment and booking are reversed, counters released. The download
	// grant stays: the file may already be on the customer's disk.
	s.Zero(s.countRows(`SELECT COUNT(*) FROM course_enrollments WHERE user_id = 'user-1'`))
	s.Zero(s.countRows(`SELECT COUNT(*) FROM event_bookings WHERE user_id = 'user-1'`))
	s.Equal(1, s.countRows(`SELECT COUNT(*) FROM download_grants WHERE user_id = 'user-1'`))

	s.Zero(s.countRows(`SELECT enrollment_count FROM courses WHERE id = 1`))
	s.Zero(s.countRows(`SELECT booked_count FROM events WHERE id = 2`))
}

func (s *OrderServiceSuite) TestRefundOrder_Idempotent() {
	order := s.createCompletedOrder()

	_, err := s.svc.RefundOrder(s.Ctx, order.ID, "customer request")
	s.Require().NoError(err)

	again, err := s.svc.RefundOrder(s.Ctx, order.ID, "customer request")
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusRefunded, again.Status)

	s.Zero(s.countRows(`SELECT enrollment_count FROM courses WHERE id = 1`))
	s.Zero(s.countRows(`SELECT booked_count FROM events WHERE id = 2`))
}

func (s *OrderServiceSuite) TestRefundOrder_NotCompleted() {
	order, err := s.svc.CreateOrder(s.Ctx, "user-1", "luna@example.com", testItems())
	s.Require().NoError(err)

	_, err = s.svc.RefundOrder(s.Ctx, order.ID, "customer request")
	s.True(domain.IsKind(err, domain.KindValidation))
}

func (s *OrderServiceSuite) TestListUserOrders() {
	_, err := s.svc.CreateOrder(s.Ctx, "user-1", "luna@example.com", testItems())
	s.Require().NoError(err)
	_, err = s.svc.CreateOrder(s.Ctx, "user-1", "luna@example.com", testItems())
	s.Require().NoError(err)
	_, err = s.svc.CreateOrder(s.Ctx, "user-2", "sol@example.com", testItems())
	s.Require().NoError(err)

	orders, err := s.svc.ListUserOrders(s.Ctx, "user-1")
	s.Require().NoError(err)
	s.Len(orders, 2)
	for _, o := range orders {
		s.Equal("user-1", o.UserID)
	}
}
