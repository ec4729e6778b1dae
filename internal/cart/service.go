package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/cartstore"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/catalog"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/pricing"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/logging"
)

type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

type Service interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddToCart(ctx context.Context, userID string, itemType domain.ItemType, itemID int64, quantity int) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, userID string, itemType domain.ItemType, itemID int64, quantity int) (*domain.Cart, error)
	RemoveFromCart(ctx context.Context, userID string, itemType domain.ItemType, itemID int64) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
	ValidateCart(ctx context.Context, userID string) (*ValidationResult, error)
	MergeGuestCart(ctx context.Context, guestID, userID string) (*domain.Cart, error)
}

type service struct {
	store   cartstore.Store
	catalog catalog.Repository
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

func NewService(store cartstore.Store, catalogRepo catalog.Repository, logger *zap.Logger) Service {
	return &service{
		store:   store,
		catalog: catalogRepo,
		logger:  logger,
		tracer:  otel.Tracer("cart_service"),
		now:     time.Now,
	}
}

// loadOrCreate treats a missing cart as an empty one; absence is never an
// error for the caller.
func (s *service) loadOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.store.Get(ctx, userID)
	if errors.Is(err, cartstore.ErrNotFound) {
		return domain.NewCart(userID), nil
	}
	if err != nil {
		return nil, domain.NewDatabaseError(err)
	}
	return cart, nil
}

func (s *service) persist(ctx context.Context, cart *domain.Cart) error {
	pricing.Apply(cart)
	cart.UpdatedAt = s.now()

	if err := s.store.Set(ctx, cart.UserID, cart); err != nil {
		logging.Error(
			ctx,
			s.logger,
			"Failed to persist cart",
			zap.String("user_id", cart.UserID),
			zap.Error(err),
		)

		return domain.NewDatabaseError(err)
	}
	return nil
}

func (s *service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.GetCart")
	defer span.End()

	cart, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	pricing.Apply(cart)
	return cart, nil
}

func (s *service) AddToCart(ctx context.Context, userID string, itemType domain.ItemType, itemID int64, quantity int) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.AddToCart")
	defer span.End()

	span.SetAttributes(
		attribute.String("item_type", string(itemType)),
		attribute.Int64("item_id", itemID),
		attribute.Int("quantity", quantity),
	)

	if quantity < 1 {
		return nil, domain.NewValidationError("quantity must be at least 1")
	}

	// Soft availability check at add-time. The authoritative check happens
	// again at checkout; a cart can still go stale in between.
	item, err := s.catalog.GetItem(ctx, itemType, itemID)
	if err != nil {
		return nil, err
	}
	if !item.Published {
		return nil, domain.NewNotFoundError("%s %d is not available", itemType, itemID)
	}

	cart, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if i := cart.FindItem(itemType, itemID); i >= 0 {
		cart.Items[i].Quantity += quantity
	} else {
		cart.Items = append(cart.Items, domain.CartItem{
			ItemType:  itemType,
			ItemID:    itemID,
			ItemTitle: item.Title,
			Price:     item.Price,
			Quantity:  quantity,
		})
	}

	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}

	logging.Info(
		ctx,
		s.logger,
		"Item added to cart",
		zap.String("user_id", userID),
		zap.String("item_type", string(itemType)),
		zap.Int64("item_id", itemID),
	)

	return cart, nil
}

func (s *service) UpdateQuantity(ctx context.Context, userID string, itemType domain.ItemType, itemID int64, quantity int) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.UpdateQuantity")
	defer span.End()

	if quantity < 0 {
		return nil, domain.NewValidationError("quantity must not be negative")
	}

	cart, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := cart.FindItem(itemType, itemID)
	if i < 0 {
		return nil, domain.NewNotFoundError("%s %d is not in the cart", itemType, itemID)
	}

	if quantity == 0 {
		cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	} else {
		cart.Items[i].Quantity = quantity
	}

	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *service) RemoveFromCart(ctx context.Context, userID string, itemType domain.ItemType, itemID int64) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.RemoveFromCart")
	defer span.End()

	cart, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := cart.FindItem(itemType, itemID)
	if i < 0 {
		return nil, domain.NewNotFoundError("%s %d is not in the cart", itemType, itemID)
	}

	// Removing the last item leaves an empty cart with zero totals rather
	// than deleting the key.
	cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)

	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *service) ClearCart(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "CartService.ClearCart")
	defer span.End()

	if err := s.store.Delete(ctx, userID); err != nil {
		return domain.NewDatabaseError(err)
	}
	return nil
}

// ValidateCart re-checks every line against current catalog truth. It is the
// checkpoint that catches carts gone stale between add and checkout; it never
// mutates the cart.
func (s *service) ValidateCart(ctx context.Context, userID string) (*ValidationResult, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.ValidateCart")
	defer span.End()

	cart, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{Valid: true, Errors: []string{}}
	now := s.now()

	for _, line := range cart.Items {
		item, err := s.catalog.GetItem(ctx, line.ItemType, line.ItemID)
		if err != nil {
			if domain.IsKind(err, domain.KindNotFound) {
				result.Errors = append(result.Errors,
					fmt.Sprintf("%q is no longer available", line.ItemTitle))
				continue
			}
			return nil, err
		}

		if err := catalog.CheckAvailability(item, line.Quantity, now); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		if item.Price != line.Price {
			result.Errors = append(result.Errors,
				fmt.Sprintf("price of %q changed from %d to %d", line.ItemTitle, line.Price, item.Price))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}

// MergeGuestCart folds an anonymous session's cart into the authenticated
// user's cart on login. A missing guest cart is a no-op, so calling it twice
// is safe.
func (s *service) MergeGuestCart(ctx context.Context, guestID, userID string) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.MergeGuestCart")
	defer span.End()

	userCart, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	guestCart, err := s.store.Get(ctx, guestID)
	if errors.Is(err, cartstore.ErrNotFound) {
		pricing.Apply(userCart)
		return userCart, nil
	}
	if err != nil {
		return nil, domain.NewDatabaseError(err)
	}

	for _, line := range guestCart.Items {
		if i := userCart.FindItem(line.ItemType, line.ItemID); i >= 0 {
			userCart.Items[i].Quantity += line.Quantity
		} else {
			userCart.Items = append(userCart.Items, line)
		}
	}
	userCart.UserID = userID

	if err := s.persist(ctx, userCart); err != nil {
		return nil, err
	}

	if err := s.store.Delete(ctx, guestID); err != nil {
		logging.Warn(
			ctx,
			s.logger,
			"Failed to delete guest cart after merge",
			zap.String("guest_id", guestID),
			zap.Error(err),
		)
	}

	logging.Info(
		ctx,
		s.logger,
		"Guest cart merged",
		zap.String("guest_id", guestID),
		zap.String("user_id", userID),
		zap.Int("item_count", userCart.ItemCount),
	)

	return userCart, nil
}
