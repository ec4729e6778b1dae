package order

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
)

// applyGrant dispatches one order line to its grant operation. Grants are
// upserts, so a second fulfillment pass changes nothing; counters only move
// when a grant actually inserted.
func (s *service) applyGrant(ctx context.Context, tx pgx.Tx, userID string, item domain.OrderItem) error {
	switch item.ItemType {
	case domain.ItemTypeCourse:
		created, err := s.orderRepo.GrantEnrollment(ctx, tx, userID, item.ItemID)
		if err != nil {
			return err
		}
		if created {
			return s.orderRepo.AdjustEnrollmentCount(ctx, tx, item.ItemID, 1)
		}
		return nil

	case domain.ItemTypeEvent:
		created, err := s.orderRepo.GrantBooking(ctx, tx, userID, item.ItemID, item.Quantity)
		if err != nil {
			return err
		}
		if created {
			return s.orderRepo.AdjustBookedCount(ctx, tx, item.ItemID, item.Quantity)
		}
		return nil

	case domain.ItemTypeDigitalProduct:
		_, err := s.orderRepo.GrantDownload(ctx, tx, userID, item.ItemID)
		return err

	default:
		return domain.NewValidationError("unknown item type %q", item.ItemType)
	}
}

// reverseGrant undoes applyGrant for one line. Digital downloads are left in
// place: a file already downloaded cannot be taken back.
func (s *service) reverseGrant(ctx context.Context, tx pgx.Tx, userID string, item domain.OrderItem) error {
	switch item.ItemType {
	case domain.ItemTypeCourse:
		removed, err := s.orderRepo.RevokeEnrollment(ctx, tx, userID, item.ItemID)
		if err != nil {
			return err
		}
		if removed {
			return s.orderRepo.AdjustEnrollmentCount(ctx, tx, item.ItemID, -1)
		}
		return nil

	case domain.ItemTypeEvent:
		quantity, err := s.orderRepo.CancelBooking(ctx, tx, userID, item.ItemID)
		if err != nil {
			return err
		}
		if quantity > 0 {
			return s.orderRepo.AdjustBookedCount(ctx, tx, item.ItemID, -quantity)
		}
		return nil

	case domain.ItemTypeDigitalProduct:
		return nil

	default:
		return domain.NewValidationError("unknown item type %q", item.ItemType)
	}
}
