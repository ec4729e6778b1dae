package order

import (
	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/logging"
)

// Grant operations are conflict-safe upserts so re-running fulfillment for an
// already-fulfilled order is a no-op, never a double grant. Each returns
// whether a row was actually created; denormalized counters move only when
// the answer is yes.

func (r *repo) GrantEnrollment(ctx context.Context, tx pgx.Tx, userID string, courseID int64) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GrantEnrollment")
	defer span.End()

	query := `
		INSERT INTO course_enrollments (user_id, course_id, enrolled_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, course_id) DO NOTHING
	`

	tag, err := tx.Exec(ctx, query, userID, courseID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func (r *repo) RevokeEnrollment(ctx context.Context, tx pgx.Tx, userID string, courseID int64) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.RevokeEnrollment")
	defer span.End()

	query := `
		DELETE FROM course_enrollments
		WHERE user_id = $1 AND course_id = $2
	`

	tag, err := tx.Exec(ctx, query, userID, courseID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func (r *repo) GrantBooking(ctx context.Context, tx pgx.Tx, userID string, eventID int64, quantity int) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GrantBooking")
	defer span.End()

	query := `
		INSERT INTO event_bookings (user_id, event_id, quantity, booked_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, event_id) DO NOTHING
	`

	tag, err := tx.Exec(ctx, query, userID, eventID, quantity)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

// CancelBooking removes the booking and reports the quantity that was booked
// so the caller can release that much event capacity.
func (r *repo) CancelBooking(ctx context.Context, tx pgx.Tx, userID string, eventID int64) (int, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.CancelBooking")
	defer span.End()

	query := `
		DELETE FROM event_bookings
		WHERE user_id = $1 AND event_id = $2
		RETURNING quantity
	`

	var quantity int
	err := tx.QueryRow(ctx, query, userID, eventID).Scan(&quantity)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	return quantity, nil
}

func (r *repo) GrantDownload(ctx context.Context, tx pgx.Tx, userID string, productID int64) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GrantDownload")
	defer span.End()

	query := `
		INSERT INTO download_grants (user_id, product_id, granted_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, product_id) DO NOTHING
	`

	tag, err := tx.Exec(ctx, query, userID, productID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func (r *repo) AdjustEnrollmentCount(ctx context.Context, tx pgx.Tx, courseID int64, delta int) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.AdjustEnrollmentCount")
	defer span.End()

	query := `
		UPDATE courses
		SET enrollment_count = enrollment_count + $1
		WHERE id = $2
	`

	if _, err := tx.Exec(ctx, query, delta, courseID); err != nil {
		span.RecordError(err)

		logging.Error(
			ctx,
			r.logger,
			"Failed to adjust enrollment count",
			zap.Int64("course_id", courseID),
			zap.Error(err),
		)

		return err
	}
	return nil
}

func (r *repo) AdjustBookedCount(ctx context.Context, tx pgx.Tx, eventID int64, delta int) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.AdjustBookedCount")
	defer span.End()

	query := `
		UPDATE events
		SET booked_count = booked_count + $1
		WHERE id = $2
	`

	if _, err := tx.Exec(ctx, query, delta, eventID); err != nil {
		span.RecordError(err)

		logging.Error(
			ctx,
			r.logger,
			"Failed to adjust booked count",
			zap.Int64("event_id", eventID),
			zap.Error(err),
		)

		return err
	}
	return nil
}
