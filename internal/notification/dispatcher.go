package notification

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Dispatcher runs notification sends off the critical path. The transactional
// result is already committed when Dispatch is called; a failed send is
// logged and dropped, never surfaced to the operation that triggered it.
type Dispatcher struct {
	logger  *zap.Logger
	timeout time.Duration
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

func (d *Dispatcher) Dispatch(name string, fn func(ctx context.Context) error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error(
					"Notification panicked",
					zap.String("notification", name),
					zap.Any("panic", r),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			d.logger.Warn(
				"Notification failed",
				zap.String("notification", name),
				zap.Error(err),
			)
		}
	}()
}
