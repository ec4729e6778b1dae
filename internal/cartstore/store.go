package cartstore

import (
	"context"
	"errors"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
)

// Store is the ephemeral cart backing store. Get-then-Set is not atomic: the
// cart service assumes a single writer per user, so a double-submit from two
// tabs can lose one update. That race is accepted; do not add locking here
// without revisiting the cart service contract.
type Store interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrNotFound = errors.New("cart not found")
