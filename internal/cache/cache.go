package cache

import (
	"context"
	"errors"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, buyerID string) (*d.Cart, error)
	Set(ctx context.Context, buyerID string, cart *d.Cart) error
	Delete(ctx context.Context, buyerID string) error
}

var ErrCacheMiss = errors.New("cache miss")

// NopCache never holds anything. Used when Redis is not configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*d.Cart, error) { return nil, ErrCacheMiss }

func (NopCache) Set(context.Context, string, *d.Cart) error { return nil }

func (NopCache) Delete(context.Context, string) error { return nil }
