// Package cookies persists named, expiring credential values in the local
// client database. It plays the role of the browser cookie jar.
package cookies

import (
	"context"
	"time"
)

// Cookie is a stored credential value.
type Cookie struct {
	Name      string
	Value     string
	ExpiresAt time.Time
	Secure    bool
}

// Repository stores cookies by name. Get returns (nil, nil) when absent.
type Repository interface {
	Get(ctx context.Context, name string) (*Cookie, error)
	Put(ctx context.Context, c Cookie) error
	Delete(ctx context.Context, names ...string) error
}
