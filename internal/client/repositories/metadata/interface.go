package metadata

import (
	"context"
)

// Encoding records how a stored value was written.
type Encoding string

const (
	// EncodingJSON marks a value that was validated and compacted as JSON.
	EncodingJSON Encoding = "json"
	// EncodingRaw marks opaque bytes stored as given.
	EncodingRaw Encoding = "raw"
)

// Table names a key/value table of the local database.
type Table string

const (
	// TableDurable holds the session snapshot and evictable caches.
	TableDurable Table = "metadata"
	// TableLocal holds small values that survive cache eviction (cart ids).
	TableLocal Table = "local_storage"
)

// Repository is a key/value store over one local table. Get returns
// (nil, nil) for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetEncoded(ctx context.Context, key string, value []byte, enc Encoding) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	List(ctx context.Context) (map[string][]byte, error)
	Size(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
}
