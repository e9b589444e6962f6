// Package fetcher retrieves object bytes by bucket and key.
package fetcher

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the bucket or object does not exist.
var ErrNotFound = errors.New("object not found")

// Fetcher retrieves the full contents of one object.
type Fetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}
