package internal

import (
	"context"
	"io"
)

// Repository stores archive objects. The key is opaque to implementations:
// they must not derive structure from it beyond using it as an object name.
type Repository interface {
	Write(ctx context.Context, key string, reader io.Reader) error
}
