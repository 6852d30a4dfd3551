package audit

import (
	"context"
	"errors"
	"io"
	"time"
)

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// BlobReader reads back artifacts written through a BlobStore.
type BlobReader interface {
	GetObject(ctx context.Context, path string) (io.ReadCloser, error)
}

// ErrObjectNotFound is returned by BlobReader implementations for missing paths.
var ErrObjectNotFound = errors.New("object not found")
