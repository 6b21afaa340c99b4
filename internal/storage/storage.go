package storage

import (
	"context"
	"io"
)

type PutInput struct {
	Filename    string
	ContentType string
	Size        int64
}

type PutResult struct {
	Key string
	URL string
}

// Storage persists binary blobs and returns a servable URL. The checkout
// flow uses it for the instant-transfer QR images returned by the
// processor, so the storefront can serve a stable link instead of shipping
// base64 on every poll.
type Storage interface {
	Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error)
	Delete(ctx context.Context, key string) error
}
