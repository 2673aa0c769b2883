// Package storage persists uploaded transfer bills and returns a URL staff can open.
package storage

import (
	"context"
	"io"
)

// BillStorage stores one object under key and returns its public URL
type BillStorage interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}
