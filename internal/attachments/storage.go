// Package attachments stores image/voice/video payloads and turns them into
// URIs that media messages carry as content.
package attachments

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotFound   = errors.New("attachments: not found")
	ErrInvalidKey = errors.New("attachments: invalid key")
)

type Storage interface {
	// Write stores r under key; size is -1 when unknown.
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Read returns the content of key; the caller closes it.
	Read(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// GetURL returns a URL for key, presigned for expires where supported.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}
