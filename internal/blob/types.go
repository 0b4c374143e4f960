// Package blob is the entry point to blob storage. Callers depend on Store
// and obtain one from Open; only this package imports the backends.
package blob

import (
	"bytes"
	"context"
	"io"

	"dashcore/internal/blob/core"
)

type (
	Driver           = core.Driver
	PutOptions       = core.PutOptions
	SignedURLOptions = core.SignedURLOptions
	Info             = core.Info
	Store            = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
)

// ReadAll fetches the whole blob at key.
func ReadAll(ctx context.Context, s Store, key string) (Info, []byte, error) {
	info, rc, err := s.Get(ctx, key)
	if err != nil {
		return Info{}, nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return Info{}, nil, err
	}
	return info, b, nil
}

// PutBytes stores b under key.
func PutBytes(ctx context.Context, s Store, key, contentType string, b []byte, metadata map[string]string) (Info, error) {
	return s.Put(ctx, key, bytes.NewReader(b), PutOptions{ContentType: contentType, Metadata: metadata})
}
