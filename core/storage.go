package core

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

var ErrBlobNotFound = errors.New("blob not found")

type (
	// Blob is the metadata of a stored file.
	Blob struct {
		Key         string
		ContentType string
		Size        int64
	}

	// FileStorage stores opaque blobs (submission files, avatars) by key.
	FileStorage interface {
		Save(ctx context.Context, key string, r io.Reader, contentType string) (Blob, error)
		Open(ctx context.Context, key string) (io.ReadCloser, Blob, error)
		Delete(ctx context.Context, key string) error
	}
)
