package storagesvc

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// B2Storage keeps blobs in a Backblaze B2 bucket.
type B2Storage struct {
	bucket *b2.Bucket
}

var _ core.FileStorage = (*B2Storage)(nil)

func OpenB2(ctx context.Context, account, key, bucketName string) (*B2Storage, error) {
	client, err := b2.NewClient(ctx, account, key)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, errors.Wrap(err, "getting b2 bucket")
	}
	return &B2Storage{bucket: bucket}, nil
}

func (s *B2Storage) Save(ctx context.Context, key string, r io.Reader, contentType string) (core.Blob, error) {
	w := s.bucket.Object(key).NewWriter(ctx).WithAttrs(&b2.Attrs{ContentType: contentType})
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return core.Blob{}, errors.Wrap(err, "writing b2 object")
	}
	if err = w.Close(); err != nil {
		return core.Blob{}, errors.Wrap(err, "closing b2 object")
	}
	return core.Blob{Key: key, ContentType: contentType, Size: n}, nil
}

func (s *B2Storage) Open(ctx context.Context, key string) (io.ReadCloser, core.Blob, error) {
	obj := s.bucket.Object(key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if b2.IsNotExist(err) {
			return nil, core.Blob{}, core.ErrBlobNotFound
		}
		return nil, core.Blob{}, errors.Wrap(err, "getting b2 object attributes")
	}
	return obj.NewReader(ctx), core.Blob{Key: key, ContentType: attrs.ContentType, Size: attrs.Size}, nil
}

func (s *B2Storage) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return errors.Wrap(err, "deleting b2 object")
	}
	return nil
}
