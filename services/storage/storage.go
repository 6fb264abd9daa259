// Package storagesvc implements core.FileStorage on Backblaze B2 and on a local bolt file.
package storagesvc

import (
	"context"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// New opens the backend selected by conf.Storage.
func New(ctx context.Context, conf *core.Config) (core.FileStorage, error) {
	var (
		fs  core.FileStorage
		err error
	)
	switch conf.Storage.Backend {
	case "b2":
		fs, err = OpenB2(ctx, conf.Storage.B2Account, conf.Storage.B2Key, conf.Storage.B2Bucket)
	case "bolt", "":
		fs, err = OpenBolt(conf.Storage.BoltPath)
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
	if err != nil {
		return nil, err
	}
	if conf.Storage.KeyPrefix != "" {
		fs = &prefixed{FileStorage: fs, prefix: conf.Storage.KeyPrefix}
	}
	return fs, nil
}

// NewKey returns a fresh blob key under dir, keeping ext.
func NewKey(dir, ext string) string {
	return path.Join(dir, uuid.New().String()+ext)
}

// prefixed namespaces the keys of an underlying storage.
type prefixed struct {
	core.FileStorage
	prefix string
}

func (p *prefixed) Save(ctx context.Context, key string, r io.Reader, contentType string) (core.Blob, error) {
	blob, err := p.FileStorage.Save(ctx, path.Join(p.prefix, key), r, contentType)
	blob.Key = key
	return blob, err
}

func (p *prefixed) Open(ctx context.Context, key string) (io.ReadCloser, core.Blob, error) {
	rc, blob, err := p.FileStorage.Open(ctx, path.Join(p.prefix, key))
	blob.Key = key
	return rc, blob, err
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.FileStorage.Delete(ctx, path.Join(p.prefix, key))
}
