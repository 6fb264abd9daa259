package storagesvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/darasa/core"
)

var (
	blobsBucket = []byte("blobs")
	metaBucket  = []byte("blobs_meta")
)

// BoltStorage keeps blobs in a local bolt file. Meant for development and tests.
type BoltStorage struct {
	db *bbolt.DB
}

var _ core.FileStorage = (*BoltStorage)(nil)

func OpenBolt(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening bolt storage")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{blobsBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating bolt buckets")
	}
	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Close() error {
	return s.db.Close()
}

func (s *BoltStorage) Save(_ context.Context, key string, r io.Reader, contentType string) (core.Blob, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return core.Blob{}, errors.Wrap(err, "reading blob")
	}
	blob := core.Blob{Key: key, ContentType: contentType, Size: int64(len(data))}
	meta, err := json.Marshal(blob)
	if err != nil {
		return core.Blob{}, errors.Wrap(err, "encoding blob metadata")
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(blobsBucket).Put([]byte(key), data); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put([]byte(key), meta)
	})
	return blob, errors.Wrap(err, "saving blob")
}

func (s *BoltStorage) Open(_ context.Context, key string) (io.ReadCloser, core.Blob, error) {
	var (
		data []byte
		blob core.Blob
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(blobsBucket).Get([]byte(key))
		if v == nil {
			return core.ErrBlobNotFound
		}
		// v is only valid during the transaction
		data = append([]byte(nil), v...)
		if m := tx.Bucket(metaBucket).Get([]byte(key)); m != nil {
			return json.Unmarshal(m, &blob)
		}
		blob = core.Blob{Key: key, Size: int64(len(data))}
		return nil
	})
	if err != nil {
		if err == core.ErrBlobNotFound {
			return nil, core.Blob{}, err
		}
		return nil, core.Blob{}, errors.Wrap(err, "reading blob")
	}
	return ioutil.NopCloser(bytes.NewReader(data)), blob, nil
}

func (s *BoltStorage) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(blobsBucket).Delete([]byte(key)); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Delete([]byte(key))
	})
	return errors.Wrap(err, "deleting blob")
}
