package storage

import (
	"errors"
	"io"
)

// ErrNotExist is returned by Get and Delete for unknown keys.
var ErrNotExist = errors.New("blob does not exist")

type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error
	URL(key string) string
}
