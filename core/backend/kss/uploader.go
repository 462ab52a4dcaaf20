package kss

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/relabs-tech/kadmin/core/logger"
	"golang.org/x/sync/errgroup"
)

// File is a named byte stream to be uploaded
type File struct {
	Filename string
	Reader   io.Reader
}

// Reference identifies an uploaded file. Path is the value stored with the entity.
type Reference struct {
	Key  string `json:"key"`
	Path string `json:"path"`
}

// Uploader stores files with a Driver under generated keys
type Uploader struct {
	driver Driver
	newKey func(filename string) (string, error)
}

// NewUploader returns a new Uploader for driver
func NewUploader(driver Driver) *Uploader {
	return &Uploader{driver: driver, newKey: RandomKey}
}

// RandomKey returns 20 random bytes in hex, followed by the extension of filename.
// The extension is the part between the first and the second dot, kept as is, so
// "a.tar.gz" gives ".tar". Filenames without a dot give the bare key.
func RandomKey(filename string) (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	key := hex.EncodeToString(b)
	if parts := strings.SplitN(filename, ".", 3); len(parts) > 1 && parts[1] != "" {
		key += "." + parts[1]
	}
	return key, nil
}

// Upload stores all files concurrently and returns a reference per field name.
// The first failing upload fails the whole call. Files uploaded before the
// failure are not removed.
func (u *Uploader) Upload(ctx context.Context, files map[string]File) (map[string]Reference, error) {
	var mutex sync.Mutex
	result := make(map[string]Reference, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for name, file := range files {
		name, file := name, file
		g.Go(func() error {
			key, err := u.newKey(file.Filename)
			if err != nil {
				return fmt.Errorf("cannot generate key for %s: %w", name, err)
			}
			if err := u.driver.Put(ctx, key, file.Reader); err != nil {
				return fmt.Errorf("cannot upload %s: %w", name, err)
			}
			logger.FromContext(ctx).Debugf("uploaded %s as %s", name, key)
			mutex.Lock()
			result[name] = Reference{Key: key, Path: u.driver.Path(key)}
			mutex.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Discard deletes the files referenced by paths. Paths which were not issued by
// the driver are skipped. All paths are tried, errors are joined.
func (u *Uploader) Discard(ctx context.Context, paths ...string) error {
	prefix := u.driver.Path("")
	var errs []error
	for _, path := range paths {
		key := strings.TrimPrefix(path, prefix)
		if key == path || key == "" {
			continue
		}
		if err := u.driver.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("cannot delete %s: %w", key, err))
			continue
		}
		logger.FromContext(ctx).Debugf("deleted %s", key)
	}
	return errors.Join(errs...)
}
