package kss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/relabs-tech/kadmin/core/logger"
)

// LocalFilesystem is the entity which provides local filesystem
type LocalFilesystem struct {
	baseFolder string
	publicPath string
}

// NewLocalFilesystem returns a new LocalFilesystem. The base folder is created if it
// does not exist yet.
func NewLocalFilesystem(config LocalConfiguration) (*LocalFilesystem, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("BasePath must not be empty")
	}
	publicPath := config.PublicPath
	if publicPath == "" {
		publicPath = "/uploads"
	}
	if err := os.MkdirAll(config.BasePath, 0700); err != nil {
		return nil, fmt.Errorf("cannot create %s: %w", config.BasePath, err)
	}
	return &LocalFilesystem{baseFolder: config.BasePath, publicPath: strings.TrimSuffix(publicPath, "/")}, nil
}

func validKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid key '%s'", key)
	}
	return nil
}

// Put implements Driver
func (f *LocalFilesystem) Put(ctx context.Context, key string, body io.Reader) error {
	if err := validKey(key); err != nil {
		return err
	}
	dstFile, err := os.Create(filepath.Join(f.baseFolder, key))
	if err != nil {
		return fmt.Errorf("cannot create file for key '%s': %w", key, err)
	}
	defer dstFile.Close()
	if _, err = io.Copy(dstFile, body); err != nil {
		return fmt.Errorf("cannot write file for key '%s': %w", key, err)
	}
	return nil
}

// Path implements Driver
func (f *LocalFilesystem) Path(key string) string {
	return f.publicPath + "/" + key
}

// Delete implements Driver
func (f *LocalFilesystem) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	return os.Remove(filepath.Join(f.baseFolder, key))
}

// HandleRoutes serves the stored files under the public path
func (f *LocalFilesystem) HandleRoutes(router *mux.Router) {
	logger.Default().Debugln("filesystem routes enabled")
	logger.Default().Debugln("  handle route:", f.publicPath+"/{key} GET")
	router.HandleFunc(f.publicPath+"/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := mux.Vars(r)["key"]
		if err := validKey(key); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.FromContext(r.Context()).Infof("Filesystem: [%s] key: '%s'", r.Method, key)
		http.ServeFile(w, r, filepath.Join(f.baseFolder, key))
	}).Methods(http.MethodGet, http.MethodHead)
}
