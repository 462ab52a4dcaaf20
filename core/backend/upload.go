package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/backend/kss"
	"github.com/relabs-tech/kadmin/core/logger"
	"github.com/relabs-tech/kadmin/core/schema"
)

// maxUploadMemory is the part of a multipart body kept in memory, the rest goes to temporary files
const maxUploadMemory = 32 << 20

type uploadError struct {
	err error
}

func (e *uploadError) Error() string {
	return fmt.Sprintf("upload failed: %v", e.err)
}

func (e *uploadError) Unwrap() error {
	return e.err
}

// upload creates an entity from a multipart form. Text parts become payload values,
// file parts of upload fields are stored with the kss driver and replaced by their
// reference path.
func (b *Backend) upload(w http.ResponseWriter, r *http.Request, e *entity) {
	this := e.controller.Model().Collection()
	rlog := logger.FromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "cannot parse multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploadKeys := e.controller.Configuration().UploadKeys()
	isUpload := map[string]bool{}
	for _, key := range uploadKeys {
		isUpload[key] = true
	}

	// upload fields only take file parts, text values for them are dropped
	payload := core.Record{}
	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 && !isUpload[key] {
			payload[key] = values[0]
		}
	}

	files := map[string]kss.File{}
	for _, key := range uploadKeys {
		headers := r.MultipartForm.File[key]
		if len(headers) == 0 {
			continue
		}
		f, err := headers[0].Open()
		if err != nil {
			rlog.WithError(err).Errorf("Error 4751: cannot open uploaded file %s", key)
			http.Error(w, "Error 4751", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		files[key] = kss.File{Filename: headers[0].Filename, Reader: f}
		payload[key] = headers[0].Filename
	}

	schema.Coerce(e.controller.Model(), payload, uploadKeys...)
	if err := e.full.Validate(payload); err != nil {
		b.writeError(w, r, this, err)
		return
	}

	if len(files) > 0 {
		if b.uploader == nil {
			rlog.Errorf("Error 4752: upload for %s without configured file storage", this)
			http.Error(w, "Error 4752", http.StatusInternalServerError)
			return
		}
		references, err := b.uploader.Upload(r.Context(), files)
		if err != nil {
			b.writeError(w, r, this, &uploadError{err: err})
			return
		}
		for key, ref := range references {
			payload[key] = ref.Path
		}
	}

	record, err := e.controller.Create(r.Context(), payload)
	if err != nil {
		b.writeError(w, r, this, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, e.controller.Strip(core.OperationRead, record))
}

// uploadedFiles returns the reference paths stored in the upload fields of the
// entity with identity id
func (b *Backend) uploadedFiles(ctx context.Context, e *entity, id string) []string {
	keys := e.controller.Configuration().UploadKeys()
	if b.uploader == nil || len(keys) == 0 {
		return nil
	}
	record, err := e.controller.collection.FindUnique(ctx, id)
	if err != nil {
		return nil
	}
	paths := []string{}
	for _, key := range keys {
		if path, ok := record[key].(string); ok && path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}

// discardUploads deletes uploaded files of a deleted entity. Failures are logged only,
// the entity is gone already.
func (b *Backend) discardUploads(ctx context.Context, this string, paths []string) {
	if len(paths) == 0 {
		return
	}
	if err := b.uploader.Discard(ctx, paths...); err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 4753: cannot delete uploaded files of %s", this)
	}
}
