// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/access"
	"github.com/relabs-tech/kadmin/core/logger"
	"github.com/relabs-tech/kadmin/core/schema"
	"github.com/relabs-tech/kadmin/core/store"
)

// entity is one served collection with its derived validators
type entity struct {
	controller *Controller
	full       *schema.PayloadValidator
	patch      *schema.PayloadValidator
}

func newEntity(controller *Controller) (*entity, error) {
	model := controller.Model()
	relaxed := controller.Configuration().ComponentKeys()
	full, err := schema.NewPayloadValidator(model, relaxed, false)
	if err != nil {
		return nil, err
	}
	patch, err := schema.NewPayloadValidator(model, relaxed, true)
	if err != nil {
		return nil, err
	}
	return &entity{controller: controller, full: full, patch: patch}, nil
}

// validate validates a JSON payload. Upload fields are only set from files, so a
// JSON payload carrying one is invalid.
func (e *entity) validate(validator *schema.PayloadValidator, payload core.Record) error {
	verr := &schema.ValidationError{}
	for _, key := range e.controller.Configuration().UploadKeys() {
		if _, ok := payload[key]; ok {
			verr.Details = append(verr.Details, key+": upload fields accept files only")
		}
	}
	if len(verr.Details) > 0 {
		return verr
	}
	return validator.Validate(payload)
}

func (b *Backend) createCollectionResource(router *mux.Router, e *entity) {
	this := e.controller.Model().Collection()
	collectionRoute := "/admin/" + this
	itemRoute := collectionRoute + "/{id}"
	listRoute := collectionRoute + "_list"
	uploadRoute := collectionRoute + "/upload"

	rlog := logger.Default()
	rlog.Debugln("collection: ", this)
	rlog.Debugln("  handle collection routes:", collectionRoute, "GET,POST")
	rlog.Debugln("  handle collection routes:", listRoute, "GET")
	rlog.Debugln("  handle collection routes:", uploadRoute, "POST")
	rlog.Debugln("  handle collection routes:", itemRoute, "GET,PATCH,DELETE")

	list := func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			var err error
			page, err = strconv.Atoi(p)
			if err != nil || page < 1 {
				http.Error(w, "parameter 'page': must be a positive integer", http.StatusBadRequest)
				return
			}
		}
		result, err := e.controller.List(r.Context(), Pagination{Page: page, Size: b.pageSize})
		if err != nil {
			b.writeError(w, r, this, err)
			return
		}
		writeJSON(w, r, http.StatusOK, result)
	}

	head := func(w http.ResponseWriter, r *http.Request) {
		operation, err := core.ParseOperation(r.URL.Query().Get("type"))
		if err != nil {
			http.Error(w, "parameter 'type': "+err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, r, http.StatusOK, e.controller.Head(operation))
	}

	read := func(w http.ResponseWriter, r *http.Request) {
		record, err := e.controller.Read(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			b.writeError(w, r, this, err)
			return
		}
		writeJSON(w, r, http.StatusOK, record)
	}

	create := func(w http.ResponseWriter, r *http.Request) {
		payload, ok := readPayload(w, r)
		if !ok {
			return
		}
		if err := e.validate(e.full, payload); err != nil {
			b.writeError(w, r, this, err)
			return
		}
		record, err := e.controller.Create(r.Context(), payload)
		if err != nil {
			b.writeError(w, r, this, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, e.controller.Strip(core.OperationRead, record))
	}

	update := func(w http.ResponseWriter, r *http.Request) {
		payload, ok := readPayload(w, r)
		if !ok {
			return
		}
		if err := e.validate(e.patch, payload); err != nil {
			b.writeError(w, r, this, err)
			return
		}
		record, err := e.controller.Update(r.Context(), mux.Vars(r)["id"], payload)
		if err != nil {
			b.writeError(w, r, this, err)
			return
		}
		writeJSON(w, r, http.StatusOK, e.controller.Strip(core.OperationRead, record))
	}

	remove := func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		uploaded := b.uploadedFiles(r.Context(), e, id)
		if err := e.controller.Delete(r.Context(), id); err != nil {
			b.writeError(w, r, this, err)
			return
		}
		b.discardUploads(r.Context(), this, uploaded)
		w.WriteHeader(http.StatusNoContent)
	}

	router.HandleFunc(listRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		if !b.authorized(w, r, e, core.OperateRead) {
			return
		}
		list(w, r)
	}).Methods(http.MethodOptions, http.MethodGet)

	router.HandleFunc(collectionRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		if !b.authorized(w, r, e, core.OperateRead) {
			return
		}
		head(w, r)
	}).Methods(http.MethodOptions, http.MethodGet)

	router.HandleFunc(collectionRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		if !b.authorized(w, r, e, core.OperateWrite) {
			return
		}
		if isMultipart(r) {
			b.upload(w, r, e)
			return
		}
		create(w, r)
	}).Methods(http.MethodOptions, http.MethodPost)

	// must be registered before the item route
	router.HandleFunc(uploadRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		if !b.authorized(w, r, e, core.OperateWrite) {
			return
		}
		b.upload(w, r, e)
	}).Methods(http.MethodOptions, http.MethodPost)

	router.HandleFunc(itemRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		if !b.authorized(w, r, e, core.OperateRead) {
			return
		}
		read(w, r)
	}).Methods(http.MethodOptions, http.MethodGet)

	router.HandleFunc(itemRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		if !b.authorized(w, r, e, core.OperateWrite) {
			return
		}
		update(w, r)
	}).Methods(http.MethodOptions, http.MethodPatch)

	router.HandleFunc(itemRoute, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		if !b.authorized(w, r, e, core.OperateDelete) {
			return
		}
		remove(w, r)
	}).Methods(http.MethodOptions, http.MethodDelete)
}

// authorized evaluates the permission for operate and writes 401 if it is denied
func (b *Backend) authorized(w http.ResponseWriter, r *http.Request, e *entity, operate core.Operate) bool {
	allowed, err := e.controller.Authority(r.Context(), operate, access.CredentialsFromContext(r.Context()))
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorf("Error 4730: %s permission for %s failed", operate, e.controller.Model().Collection())
	}
	if !allowed {
		http.Error(w, "not authorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func readPayload(w http.ResponseWriter, r *http.Request) (core.Record, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return nil, false
	}
	payload := core.Record{}
	if len(body) == 0 {
		return payload, true
	}
	if err = json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return payload, true
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorf("Error 4724: cannot marshal response")
		http.Error(w, "Error 4724", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError maps err to a response. Internal failures are logged and answered
// with an opaque error number.
func (b *Backend) writeError(w http.ResponseWriter, r *http.Request, this string, err error) {
	rlog := logger.FromContext(r.Context())
	var validationErr *schema.ValidationError
	var hookErr *HookError
	var uploadErr *uploadError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, r, http.StatusBadRequest, validationErr)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "no such "+this, http.StatusNotFound)
	case errors.As(err, &hookErr):
		rlog.WithError(err).Errorf("Error 4740: %s action for %s", hookErr.Action, this)
		http.Error(w, hookErr.Error(), http.StatusBadRequest)
	case errors.As(err, &uploadErr):
		rlog.WithError(err).Errorf("Error 4750: cannot upload files for %s", this)
		http.Error(w, "Error 4750", http.StatusInternalServerError)
	default:
		rlog.WithError(err).Errorf("Error 4721: %s", this)
		http.Error(w, "Error 4721", http.StatusInternalServerError)
	}
}
