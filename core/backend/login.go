package backend

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/kadmin/core/access"
	"github.com/relabs-tech/kadmin/core/logger"
	"github.com/relabs-tech/kadmin/core/store"
)

// DefaultLoginEntity is the entity whose records may log in
const DefaultLoginEntity = "admin"

// LoginRequest is the body of a login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the answer to a login. Failed logins are answered with
// status 200 and an error code.
type LoginResponse struct {
	Token string `json:"token,omitempty"`
	Error string `json:"error,omitempty"`
	Msg   string `json:"msg,omitempty"`
}

// login error codes
const (
	LoginErrorUnknownUser = "1000"
	LoginErrorFailed      = "1001"
)

// DashboardEntry is one served entity on the dashboard
type DashboardEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (b *Backend) handleLogin(router *mux.Router) {
	if b.jwt == nil || b.passwords == nil {
		logger.Default().Info("login disabled, no jwt or password service")
		return
	}
	e, ok := b.entities[b.loginEntity]
	if !ok {
		panic(fmt.Sprintf("login entity %s is not served", b.loginEntity))
	}
	idField := e.controller.Model().IDField().Name

	logger.Default().Debugln("  handle login route: /admin/_login POST")
	router.HandleFunc("/admin/_login", func(w http.ResponseWriter, r *http.Request) {
		rlog := logger.FromContext(r.Context())
		rlog.Infoln("called route for", r.URL, r.Method)

		request := LoginRequest{}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}

		record, err := e.controller.collection.FindFirst(r.Context(), "username", request.Username)
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, r, http.StatusOK, LoginResponse{Error: LoginErrorUnknownUser, Msg: "User is undefined"})
			return
		}
		if err != nil {
			rlog.WithError(err).Errorf("Error 4770: cannot find login record")
			http.Error(w, "Error 4770", http.StatusInternalServerError)
			return
		}

		digest, _ := record["password"].(string)
		if !b.passwords.Verify(request.Password, digest) {
			writeJSON(w, r, http.StatusOK, LoginResponse{Error: LoginErrorFailed, Msg: "Login failed"})
			return
		}

		creds := access.Credentials{ID: fmt.Sprint(record[idField])}
		creds.Role, _ = record["role"].(string)
		token, err := b.jwt.Generate(creds)
		if err != nil {
			rlog.WithError(err).Errorf("Error 4771: cannot generate token")
			http.Error(w, "Error 4771", http.StatusInternalServerError)
			return
		}
		writeJSON(w, r, http.StatusOK, LoginResponse{Token: token})
	}).Methods(http.MethodOptions, http.MethodPost)
}

func (b *Backend) handleDashboard(router *mux.Router) {
	logger.Default().Debugln("  handle dashboard route: /admin/_dashboard GET")
	router.HandleFunc("/admin/_dashboard", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		entries := []DashboardEntry{}
		for _, name := range b.order {
			entries = append(entries, DashboardEntry{Name: name, Path: "/" + name})
		}
		writeJSON(w, r, http.StatusOK, entries)
	}).Methods(http.MethodOptions, http.MethodGet)
}
