package client

import (
	"net/http"
	"testing"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/access"
)

func TestClient(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/admin/user_list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"page":` + r.URL.Query().Get("page") + `}`))
	})
	router.HandleFunc("/admin/user", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"` + r.URL.Query().Get("type") + `"}`))
	})
	router.HandleFunc("/admin/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		creds := access.CredentialsFromContext(r.Context())
		if creds == nil {
			http.Error(w, "not authorized", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)

	client := NewWithRouter(router)

	var page struct {
		Page int `json:"page"`
	}
	if _, err := client.Entity("user").List(3, &page); err != nil {
		t.Fatal(err)
	}
	if page.Page != 3 {
		t.Fatal("unexpected page:", page.Page)
	}

	var head struct {
		Type string `json:"type"`
	}
	if _, err := client.Entity("user").Head(core.OperationCreate, &head); err != nil {
		t.Fatal(err)
	}
	if head.Type != "create" {
		t.Fatal("unexpected type:", head.Type)
	}

	if status, err := client.Entity("user").Delete("1"); status != http.StatusUnauthorized || err == nil {
		t.Fatal("expected unauthorized, got", status)
	}
	if _, err := client.WithRole("ADMIN").Entity("user").Delete("1"); err != nil {
		t.Fatal(err)
	}
}

func TestWithHeaderDoesNotShareHeaders(t *testing.T) {
	base := NewWithRouter(nil)
	a := base.WithHeader("X-A", "a")
	if _, ok := base.defaultHeaders["X-A"]; ok {
		t.Fatal("base client was modified")
	}
	if a.defaultHeaders["X-A"] != "a" {
		t.Fatal("header missing")
	}
}
