/*Package access provides utilities for access control
 */
package access

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/relabs-tech/kadmin/core/logger"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

// the predefined context key
const (
	contextKeyCredentials contextKey = "_credentials_"
)

/*Credentials is a context object which stores the verified identity claims of
the caller.

Credentials are added to a request context with

  ctx = creds.ContextWithCredentials(ctx)

and retrieved with

  creds := CredentialsFromContext(ctx)

Credentials are added to the context by the JWT middleware when the request carries
a valid bearer token or Kadmin-JWT cookie. Requests without a token carry no credentials.
*/
type Credentials struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// HasRole returns true if the credentials carry the requested role;
// otherwise it returns false.
func (c *Credentials) HasRole(role string) bool {
	return c != nil && c.Role == role
}

// ContextWithCredentials returns a new context with these credentials added to it
func (c *Credentials) ContextWithCredentials(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKeyCredentials, c)
}

// CredentialsFromContext retrieves credentials from the context
func CredentialsFromContext(ctx context.Context) *Credentials {
	c, ok := ctx.Value(contextKeyCredentials).(*Credentials)
	if ok {
		return c
	}
	return nil
}

// Predicate decides whether the given credentials are granted access. Credentials
// may be nil for anonymous requests.
type Predicate func(ctx context.Context, creds *Credentials) (bool, error)

// HandleCredentialsRoute adds a route /admin/_credentials GET to the router
//
// The route returns the current credentials for provided bearer token.
func HandleCredentialsRoute(router *mux.Router) {
	logger.Default().Debugln("credentials")
	logger.Default().Debugln("  handle route: /admin/_credentials GET")
	router.HandleFunc("/admin/_credentials", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		creds := CredentialsFromContext(r.Context())
		if creds == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		jsonData, _ := json.Marshal(creds)
		w.Header().Set("Content-Type", "application/json")
		w.Write(jsonData)
	}).Methods(http.MethodGet)
}
