package access

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/relabs-tech/kadmin/core"
)

// Policy grants an operate on an object to a role. Object and operate accept
// "*" as wildcard.
type Policy struct {
	Role    string `json:"role"`
	Object  string `json:"object"`
	Operate string `json:"operate"`
}

// NewEnforcer returns a role based casbin enforcer loaded with policies. Requests
// are (role, object, operate) triples.
func NewEnforcer(policies ...Policy) (*casbin.Enforcer, error) {
	m := model.NewModel()
	m.AddDef("r", "r", "sub, obj, act")
	m.AddDef("p", "p", "sub, obj, act")
	m.AddDef("e", "e", "some(where (p.eft == allow))")
	m.AddDef("m", "m", "r.sub == p.sub && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == \"*\")")
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	for _, p := range policies {
		if _, err := e.AddPolicy(p.Role, p.Object, p.Operate); err != nil {
			return nil, fmt.Errorf("cannot add policy %v: %w", p, err)
		}
	}
	return e, nil
}

// PolicyPredicate returns a predicate granting access when the enforcer allows the
// credential's role the operate on object. Anonymous requests are never granted.
func PolicyPredicate(e *casbin.Enforcer, object string, operate core.Operate) Predicate {
	return func(ctx context.Context, creds *Credentials) (bool, error) {
		if creds == nil || creds.Role == "" {
			return false, nil
		}
		return e.Enforce(creds.Role, object, string(operate))
	}
}
