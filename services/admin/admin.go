/*
Package admin is the admin service for users and administrators

It serves the models User and Admin. User passwords are hidden and emails are
masked in lists. Administrators have an avatar upload, their passwords are stored
as digests, and only administrators may delete administrators.
*/
package admin

import (
	"context"
	"embed"
	"fmt"
	"path"

	"github.com/casbin/casbin/v2"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/access"
	"github.com/relabs-tech/kadmin/core/backend"
	"github.com/relabs-tech/kadmin/core/password"
	"github.com/relabs-tech/kadmin/core/schema"
)

//go:embed schema.json config/*.json
var files embed.FS

// Roles of the enum Role
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Policies are the access policies of the service
var Policies = []access.Policy{
	{Role: RoleAdmin, Object: "*", Operate: "*"},
}

// Schema returns the schema of the service
func Schema() (*schema.Schema, error) {
	return schema.LoadFromFS(files, "schema.json")
}

func loadConfiguration(name string) (*backend.Configuration, error) {
	data, err := files.ReadFile(path.Join("config", name+".json"))
	if err != nil {
		return nil, err
	}
	return backend.ParseConfiguration(data)
}

// Entities returns the served entities. Admin passwords are derived with passwords
// on create and admins without a role get RoleUser. Deleting administrators is
// decided by enforcer.
func Entities(passwords *password.Service, enforcer *casbin.Enforcer) ([]backend.Entity, error) {
	user, err := loadConfiguration("user")
	if err != nil {
		return nil, fmt.Errorf("user configuration: %w", err)
	}
	admin, err := loadConfiguration("admin")
	if err != nil {
		return nil, fmt.Errorf("admin configuration: %w", err)
	}

	admin.Actions = backend.CreateHookFunc(func(ctx context.Context, payload core.Record) (backend.ActionResult, error) {
		result := payload.Clone()
		if pwd, ok := result["password"].(string); ok && pwd != "" {
			result["password"] = passwords.Derive(pwd)
		}
		if role, _ := result["role"].(string); role == "" {
			result["role"] = RoleUser
		}
		return backend.ActionResult{Payload: result, IsValid: true}, nil
	})
	admin.Permissions = map[core.Operate]backend.Permission{
		core.OperateDelete: backend.PredicatePermission(access.PolicyPredicate(enforcer, "admin", core.OperateDelete)),
	}

	return []backend.Entity{
		{Model: "User", Configuration: user},
		{Model: "Admin", Configuration: admin},
	}, nil
}
