// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/access"
)

// ComponentUpload marks a field whose value is a file upload. The stored value
// is the reference path of the uploaded file.
const ComponentUpload = "upload"

type visibilityKind int

const (
	visibilityUnset visibilityKind = iota
	visibilityConstant
	visibilityPerOperation
)

// Visibility controls in which operations a field is visible. It is either unset
// (visible everywhere), a constant, or a per operation mapping where operations
// missing in the mapping are visible.
type Visibility struct {
	kind       visibilityKind
	value      bool
	operations map[core.Operation]bool
}

// Visible returns a constant visibility
func Visible(visible bool) Visibility {
	return Visibility{kind: visibilityConstant, value: visible}
}

// VisibleFor returns a per operation visibility
func VisibleFor(operations map[core.Operation]bool) Visibility {
	ops := make(map[core.Operation]bool, len(operations))
	for k, v := range operations {
		ops[k] = v
	}
	return Visibility{kind: visibilityPerOperation, operations: ops}
}

// IsSet returns true unless the visibility is unset
func (v Visibility) IsSet() bool {
	return v.kind != visibilityUnset
}

// Excludes returns true if the field is hidden for operation. The empty operation
// only honors a constant false.
func (v Visibility) Excludes(operation core.Operation) bool {
	switch v.kind {
	case visibilityConstant:
		return !v.value
	case visibilityPerOperation:
		if operation == "" {
			return false
		}
		visible, ok := v.operations[operation]
		return ok && !visible
	}
	return false
}

// MarshalJSON is a custom JSON marshaller
func (v Visibility) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case visibilityConstant:
		return json.Marshal(v.value)
	case visibilityPerOperation:
		return json.Marshal(v.operations)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts a boolean or an object mapping operations to booleans
func (v *Visibility) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = Visible(b)
		return nil
	}
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("visible must be a boolean or an object of operations: %w", err)
	}
	ops := map[core.Operation]bool{}
	for k, visible := range m {
		op, err := core.ParseOperation(k)
		if err != nil || op == "" {
			return fmt.Errorf("visible: %s is not valid Operation", k)
		}
		ops[op] = visible
	}
	*v = VisibleFor(ops)
	return nil
}

// PropertyRule configures how one field is presented. All members are optional.
type PropertyRule struct {
	Visible Visibility `json:"visible"`
	// Alias is a display label for clients
	Alias string `json:"alias,omitempty"`
	// Format names a formatter applied to list output
	Format string `json:"format,omitempty"`
	// Component is a rendering hint for clients. Fields with a component accept any
	// value, and the upload component diverts the field to file storage.
	Component string `json:"component,omitempty"`
}

// MarshalJSON is a custom JSON marshaller which omits an unset visibility
func (p PropertyRule) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{}
	if p.Visible.IsSet() {
		m["visible"] = p.Visible
	}
	if p.Alias != "" {
		m["alias"] = p.Alias
	}
	if p.Format != "" {
		m["format"] = p.Format
	}
	if p.Component != "" {
		m["component"] = p.Component
	}
	return json.Marshal(m)
}

// Formatter transforms a field value for list output
type Formatter func(value interface{}) interface{}

// ActionResult is the outcome of an action hook. Payload replaces the incoming
// payload. IsValid is passed through for callers and not interpreted.
type ActionResult struct {
	Payload core.Record
	IsValid bool
}

// ActionHook transforms payloads before they are persisted
type ActionHook interface {
	Create(ctx context.Context, payload core.Record) (ActionResult, error)
}

// CreateHookFunc adapts a function to an ActionHook with a create action
type CreateHookFunc func(ctx context.Context, payload core.Record) (ActionResult, error)

// Create implements ActionHook
func (f CreateHookFunc) Create(ctx context.Context, payload core.Record) (ActionResult, error) {
	return f(ctx, payload)
}

type permissionKind int

const (
	permissionNone permissionKind = iota
	permissionConstant
	permissionPredicate
)

// Permission gates one operate. It is either none (allow), a constant, or a
// predicate over the caller's credentials.
type Permission struct {
	kind      permissionKind
	value     bool
	predicate access.Predicate
}

// Allow returns a constant permission
func Allow(allowed bool) Permission {
	return Permission{kind: permissionConstant, value: allowed}
}

// PredicatePermission returns a permission decided by predicate
func PredicatePermission(predicate access.Predicate) Permission {
	if predicate == nil {
		return Permission{}
	}
	return Permission{kind: permissionPredicate, predicate: predicate}
}

// IsSet returns true unless the permission is none
func (p Permission) IsSet() bool {
	return p.kind != permissionNone
}

// Evaluate decides the permission for creds. A constant ignores creds, a missing
// permission allows. A failing predicate denies and returns its error.
func (p Permission) Evaluate(ctx context.Context, creds *access.Credentials) (bool, error) {
	switch p.kind {
	case permissionConstant:
		return p.value, nil
	case permissionPredicate:
		allowed, err := p.predicate(ctx, creds)
		if err != nil {
			return false, err
		}
		return allowed, nil
	}
	return true, nil
}

// MarshalJSON is a custom JSON marshaller. Predicates are rendered as "predicate".
func (p Permission) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case permissionConstant:
		return json.Marshal(p.value)
	case permissionPredicate:
		return json.Marshal("predicate")
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts a boolean
func (p *Permission) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("permission must be a boolean: %w", err)
	}
	*p = Allow(b)
	return nil
}

// Configuration holds the presentation, action and permission rules of one entity.
// A configuration is not modified after it was handed to the backend.
type Configuration struct {
	Properties  map[string]PropertyRule     `json:"property"`
	Actions     ActionHook                  `json:"-"`
	Permissions map[core.Operate]Permission `json:"permissions,omitempty"`
	Formatters  map[string]Formatter        `json:"-"`
}

// ParseConfiguration decodes the data part of a configuration: properties and
// constant permissions. Hooks, predicates and formatters are added in code.
func ParseConfiguration(data []byte) (*Configuration, error) {
	var raw struct {
		Properties  map[string]PropertyRule `json:"property"`
		Permissions map[string]Permission   `json:"permissions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse error in entity configuration: %w", err)
	}
	c := &Configuration{Properties: raw.Properties}
	if len(raw.Permissions) > 0 {
		c.Permissions = map[core.Operate]Permission{}
		for k, p := range raw.Permissions {
			c.Permissions[core.Operate(k)] = p
		}
	}
	if err := c.validatePermissions(); err != nil {
		return nil, err
	}
	return c, nil
}

// VisibleExcludeKeys returns the fields which are hidden for operation. Without
// operation only fields hidden everywhere are returned.
func (c *Configuration) VisibleExcludeKeys(operation ...core.Operation) []string {
	var op core.Operation
	if len(operation) > 0 {
		op = operation[0]
	}
	keys := []string{}
	for name, rule := range c.Properties {
		if rule.Visible.Excludes(op) {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys
}

// Alias returns the alias of field name, if any
func (c *Configuration) Alias(name string) string {
	return c.Properties[name].Alias
}

// Component returns the component of field name, if any
func (c *Configuration) Component(name string) string {
	return c.Properties[name].Component
}

// ComponentKeys returns all fields with a component
func (c *Configuration) ComponentKeys() []string {
	keys := []string{}
	for name, rule := range c.Properties {
		if rule.Component != "" {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys
}

// UploadKeys returns all fields with the upload component
func (c *Configuration) UploadKeys() []string {
	keys := []string{}
	for name, rule := range c.Properties {
		if rule.Component == ComponentUpload {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys
}

// ActionHook returns the action hook, if any
func (c *Configuration) ActionHook() ActionHook {
	return c.Actions
}

// PermissionRule returns the permission of operate. It is unset if none was configured.
func (c *Configuration) PermissionRule(operate core.Operate) Permission {
	return c.Permissions[operate]
}

// Formatter returns the formatter of field name, looked up first in the configuration
// and then in the built-in formatters.
func (c *Configuration) Formatter(name string) (Formatter, bool) {
	format := c.Properties[name].Format
	if format == "" {
		return nil, false
	}
	if f, ok := c.Formatters[format]; ok {
		return f, true
	}
	f, ok := builtinFormatters[format]
	return f, ok
}

// validate checks that all formats resolve and all permissions name an operate
func (c *Configuration) validate() error {
	if err := c.validatePermissions(); err != nil {
		return err
	}
	for name, rule := range c.Properties {
		if rule.Format == "" {
			continue
		}
		if _, ok := c.Formatter(name); !ok {
			return fmt.Errorf("property %s: unknown format %s", name, rule.Format)
		}
	}
	return nil
}

func (c *Configuration) validatePermissions() error {
	for operate := range c.Permissions {
		switch operate {
		case core.OperateRead, core.OperateWrite, core.OperateDelete:
		default:
			return fmt.Errorf("permissions: %s is not valid Operate", operate)
		}
	}
	return nil
}
