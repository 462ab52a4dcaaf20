// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/access"
	"github.com/relabs-tech/kadmin/core/logger"
	"github.com/relabs-tech/kadmin/core/schema"
	"github.com/relabs-tech/kadmin/core/store"
)

// DefaultPageSize is the number of entities in one list page
const DefaultPageSize = 10

// HookError is returned when an action hook fails
type HookError struct {
	Action core.Operation
	Err    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s action failed: %v", e.Action, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// Pagination selects one page of a list. Pages start at 1.
type Pagination struct {
	Page int
	Size int
}

// ListResult is one page of entities. Page is the total number of pages.
type ListResult struct {
	Data []core.Record `json:"data"`
	Page int           `json:"page"`
}

// HeadField is a schema field annotated with its presentation rules
type HeadField struct {
	schema.Field
	Alias     string `json:"alias,omitempty"`
	Component string `json:"component,omitempty"`
}

// HeadResponse describes an entity for client side rendering
type HeadResponse struct {
	Enums  map[string][]schema.EnumValue `json:"enums"`
	Fields []HeadField                   `json:"fields"`
	Config *Configuration                `json:"config"`
}

// Controller binds a model, its configuration and its collection. A controller
// holds no request state and is safe for concurrent use.
type Controller struct {
	schema     *schema.Schema
	model      *schema.Model
	config     *Configuration
	collection store.Collection
	notifier   core.Notifier
	passive    []string
}

// NewController returns a new controller for model
func NewController(s *schema.Schema, model *schema.Model, config *Configuration, collection store.Collection, notifier core.Notifier) *Controller {
	if config == nil {
		config = &Configuration{}
	}
	return &Controller{
		schema:     s,
		model:      model,
		config:     config,
		collection: collection,
		notifier:   notifier,
		passive:    model.PassiveFields(),
	}
}

// Model returns the model of the controller
func (c *Controller) Model() *schema.Model {
	return c.model
}

// Configuration returns the configuration of the controller
func (c *Controller) Configuration() *Configuration {
	return c.config
}

// Strip returns a copy of record without the fields hidden for operation
func (c *Controller) Strip(operation core.Operation, record core.Record) core.Record {
	if record == nil {
		return nil
	}
	return record.Omit(c.config.VisibleExcludeKeys(operation)...)
}

// List returns one page of entities without the fields hidden for list, with
// formatters applied.
func (c *Controller) List(ctx context.Context, pagination Pagination) (*ListResult, error) {
	page, size := pagination.Page, pagination.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	records, err := c.collection.FindMany(ctx, size*(page-1), size)
	if err != nil {
		return nil, err
	}
	count, err := c.collection.Count(ctx)
	if err != nil {
		return nil, err
	}

	data := make([]core.Record, 0, len(records))
	for _, r := range records {
		r = c.Strip(core.OperationList, r)
		for key, value := range r {
			if f, ok := c.config.Formatter(key); ok {
				r[key] = f(value)
			}
		}
		data = append(data, r)
	}
	return &ListResult{Data: data, Page: (count + size - 1) / size}, nil
}

// Create persists payload. Identity and relation values of payload are dropped,
// the collection assigns the identity. With a create action configured, the
// payload returned by the action is persisted instead.
func (c *Controller) Create(ctx context.Context, payload core.Record) (core.Record, error) {
	payload = payload.Omit(c.passive...)
	data := payload
	if hook := c.config.ActionHook(); hook != nil {
		result, err := hook.Create(ctx, payload)
		if err != nil {
			return nil, &HookError{Action: core.OperationCreate, Err: err}
		}
		data = result.Payload
		if data == nil {
			data = core.Record{}
		}
	}
	record, err := c.collection.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	c.notify(ctx, core.OperationCreate, record)
	return record, nil
}

// Read returns the entity with identity id without the fields hidden for read
func (c *Controller) Read(ctx context.Context, id string) (core.Record, error) {
	record, err := c.collection.FindUnique(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Strip(core.OperationRead, record), nil
}

// Update merges payload into the entity with identity id. Neither the identity
// nor relation fields are ever updated.
func (c *Controller) Update(ctx context.Context, id string, payload core.Record) (core.Record, error) {
	record, err := c.collection.Update(ctx, id, payload.Omit(c.passive...))
	if err != nil {
		return nil, err
	}
	c.notify(ctx, core.OperationUpdate, record)
	return record, nil
}

// Delete removes the entity with identity id
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.collection.Delete(ctx, id); err != nil {
		return err
	}
	c.notify(ctx, core.OperationDelete, core.Record{c.model.IDField().Name: id})
	return nil
}

// Head describes the entity for operation. The empty operation describes all
// fields which are not hidden everywhere. Create and update never include the identity.
func (c *Controller) Head(operation core.Operation) HeadResponse {
	excluded := map[string]bool{}
	for _, k := range c.config.VisibleExcludeKeys(operation) {
		excluded[k] = true
	}
	dropID := operation == core.OperationCreate || operation == core.OperationUpdate

	fields := []HeadField{}
	enums := map[string][]schema.EnumValue{}
	for _, f := range c.model.Fields {
		if f.Kind == schema.KindEnum {
			if values, ok := c.schema.Enum(f.Type); ok {
				enums[f.Type] = values
			}
		}
		if excluded[f.Name] || (dropID && f.IsID) {
			continue
		}
		fields = append(fields, HeadField{
			Field:     f,
			Alias:     c.config.Alias(f.Name),
			Component: c.config.Component(f.Name),
		})
	}
	return HeadResponse{Enums: enums, Fields: fields, Config: c.config}
}

// Authority returns whether creds may perform operate. Without a configured
// permission everything is allowed. A failing predicate denies and returns its error.
func (c *Controller) Authority(ctx context.Context, operate core.Operate, creds *access.Credentials) (bool, error) {
	return c.config.PermissionRule(operate).Evaluate(ctx, creds)
}

func (c *Controller) notify(ctx context.Context, operation core.Operation, record core.Record) {
	if c.notifier == nil {
		return
	}
	payload, err := json.Marshal(c.Strip(core.OperationRead, record))
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 4761: cannot marshal %s notification", c.model.Collection())
		return
	}
	c.notifier.Notify(ctx, c.model.Collection(), operation, payload)
}
