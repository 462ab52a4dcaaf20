// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package store defines the persistence contract of entity collections and a
// registry resolving collections once at startup.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/schema"
)

// ErrNotFound is returned when no entity matches the requested identity
var ErrNotFound = errors.New("not found")

// Collection is the persisted set of entities of one model, keyed by its identity field
type Collection interface {
	// FindMany returns at most take entities after skipping skip entities
	FindMany(ctx context.Context, skip, take int) ([]core.Record, error)
	// Count returns the number of entities
	Count(ctx context.Context) (int, error)
	// FindUnique returns the entity with identity id or ErrNotFound
	FindUnique(ctx context.Context, id string) (core.Record, error)
	// FindFirst returns the first entity whose field equals value or ErrNotFound
	FindFirst(ctx context.Context, field string, value interface{}) (core.Record, error)
	// Create persists data and returns the created entity. An identity is
	// generated if data does not carry one.
	Create(ctx context.Context, data core.Record) (core.Record, error)
	// Update merges data into the entity with identity id and returns the result or ErrNotFound
	Update(ctx context.Context, id string, data core.Record) (core.Record, error)
	// Delete removes the entity with identity id or returns ErrNotFound
	Delete(ctx context.Context, id string) error
}

// Store opens collections and owns the underlying connection
type Store interface {
	Collection(ctx context.Context, model *schema.Model) (Collection, error)
	Close(ctx context.Context) error
}

// Registry maps every model to its collection. It is resolved once at startup and
// read only afterwards.
type Registry struct {
	collections map[string]Collection
}

// NewRegistry opens a collection in st for every model
func NewRegistry(ctx context.Context, st Store, models ...*schema.Model) (*Registry, error) {
	r := &Registry{collections: make(map[string]Collection)}
	for _, m := range models {
		if _, ok := r.collections[m.Collection()]; ok {
			return nil, fmt.Errorf("collection %s registered twice", m.Collection())
		}
		c, err := st.Collection(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("cannot open collection %s: %w", m.Collection(), err)
		}
		r.collections[m.Collection()] = c
	}
	return r, nil
}

// Collection returns the collection of model
func (r *Registry) Collection(model *schema.Model) (Collection, error) {
	c, ok := r.collections[model.Collection()]
	if !ok {
		return nil, fmt.Errorf("no collection registered for %s", model.Name)
	}
	return c, nil
}

// MustCollection is Collection but panics on unregistered models
func (r *Registry) MustCollection(model *schema.Model) Collection {
	c, err := r.Collection(model)
	if err != nil {
		panic(err)
	}
	return c
}
