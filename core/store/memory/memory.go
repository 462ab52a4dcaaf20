// Package memory provides an in-process store. It is meant for tests and single
// instance development setups.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/schema"
	"github.com/relabs-tech/kadmin/core/store"
)

// Store is an in-memory store.Store
type Store struct {
	mutex       sync.Mutex
	collections map[string]*Collection
}

// New returns a new in-memory store
func New() *Store {
	return &Store{collections: make(map[string]*Collection)}
}

// Collection returns the collection of model, creating it on first use
func (s *Store) Collection(ctx context.Context, model *schema.Model) (store.Collection, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	c, ok := s.collections[model.Collection()]
	if !ok {
		id := model.IDField().Name
		if id == "" {
			return nil, fmt.Errorf("model %s has no id field", model.Name)
		}
		c = &Collection{idField: id, index: make(map[string]int)}
		s.collections[model.Collection()] = c
	}
	return c, nil
}

// Close does nothing
func (s *Store) Close(ctx context.Context) error {
	return nil
}

// Collection is an in-memory store.Collection which keeps insertion order
type Collection struct {
	mutex   sync.RWMutex
	idField string
	records []core.Record
	index   map[string]int
}

// FindMany implements store.Collection
func (c *Collection) FindMany(ctx context.Context, skip, take int) ([]core.Record, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if skip < 0 {
		skip = 0
	}
	result := []core.Record{}
	for i := skip; i < len(c.records) && len(result) < take; i++ {
		result = append(result, c.records[i].Clone())
	}
	return result, nil
}

// Count implements store.Collection
func (c *Collection) Count(ctx context.Context) (int, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.records), nil
}

// FindUnique implements store.Collection
func (c *Collection) FindUnique(ctx context.Context, id string) (core.Record, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c.records[i].Clone(), nil
}

// FindFirst implements store.Collection
func (c *Collection) FindFirst(ctx context.Context, field string, value interface{}) (core.Record, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for _, r := range c.records {
		if v, ok := r[field]; ok && reflect.DeepEqual(v, value) {
			return r.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

// Create implements store.Collection
func (c *Collection) Create(ctx context.Context, data core.Record) (core.Record, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	record := data.Clone()
	id, _ := record[c.idField].(string)
	if id == "" {
		id = uuid.NewString()
		record[c.idField] = id
	}
	if _, ok := c.index[id]; ok {
		return nil, fmt.Errorf("%s %s already exists", c.idField, id)
	}
	c.index[id] = len(c.records)
	c.records = append(c.records, record)
	return record.Clone(), nil
}

// Update implements store.Collection
func (c *Collection) Update(ctx context.Context, id string, data core.Record) (core.Record, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	i, ok := c.index[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	record := c.records[i]
	for k, v := range data {
		if k == c.idField {
			continue
		}
		record[k] = v
	}
	return record.Clone(), nil
}

// Delete implements store.Collection
func (c *Collection) Delete(ctx context.Context, id string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	i, ok := c.index[id]
	if !ok {
		return store.ErrNotFound
	}
	c.records = append(c.records[:i], c.records[i+1:]...)
	delete(c.index, id)
	for j := i; j < len(c.records); j++ {
		c.index[c.records[j][c.idField].(string)] = j
	}
	return nil
}
