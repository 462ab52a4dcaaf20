package backend

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/access"
	"github.com/relabs-tech/kadmin/core/schema"
	"github.com/relabs-tech/kadmin/core/store"
	"github.com/relabs-tech/kadmin/core/store/memory"
)

const controllerSchema = `{
	"models": [
		{
			"name": "User",
			"fields": [
				{"name": "id", "kind": "String", "isId": true, "isRequired": true, "hasDefaultValue": true},
				{"name": "email", "kind": "String", "isRequired": true},
				{"name": "name", "kind": "String"},
				{"name": "password", "kind": "String", "isRequired": true},
				{"name": "role", "kind": "Enum", "type": "Role", "isRequired": true, "hasDefaultValue": true}
			]
		},
		{
			"name": "Post",
			"fields": [
				{"name": "id", "kind": "String", "isId": true, "isRequired": true, "hasDefaultValue": true},
				{"name": "title", "kind": "String", "isRequired": true},
				{"name": "author", "kind": "Relation", "type": "User", "relationName": "PostToUser"}
			]
		}
	],
	"enums": [
		{"name": "Role", "values": [{"name": "USER", "dbName": null}, {"name": "ADMIN", "dbName": null}]}
	]
}`

type recordedEvent struct {
	resource  string
	operation core.Operation
	payload   map[string]interface{}
}

type recordingNotifier struct {
	mutex  sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Notify(ctx context.Context, resource string, operation core.Operation, payload []byte) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	m := map[string]interface{}{}
	json.Unmarshal(payload, &m)
	n.events = append(n.events, recordedEvent{resource: resource, operation: operation, payload: m})
}

// countingCollection counts creates on top of a memory collection
type countingCollection struct {
	store.Collection
	creates int
}

func (c *countingCollection) Create(ctx context.Context, data core.Record) (core.Record, error) {
	c.creates++
	return c.Collection.Create(ctx, data)
}

func newTestController(t *testing.T, config *Configuration) (*Controller, *countingCollection, *recordingNotifier) {
	t.Helper()
	s, err := schema.Parse([]byte(controllerSchema))
	require.NoError(t, err)
	model, _ := s.Model("User")
	c, err := memory.New().Collection(context.Background(), model)
	require.NoError(t, err)
	collection := &countingCollection{Collection: c}
	notifier := &recordingNotifier{}
	return NewController(s, model, config, collection, notifier), collection, notifier
}

func TestController_List(t *testing.T) {
	ctx := context.Background()
	config := &Configuration{
		Properties: map[string]PropertyRule{
			"password": {Visible: Visible(false)},
			"name":     {Visible: VisibleFor(map[core.Operation]bool{core.OperationList: false})},
			"email":    {Format: FormatMaskEmail},
		},
	}
	c, _, _ := newTestController(t, config)
	for i := 0; i < 25; i++ {
		_, err := c.Create(ctx, core.Record{"email": "someone@example.com", "name": "n", "password": "p"})
		require.NoError(t, err)
	}

	result, err := c.List(ctx, Pagination{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Page)
	assert.Len(t, result.Data, 10)
	for _, r := range result.Data {
		assert.NotContains(t, r, "password")
		assert.NotContains(t, r, "name")
		assert.Equal(t, "some****@example.com", r["email"])
	}

	result, err = c.List(ctx, Pagination{Page: 3, Size: 10})
	require.NoError(t, err)
	assert.Len(t, result.Data, 5)

	result, err = c.List(ctx, Pagination{Page: 4, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, result.Data)
	assert.Equal(t, 3, result.Page)

	// defaults
	result, err = c.List(ctx, Pagination{})
	require.NoError(t, err)
	assert.Len(t, result.Data, DefaultPageSize)
}

func TestController_ListEmpty(t *testing.T) {
	c, _, _ := newTestController(t, nil)
	result, err := c.List(context.Background(), Pagination{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Page)
	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Data)
}

func TestController_CreateWithHook(t *testing.T) {
	ctx := context.Background()
	var received core.Record
	config := &Configuration{
		Actions: CreateHookFunc(func(ctx context.Context, payload core.Record) (ActionResult, error) {
			received = payload
			return ActionResult{Payload: core.Record{"email": "hook@example.com", "password": "derived"}, IsValid: true}, nil
		}),
	}
	c, collection, notifier := newTestController(t, config)

	record, err := c.Create(ctx, core.Record{"email": "raw@example.com", "password": "raw", "name": "raw"})
	require.NoError(t, err)
	assert.Equal(t, "raw", received["password"])
	assert.Equal(t, "hook@example.com", record["email"])
	assert.Equal(t, "derived", record["password"])
	assert.NotContains(t, record, "name", "hook output is persisted, never merged with the raw payload")
	assert.NotEmpty(t, record["id"])
	assert.Equal(t, 1, collection.creates)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "user", notifier.events[0].resource)
	assert.Equal(t, core.OperationCreate, notifier.events[0].operation)
}

func TestController_CreateHookFailure(t *testing.T) {
	config := &Configuration{
		Actions: CreateHookFunc(func(ctx context.Context, payload core.Record) (ActionResult, error) {
			return ActionResult{}, errors.New("nope")
		}),
	}
	c, collection, notifier := newTestController(t, config)

	_, err := c.Create(context.Background(), core.Record{"email": "a@b.c", "password": "p"})
	var hookErr *HookError
	require.True(t, errors.As(err, &hookErr))
	assert.Equal(t, core.OperationCreate, hookErr.Action)
	assert.Equal(t, 0, collection.creates, "a failing hook aborts before persistence")
	assert.Empty(t, notifier.events)
}

func TestController_CreateWithoutHook(t *testing.T) {
	c, _, _ := newTestController(t, nil)
	record, err := c.Create(context.Background(), core.Record{"email": "a@b.c", "password": "p"})
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", record["email"])
	assert.Equal(t, "p", record["password"])
}

func TestController_IdentityAndRelationsAreNotStored(t *testing.T) {
	ctx := context.Background()
	s, err := schema.Parse([]byte(controllerSchema))
	require.NoError(t, err)
	model, _ := s.Model("Post")
	collection, err := memory.New().Collection(ctx, model)
	require.NoError(t, err)

	var received core.Record
	config := &Configuration{
		Actions: CreateHookFunc(func(ctx context.Context, payload core.Record) (ActionResult, error) {
			received = payload
			return ActionResult{Payload: payload, IsValid: true}, nil
		}),
	}
	c := NewController(s, model, config, collection, nil)

	payload := core.Record{"id": "client-chosen", "title": "t", "author": map[string]interface{}{"id": "u1"}}
	record, err := c.Create(ctx, payload)
	require.NoError(t, err)
	assert.NotContains(t, received, "id")
	assert.NotContains(t, received, "author")
	assert.Contains(t, payload, "author", "the caller's payload is left untouched")
	id, _ := record["id"].(string)
	require.NotEmpty(t, id)
	assert.NotEqual(t, "client-chosen", id)
	assert.NotContains(t, record, "author")

	_, err = c.Read(ctx, "client-chosen")
	assert.ErrorIs(t, err, store.ErrNotFound)

	updated, err := c.Update(ctx, id, core.Record{"title": "u", "author": "u2"})
	require.NoError(t, err)
	assert.Equal(t, "u", updated["title"])
	assert.NotContains(t, updated, "author")
}

func TestController_ReadUpdateDelete(t *testing.T) {
	ctx := context.Background()
	config := &Configuration{
		Properties: map[string]PropertyRule{
			"password": {Visible: Visible(false)},
			"name":     {Visible: VisibleFor(map[core.Operation]bool{core.OperationList: false})},
		},
	}
	c, _, notifier := newTestController(t, config)
	created, err := c.Create(ctx, core.Record{"email": "a@b.c", "password": "secret", "name": "A"})
	require.NoError(t, err)
	id := created["id"].(string)

	record, err := c.Read(ctx, id)
	require.NoError(t, err)
	assert.NotContains(t, record, "password")
	assert.Equal(t, "A", record["name"], "fields hidden for list only stay visible on read")

	updated, err := c.Update(ctx, id, core.Record{"id": "forged", "name": "B"})
	require.NoError(t, err)
	assert.Equal(t, id, updated["id"])
	assert.Equal(t, "B", updated["name"])
	assert.Equal(t, "a@b.c", updated["email"])

	_, err = c.Read(ctx, "forged")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, c.Delete(ctx, id))
	_, err = c.Read(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, c.Delete(ctx, id), store.ErrNotFound)

	_, err = c.Update(ctx, id, core.Record{"name": "C"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.Len(t, notifier.events, 3)
	assert.NotContains(t, notifier.events[0].payload, "password", "notifications never carry hidden fields")
	assert.Equal(t, core.OperationUpdate, notifier.events[1].operation)
	assert.Equal(t, core.OperationDelete, notifier.events[2].operation)
	assert.Equal(t, id, notifier.events[2].payload["id"])
}

func TestController_Head(t *testing.T) {
	config := &Configuration{
		Properties: map[string]PropertyRule{
			"password": {Visible: Visible(false)},
			"name":     {Visible: VisibleFor(map[core.Operation]bool{core.OperationCreate: false}), Alias: "Full name"},
			"email":    {Component: "email-input"},
		},
	}
	c, _, _ := newTestController(t, config)

	names := func(h HeadResponse) []string {
		result := []string{}
		for _, f := range h.Fields {
			result = append(result, f.Name)
		}
		return result
	}

	head := c.Head("")
	assert.Equal(t, []string{"id", "email", "name", "role"}, names(head))
	assert.Equal(t, []schema.EnumValue{{Name: "USER"}, {Name: "ADMIN"}}, head.Enums["Role"])
	assert.Same(t, config, head.Config)
	for _, f := range head.Fields {
		switch f.Name {
		case "name":
			assert.Equal(t, "Full name", f.Alias)
		case "email":
			assert.Equal(t, "email-input", f.Component)
		}
	}

	assert.Equal(t, []string{"email", "role"}, names(c.Head(core.OperationCreate)))
	assert.Equal(t, []string{"email", "name", "role"}, names(c.Head(core.OperationUpdate)))
	assert.Equal(t, []string{"id", "email", "name", "role"}, names(c.Head(core.OperationRead)))
}

func TestController_Authority(t *testing.T) {
	ctx := context.Background()
	config := &Configuration{
		Permissions: map[core.Operate]Permission{
			core.OperateWrite: Allow(false),
			core.OperateDelete: PredicatePermission(func(ctx context.Context, creds *access.Credentials) (bool, error) {
				if creds == nil {
					return false, errors.New("no credentials")
				}
				return creds.HasRole("ADMIN"), nil
			}),
		},
	}
	c, _, _ := newTestController(t, config)

	allowed, err := c.Authority(ctx, core.OperateRead, nil)
	assert.NoError(t, err)
	assert.True(t, allowed)

	allowed, _ = c.Authority(ctx, core.OperateWrite, &access.Credentials{Role: "ADMIN"})
	assert.False(t, allowed)

	allowed, err = c.Authority(ctx, core.OperateDelete, &access.Credentials{Role: "ADMIN"})
	assert.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = c.Authority(ctx, core.OperateDelete, &access.Credentials{Role: "USER"})
	assert.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = c.Authority(ctx, core.OperateDelete, nil)
	assert.Error(t, err)
	assert.False(t, allowed)
}
