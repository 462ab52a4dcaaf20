package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/access"
)

func TestVisibleExcludeKeys(t *testing.T) {
	config := &Configuration{
		Properties: map[string]PropertyRule{
			"password": {Visible: Visible(false)},
			"email":    {Visible: VisibleFor(map[core.Operation]bool{core.OperationList: false, core.OperationRead: true})},
			"name":     {Visible: Visible(true)},
			"alias":    {Alias: "A"},
		},
	}

	assert.Equal(t, []string{"password"}, config.VisibleExcludeKeys())
	assert.Equal(t, []string{"email", "password"}, config.VisibleExcludeKeys(core.OperationList))
	assert.Equal(t, []string{"password"}, config.VisibleExcludeKeys(core.OperationRead))
	// operations missing in the mapping stay visible
	assert.Equal(t, []string{"password"}, config.VisibleExcludeKeys(core.OperationCreate))
}

func TestVisibleExcludeKeys_Empty(t *testing.T) {
	config := &Configuration{}
	assert.Empty(t, config.VisibleExcludeKeys(core.OperationList))
}

func TestParseConfiguration(t *testing.T) {
	data := `{
		"property": {
			"password": {"visible": false},
			"email": {"visible": {"list": false}, "format": "mask-email"},
			"encrypt_id": {"alias": "加密ID"},
			"avatar": {"component": "upload"},
			"doc": {"component": "markdown"}
		},
		"permissions": {"delete": false, "read": true}
	}`
	config, err := ParseConfiguration([]byte(data))
	require.NoError(t, err)
	require.NoError(t, config.validate())

	assert.Equal(t, []string{"email", "password"}, config.VisibleExcludeKeys(core.OperationList))
	assert.Equal(t, "加密ID", config.Alias("encrypt_id"))
	assert.Equal(t, "upload", config.Component("avatar"))
	assert.Equal(t, []string{"avatar", "doc"}, config.ComponentKeys())
	assert.Equal(t, []string{"avatar"}, config.UploadKeys())

	allowed, err := config.PermissionRule(core.OperateDelete).Evaluate(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, allowed)
	allowed, err = config.PermissionRule(core.OperateWrite).Evaluate(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, allowed, "unset permissions allow")
	assert.False(t, config.PermissionRule(core.OperateWrite).IsSet())
}

func TestParseConfiguration_Errors(t *testing.T) {
	bad := map[string]string{
		"unknown operation": `{"property": {"a": {"visible": {"lost": false}}}}`,
		"visible type":      `{"property": {"a": {"visible": "no"}}}`,
		"unknown operate":   `{"permissions": {"execute": true}}`,
		"permission type":   `{"permissions": {"read": "maybe"}}`,
		"syntax":            `{"property":`,
	}
	for name, data := range bad {
		if _, err := ParseConfiguration([]byte(data)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestConfiguration_UnknownFormat(t *testing.T) {
	config, err := ParseConfiguration([]byte(`{"property": {"a": {"format": "upper"}}}`))
	require.NoError(t, err)
	assert.Error(t, config.validate())

	config.Formatters = map[string]Formatter{"upper": func(v interface{}) interface{} { return v }}
	assert.NoError(t, config.validate())
}

func TestConfiguration_MarshalJSON(t *testing.T) {
	config := &Configuration{
		Properties: map[string]PropertyRule{
			"password": {Visible: Visible(false)},
			"email":    {Visible: VisibleFor(map[core.Operation]bool{core.OperationList: false}), Format: FormatMaskEmail},
			"name":     {Alias: "Name"},
		},
		Permissions: map[core.Operate]Permission{
			core.OperateDelete: PredicatePermission(func(ctx context.Context, creds *access.Credentials) (bool, error) {
				return true, nil
			}),
		},
		Actions: CreateHookFunc(func(ctx context.Context, payload core.Record) (ActionResult, error) {
			return ActionResult{Payload: payload}, nil
		}),
	}
	data, err := json.Marshal(config)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"property": {
			"password": {"visible": false},
			"email": {"visible": {"list": false}, "format": "mask-email"},
			"name": {"alias": "Name"}
		},
		"permissions": {"delete": "predicate"}
	}`, string(data))
}

func TestPermission_Evaluate(t *testing.T) {
	ctx := context.Background()
	admin := &access.Credentials{ID: "1", Role: "ADMIN"}

	allowed, err := Permission{}.Evaluate(ctx, nil)
	assert.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = Allow(false).Evaluate(ctx, admin)
	assert.NoError(t, err)
	assert.False(t, allowed)

	isAdmin := PredicatePermission(func(ctx context.Context, creds *access.Credentials) (bool, error) {
		return creds.HasRole("ADMIN"), nil
	})
	allowed, err = isAdmin.Evaluate(ctx, admin)
	assert.NoError(t, err)
	assert.True(t, allowed)
	allowed, err = isAdmin.Evaluate(ctx, nil)
	assert.NoError(t, err)
	assert.False(t, allowed)

	failing := PredicatePermission(func(ctx context.Context, creds *access.Credentials) (bool, error) {
		return true, errors.New("boom")
	})
	allowed, err = failing.Evaluate(ctx, admin)
	assert.Error(t, err)
	assert.False(t, allowed, "failing predicates deny")
}

func TestMaskEmail(t *testing.T) {
	f, ok := builtinFormatters[FormatMaskEmail]
	require.True(t, ok)
	assert.Equal(t, "john****@example.com", f("johnathan@example.com"))
	assert.Equal(t, "jo****@example.com", f("jo@example.com"))
	assert.Equal(t, "", f(nil))
	assert.Equal(t, 42, f(42))
}
