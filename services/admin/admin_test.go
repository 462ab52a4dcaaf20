package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/access"
	"github.com/relabs-tech/kadmin/core/password"
)

func TestSchema(t *testing.T) {
	s, err := Schema()
	require.NoError(t, err)
	_, ok := s.Model("user")
	assert.True(t, ok)
	_, ok = s.Model("admin")
	assert.True(t, ok)
	values, ok := s.Enum("Role")
	require.True(t, ok)
	assert.Len(t, values, 2)
}

func TestEntities(t *testing.T) {
	ctx := context.Background()
	passwords, err := password.New("secret")
	require.NoError(t, err)
	enforcer, err := access.NewEnforcer(Policies...)
	require.NoError(t, err)

	entities, err := Entities(passwords, enforcer)
	require.NoError(t, err)
	require.Len(t, entities, 2)

	user := entities[0].Configuration
	assert.Equal(t, []string{"password"}, user.VisibleExcludeKeys(core.OperationList))
	assert.Equal(t, "加密ID", user.Alias("encrypt_id"))
	masked, ok := user.Formatter("email")
	require.True(t, ok)
	assert.Equal(t, "abcd****@example.com", masked("abcdefg@example.com"))

	admin := entities[1].Configuration
	assert.Equal(t, []string{"avatar"}, admin.UploadKeys())

	result, err := admin.ActionHook().Create(ctx, core.Record{"username": "root", "password": "pw"})
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.True(t, passwords.Verify("pw", result.Payload["password"].(string)))
	assert.Equal(t, RoleUser, result.Payload["role"])

	result, err = admin.ActionHook().Create(ctx, core.Record{"username": "root", "password": "pw", "role": RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, result.Payload["role"])

	allowed, err := admin.PermissionRule(core.OperateDelete).Evaluate(ctx, &access.Credentials{Role: RoleAdmin})
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, err = admin.PermissionRule(core.OperateDelete).Evaluate(ctx, &access.Credentials{Role: "USER"})
	require.NoError(t, err)
	assert.False(t, allowed)
}
