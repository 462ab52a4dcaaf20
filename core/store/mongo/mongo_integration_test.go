//go:build integration
// +build integration

package mongo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/schema"
	"github.com/relabs-tech/kadmin/core/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestCollection_Integration(t *testing.T) {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	s, err := Open(ctx, fmt.Sprintf("mongodb://%s:%s", host, port.Port()), "kadmin")
	require.NoError(t, err)
	defer s.Close(ctx)

	model := &schema.Model{Name: "Admin", Fields: []schema.Field{{Name: "id", IsID: true}, {Name: "username"}}}
	c, err := s.Collection(ctx, model)
	require.NoError(t, err)

	created, err := c.Create(ctx, core.Record{"username": "root"})
	require.NoError(t, err)
	id := created["id"].(string)

	found, err := c.FindFirst(ctx, "username", "root")
	require.NoError(t, err)
	assert.Equal(t, id, found["id"])

	updated, err := c.Update(ctx, id, core.Record{"id": "other", "username": "admin"})
	require.NoError(t, err)
	assert.Equal(t, core.Record{"id": id, "username": "admin"}, updated)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	page, err := c.FindMany(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	require.NoError(t, c.Delete(ctx, id))
	assert.True(t, errors.Is(c.Delete(ctx, id), store.ErrNotFound))
	_, err = c.FindUnique(ctx, id)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
