package store_test

import (
	"context"
	"testing"

	"github.com/relabs-tech/kadmin/core/schema"
	"github.com/relabs-tech/kadmin/core/store"
	"github.com/relabs-tech/kadmin/core/store/memory"
)

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	user := &schema.Model{Name: "User", Fields: []schema.Field{{Name: "id", IsID: true}}}
	admin := &schema.Model{Name: "Admin", Fields: []schema.Field{{Name: "id", IsID: true}}}
	other := &schema.Model{Name: "Other", Fields: []schema.Field{{Name: "id", IsID: true}}}

	r, err := store.NewRegistry(ctx, memory.New(), user, admin)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Collection(user); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Collection(other); err == nil {
		t.Fatal("Expected unregistered model to fail")
	}
	if _, err := store.NewRegistry(ctx, memory.New(), user, user); err == nil {
		t.Fatal("Expected duplicate registration to fail")
	}
	noID := &schema.Model{Name: "NoID"}
	if _, err := store.NewRegistry(ctx, memory.New(), noID); err == nil {
		t.Fatal("Expected model without id to fail")
	}
}
