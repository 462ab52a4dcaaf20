package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/schema"
	"github.com/relabs-tech/kadmin/core/store"
)

var model = &schema.Model{
	Name: "Admin",
	Fields: []schema.Field{
		{Name: "id", Kind: schema.KindString, IsID: true},
		{Name: "username", Kind: schema.KindString},
	},
}

func TestCollection_CRUD(t *testing.T) {
	ctx := context.Background()
	c, err := New().Collection(ctx, model)
	if err != nil {
		t.Fatal(err)
	}

	created, err := c.Create(ctx, core.Record{"username": "a"})
	if err != nil {
		t.Fatal(err)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("Expected generated id")
	}
	if _, err := c.Create(ctx, core.Record{"id": id}); err == nil {
		t.Fatal("Expected duplicate id to be rejected")
	}

	found, err := c.FindUnique(ctx, id)
	if err != nil || found["username"] != "a" {
		t.Fatalf("Expected username a, got %v %v", found, err)
	}
	found["username"] = "mutated"
	again, _ := c.FindUnique(ctx, id)
	if again["username"] != "a" {
		t.Fatal("Expected returned records to be copies")
	}

	first, err := c.FindFirst(ctx, "username", "a")
	if err != nil || first["id"] != id {
		t.Fatalf("Expected %s, got %v %v", id, first, err)
	}
	if _, err := c.FindFirst(ctx, "username", "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	updated, err := c.Update(ctx, id, core.Record{"id": "other", "username": "b"})
	if err != nil {
		t.Fatal(err)
	}
	if updated["id"] != id || updated["username"] != "b" {
		t.Fatalf("Unexpected update result %v", updated)
	}
	if _, err := c.Update(ctx, "missing", core.Record{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := c.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if _, err := c.FindUnique(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestCollection_Pagination(t *testing.T) {
	ctx := context.Background()
	c, _ := New().Collection(ctx, model)
	for i := 0; i < 25; i++ {
		c.Create(ctx, core.Record{"username": i})
	}
	page, _ := c.FindMany(ctx, 20, 10)
	if len(page) != 5 || page[0]["username"] != 20 {
		t.Fatalf("Unexpected last page %v", page)
	}
	if err := c.Delete(ctx, page[0]["id"].(string)); err != nil {
		t.Fatal(err)
	}
	n, _ := c.Count(ctx)
	if n != 24 {
		t.Fatalf("Expected 24, got %d", n)
	}
	page, _ = c.FindMany(ctx, 20, 10)
	if len(page) != 4 || page[0]["username"] != 21 {
		t.Fatalf("Unexpected last page after delete %v", page)
	}
	if _, err := c.FindUnique(ctx, page[3]["id"].(string)); err != nil {
		t.Fatalf("Expected index to be rebuilt, got %v", err)
	}
}

func TestCollection_Concurrent(t *testing.T) {
	ctx := context.Background()
	c, _ := New().Collection(ctx, model)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Create(ctx, core.Record{"username": "x"})
			c.FindMany(ctx, 0, 10)
		}()
	}
	wg.Wait()
	if n, _ := c.Count(ctx); n != 50 {
		t.Fatalf("Expected 50, got %d", n)
	}
}
