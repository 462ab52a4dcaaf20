package mongo

import (
	"testing"

	"github.com/relabs-tech/kadmin/core"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestRecordMapping(t *testing.T) {
	c := &Collection{idField: "id"}

	doc := c.toDocument(core.Record{"id": "1", "name": "x"})
	assert.Equal(t, bson.M{"name": "x"}, doc)

	record := c.toRecord(bson.M{
		"_id":      "1",
		"name":     "x",
		"settings": bson.D{{Key: "theme", Value: "dark"}},
		"tags":     bson.A{"a", bson.M{"b": int32(1)}},
	})
	assert.Equal(t, core.Record{
		"id":       "1",
		"name":     "x",
		"settings": map[string]interface{}{"theme": "dark"},
		"tags":     []interface{}{"a", map[string]interface{}{"b": int32(1)}},
	}, record)
}
