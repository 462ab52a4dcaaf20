// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package postgres stores every collection as a table of JSONB documents.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/csql"
	"github.com/relabs-tech/kadmin/core/logger"
	"github.com/relabs-tech/kadmin/core/schema"
	"github.com/relabs-tech/kadmin/core/store"
)

// Store is a postgres store.Store
type Store struct {
	db *csql.DB
}

// New returns a new postgres store on db
func New(db *csql.DB) *Store {
	return &Store{db: db}
}

// Collection creates the table of model if it does not exist yet and returns its collection
func (s *Store) Collection(ctx context.Context, model *schema.Model) (store.Collection, error) {
	idField := model.IDField().Name
	if idField == "" {
		return nil, fmt.Errorf("model %s has no id field", model.Name)
	}
	table := s.db.Table(model.Collection())
	createQuery := `CREATE TABLE IF NOT EXISTS ` + table + ` (
id text PRIMARY KEY,
data jsonb NOT NULL,
created_at timestamptz NOT NULL DEFAULT now()
);`
	if _, err := s.db.ExecContext(ctx, createQuery); err != nil {
		return nil, fmt.Errorf("cannot create table %s: %w", table, err)
	}
	logger.Default().Debugln("postgres collection", table)

	return &Collection{
		db:          s.db,
		idField:     idField,
		listQuery:   `SELECT id, data FROM ` + table + ` ORDER BY created_at, id LIMIT $1 OFFSET $2;`,
		countQuery:  `SELECT count(*) FROM ` + table + `;`,
		readQuery:   `SELECT id, data FROM ` + table + ` WHERE id = $1;`,
		firstQuery:  `SELECT id, data FROM ` + table + ` WHERE data @> $1::jsonb ORDER BY created_at, id LIMIT 1;`,
		insertQuery: `INSERT INTO ` + table + ` (id, data) VALUES ($1, $2::jsonb) RETURNING id, data;`,
		updateQuery: `UPDATE ` + table + ` SET data = data || $2::jsonb WHERE id = $1 RETURNING id, data;`,
		deleteQuery: `DELETE FROM ` + table + ` WHERE id = $1;`,
	}, nil
}

// Close closes the database
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

// Collection is a postgres store.Collection. The identity is kept in the id column
// and stripped from the stored document.
type Collection struct {
	db          *csql.DB
	idField     string
	listQuery   string
	countQuery  string
	readQuery   string
	firstQuery  string
	insertQuery string
	updateQuery string
	deleteQuery string
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (c *Collection) scan(row scanner) (core.Record, error) {
	var id string
	var data []byte
	if err := row.Scan(&id, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	record := core.Record{}
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("cannot decode document %s: %w", id, err)
	}
	record[c.idField] = id
	return record, nil
}

// FindMany implements store.Collection
func (c *Collection) FindMany(ctx context.Context, skip, take int) ([]core.Record, error) {
	rows, err := c.db.QueryContext(ctx, c.listQuery, take, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []core.Record{}
	for rows.Next() {
		record, err := c.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// Count implements store.Collection
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, c.countQuery).Scan(&n)
	return n, err
}

// FindUnique implements store.Collection
func (c *Collection) FindUnique(ctx context.Context, id string) (core.Record, error) {
	return c.scan(c.db.QueryRowContext(ctx, c.readQuery, id))
}

// FindFirst implements store.Collection
func (c *Collection) FindFirst(ctx context.Context, field string, value interface{}) (core.Record, error) {
	if field == c.idField {
		id, ok := value.(string)
		if !ok {
			return nil, store.ErrNotFound
		}
		return c.FindUnique(ctx, id)
	}
	filter, err := json.Marshal(map[string]interface{}{field: value})
	if err != nil {
		return nil, err
	}
	return c.scan(c.db.QueryRowContext(ctx, c.firstQuery, string(filter)))
}

// Create implements store.Collection
func (c *Collection) Create(ctx context.Context, data core.Record) (core.Record, error) {
	id, _ := data[c.idField].(string)
	if id == "" {
		id = uuid.NewString()
	}
	body, err := json.Marshal(data.Omit(c.idField))
	if err != nil {
		return nil, err
	}
	return c.scan(c.db.QueryRowContext(ctx, c.insertQuery, id, string(body)))
}

// Update implements store.Collection
func (c *Collection) Update(ctx context.Context, id string, data core.Record) (core.Record, error) {
	body, err := json.Marshal(data.Omit(c.idField))
	if err != nil {
		return nil, err
	}
	return c.scan(c.db.QueryRowContext(ctx, c.updateQuery, id, string(body)))
}

// Delete implements store.Collection
func (c *Collection) Delete(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, c.deleteQuery, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
