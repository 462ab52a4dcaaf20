// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Operation represents an entity operation, one of Create, Read, Update, Delete, List
//
type Operation string

// all supported entity operations
const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationList   Operation = "list"
)

// Valid returns true if o is one of the known operations
func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationRead, OperationUpdate, OperationDelete, OperationList:
		return true
	}
	return false
}

// UnmarshalJSON is a custom JSON unmarshaller
func (o *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Operation(s)
	if !o.Valid() {
		return fmt.Errorf("%s is not valid Operation", s)
	}
	return nil
}

// ParseOperation converts s into an Operation. The empty string yields the empty operation,
// which stands for "no particular operation".
func ParseOperation(s string) (Operation, error) {
	if s == "" {
		return "", nil
	}
	o := Operation(strings.ToLower(s))
	if !o.Valid() {
		return "", fmt.Errorf("%s is not valid Operation", s)
	}
	return o, nil
}

// Operate is the coarse access category permissions are expressed in, one of Read, Write, Delete
type Operate string

// all supported operates
const (
	OperateRead   Operate = "read"
	OperateWrite  Operate = "write"
	OperateDelete Operate = "delete"
)

// UnmarshalJSON is a custom JSON unmarshaller
func (o *Operate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Operate(s)
	switch *o {
	case OperateRead, OperateWrite, OperateDelete:
		return nil
	default:
		return fmt.Errorf("%s is not valid Operate", s)
	}
}

// OperateFor returns the operate an operation is authorized under
func OperateFor(o Operation) Operate {
	switch o {
	case OperationCreate, OperationUpdate:
		return OperateWrite
	case OperationDelete:
		return OperateDelete
	default:
		return OperateRead
	}
}

// Record is one entity as exchanged with a collection
type Record map[string]interface{}

// Clone returns a shallow copy of r
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Omit returns a shallow copy of r without the given keys
func (r Record) Omit(keys ...string) Record {
	c := r.Clone()
	for _, k := range keys {
		delete(c, k)
	}
	return c
}

// Notifier is an interface to receive entity notifications
type Notifier interface {
	Notify(ctx context.Context, resource string, operation Operation, payload []byte)
}
