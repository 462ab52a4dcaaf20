// Package notify forwards entity change notifications to message brokers.
//
// Notifiers implement core.Notifier. Delivery failures are logged and never
// reported to the caller, so a failing broker cannot fail an entity operation.
package notify

import (
	"context"

	"github.com/relabs-tech/kadmin/core"
)

// Multi fans a notification out to several notifiers
type Multi []core.Notifier

// Notify implements core.Notifier
func (m Multi) Notify(ctx context.Context, resource string, operation core.Operation, payload []byte) {
	for _, n := range m {
		n.Notify(ctx, resource, operation, payload)
	}
}

// NotifierFunc adapts a function to core.Notifier
type NotifierFunc func(ctx context.Context, resource string, operation core.Operation, payload []byte)

// Notify implements core.Notifier
func (f NotifierFunc) Notify(ctx context.Context, resource string, operation core.Operation, payload []byte) {
	f(ctx, resource, operation, payload)
}
