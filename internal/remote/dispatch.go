package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/angelmondragon/crewsync/internal/outbox"
	"github.com/angelmondragon/crewsync/pkg/enums"
)

// ErrInvalidKind is returned for items whose kind has no create operation.
var ErrInvalidKind = errors.New("invalid outbox kind")

const idempotencyHeader = "Idempotency-Key"

var createPaths = map[enums.OutboxKind]string{
	enums.OutboxKindRDO: "/api/rdo",
	enums.OutboxKindOS:  "/api/os",
	enums.OutboxKindFIN: "/api/finance",
}

// Dispatcher sends outbox items to the create endpoint for their kind.
type Dispatcher struct {
	client *Client
	routes map[enums.OutboxKind]func(ctx context.Context, item outbox.Item) error
}

func NewDispatcher(client *Client) *Dispatcher {
	d := &Dispatcher{
		client: client,
		routes: make(map[enums.OutboxKind]func(ctx context.Context, item outbox.Item) error, len(createPaths)),
	}
	for kind, path := range createPaths {
		d.routes[kind] = d.createAt(path)
	}
	return d
}

func (d *Dispatcher) createAt(path string) func(ctx context.Context, item outbox.Item) error {
	return func(ctx context.Context, item outbox.Item) error {
		return d.client.do(ctx, request{
			method:  http.MethodPost,
			path:    path,
			body:    item.Payload,
			headers: map[string]string{idempotencyHeader: item.ClientID},
		}, nil)
	}
}

// Send implements outbox.Transport.
func (d *Dispatcher) Send(ctx context.Context, item outbox.Item) error {
	route, ok := d.routes[item.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKind, item.Kind)
	}
	return route(ctx, item)
}

var _ outbox.Transport = (*Dispatcher)(nil)
