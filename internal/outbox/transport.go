package outbox

import (
	"context"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/crewsync/pkg/errors"
)

// Transport delivers one item to the remote API.
type Transport interface {
	Send(ctx context.Context, item Item) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, item Item) error

func (f TransportFunc) Send(ctx context.Context, item Item) error {
	return f(ctx, item)
}

// ConflictClassifier decides whether a send error means the server already
// holds this submission.
type ConflictClassifier func(err error) bool

type statusCoder interface {
	StatusCode() int
}

// IsConflict treats HTTP 409 and CONFLICT-coded errors as already applied.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var coded statusCoder
	if errors.As(err, &coded) && coded.StatusCode() == http.StatusConflict {
		return true
	}
	return pkgerrors.HasCode(err, pkgerrors.CodeConflict)
}
