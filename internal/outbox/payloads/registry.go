package payloads

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/crewsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/crewsync/pkg/errors"
)

type decoderFunc func(payload json.RawMessage) (any, error)

// Registry decodes and validates raw payload objects by outbox kind.
type Registry struct {
	mtx      sync.RWMutex
	decoders map[enums.OutboxKind]decoderFunc
	validate func(any) error
}

// NewRegistry returns a registry with the RDO, OS and FIN bodies registered.
// validate may be nil to skip field validation.
func NewRegistry(validate func(any) error) *Registry {
	r := &Registry{
		decoders: make(map[enums.OutboxKind]decoderFunc),
		validate: validate,
	}
	r.Register(enums.OutboxKindRDO, decodeInto[DailyReport])
	r.Register(enums.OutboxKindOS, decodeInto[ServiceOrder])
	r.Register(enums.OutboxKindFIN, decodeInto[FinancialRequest])
	return r
}

func (r *Registry) Register(kind enums.OutboxKind, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.decoders[kind] = decoder
}

// Decode returns the typed body for kind, or a validation error.
func (r *Registry) Decode(kind enums.OutboxKind, payload json.RawMessage) (any, error) {
	r.mtx.RLock()
	decoder, ok := r.decoders[kind]
	r.mtx.RUnlock()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("no payload schema for kind %q", kind))
	}
	decoded, err := decoder(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payload").
			WithDetails(map[string]any{"error": err.Error()})
	}
	if r.validate != nil {
		if err := r.validate(decoded); err != nil {
			return nil, err
		}
	}
	return decoded, nil
}

func decodeInto[T any](payload json.RawMessage) (any, error) {
	var out T
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
