package enums

import (
	"fmt"
	"strings"
)

// OutboxKind names the remote create operation an outbox item is bound to.
type OutboxKind string

const (
	OutboxKindRDO OutboxKind = "RDO"
	OutboxKindOS  OutboxKind = "OS"
	OutboxKindFIN OutboxKind = "FIN"
)

var validOutboxKinds = []OutboxKind{
	OutboxKindRDO,
	OutboxKindOS,
	OutboxKindFIN,
}

// OutboxKinds returns the supported kinds in dispatch order.
func OutboxKinds() []OutboxKind {
	out := make([]OutboxKind, len(validOutboxKinds))
	copy(out, validOutboxKinds)
	return out
}

// IsValid reports whether the value matches a supported kind.
func (k OutboxKind) IsValid() bool {
	for _, candidate := range validOutboxKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

func (k OutboxKind) String() string {
	return string(k)
}

// ParseOutboxKind converts raw input into OutboxKind. Matching ignores case.
func ParseOutboxKind(value string) (OutboxKind, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validOutboxKinds {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox kind %q", value)
}
