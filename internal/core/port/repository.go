package port

import (
	"context"

	"github.com/Wyydra/rendezvous/internal/core/domain"
)

type MetadataReader interface {
	// GetMetadata fails with domain.ErrNotFound when the identity is not present.
	GetMetadata(ctx context.Context, session domain.SessionID, identity domain.Identity) (string, error)
}

// MetadataStore is the privileged per-participant metadata accessor.
// There is no compare-and-swap: the last writer wins.
type MetadataStore interface {
	MetadataReader
	SetMetadata(ctx context.Context, session domain.SessionID, identity domain.Identity, metadata string) error
}
