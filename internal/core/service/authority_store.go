package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/port"
	"github.com/rs/zerolog/log"
)

// AuthorityStore reads and writes role sets kept in participant metadata.
type AuthorityStore struct {
	store port.MetadataStore
}

func NewAuthorityStore(store port.MetadataStore) *AuthorityStore {
	return &AuthorityStore{store: store}
}

// Roles returns the role set of identity. Unparseable metadata counts as no roles.
func (s *AuthorityStore) Roles(ctx context.Context, session domain.SessionID, identity domain.Identity) (domain.RoleSet, error) {
	return readRoles(ctx, s.store, session, identity)
}

// Grant adds role to identity's set and writes it back if it was missing.
// Metadata keys other than roles are preserved.
func (s *AuthorityStore) Grant(ctx context.Context, session domain.SessionID, identity domain.Identity, role domain.Role) error {
	md, err := s.store.GetMetadata(ctx, session, identity)
	if err != nil {
		return storeError("read metadata", err)
	}

	current, err := domain.ParseRoleSet(md)
	if err != nil {
		log.Warn().Err(err).Str("session", session.String()).Str("identity", identity.String()).Msg("Discarding malformed metadata")
		md = ""
	}
	next, added := current.With(role)
	if !added {
		return nil
	}

	updated, err := domain.WithRoleSet(md, next)
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", identity, err)
	}
	if err := s.store.SetMetadata(ctx, session, identity, updated); err != nil {
		return storeError("write metadata", err)
	}
	log.Info().Str("session", session.String()).Str("identity", identity.String()).Str("role", string(role)).Msg("Role granted")
	return nil
}

func readRoles(ctx context.Context, reader port.MetadataReader, session domain.SessionID, identity domain.Identity) (domain.RoleSet, error) {
	md, err := reader.GetMetadata(ctx, session, identity)
	if err != nil {
		return nil, storeError("read metadata", err)
	}
	roles, err := domain.ParseRoleSet(md)
	if err != nil {
		log.Warn().Err(err).Str("session", session.String()).Str("identity", identity.String()).Msg("Malformed role metadata")
		return domain.RoleSet{}, nil
	}
	return roles, nil
}

// storeError keeps ErrNotFound as is and classifies everything else as unavailable.
func storeError(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrAuthorityUnavailable, err)
}
