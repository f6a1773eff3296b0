package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/port"
	"github.com/rs/zerolog/log"
)

// RoleAuthority keeps a session converging on a single admin.
// Every operation re-reads the store right before writing; there is no lock,
// so two concurrent claims can both succeed. That window closes on the next
// presence loss or when the session is terminated.
type RoleAuthority struct {
	presence port.Presence
	store    *AuthorityStore
	sessions port.SessionAdmin
}

func NewRoleAuthority(presence port.Presence, store port.MetadataStore, sessions port.SessionAdmin) *RoleAuthority {
	return &RoleAuthority{
		presence: presence,
		store:    NewAuthorityStore(store),
		sessions: sessions,
	}
}

// Bootstrap decides whether identity joins session as its admin: yes when
// nobody else is present or the session does not exist yet.
func (a *RoleAuthority) Bootstrap(ctx context.Context, session domain.SessionID, identity domain.Identity) (bool, error) {
	if err := validate(session, identity); err != nil {
		return false, err
	}

	present, err := a.presence.ListPresence(ctx, session)
	if errors.Is(err, domain.ErrNotFound) {
		log.Debug().Str("session", session.String()).Str("identity", identity.String()).Msg("Session absent, creator becomes admin")
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("bootstrap %s: %w: %w", session, domain.ErrAuthorityUnavailable, err)
	}

	for _, other := range present {
		if other != identity {
			return false, nil
		}
	}
	return true, nil
}

// ClaimAdmin grants admin to identity unless another present identity already holds it.
// It is idempotent and never errors just because another claim won the race.
func (a *RoleAuthority) ClaimAdmin(ctx context.Context, session domain.SessionID, identity domain.Identity) (domain.ClaimResult, error) {
	if err := validate(session, identity); err != nil {
		return domain.ClaimResult{}, err
	}

	present, err := a.presence.ListPresence(ctx, session)
	if err != nil {
		return domain.ClaimResult{}, fmt.Errorf("claim admin in %s: %w", session, storeError("list presence", err))
	}

	exists, err := adminAmong(ctx, a.store.store, session, present, identity)
	if err != nil {
		return domain.ClaimResult{}, fmt.Errorf("claim admin in %s: %w", session, err)
	}
	if exists {
		return domain.ClaimResult{Granted: false, Reason: domain.ClaimAdminExists}, nil
	}

	if err := a.store.Grant(ctx, session, identity, domain.RoleAdmin); err != nil {
		return domain.ClaimResult{}, fmt.Errorf("claim admin in %s: %w", session, err)
	}
	return domain.ClaimResult{Granted: true, Reason: domain.ClaimGranted}, nil
}

// Promote adds admin to target on behalf of an admin requester.
// The requester keeps its own role.
func (a *RoleAuthority) Promote(ctx context.Context, session domain.SessionID, requester, target domain.Identity) error {
	if err := validate(session, requester); err != nil {
		return err
	}
	if !target.Valid() {
		return fmt.Errorf("%w: target identity is required", domain.ErrInvalidArgument)
	}
	if err := a.requireAdmin(ctx, session, requester); err != nil {
		return err
	}
	if err := a.store.Grant(ctx, session, target, domain.RoleAdmin); err != nil {
		return fmt.Errorf("promote %s in %s: %w", target, session, err)
	}
	return nil
}

// Terminate deletes the session on behalf of an admin, disconnecting everyone.
func (a *RoleAuthority) Terminate(ctx context.Context, session domain.SessionID, requester domain.Identity) error {
	if err := validate(session, requester); err != nil {
		return err
	}
	if err := a.requireAdmin(ctx, session, requester); err != nil {
		return err
	}
	if err := a.sessions.DeleteSession(ctx, session); err != nil {
		return fmt.Errorf("terminate %s: %w", session, storeError("delete session", err))
	}
	log.Info().Str("session", session.String()).Str("identity", requester.String()).Msg("Session terminated")
	return nil
}

func (a *RoleAuthority) requireAdmin(ctx context.Context, session domain.SessionID, identity domain.Identity) error {
	roles, err := a.store.Roles(ctx, session, identity)
	if err != nil {
		return err
	}
	if !roles.IsAdmin() {
		return fmt.Errorf("%w: %s is not an admin of %s", domain.ErrUnauthorized, identity, session)
	}
	return nil
}

// adminAmong reports whether any present identity other than self holds admin.
// Identities that leave between the listing and the read are skipped.
func adminAmong(ctx context.Context, reader port.MetadataReader, session domain.SessionID, present []domain.Identity, self domain.Identity) (bool, error) {
	for _, other := range present {
		if other == self {
			continue
		}
		roles, err := readRoles(ctx, reader, session, other)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if roles.IsAdmin() {
			return true, nil
		}
	}
	return false, nil
}

func validate(session domain.SessionID, identity domain.Identity) error {
	if !session.Valid() {
		return fmt.Errorf("%w: session is required", domain.ErrInvalidArgument)
	}
	if !identity.Valid() {
		return fmt.Errorf("%w: identity is required", domain.ErrInvalidArgument)
	}
	return nil
}
