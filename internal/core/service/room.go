package service

import (
	"context"
	"fmt"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/port"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Claimer is the ClaimAdmin half of the authority protocol. RoleAuthority
// implements it in-process; participants reach it over HTTP.
type Claimer interface {
	ClaimAdmin(ctx context.Context, session domain.SessionID, identity domain.Identity) (domain.ClaimResult, error)
}

// AdminWatcher runs once per connected participant and claims admin for it
// whenever the session is observed without one.
type AdminWatcher struct {
	session  domain.SessionID
	self     domain.Identity
	presence port.Presence
	roles    port.MetadataReader
	events   port.EventSource
	claimer  Claimer
	logger   zerolog.Logger
}

func NewAdminWatcher(session domain.SessionID, self domain.Identity, presence port.Presence, roles port.MetadataReader, events port.EventSource, claimer Claimer) *AdminWatcher {
	return &AdminWatcher{
		session:  session,
		self:     self,
		presence: presence,
		roles:    roles,
		events:   events,
		claimer:  claimer,
		logger:   log.With().Str("session", session.String()).Str("identity", self.String()).Logger(),
	}
}

// Run observes the session until ctx is done or the session closes.
// The subscription lives exactly as long as Run.
func (w *AdminWatcher) Run(ctx context.Context) error {
	sub, err := w.events.Subscribe(w.session)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", w.session, err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			switch ev.Kind {
			case domain.EventRoster, domain.EventParticipantLeft:
				if ev.Kind == domain.EventParticipantLeft {
					w.logger.Debug().Str("left", ev.Identity.String()).Msg("Presence lost")
				}
				if _, err := w.Reconcile(ctx); err != nil {
					w.logger.Error().Err(err).Msg("Admin re-election failed")
				}
			case domain.EventSessionClosed:
				w.logger.Info().Msg("Session closed")
				return nil
			}
		}
	}
}

// Reconcile claims admin for the local identity if no present identity holds it.
// It reports whether a claim was attempted.
func (w *AdminWatcher) Reconcile(ctx context.Context) (bool, error) {
	mine, err := readRoles(ctx, w.roles, w.session, w.self)
	if err == nil && mine.IsAdmin() {
		return false, nil
	}

	present, err := w.presence.ListPresence(ctx, w.session)
	if err != nil {
		return false, storeError("list presence", err)
	}
	exists, err := adminAmong(ctx, w.roles, w.session, present, w.self)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	res, err := w.claimer.ClaimAdmin(ctx, w.session, w.self)
	if err != nil {
		return true, err
	}
	w.logger.Info().Bool("granted", res.Granted).Str("reason", string(res.Reason)).Msg("Admin claimed")
	return true, nil
}
