package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/port"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const DefaultRoomsPollInterval = 5 * time.Second

// SessionDirectory lists sessions people can join. The listing is advisory
// and carries no authority.
type SessionDirectory struct {
	lister   port.SessionLister
	lobby    domain.SessionID
	clock    clockwork.Clock
	interval time.Duration
}

func NewSessionDirectory(lister port.SessionLister, lobby domain.SessionID, clock clockwork.Clock, interval time.Duration) *SessionDirectory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultRoomsPollInterval
	}
	return &SessionDirectory{
		lister:   lister,
		lobby:    lobby,
		clock:    clock,
		interval: interval,
	}
}

// List returns active sessions other than the lobby, sorted by name.
func (d *SessionDirectory) List(ctx context.Context) ([]domain.SessionInfo, error) {
	all, err := d.lister.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]domain.SessionInfo, 0, len(all))
	for _, s := range all {
		if s.Name == d.lobby {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Poll calls fn with a fresh listing now and then on every interval until ctx is done.
// A failed refresh is logged and skipped.
func (d *SessionDirectory) Poll(ctx context.Context, fn func([]domain.SessionInfo)) {
	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	refresh := func() {
		sessions, err := d.List(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Refreshing sessions failed")
			return
		}
		fn(sessions)
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			refresh()
		}
	}
}
