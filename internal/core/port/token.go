package port

import "github.com/Wyydra/rendezvous/internal/core/domain"

type TokenIssuer interface {
	Issue(grant domain.JoinGrant) (string, error)
}
