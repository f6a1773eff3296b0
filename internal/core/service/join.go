package service

import (
	"context"
	"fmt"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/port"
)

// JoinService issues join tokens whose metadata carries the bootstrap decision.
type JoinService struct {
	authority *RoleAuthority
	issuer    port.TokenIssuer
}

func NewJoinService(authority *RoleAuthority, issuer port.TokenIssuer) *JoinService {
	return &JoinService{
		authority: authority,
		issuer:    issuer,
	}
}

// Token bootstraps identity into session and returns a signed join token.
// No token is produced when the authority cannot decide.
func (s *JoinService) Token(ctx context.Context, session domain.SessionID, identity domain.Identity) (string, error) {
	admin, err := s.authority.Bootstrap(ctx, session, identity)
	if err != nil {
		return "", err
	}
	roles := domain.RoleSet{}
	if admin {
		roles, _ = roles.With(domain.RoleAdmin)
	}
	token, err := s.issuer.Issue(domain.JoinGrant{
		Identity: identity,
		Session:  session,
		Metadata: roles.Metadata(),
	})
	if err != nil {
		return "", fmt.Errorf("issue token for %s: %w", identity, err)
	}
	return token, nil
}
