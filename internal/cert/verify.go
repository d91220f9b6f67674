package cert

import (
	"context"
	"errors"
)

type Reason string

const (
	ReasonNotFound Reason = "not_found"
	ReasonRevoked  Reason = "revoked"
	ReasonExpired  Reason = "expired"
)

type VerifyResult struct {
	Valid       bool         `json:"valid"`
	Reason      Reason       `json:"reason,omitempty"`
	Certificate *Certificate `json:"certificate,omitempty"`
}

// Verify fails closed: unknown token, revoked status, or a passed expiry all
// yield an invalid result with a specific reason. Lookup is by exact token
// only, so a near-miss of a real token is indistinguishable from a random one.
func (s *Service) Verify(ctx context.Context, token string) (VerifyResult, error) {
	c, err := s.store.ByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return VerifyResult{Valid: false, Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return VerifyResult{}, err
	}
	switch {
	case c.Status == StatusRevoked:
		return VerifyResult{Valid: false, Reason: ReasonRevoked}, nil
	case c.Status == StatusExpired:
		return VerifyResult{Valid: false, Reason: ReasonExpired}, nil
	case c.ExpiresAt != nil && s.now().Unix() > *c.ExpiresAt:
		// Lazy transition; verification already answered correctly either way.
		_ = s.store.SetStatus(ctx, c.ID, StatusExpired)
		return VerifyResult{Valid: false, Reason: ReasonExpired}, nil
	}
	return VerifyResult{Valid: true, Certificate: &c}, nil
}
