package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/bnema/atm-server/internal/domain"
	"github.com/bnema/atm-server/internal/ports"
)

var (
	_ ports.CredentialPolicy = AllowAllPolicy{}
	_ ports.CredentialPolicy = (*HashPolicy)(nil)
)

// AllowAllPolicy accepts any login that names a user.
type AllowAllPolicy struct{}

func (AllowAllPolicy) Validate(_ context.Context, credentials domain.Credentials) error {
	if credentials.UserID == "" {
		return fmt.Errorf("%w: empty user id", domain.ErrLoginRejected)
	}
	return nil
}

// HashPolicy accepts a login when the presented hash equals the stored one.
type HashPolicy struct {
	repo ports.CredentialRepository
}

func NewHashPolicy(repo ports.CredentialRepository) *HashPolicy {
	return &HashPolicy{repo: repo}
}

func (p *HashPolicy) Validate(ctx context.Context, credentials domain.Credentials) error {
	if !credentials.Valid() {
		return fmt.Errorf("%w: missing user id or credential hash", domain.ErrLoginRejected)
	}

	stored, err := p.repo.GetHash(ctx, credentials.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownUser) {
			return fmt.Errorf("%w: %w", domain.ErrLoginRejected, err)
		}
		return fmt.Errorf("get credential hash: %w", err)
	}

	if subtle.ConstantTimeCompare(stored, credentials.Hash) != 1 {
		return fmt.Errorf("%w: credential mismatch for %q", domain.ErrLoginRejected, credentials.UserID)
	}

	return nil
}
