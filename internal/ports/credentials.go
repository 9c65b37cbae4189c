package ports

import (
	"context"

	"github.com/bnema/atm-server/internal/domain"
)

type CredentialRepository interface {
	GetHash(ctx context.Context, userID string) ([]byte, error)
	Save(ctx context.Context, userID string, hash []byte) error
}

type CredentialPolicy interface {
	Validate(ctx context.Context, credentials domain.Credentials) error
}
