package ports

import "github.com/bnema/atm-server/internal/domain"

type SessionDirectory interface {
	CreateSessionByID(id domain.SessionID, userID string, route domain.Route, credentialHash []byte) *domain.Session
	LookupSession(id domain.SessionID) (*domain.Session, error)
	LookupSessionProxyForAccount(id domain.AccountID) *domain.Session
	CleanUpSession(id domain.SessionID)
}

type AccountDirectory interface {
	LookupAccount(id domain.AccountID) (*domain.Account, error)
	Accounts() []*domain.Account
}

type Storage interface {
	SessionDirectory
	AccountDirectory
}
