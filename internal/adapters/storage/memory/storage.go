package memory

import (
	"sort"
	"sync"

	"github.com/bnema/atm-server/internal/domain"
	"github.com/bnema/atm-server/internal/ports"
)

// Storage keeps the account and session directories. Each directory has its
// own lock; accounts are created lazily and never removed.
type Storage struct {
	accountsMu sync.Mutex
	accounts   map[domain.AccountID]*domain.Account

	sessionsMu sync.RWMutex
	sessions   map[domain.SessionID]*domain.Session
}

var _ ports.Storage = (*Storage)(nil)

func NewStorage() *Storage {
	return &Storage{
		accounts: make(map[domain.AccountID]*domain.Account),
		sessions: make(map[domain.SessionID]*domain.Session),
	}
}

func (s *Storage) CreateSessionByID(id domain.SessionID, userID string, route domain.Route, credentialHash []byte) *domain.Session {
	session := domain.NewSession(id, route, s.getOrCreateAccount(domain.AccountID(userID)), credentialHash)

	s.sessionsMu.Lock()
	s.sessions[id] = session
	s.sessionsMu.Unlock()

	return session
}

func (s *Storage) LookupSession(id domain.SessionID) (*domain.Session, error) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	return session, nil
}

func (s *Storage) LookupSessionProxyForAccount(id domain.AccountID) *domain.Session {
	return domain.NewProxySession(s.getOrCreateAccount(id))
}

func (s *Storage) CleanUpSession(id domain.SessionID) {
	s.sessionsMu.Lock()
	delete(s.sessions, id)
	s.sessionsMu.Unlock()
}

func (s *Storage) LookupAccount(id domain.AccountID) (*domain.Account, error) {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	return account, nil
}

func (s *Storage) Accounts() []*domain.Account {
	s.accountsMu.Lock()
	accounts := make([]*domain.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		accounts = append(accounts, account)
	}
	s.accountsMu.Unlock()

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ID() < accounts[j].ID()
	})

	return accounts
}

func (s *Storage) getOrCreateAccount(id domain.AccountID) *domain.Account {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()

	if account, ok := s.accounts[id]; ok {
		return account
	}

	account := domain.NewAccount(id)
	s.accounts[id] = account
	return account
}
