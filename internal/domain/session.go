package domain

import "bytes"

type SessionID int64

// InvalidSessionID is returned by a rejected login and carried by proxy sessions.
const InvalidSessionID SessionID = -1

// Route is the opaque reply address of the connection that owns a session.
type Route string

type Session struct {
	id             SessionID
	route          Route
	account        *Account
	credentialHash []byte
}

func NewSession(id SessionID, route Route, account *Account, credentialHash []byte) *Session {
	return &Session{
		id:             id,
		route:          route,
		account:        account,
		credentialHash: bytes.Clone(credentialHash),
	}
}

// NewProxySession addresses an account that is not logged in, such as a
// transfer destination. Proxy sessions are never registered.
func NewProxySession(account *Account) *Session {
	return &Session{id: InvalidSessionID, account: account}
}

func (s *Session) ID() SessionID {
	return s.id
}

func (s *Session) Route() Route {
	return s.route
}

func (s *Session) Account() *Account {
	return s.account
}

func (s *Session) IsProxy() bool {
	return s.id == InvalidSessionID
}

func (s *Session) CredentialHash() []byte {
	return bytes.Clone(s.credentialHash)
}
