package domain

// Credentials carry a user id and a password hash computed by the client.
type Credentials struct {
	UserID string
	Hash   []byte
}

func (c Credentials) Valid() bool {
	return c.UserID != "" && len(c.Hash) > 0
}
