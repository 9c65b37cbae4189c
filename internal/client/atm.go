package client

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/atm-server/internal/domain"
	"github.com/bnema/atm-server/internal/ports"
	"github.com/shopspring/decimal"
)

var (
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrRequestRejected = errors.New("request rejected")
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// HashPassword is the credential hash the server compares on login.
func HashPassword(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return sum[:]
}

// ATM is a blocking client: each call sends one request and waits for its
// reply. Calls on one ATM are serialized.
type ATM struct {
	conn    ports.Connection
	replies chan ports.Message

	mu        sync.Mutex
	sessionID domain.SessionID
	userID    string
}

var _ ports.MessageListener = (*ATM)(nil)

func NewATM(conn ports.Connection) *ATM {
	atm := &ATM{
		conn:      conn,
		replies:   make(chan ports.Message, 1),
		sessionID: domain.InvalidSessionID,
	}
	conn.SetMessageListener(atm)

	return atm
}

// OnMessage never blocks the sender. A reply nobody waits for is dropped.
func (a *ATM) OnMessage(msg ports.Message) {
	select {
	case a.replies <- msg:
	default:
	}
}

func (a *ATM) SessionID() domain.SessionID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

func (a *ATM) Login(ctx context.Context, userID, password string) (domain.SessionID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	reply, err := a.request(ctx, ports.Message{
		Type:        ports.MessageLogin,
		UserID:      userID,
		Credentials: HashPassword(password),
	})
	if err != nil {
		return domain.InvalidSessionID, fmt.Errorf("login %q: %w", userID, err)
	}
	if reply.Type != ports.MessageLogin {
		return domain.InvalidSessionID, fmt.Errorf("login %q: %w: %s", userID, ErrUnexpectedReply, reply.Type)
	}
	if reply.SessionID == domain.InvalidSessionID {
		return domain.InvalidSessionID, fmt.Errorf("login %q: %w: %s", userID, ErrRequestRejected, reply.Reason)
	}

	a.sessionID = reply.SessionID
	a.userID = userID
	return a.sessionID, nil
}

// Logout is fire and forget; the server sends no reply.
func (a *ATM) Logout() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sessionID == domain.InvalidSessionID {
		return ErrNotLoggedIn
	}

	err := a.conn.SendMessage(ports.Message{Type: ports.MessageLogout, SessionID: a.sessionID})
	a.sessionID = domain.InvalidSessionID
	if err != nil {
		return fmt.Errorf("logout %q: %w", a.userID, err)
	}

	return nil
}

func (a *ATM) Increase(ctx context.Context, amount decimal.Decimal) error {
	return a.mutate(ctx, ports.Message{Type: ports.MessageIncrease, Amount: amount})
}

func (a *ATM) Withdraw(ctx context.Context, amount decimal.Decimal) error {
	return a.mutate(ctx, ports.Message{Type: ports.MessageWithdraw, Amount: amount})
}

func (a *ATM) TransferTo(ctx context.Context, to domain.AccountID, amount decimal.Decimal) error {
	return a.mutate(ctx, ports.Message{Type: ports.MessageTransferTo, Amount: amount, ToAccountID: to})
}

func (a *ATM) GetValue(ctx context.Context) (decimal.Decimal, error) {
	reply, err := a.session(ctx, ports.Message{Type: ports.MessageGetValue})
	if err != nil {
		return decimal.Zero, err
	}
	if reply.Type != ports.MessageGetValue {
		return decimal.Zero, fmt.Errorf("get value: %w: %s", ErrUnexpectedReply, reply.Type)
	}

	return reply.Amount, nil
}

func (a *ATM) mutate(ctx context.Context, msg ports.Message) error {
	reply, err := a.session(ctx, msg)
	if err != nil {
		return err
	}
	if reply.Type != ports.MessageAck {
		return fmt.Errorf("%s: %w: %s", msg.Type, ErrUnexpectedReply, reply.Type)
	}

	return nil
}

// session sends a request on behalf of the logged in session and turns a
// NAK into ErrRequestRejected.
func (a *ATM) session(ctx context.Context, msg ports.Message) (ports.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sessionID == domain.InvalidSessionID {
		return ports.Message{}, ErrNotLoggedIn
	}
	msg.SessionID = a.sessionID

	reply, err := a.request(ctx, msg)
	if err != nil {
		return ports.Message{}, fmt.Errorf("%s: %w", msg.Type, err)
	}
	if reply.Type == ports.MessageNak {
		return ports.Message{}, fmt.Errorf("%s: %w: %s", msg.Type, ErrRequestRejected, reply.Reason)
	}

	return reply, nil
}

func (a *ATM) request(ctx context.Context, msg ports.Message) (ports.Message, error) {
	a.drain()

	if err := a.conn.SendMessage(msg); err != nil {
		return ports.Message{}, fmt.Errorf("send request: %w", err)
	}

	select {
	case reply := <-a.replies:
		return reply, nil
	case <-ctx.Done():
		return ports.Message{}, ctx.Err()
	}
}

// drain discards a reply left over from a request that timed out.
func (a *ATM) drain() {
	select {
	case <-a.replies:
	default:
	}
}
