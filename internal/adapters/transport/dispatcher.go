package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/atm-server/internal/domain"
	"github.com/bnema/atm-server/internal/ports"
	"go.uber.org/zap"
)

const loginTimeout = 5 * time.Second

var ErrUnsupportedMessage = errors.New("unsupported message type")

// Processor is the part of the processing service the dispatcher drives.
type Processor interface {
	UserLogin(ctx context.Context, credentials domain.Credentials) (domain.SessionID, error)
	ProcessOperation(sessionID domain.SessionID, op *domain.Operation) error
}

// Dispatcher turns inbound requests into operations and completed
// operations into replies on the same connection.
type Dispatcher struct {
	conn      ports.Connection
	sessions  ports.SessionDirectory
	processor Processor
	logger    *zap.Logger
}

var (
	_ ports.MessageListener = (*Dispatcher)(nil)
	_ ports.ResultCallback  = (*Dispatcher)(nil)
)

func NewDispatcher(conn ports.Connection, sessions ports.SessionDirectory, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		conn:     conn,
		sessions: sessions,
		logger:   logger,
	}
}

// Attach binds the processor and starts listening on the connection. The
// processor usually takes the dispatcher as its result callback, hence the
// two-step setup.
func (d *Dispatcher) Attach(processor Processor) {
	d.processor = processor
	d.conn.SetMessageListener(d)
}

func (d *Dispatcher) OnMessage(msg ports.Message) {
	switch msg.Type {
	case ports.MessageLogin:
		d.handleLogin(msg)
	case ports.MessageLogout:
		d.handleLogout(msg)
	case ports.MessageIncrease, ports.MessageWithdraw, ports.MessageTransferTo, ports.MessageGetValue:
		if err := d.handleOperation(msg); err != nil {
			d.logger.Debug("operation refused",
				zap.Stringer("type", msg.Type),
				zap.Int64("session_id", int64(msg.SessionID)),
				zap.Error(err),
			)
			d.send(nak(msg.Route, msg.SessionID, err))
		}
	default:
		d.send(nak(msg.Route, msg.SessionID, fmt.Errorf("%w: %s", ErrUnsupportedMessage, msg.Type)))
	}
}

func (d *Dispatcher) OnOperationResult(op *domain.Operation) {
	session := op.Primary()
	value, err := op.Result()

	reply := ports.Message{Route: session.Route(), SessionID: session.ID()}
	switch {
	case err != nil:
		reply = nak(session.Route(), session.ID(), err)
	case op.Kind() == domain.OperationGetValue:
		reply.Type = ports.MessageGetValue
		reply.Amount = value
	default:
		reply.Type = ports.MessageAck
	}

	d.send(reply)
}

func (d *Dispatcher) handleLogin(msg ports.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
	defer cancel()

	id, err := d.processor.UserLogin(ctx, domain.Credentials{UserID: msg.UserID, Hash: msg.Credentials})
	reply := ports.Message{Type: ports.MessageLogin, Route: msg.Route, SessionID: id, UserID: msg.UserID}
	if err != nil {
		reply.SessionID = domain.InvalidSessionID
		reply.Reason = err.Error()
		d.send(reply)
		return
	}

	d.sessions.CreateSessionByID(id, msg.UserID, msg.Route, msg.Credentials)
	d.logger.Debug("session opened",
		zap.String("user_id", msg.UserID),
		zap.Int64("session_id", int64(id)),
	)
	d.send(reply)
}

func (d *Dispatcher) handleLogout(msg ports.Message) {
	d.sessions.CleanUpSession(msg.SessionID)
	d.logger.Debug("session closed", zap.Int64("session_id", int64(msg.SessionID)))
}

func (d *Dispatcher) handleOperation(msg ports.Message) error {
	session, err := d.sessions.LookupSession(msg.SessionID)
	if err != nil {
		return fmt.Errorf("%w: session %d", domain.ErrInvalidSession, msg.SessionID)
	}

	kind := operationKind(msg.Type)
	var secondary *domain.Session
	if kind == domain.OperationTransferTo {
		if msg.ToAccountID == "" {
			return fmt.Errorf("%w: transfer without destination", domain.ErrInvalidOperation)
		}
		secondary = d.sessions.LookupSessionProxyForAccount(msg.ToAccountID)
	}

	op, err := domain.NewOperation(kind, session, secondary, msg.Amount)
	if err != nil {
		return fmt.Errorf("build operation: %w", err)
	}

	if err := d.processor.ProcessOperation(msg.SessionID, op); err != nil {
		return fmt.Errorf("process operation: %w", err)
	}

	return nil
}

func (d *Dispatcher) send(msg ports.Message) {
	if err := d.conn.SendMessage(msg); err != nil {
		d.logger.Warn("send reply",
			zap.Stringer("type", msg.Type),
			zap.String("route", string(msg.Route)),
			zap.Error(err),
		)
	}
}

func operationKind(t ports.MessageType) domain.OperationKind {
	switch t {
	case ports.MessageIncrease:
		return domain.OperationIncrease
	case ports.MessageWithdraw:
		return domain.OperationWithdraw
	case ports.MessageTransferTo:
		return domain.OperationTransferTo
	case ports.MessageGetValue:
		return domain.OperationGetValue
	default:
		return 0
	}
}

func nak(route domain.Route, sessionID domain.SessionID, err error) ports.Message {
	return ports.Message{Type: ports.MessageNak, Route: route, SessionID: sessionID, Reason: err.Error()}
}
