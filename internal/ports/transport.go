package ports

import (
	"fmt"

	"github.com/bnema/atm-server/internal/domain"
	"github.com/shopspring/decimal"
)

type MessageType int

const (
	MessageLogin MessageType = iota + 1
	MessageLogout
	MessageIncrease
	MessageWithdraw
	MessageTransferTo
	MessageGetValue
	MessageAck
	MessageNak
)

func (t MessageType) String() string {
	switch t {
	case MessageLogin:
		return "LOGIN"
	case MessageLogout:
		return "LOGOUT"
	case MessageIncrease:
		return "INCREASE"
	case MessageWithdraw:
		return "WITHDRAW"
	case MessageTransferTo:
		return "TRANSFER_TO"
	case MessageGetValue:
		return "GETVALUE"
	case MessageAck:
		return "ACK"
	case MessageNak:
		return "NAK"
	default:
		return fmt.Sprintf("MESSAGE(%d)", int(t))
	}
}

// Message is the decoded form of every request and reply. Route is filled in
// by the connection that sends a request and addresses the reply.
type Message struct {
	Type        MessageType
	Route       domain.Route
	SessionID   domain.SessionID
	UserID      string
	Credentials []byte
	Amount      decimal.Decimal
	ToAccountID domain.AccountID
	Reason      string
}

type MessageListener interface {
	OnMessage(msg Message)
}

type Connection interface {
	SendMessage(msg Message) error
	SetMessageListener(listener MessageListener)
}

// ResultCallback receives every completed operation exactly once.
type ResultCallback interface {
	OnOperationResult(op *domain.Operation)
}

type ResultCallbackFunc func(op *domain.Operation)

func (f ResultCallbackFunc) OnOperationResult(op *domain.Operation) {
	f(op)
}
