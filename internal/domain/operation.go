package domain

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

type OperationKind int

const (
	OperationIncrease OperationKind = iota + 1
	OperationWithdraw
	OperationTransferTo
	OperationGetValue
)

func (k OperationKind) String() string {
	switch k {
	case OperationIncrease:
		return "increase"
	case OperationWithdraw:
		return "withdraw"
	case OperationTransferTo:
		return "transfer_to"
	case OperationGetValue:
		return "get_value"
	default:
		return fmt.Sprintf("operation(%d)", int(k))
	}
}

func (k OperationKind) Valid() bool {
	return k >= OperationIncrease && k <= OperationGetValue
}

// Operation is one requested account action. Its result slot is written once.
type Operation struct {
	kind      OperationKind
	primary   *Session
	secondary *Session
	amount    decimal.Decimal

	once  sync.Once
	done  chan struct{}
	value decimal.Decimal
	err   error
}

func NewOperation(kind OperationKind, primary, secondary *Session, amount decimal.Decimal) (*Operation, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidOperation, int(kind))
	}
	if primary == nil || primary.Account() == nil {
		return nil, ErrInvalidSession
	}

	switch kind {
	case OperationTransferTo:
		if secondary == nil || secondary.Account() == nil {
			return nil, fmt.Errorf("%w: transfer requires a destination", ErrInvalidOperation)
		}
	default:
		if secondary != nil {
			return nil, fmt.Errorf("%w: %s takes a single account", ErrInvalidOperation, kind)
		}
	}

	if kind == OperationGetValue {
		amount = decimal.Zero
	} else if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	return &Operation{
		kind:      kind,
		primary:   primary,
		secondary: secondary,
		amount:    amount,
		done:      make(chan struct{}),
	}, nil
}

func (o *Operation) Kind() OperationKind {
	return o.kind
}

func (o *Operation) Primary() *Session {
	return o.primary
}

// Secondary is set for transfers only.
func (o *Operation) Secondary() *Session {
	return o.secondary
}

func (o *Operation) Amount() decimal.Decimal {
	return o.amount
}

// Complete writes the result slot. Only the first call has an effect; it
// reports whether this call was the one that wrote the result.
func (o *Operation) Complete(value decimal.Decimal, err error) bool {
	written := false
	o.once.Do(func() {
		o.value = value
		o.err = err
		written = true
		close(o.done)
	})

	return written
}

func (o *Operation) Done() <-chan struct{} {
	return o.done
}

// Result returns ErrOperationPending until Complete has been called.
func (o *Operation) Result() (decimal.Decimal, error) {
	select {
	case <-o.done:
		return o.value, o.err
	default:
		return decimal.Zero, ErrOperationPending
	}
}
