package application

import (
	"errors"
	"fmt"

	"github.com/bnema/atm-server/internal/domain"
)

var ErrLockContention = errors.New("account lock contention")

// TransactionError is returned by a transaction attempt. Temporary errors are
// retried by the ProcessingService; everything else ends the operation.
type TransactionError struct {
	Kind      domain.OperationKind
	Err       error
	Temporary bool
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s transaction: %v", e.Kind, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

func IsTemporary(err error) bool {
	var txnErr *TransactionError
	return errors.As(err, &txnErr) && txnErr.Temporary
}

func temporaryError(kind domain.OperationKind, err error) error {
	return &TransactionError{Kind: kind, Err: err, Temporary: true}
}

func permanentError(kind domain.OperationKind, err error) error {
	return &TransactionError{Kind: kind, Err: err}
}
