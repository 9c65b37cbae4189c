package ports

import "github.com/bnema/atm-server/internal/domain"

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type Metrics interface {
	OperationCompleted(kind domain.OperationKind, outcome string)
	AttemptRetried(kind domain.OperationKind)
}

type NopMetrics struct{}

func (NopMetrics) OperationCompleted(domain.OperationKind, string) {}

func (NopMetrics) AttemptRetried(domain.OperationKind) {}
