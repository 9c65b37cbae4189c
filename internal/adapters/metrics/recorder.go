package metrics

import (
	"fmt"

	"github.com/bnema/atm-server/internal/domain"
	"github.com/bnema/atm-server/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "atmd"

// Recorder counts transaction outcomes and retries on a Prometheus registry.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	retries    *prometheus.CounterVec
}

var _ ports.Metrics = (*Recorder)(nil)

func NewRecorder(registry *prometheus.Registry) (*Recorder, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	r := &Recorder{
		registry: registry,
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transaction",
				Name:      "operations_total",
				Help:      "Completed operations by kind and outcome.",
			}, []string{"kind", "outcome"}),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transaction",
				Name:      "retries_total",
				Help:      "Transaction attempts retried after a temporary failure.",
			}, []string{"kind"}),
	}

	for _, collector := range []prometheus.Collector{r.operations, r.retries} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return r, nil
}

func (r *Recorder) OperationCompleted(kind domain.OperationKind, outcome string) {
	r.operations.WithLabelValues(kind.String(), outcome).Inc()
}

func (r *Recorder) AttemptRetried(kind domain.OperationKind) {
	r.retries.WithLabelValues(kind.String()).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Summary is a point-in-time read of the counters.
type Summary struct {
	Outcomes map[string]float64
	Retries  float64
}

// Summarize gathers the registry and folds the counters across kinds.
func (r *Recorder) Summarize() (Summary, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return Summary{}, fmt.Errorf("gather metrics: %w", err)
	}

	summary := Summary{Outcomes: map[string]float64{}}
	for _, family := range families {
		switch family.GetName() {
		case namespace + "_transaction_operations_total":
			for _, metric := range family.GetMetric() {
				for _, label := range metric.GetLabel() {
					if label.GetName() == "outcome" {
						summary.Outcomes[label.GetValue()] += metric.GetCounter().GetValue()
					}
				}
			}
		case namespace + "_transaction_retries_total":
			for _, metric := range family.GetMetric() {
				summary.Retries += metric.GetCounter().GetValue()
			}
		}
	}

	return summary, nil
}
