package common

type Labels = map[string]string

// Meter is a named collection of metrics partitioned by kind. Names are
// unique within a kind; a metric must be defined before it can be mutated.
type Meter interface {
	DefineCounter(name, description string, labels ...string) error
	DefineGauge(name, description string, labels ...string) error
	DefineHistogram(name, description string, buckets []float64, labels ...string) error
	DefineSummary(name, description string, objectives map[float64]float64, labels ...string) error

	IncrementCounter(name string, amount float64, labels Labels) error
	IncrementGauge(name string, amount float64, labels Labels) error
	DecrementGauge(name string, amount float64, labels Labels) error
	RecordHistogram(name string, value float64, labels Labels) error
	RecordSummary(name string, value float64, labels Labels) error

	Stop()
}
