package common

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates an invalid meter construction parameter
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrServer indicates the exposition listener could not be started
	ErrServer = errors.New("server failure")

	// ErrDuplicateName indicates a metric name already defined within its kind
	ErrDuplicateName = errors.New("duplicate metric name")

	// ErrInvalidParameter indicates malformed buckets, objectives, labels or values
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotFound indicates a mutation referencing an undefined metric
	ErrNotFound = errors.New("metric not found")
)

// MetricError wraps a failure with the operation and metric name it belongs to.
type MetricError struct {
	Op   string
	Name string
	Err  error
}

func (e *MetricError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("metrics: %s %s: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("metrics: %s: %v", e.Op, e.Err)
}

func (e *MetricError) Unwrap() error {
	return e.Err
}

func (e *MetricError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewMetricError(op, name string, err error) *MetricError {
	return &MetricError{
		Op:   op,
		Name: name,
		Err:  err,
	}
}
