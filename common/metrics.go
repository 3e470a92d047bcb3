package common

import "errors"

// Metrics fans every definition and mutation out to the registered meters.
type Metrics struct {
	meters []Meter
}

func (ms *Metrics) DefineCounter(name, description string, labels ...string) error {

	var errs []error
	for _, m := range ms.meters {
		errs = append(errs, m.DefineCounter(name, description, labels...))
	}
	return errors.Join(errs...)
}

func (ms *Metrics) DefineGauge(name, description string, labels ...string) error {

	var errs []error
	for _, m := range ms.meters {
		errs = append(errs, m.DefineGauge(name, description, labels...))
	}
	return errors.Join(errs...)
}

func (ms *Metrics) DefineHistogram(name, description string, buckets []float64, labels ...string) error {

	var errs []error
	for _, m := range ms.meters {
		errs = append(errs, m.DefineHistogram(name, description, buckets, labels...))
	}
	return errors.Join(errs...)
}

func (ms *Metrics) DefineSummary(name, description string, objectives map[float64]float64, labels ...string) error {

	var errs []error
	for _, m := range ms.meters {
		errs = append(errs, m.DefineSummary(name, description, objectives, labels...))
	}
	return errors.Join(errs...)
}

func (ms *Metrics) IncrementCounter(name string, amount float64, labels Labels) error {

	var errs []error
	for _, m := range ms.meters {
		errs = append(errs, m.IncrementCounter(name, amount, labels))
	}
	return errors.Join(errs...)
}

func (ms *Metrics) IncrementGauge(name string, amount float64, labels Labels) error {

	var errs []error
	for _, m := range ms.meters {
		errs = append(errs, m.IncrementGauge(name, amount, labels))
	}
	return errors.Join(errs...)
}

func (ms *Metrics) DecrementGauge(name string, amount float64, labels Labels) error {

	var errs []error
	for _, m := range ms.meters {
		errs = append(errs, m.DecrementGauge(name, amount, labels))
	}
	return errors.Join(errs...)
}

func (ms *Metrics) RecordHistogram(name string, value float64, labels Labels) error {

	var errs []error
	for _, m := range ms.meters {
		errs = append(errs, m.RecordHistogram(name, value, labels))
	}
	return errors.Join(errs...)
}

func (ms *Metrics) RecordSummary(name string, value float64, labels Labels) error {

	var errs []error
	for _, m := range ms.meters {
		errs = append(errs, m.RecordSummary(name, value, labels))
	}
	return errors.Join(errs...)
}

func (ms *Metrics) Stop() {

	for _, m := range ms.meters {
		m.Stop()
	}
}

func (ms *Metrics) Register(m Meter) {
	if ms != nil && m != nil {
		ms.meters = append(ms.meters, m)
	}
}

func NewMetrics() *Metrics {
	return &Metrics{}
}
