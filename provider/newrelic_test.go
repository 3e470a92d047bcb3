package provider

import (
	"errors"
	"testing"

	"github.com/obskit/metrics/common"
)

func newRelicNewMeter(t *testing.T) *NewRelicMeter {

	newrelic := NewNewRelicMeter(NewRelicMeterOptions{
		NewRelicOptions: NewRelicOptions{
			ApiKey:      "some-key",
			ServiceName: "test",
			Environment: "test",
			Attributes:  "attr1=value1",
		},
		Endpoint: "http://localhost:9996/metric/v1",
		Prefix:   "test",
	}, nil, prometheusNewStdout())
	if newrelic == nil {
		t.Fatal("Invalid newrelic")
	}
	return newrelic
}

func TestNewRelicDisabled(t *testing.T) {

	newrelic := NewNewRelicMeter(NewRelicMeterOptions{}, nil, prometheusNewStdout())
	if newrelic != nil {
		t.Fatal("Meter created without endpoint")
	}
}

func TestNewRelicMeter(t *testing.T) {

	newrelic := newRelicNewMeter(t)

	if err := newrelic.DefineCounter("requests", "Requests counter", "method"); err != nil {
		t.Fatal(err)
	}
	if err := newrelic.DefineGauge("temp", "Temperature gauge"); err != nil {
		t.Fatal(err)
	}
	if err := newrelic.DefineHistogram("latency", "Latency histogram", []float64{0.1, 0.5, 1.0}); err != nil {
		t.Fatal(err)
	}
	if err := newrelic.DefineSummary("sizes", "Payload sizes", map[float64]float64{0.5: 0.05}); err != nil {
		t.Fatal(err)
	}

	if err := newrelic.IncrementCounter("requests", 1, common.Labels{"method": "GET"}); err != nil {
		t.Fatal(err)
	}
	if err := newrelic.IncrementGauge("temp", 10, nil); err != nil {
		t.Fatal(err)
	}
	if err := newrelic.DecrementGauge("temp", 3, nil); err != nil {
		t.Fatal(err)
	}
	if err := newrelic.RecordHistogram("latency", 0.3, nil); err != nil {
		t.Fatal(err)
	}
	if err := newrelic.RecordSummary("sizes", 42, nil); err != nil {
		t.Fatal(err)
	}
}

func TestNewRelicErrors(t *testing.T) {

	newrelic := newRelicNewMeter(t)

	if err := newrelic.DefineGauge("temp", "First"); err != nil {
		t.Fatal(err)
	}

	err := newrelic.DefineGauge("temp", "Second")
	if !errors.Is(err, common.ErrDuplicateName) {
		t.Fatalf("Wrong error for duplicate: %v", err)
	}

	err = newrelic.IncrementGauge("temp", 1, common.Labels{"unexpected": "x"})
	if !errors.Is(err, common.ErrInvalidParameter) {
		t.Fatalf("Wrong error for unexpected labels: %v", err)
	}

	err = newrelic.RecordSummary("missing", 1, nil)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("Wrong error for unknown name: %v", err)
	}
}
