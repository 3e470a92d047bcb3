package provider

import (
	"errors"
	"testing"

	"github.com/obskit/metrics/common"
)

func victoriaNewMeter(t *testing.T, prefix string) *VictoriaMetricsMeter {

	victoria, err := NewVictoriaMetricsMeter(VictoriaMetricsOptions{
		URL:    "/metrics",
		Port:   9997,
		Prefix: prefix,
	}, nil, prometheusNewStdout())
	if err != nil {
		t.Fatal(err)
	}
	if victoria == nil {
		t.Fatal("Invalid victoriametrics")
	}
	return victoria
}

func TestVictoriaMetricsInvalidPort(t *testing.T) {

	victoria, err := NewVictoriaMetricsMeter(VictoriaMetricsOptions{
		Port: -1,
	}, nil, prometheusNewStdout())
	if !errors.Is(err, common.ErrInvalidConfig) {
		t.Fatalf("Wrong error for negative port: %v", err)
	}
	if victoria != nil {
		t.Fatal("Meter created for negative port")
	}
}

func TestVictoriaMetricsCounter(t *testing.T) {

	victoria := victoriaNewMeter(t, "test")

	if err := victoria.DefineCounter("requests", "Requests counter"); err != nil {
		t.Fatal(err)
	}
	if err := victoria.IncrementCounter("requests", 1, nil); err != nil {
		t.Fatal(err)
	}
	if err := victoria.IncrementCounter("requests", 4, nil); err != nil {
		t.Fatal(err)
	}

	m, _ := prometheusScrape(t, victoria.Handler())
	if m["test_requests"] != "5" {
		t.Fatalf("Invalid counter value %s, expected 5", m["test_requests"])
	}
}

func TestVictoriaMetricsGauge(t *testing.T) {

	victoria := victoriaNewMeter(t, "test")

	if err := victoria.DefineGauge("temp", "Temperature gauge"); err != nil {
		t.Fatal(err)
	}
	if err := victoria.IncrementGauge("temp", 10, nil); err != nil {
		t.Fatal(err)
	}
	if err := victoria.DecrementGauge("temp", 3, nil); err != nil {
		t.Fatal(err)
	}

	m, _ := prometheusScrape(t, victoria.Handler())
	if m["test_temp"] != "7" {
		t.Fatalf("Invalid gauge value %s, expected 7", m["test_temp"])
	}
}

func TestVictoriaMetricsLabels(t *testing.T) {

	victoria := victoriaNewMeter(t, "test")

	if err := victoria.DefineCounter("req", "Labeled counter", "method"); err != nil {
		t.Fatal(err)
	}

	if err := victoria.IncrementCounter("req", 1, common.Labels{"method": "GET"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := victoria.IncrementCounter("req", 1, common.Labels{"method": "POST"}); err != nil {
			t.Fatal(err)
		}
	}

	m, _ := prometheusScrape(t, victoria.Handler())
	if m[`test_req{method="GET"}`] != "1" {
		t.Fatalf("Invalid GET series %s, expected 1", m[`test_req{method="GET"}`])
	}
	if m[`test_req{method="POST"}`] != "2" {
		t.Fatalf("Invalid POST series %s, expected 2", m[`test_req{method="POST"}`])
	}

	err := victoria.IncrementCounter("req", 1, nil)
	if !errors.Is(err, common.ErrInvalidParameter) {
		t.Fatalf("Wrong error for missing labels: %v", err)
	}
}

func TestVictoriaMetricsSummary(t *testing.T) {

	victoria := victoriaNewMeter(t, "test")

	if err := victoria.DefineSummary("sizes", "Payload sizes", map[float64]float64{0.5: 0.05}); err != nil {
		t.Fatal(err)
	}
	for _, v := range []float64{1, 2, 3} {
		if err := victoria.RecordSummary("sizes", v, nil); err != nil {
			t.Fatal(err)
		}
	}

	m, _ := prometheusScrape(t, victoria.Handler())
	if m["test_sizes_count"] != "3" {
		t.Fatalf("Invalid summary count: %s", m["test_sizes_count"])
	}
	if m["test_sizes_sum"] != "6" {
		t.Fatalf("Invalid summary sum: %s", m["test_sizes_sum"])
	}
}

func TestVictoriaMetricsHistogram(t *testing.T) {

	victoria := victoriaNewMeter(t, "test")

	if err := victoria.DefineHistogram("latency", "Latency histogram", []float64{0.1, 0.5, 1.0}); err != nil {
		t.Fatal(err)
	}
	if err := victoria.RecordHistogram("latency", 0.3, nil); err != nil {
		t.Fatal(err)
	}

	// the engine buckets on its own scheme; count and sum still hold
	m, _ := prometheusScrape(t, victoria.Handler())
	if m["test_latency_count"] != "1" {
		t.Fatalf("Invalid histogram count: %s", m["test_latency_count"])
	}
	if m["test_latency_sum"] != "0.3" {
		t.Fatalf("Invalid histogram sum: %s", m["test_latency_sum"])
	}
}

func TestVictoriaMetricsDuplicateName(t *testing.T) {

	victoria := victoriaNewMeter(t, "")

	if err := victoria.DefineCounter("x", "First"); err != nil {
		t.Fatal(err)
	}

	err := victoria.DefineCounter("x", "Second")
	if !errors.Is(err, common.ErrDuplicateName) {
		t.Fatalf("Wrong error for duplicate: %v", err)
	}

	// the underlying set keys series by name alone, so reuse across kinds
	// is rejected here as well
	err = victoria.DefineGauge("x", "Gauge with the counter name")
	if !errors.Is(err, common.ErrDuplicateName) {
		t.Fatalf("Wrong error for cross kind reuse: %v", err)
	}
}

func TestVictoriaMetricsNotFound(t *testing.T) {

	victoria := victoriaNewMeter(t, "")

	checks := []error{
		victoria.IncrementCounter("missing", 1, nil),
		victoria.IncrementGauge("missing", 1, nil),
		victoria.DecrementGauge("missing", 1, nil),
		victoria.RecordHistogram("missing", 1, nil),
		victoria.RecordSummary("missing", 1, nil),
	}
	for i, err := range checks {
		if !errors.Is(err, common.ErrNotFound) {
			t.Fatalf("Wrong error for check %d: %v", i, err)
		}
	}
}
