package common

import (
	"errors"
	"testing"
)

func TestIsEmpty(t *testing.T) {

	if !IsEmpty("") || !IsEmpty("   ") {
		t.Error("Blank string is not empty")
	}
	if IsEmpty("x") {
		t.Error("Non blank string is empty")
	}
}

func TestHasElem(t *testing.T) {

	if !HasElem([]string{"le", "quantile"}, "le") {
		t.Error("Element not found")
	}
	if HasElem([]string{"le", "quantile"}, "method") {
		t.Error("Missing element found")
	}
	if HasElem(nil, "le") {
		t.Error("Element found in nil")
	}
}

func TestGetKeyValues(t *testing.T) {

	m := GetKeyValues("tag1=value1, tag2 = value2,broken,=")
	if len(m) != 3 {
		t.Fatalf("Invalid map size: %d", len(m))
	}
	if m["tag1"] != "value1" || m["tag2"] != "value2" {
		t.Fatalf("Invalid map content: %v", m)
	}
}

func TestGetGuid(t *testing.T) {

	first := GetGuid()
	second := GetGuid()

	if IsEmpty(first) || IsEmpty(second) {
		t.Fatal("Guid is empty")
	}
	if first == second {
		t.Fatal("Guids are not unique")
	}
}

func TestMetricError(t *testing.T) {

	err := NewMetricError("define counter", "requests", ErrDuplicateName)

	if !errors.Is(err, ErrDuplicateName) {
		t.Fatal("Sentinel is not matched")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("Wrong sentinel matched")
	}

	var metricErr *MetricError
	if !errors.As(err, &metricErr) {
		t.Fatal("MetricError is not matched")
	}
	if metricErr.Op != "define counter" || metricErr.Name != "requests" {
		t.Fatalf("Invalid error fields: %s %s", metricErr.Op, metricErr.Name)
	}

	if IsEmpty(err.Error()) {
		t.Fatal("Error message is empty")
	}
}
