package common

import (
	"errors"
	"math"
	"testing"
)

func TestValidateMetricName(t *testing.T) {

	for _, name := range []string{"requests", "http_requests_total", "_private", "ns:metric"} {
		if err := ValidateMetricName(name); err != nil {
			t.Errorf("Valid name %s rejected: %v", name, err)
		}
	}

	for _, name := range []string{"", "1requests", "with space", "dash-name", "dot.name"} {
		err := ValidateMetricName(name)
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("Invalid name %q accepted: %v", name, err)
		}
	}
}

func TestValidateLabelNames(t *testing.T) {

	if err := ValidateLabelNames([]string{"method", "code"}); err != nil {
		t.Error(err)
	}
	if err := ValidateLabelNames(nil); err != nil {
		t.Error(err)
	}

	err := ValidateLabelNames([]string{"method", "method"})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Duplicate label names accepted: %v", err)
	}

	err = ValidateLabelNames([]string{"1method"})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Invalid label name accepted: %v", err)
	}
}

func TestValidateLabelValues(t *testing.T) {

	names := []string{"method", "code"}

	if err := ValidateLabelValues(names, Labels{"method": "GET", "code": "200"}); err != nil {
		t.Error(err)
	}
	if err := ValidateLabelValues(nil, nil); err != nil {
		t.Error(err)
	}

	cases := []Labels{
		nil,
		{"method": "GET"},
		{"method": "GET", "code": "200", "extra": "x"},
		{"method": "GET", "extra": "x"},
	}
	for i, labels := range cases {
		err := ValidateLabelValues(names, labels)
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("Mismatched labels accepted for case %d: %v", i, err)
		}
	}

	err := ValidateLabelValues(nil, Labels{"unexpected": "x"})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Labels accepted for unlabeled metric: %v", err)
	}
}

func TestValidateBuckets(t *testing.T) {

	if err := ValidateBuckets([]float64{0.1, 0.5, 1.0}); err != nil {
		t.Error(err)
	}
	if err := ValidateBuckets(nil); err != nil {
		t.Error(err)
	}

	err := ValidateBuckets([]float64{0.5, 0.1})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Unordered buckets accepted: %v", err)
	}

	err = ValidateBuckets([]float64{0.1, 0.1})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Repeated boundary accepted: %v", err)
	}

	err = ValidateBuckets([]float64{0.1, math.NaN()})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("NaN boundary accepted: %v", err)
	}
}

func TestValidateObjectives(t *testing.T) {

	if err := ValidateObjectives(map[float64]float64{0.5: 0.05, 0.99: 0.001}); err != nil {
		t.Error(err)
	}
	if err := ValidateObjectives(nil); err != nil {
		t.Error(err)
	}

	cases := []map[float64]float64{
		{0: 0.05},
		{1: 0.05},
		{1.5: 0.05},
		{-0.5: 0.05},
		{0.5: -0.1},
		{0.5: 1.1},
		{math.NaN(): 0.05},
		{0.5: math.NaN()},
	}
	for i, objectives := range cases {
		err := ValidateObjectives(objectives)
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("Invalid objectives accepted for case %d: %v", i, err)
		}
	}
}
