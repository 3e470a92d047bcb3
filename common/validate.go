package common

import (
	"fmt"
	"math"
	"regexp"
)

var (
	metricNameRegex = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	labelNameRegex  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// ValidateMetricName checks a metric name against the exposition format grammar.
func ValidateMetricName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: metric name cannot be empty", ErrInvalidParameter)
	}
	if !metricNameRegex.MatchString(name) {
		return fmt.Errorf("%w: metric name '%s' is invalid", ErrInvalidParameter, name)
	}
	return nil
}

// ValidateLabelNames checks declared label names for grammar and duplicates.
func ValidateLabelNames(names []string) error {

	seen := make(map[string]bool)
	for _, name := range names {
		if !labelNameRegex.MatchString(name) {
			return fmt.Errorf("%w: label name '%s' is invalid", ErrInvalidParameter, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate label name '%s'", ErrInvalidParameter, name)
		}
		seen[name] = true
	}
	return nil
}

// ValidateLabelValues checks that the supplied label values match the declared
// label names exactly: every declared name has a value and nothing else is set.
func ValidateLabelValues(names []string, labels Labels) error {

	if len(names) == 0 {
		if len(labels) > 0 {
			return fmt.Errorf("%w: metric has no labels but %d were supplied", ErrInvalidParameter, len(labels))
		}
		return nil
	}

	if len(labels) != len(names) {
		return fmt.Errorf("%w: expected %d label values, got %d", ErrInvalidParameter, len(names), len(labels))
	}

	for _, name := range names {
		if _, ok := labels[name]; !ok {
			return fmt.Errorf("%w: missing value for label '%s'", ErrInvalidParameter, name)
		}
	}
	return nil
}

// ValidateBuckets checks histogram bucket boundaries: numeric and strictly increasing.
func ValidateBuckets(buckets []float64) error {

	for i, b := range buckets {
		if math.IsNaN(b) {
			return fmt.Errorf("%w: bucket boundary is not a number", ErrInvalidParameter)
		}
		if i > 0 && b <= buckets[i-1] {
			return fmt.Errorf("%w: bucket boundaries must be in increasing order", ErrInvalidParameter)
		}
	}
	return nil
}

// ValidateObjectives checks summary objectives: quantiles in (0, 1) mapped to
// allowed errors in [0, 1].
func ValidateObjectives(objectives map[float64]float64) error {

	for quantile, allowed := range objectives {
		if math.IsNaN(quantile) || quantile <= 0 || quantile >= 1 {
			return fmt.Errorf("%w: quantile %v must be between 0 and 1 exclusive", ErrInvalidParameter, quantile)
		}
		if math.IsNaN(allowed) || allowed < 0 || allowed > 1 {
			return fmt.Errorf("%w: allowed error %v must be between 0 and 1", ErrInvalidParameter, allowed)
		}
	}
	return nil
}
