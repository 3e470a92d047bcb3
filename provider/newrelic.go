package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devopsext/utils"
	"github.com/newrelic/newrelic-telemetry-sdk-go/telemetry"

	"github.com/obskit/metrics/common"
)

type NewRelicOptions struct {
	ApiKey      string
	ServiceName string
	Environment string
	Version     string
	Attributes  string
	Debug       bool
}

type NewRelicMeterOptions struct {
	NewRelicOptions
	Endpoint string
	Prefix   string
}

type newRelicCounter struct {
	meter  *NewRelicMeter
	name   string
	labels []string
}

type newRelicGaugeSeries struct {
	mu    sync.Mutex
	value float64
}

type newRelicGauge struct {
	meter  *NewRelicMeter
	name   string
	labels []string

	mu     sync.Mutex
	series map[string]*newRelicGaugeSeries
}

type newRelicObserver struct {
	meter  *NewRelicMeter
	name   string
	labels []string
}

// NewRelicMeter pushes mutations to the NewRelic metric API through a
// telemetry harvester. Histogram and summary observations both land as
// single-observation summary records; the quantile estimation happens on
// the NewRelic side.
type NewRelicMeter struct {
	harvester *telemetry.Harvester
	options   NewRelicMeterOptions
	logger    common.Logger

	mu         sync.RWMutex
	counters   map[string]*newRelicCounter
	gauges     map[string]*newRelicGauge
	histograms map[string]*newRelicObserver
	summaries  map[string]*newRelicObserver
}

func (nrm *NewRelicMeter) buildName(name string) string {

	var names []string

	if !utils.IsEmpty(nrm.options.Prefix) {
		names = append(names, nrm.options.Prefix)
	}
	names = append(names, name)
	return strings.Join(names, ".")
}

func buildAttributes(names []string, labels common.Labels) (map[string]interface{}, error) {

	if err := common.ValidateLabelValues(names, labels); err != nil {
		return nil, err
	}

	m := make(map[string]interface{})
	for k, v := range labels {
		m[k] = v
	}
	return m, nil
}

func (nrg *newRelicGauge) seriesFor(key string) *newRelicGaugeSeries {

	nrg.mu.Lock()
	defer nrg.mu.Unlock()

	s, ok := nrg.series[key]
	if !ok {
		s = &newRelicGaugeSeries{}
		nrg.series[key] = s
	}
	return s
}

func (s *newRelicGaugeSeries) add(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value += delta
	return s.value
}

func (nrm *NewRelicMeter) DefineCounter(name, description string, labels ...string) error {

	const op = "define counter"

	if err := validateDefinition(op, name, labels, ""); err != nil {
		return err
	}

	nrm.mu.Lock()
	defer nrm.mu.Unlock()

	if _, ok := nrm.counters[name]; ok {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	nrm.counters[name] = &newRelicCounter{
		meter:  nrm,
		name:   nrm.buildName(name),
		labels: labels,
	}
	return nil
}

func (nrm *NewRelicMeter) DefineGauge(name, description string, labels ...string) error {

	const op = "define gauge"

	if err := validateDefinition(op, name, labels, ""); err != nil {
		return err
	}

	nrm.mu.Lock()
	defer nrm.mu.Unlock()

	if _, ok := nrm.gauges[name]; ok {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	nrm.gauges[name] = &newRelicGauge{
		meter:  nrm,
		name:   nrm.buildName(name),
		labels: labels,
		series: make(map[string]*newRelicGaugeSeries),
	}
	return nil
}

func (nrm *NewRelicMeter) DefineHistogram(name, description string, buckets []float64, labels ...string) error {

	const op = "define histogram"

	if err := validateDefinition(op, name, labels, "le"); err != nil {
		return err
	}
	if err := common.ValidateBuckets(buckets); err != nil {
		return common.NewMetricError(op, name, err)
	}

	nrm.mu.Lock()
	defer nrm.mu.Unlock()

	if _, ok := nrm.histograms[name]; ok {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	nrm.histograms[name] = &newRelicObserver{
		meter:  nrm,
		name:   nrm.buildName(name),
		labels: labels,
	}
	return nil
}

func (nrm *NewRelicMeter) DefineSummary(name, description string, objectives map[float64]float64, labels ...string) error {

	const op = "define summary"

	if err := validateDefinition(op, name, labels, "quantile"); err != nil {
		return err
	}
	if err := common.ValidateObjectives(objectives); err != nil {
		return common.NewMetricError(op, name, err)
	}

	nrm.mu.Lock()
	defer nrm.mu.Unlock()

	if _, ok := nrm.summaries[name]; ok {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	nrm.summaries[name] = &newRelicObserver{
		meter:  nrm,
		name:   nrm.buildName(name),
		labels: labels,
	}
	return nil
}

func (nrm *NewRelicMeter) IncrementCounter(name string, amount float64, labels common.Labels) error {

	const op = "increment counter"

	nrm.mu.RLock()
	entry, ok := nrm.counters[name]
	nrm.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}

	if amount < 0 {
		return common.NewMetricError(op, name,
			fmt.Errorf("%w: counter amount must not be negative, got %v", common.ErrInvalidParameter, amount))
	}

	attributes, err := buildAttributes(entry.labels, labels)
	if err != nil {
		return common.NewMetricError(op, name, err)
	}

	nrm.harvester.RecordMetric(telemetry.Count{
		Timestamp:  time.Now(),
		Name:       entry.name,
		Value:      amount,
		Attributes: attributes,
	})
	return nil
}

func (nrm *NewRelicMeter) IncrementGauge(name string, amount float64, labels common.Labels) error {
	return nrm.moveGauge("increment gauge", name, amount, labels)
}

func (nrm *NewRelicMeter) DecrementGauge(name string, amount float64, labels common.Labels) error {
	return nrm.moveGauge("decrement gauge", name, -amount, labels)
}

func (nrm *NewRelicMeter) moveGauge(op, name string, delta float64, labels common.Labels) error {

	nrm.mu.RLock()
	entry, ok := nrm.gauges[name]
	nrm.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}

	attributes, err := buildAttributes(entry.labels, labels)
	if err != nil {
		return common.NewMetricError(op, name, err)
	}

	value := entry.seriesFor(buildIdent(entry.name, labels)).add(delta)

	nrm.harvester.RecordMetric(telemetry.Gauge{
		Timestamp:  time.Now(),
		Name:       entry.name,
		Value:      value,
		Attributes: attributes,
	})
	return nil
}

func (nrm *NewRelicMeter) RecordHistogram(name string, value float64, labels common.Labels) error {

	const op = "record histogram"

	nrm.mu.RLock()
	entry, ok := nrm.histograms[name]
	nrm.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}
	return nrm.observe(op, entry, value, labels)
}

func (nrm *NewRelicMeter) RecordSummary(name string, value float64, labels common.Labels) error {

	const op = "record summary"

	nrm.mu.RLock()
	entry, ok := nrm.summaries[name]
	nrm.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}
	return nrm.observe(op, entry, value, labels)
}

func (nrm *NewRelicMeter) observe(op string, entry *newRelicObserver, value float64, labels common.Labels) error {

	attributes, err := buildAttributes(entry.labels, labels)
	if err != nil {
		return common.NewMetricError(op, entry.name, err)
	}

	nrm.harvester.RecordMetric(telemetry.Summary{
		Timestamp:  time.Now(),
		Name:       entry.name,
		Count:      1,
		Sum:        value,
		Min:        value,
		Max:        value,
		Attributes: attributes,
	})
	return nil
}

func (nrm *NewRelicMeter) Stop() {
	if nrm.harvester != nil {
		nrm.harvester.HarvestNow(context.Background())
	}
}

func NewNewRelicMeter(options NewRelicMeterOptions, logger common.Logger, stdout *Stdout) *NewRelicMeter {

	if logger == nil {
		logger = stdout
	}

	if utils.IsEmpty(options.Endpoint) {
		stdout.Debug("NewRelic meter is disabled.")
		return nil
	}

	attributes := make(map[string]interface{})
	for k, v := range common.GetKeyValues(options.Attributes) {
		attributes[k] = v
	}

	var cfgs []func(*telemetry.Config)
	cfgs = append(cfgs,
		telemetry.ConfigAPIKey(options.ApiKey),
		telemetry.ConfigMetricsURLOverride(options.Endpoint),
		telemetry.ConfigCommonAttributes(attributes),
	)

	if options.Debug {
		cfgs = append(cfgs,
			telemetry.ConfigBasicErrorLogger(stdout.log.Writer()),
			telemetry.ConfigBasicDebugLogger(stdout.log.Writer()),
		)
	}

	harvester, err := telemetry.NewHarvester(cfgs...)
	if err != nil {
		stdout.Error(err)
		return nil
	}

	logger.Info("NewRelic meter is up...")

	return &NewRelicMeter{
		harvester:  harvester,
		options:    options,
		logger:     logger,
		counters:   make(map[string]*newRelicCounter),
		gauges:     make(map[string]*newRelicGauge),
		histograms: make(map[string]*newRelicObserver),
		summaries:  make(map[string]*newRelicObserver),
	}
}
