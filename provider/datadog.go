package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/devopsext/utils"

	"github.com/obskit/metrics/common"
)

type DataDogOptions struct {
	ServiceName string
	Environment string
	Version     string
	Tags        string
	Debug       bool
}

type DataDogMeterOptions struct {
	DataDogOptions
	AgentHost string
	AgentPort int
	Prefix    string
}

type dataDogCounter struct {
	meter  *DataDogMeter
	name   string
	labels []string
}

type dataDogGaugeSeries struct {
	mu    sync.Mutex
	value float64
}

type dataDogGauge struct {
	meter  *DataDogMeter
	name   string
	labels []string

	mu     sync.Mutex
	series map[string]*dataDogGaugeSeries
}

type dataDogObserver struct {
	meter        *DataDogMeter
	name         string
	labels       []string
	distribution bool
}

// DataDogMeter pushes mutations to a DataDog agent over dogstatsd.
// Counters are integral there, so fractional amounts are truncated.
type DataDogMeter struct {
	options    DataDogMeterOptions
	logger     common.Logger
	client     *statsd.Client
	globalTags []string

	mu         sync.RWMutex
	counters   map[string]*dataDogCounter
	gauges     map[string]*dataDogGauge
	histograms map[string]*dataDogObserver
	summaries  map[string]*dataDogObserver
}

func (ddm *DataDogMeter) buildName(name string) string {

	var names []string

	if !utils.IsEmpty(ddm.options.Prefix) {
		names = append(names, ddm.options.Prefix)
	}
	names = append(names, name)
	return strings.Join(names, ".")
}

func (ddm *DataDogMeter) buildTags(names []string, labels common.Labels) ([]string, error) {

	if err := common.ValidateLabelValues(names, labels); err != nil {
		return nil, err
	}

	tags := append([]string{}, ddm.globalTags...)

	var arr []string
	for k, v := range labels {
		arr = append(arr, fmt.Sprintf("%s:%s", k, v))
	}
	sort.Strings(arr)
	return append(tags, arr...), nil
}

func (s *dataDogGaugeSeries) add(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value += delta
	return s.value
}

func (ddg *dataDogGauge) seriesFor(key string) *dataDogGaugeSeries {

	ddg.mu.Lock()
	defer ddg.mu.Unlock()

	s, ok := ddg.series[key]
	if !ok {
		s = &dataDogGaugeSeries{}
		ddg.series[key] = s
	}
	return s
}

func (ddm *DataDogMeter) DefineCounter(name, description string, labels ...string) error {

	const op = "define counter"

	if err := validateDefinition(op, name, labels, ""); err != nil {
		return err
	}

	ddm.mu.Lock()
	defer ddm.mu.Unlock()

	if _, ok := ddm.counters[name]; ok {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	ddm.counters[name] = &dataDogCounter{
		meter:  ddm,
		name:   ddm.buildName(name),
		labels: labels,
	}
	return nil
}

func (ddm *DataDogMeter) DefineGauge(name, description string, labels ...string) error {

	const op = "define gauge"

	if err := validateDefinition(op, name, labels, ""); err != nil {
		return err
	}

	ddm.mu.Lock()
	defer ddm.mu.Unlock()

	if _, ok := ddm.gauges[name]; ok {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	ddm.gauges[name] = &dataDogGauge{
		meter:  ddm,
		name:   ddm.buildName(name),
		labels: labels,
		series: make(map[string]*dataDogGaugeSeries),
	}
	return nil
}

func (ddm *DataDogMeter) DefineHistogram(name, description string, buckets []float64, labels ...string) error {

	const op = "define histogram"

	if err := validateDefinition(op, name, labels, "le"); err != nil {
		return err
	}
	if err := common.ValidateBuckets(buckets); err != nil {
		return common.NewMetricError(op, name, err)
	}

	ddm.mu.Lock()
	defer ddm.mu.Unlock()

	if _, ok := ddm.histograms[name]; ok {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	ddm.histograms[name] = &dataDogObserver{
		meter:  ddm,
		name:   ddm.buildName(name),
		labels: labels,
	}
	return nil
}

func (ddm *DataDogMeter) DefineSummary(name, description string, objectives map[float64]float64, labels ...string) error {

	const op = "define summary"

	if err := validateDefinition(op, name, labels, "quantile"); err != nil {
		return err
	}
	if err := common.ValidateObjectives(objectives); err != nil {
		return common.NewMetricError(op, name, err)
	}

	ddm.mu.Lock()
	defer ddm.mu.Unlock()

	if _, ok := ddm.summaries[name]; ok {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	ddm.summaries[name] = &dataDogObserver{
		meter:        ddm,
		name:         ddm.buildName(name),
		labels:       labels,
		distribution: true,
	}
	return nil
}

func (ddm *DataDogMeter) IncrementCounter(name string, amount float64, labels common.Labels) error {

	const op = "increment counter"

	ddm.mu.RLock()
	entry, ok := ddm.counters[name]
	ddm.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}

	if amount < 0 {
		return common.NewMetricError(op, name,
			fmt.Errorf("%w: counter amount must not be negative, got %v", common.ErrInvalidParameter, amount))
	}

	tags, err := ddm.buildTags(entry.labels, labels)
	if err != nil {
		return common.NewMetricError(op, name, err)
	}

	if err := ddm.client.Count(entry.name, int64(amount), tags, 1); err != nil {
		ddm.logger.Error(err)
	}
	return nil
}

func (ddm *DataDogMeter) IncrementGauge(name string, amount float64, labels common.Labels) error {
	return ddm.moveGauge("increment gauge", name, amount, labels)
}

func (ddm *DataDogMeter) DecrementGauge(name string, amount float64, labels common.Labels) error {
	return ddm.moveGauge("decrement gauge", name, -amount, labels)
}

func (ddm *DataDogMeter) moveGauge(op, name string, delta float64, labels common.Labels) error {

	ddm.mu.RLock()
	entry, ok := ddm.gauges[name]
	ddm.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}

	tags, err := ddm.buildTags(entry.labels, labels)
	if err != nil {
		return common.NewMetricError(op, name, err)
	}

	// dogstatsd gauges are absolute, so the series value is tracked locally
	value := entry.seriesFor(strings.Join(tags, ",")).add(delta)

	if err := ddm.client.Gauge(entry.name, value, tags, 1); err != nil {
		ddm.logger.Error(err)
	}
	return nil
}

func (ddm *DataDogMeter) RecordHistogram(name string, value float64, labels common.Labels) error {

	const op = "record histogram"

	ddm.mu.RLock()
	entry, ok := ddm.histograms[name]
	ddm.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}
	return ddm.observe(op, entry, value, labels)
}

func (ddm *DataDogMeter) RecordSummary(name string, value float64, labels common.Labels) error {

	const op = "record summary"

	ddm.mu.RLock()
	entry, ok := ddm.summaries[name]
	ddm.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}
	return ddm.observe(op, entry, value, labels)
}

func (ddm *DataDogMeter) observe(op string, entry *dataDogObserver, value float64, labels common.Labels) error {

	tags, err := ddm.buildTags(entry.labels, labels)
	if err != nil {
		return common.NewMetricError(op, entry.name, err)
	}

	if entry.distribution {
		err = ddm.client.Distribution(entry.name, value, tags, 1)
	} else {
		err = ddm.client.Histogram(entry.name, value, tags, 1)
	}
	if err != nil {
		ddm.logger.Error(err)
	}
	return nil
}

func (ddm *DataDogMeter) Stop() {
	if ddm.client != nil {
		ddm.client.Close()
	}
}

func NewDataDogMeter(options DataDogMeterOptions, logger common.Logger, stdout *Stdout) *DataDogMeter {

	if logger == nil {
		logger = stdout
	}

	if utils.IsEmpty(options.AgentHost) {
		stdout.Debug("DataDog meter is disabled.")
		return nil
	}

	client, err := statsd.New(fmt.Sprintf("%s:%d", options.AgentHost, options.AgentPort))
	if err != nil {
		logger.Error(err)
		return nil
	}

	var globalTags []string
	for k, v := range common.GetKeyValues(options.Tags) {
		globalTags = append(globalTags, fmt.Sprintf("%s:%s", k, v))
	}
	sort.Strings(globalTags)
	globalTags = append(globalTags,
		fmt.Sprintf("dd.service:%s", options.ServiceName),
		fmt.Sprintf("dd.version:%s", options.Version),
		fmt.Sprintf("dd.env:%s", options.Environment),
	)

	logger.Info("DataDog meter is up...")

	return &DataDogMeter{
		options:    options,
		logger:     logger,
		client:     client,
		globalTags: globalTags,
		counters:   make(map[string]*dataDogCounter),
		gauges:     make(map[string]*dataDogGauge),
		histograms: make(map[string]*dataDogObserver),
		summaries:  make(map[string]*dataDogObserver),
	}
}
