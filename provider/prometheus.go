package provider

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/devopsext/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/obskit/metrics/common"
)

type PrometheusOptions struct {
	URL     string
	Port    int
	Prefix  string
	Version string
}

type prometheusCounter struct {
	counter prometheus.Counter
	vec     *prometheus.CounterVec
	labels  []string
}

type prometheusGauge struct {
	gauge  prometheus.Gauge
	vec    *prometheus.GaugeVec
	labels []string
}

type prometheusObserver struct {
	observer prometheus.Observer
	vec      prometheus.ObserverVec
	labels   []string
}

// PrometheusMeter keeps one registry per metric kind, so a name is unique
// within its kind but may be reused across kinds. The kind registries are
// merged for exposition; a cross-kind reuse surfaces as a gather warning,
// not as a definition failure.
type PrometheusMeter struct {
	options  PrometheusOptions
	logger   common.Logger
	listener net.Listener

	mu         sync.RWMutex
	counters   map[string]*prometheusCounter
	gauges     map[string]*prometheusGauge
	histograms map[string]*prometheusObserver
	summaries  map[string]*prometheusObserver

	counterRegistry   *prometheus.Registry
	gaugeRegistry     *prometheus.Registry
	histogramRegistry *prometheus.Registry
	summaryRegistry   *prometheus.Registry
}

func (pc *prometheusCounter) series(labels common.Labels) (prometheus.Counter, error) {

	if err := common.ValidateLabelValues(pc.labels, labels); err != nil {
		return nil, err
	}
	if pc.vec == nil {
		return pc.counter, nil
	}
	c, err := pc.vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidParameter, err)
	}
	return c, nil
}

func (pg *prometheusGauge) series(labels common.Labels) (prometheus.Gauge, error) {

	if err := common.ValidateLabelValues(pg.labels, labels); err != nil {
		return nil, err
	}
	if pg.vec == nil {
		return pg.gauge, nil
	}
	g, err := pg.vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidParameter, err)
	}
	return g, nil
}

func (po *prometheusObserver) series(labels common.Labels) (prometheus.Observer, error) {

	if err := common.ValidateLabelValues(po.labels, labels); err != nil {
		return nil, err
	}
	if po.vec == nil {
		return po.observer, nil
	}
	o, err := po.vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidParameter, err)
	}
	return o, nil
}

func (p *PrometheusMeter) buildName(name string) string {

	if utils.IsEmpty(p.options.Prefix) {
		return name
	}
	return fmt.Sprintf("%s_%s", p.options.Prefix, name)
}

func (p *PrometheusMeter) register(op, name string, registry *prometheus.Registry, collector prometheus.Collector) error {

	if err := registry.Register(collector); err != nil {
		are := prometheus.AlreadyRegisteredError{}
		if errors.As(err, &are) {
			return common.NewMetricError(op, name, common.ErrDuplicateName)
		}
		return common.NewMetricError(op, name, fmt.Errorf("%w: %v", common.ErrInvalidParameter, err))
	}
	return nil
}

func validateDefinition(op, name string, labels []string, reserved string) error {

	if err := common.ValidateMetricName(name); err != nil {
		return common.NewMetricError(op, name, err)
	}
	if err := common.ValidateLabelNames(labels); err != nil {
		return common.NewMetricError(op, name, err)
	}
	if !utils.IsEmpty(reserved) && common.HasElem(labels, reserved) {
		return common.NewMetricError(op, name,
			fmt.Errorf("%w: label name '%s' is reserved", common.ErrInvalidParameter, reserved))
	}
	return nil
}

func (p *PrometheusMeter) DefineCounter(name, description string, labels ...string) error {

	const op = "define counter"

	if err := validateDefinition(op, name, labels, ""); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.counters[name]; ok {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	opts := prometheus.CounterOpts{
		Name: p.buildName(name),
		Help: description,
	}

	entry := &prometheusCounter{labels: labels}
	var collector prometheus.Collector
	if len(labels) > 0 {
		vec := prometheus.NewCounterVec(opts, labels)
		entry.vec = vec
		collector = vec
	} else {
		counter := prometheus.NewCounter(opts)
		entry.counter = counter
		collector = counter
	}

	if err := p.register(op, name, p.counterRegistry, collector); err != nil {
		return err
	}
	p.counters[name] = entry
	return nil
}

func (p *PrometheusMeter) DefineGauge(name, description string, labels ...string) error {

	const op = "define gauge"

	if err := validateDefinition(op, name, labels, ""); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.gauges[name]; ok {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	opts := prometheus.GaugeOpts{
		Name: p.buildName(name),
		Help: description,
	}

	entry := &prometheusGauge{labels: labels}
	var collector prometheus.Collector
	if len(labels) > 0 {
		vec := prometheus.NewGaugeVec(opts, labels)
		entry.vec = vec
		collector = vec
	} else {
		gauge := prometheus.NewGauge(opts)
		entry.gauge = gauge
		collector = gauge
	}

	if err := p.register(op, name, p.gaugeRegistry, collector); err != nil {
		return err
	}
	p.gauges[name] = entry
	return nil
}

func (p *PrometheusMeter) DefineHistogram(name, description string, buckets []float64, labels ...string) error {

	const op = "define histogram"

	if err := validateDefinition(op, name, labels, "le"); err != nil {
		return err
	}
	if err := common.ValidateBuckets(buckets); err != nil {
		return common.NewMetricError(op, name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.histograms[name]; ok {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	opts := prometheus.HistogramOpts{
		Name:    p.buildName(name),
		Help:    description,
		Buckets: buckets,
	}

	entry := &prometheusObserver{labels: labels}
	var collector prometheus.Collector
	if len(labels) > 0 {
		vec := prometheus.NewHistogramVec(opts, labels)
		entry.vec = vec
		collector = vec
	} else {
		histogram := prometheus.NewHistogram(opts)
		entry.observer = histogram
		collector = histogram
	}

	if err := p.register(op, name, p.histogramRegistry, collector); err != nil {
		return err
	}
	p.histograms[name] = entry
	return nil
}

func (p *PrometheusMeter) DefineSummary(name, description string, objectives map[float64]float64, labels ...string) error {

	const op = "define summary"

	if err := validateDefinition(op, name, labels, "quantile"); err != nil {
		return err
	}
	if err := common.ValidateObjectives(objectives); err != nil {
		return common.NewMetricError(op, name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.summaries[name]; ok {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	opts := prometheus.SummaryOpts{
		Name:       p.buildName(name),
		Help:       description,
		Objectives: objectives,
	}

	entry := &prometheusObserver{labels: labels}
	var collector prometheus.Collector
	if len(labels) > 0 {
		vec := prometheus.NewSummaryVec(opts, labels)
		entry.vec = vec
		collector = vec
	} else {
		summary := prometheus.NewSummary(opts)
		entry.observer = summary
		collector = summary
	}

	if err := p.register(op, name, p.summaryRegistry, collector); err != nil {
		return err
	}
	p.summaries[name] = entry
	return nil
}

func (p *PrometheusMeter) IncrementCounter(name string, amount float64, labels common.Labels) error {

	const op = "increment counter"

	p.mu.RLock()
	entry, ok := p.counters[name]
	p.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}

	// the collaborator reports negative increments by panicking, so the
	// sign is checked here and surfaced as an error value instead
	if amount < 0 {
		return common.NewMetricError(op, name,
			fmt.Errorf("%w: counter amount must not be negative, got %v", common.ErrInvalidParameter, amount))
	}

	counter, err := entry.series(labels)
	if err != nil {
		return common.NewMetricError(op, name, err)
	}
	counter.Add(amount)
	return nil
}

func (p *PrometheusMeter) IncrementGauge(name string, amount float64, labels common.Labels) error {

	const op = "increment gauge"

	p.mu.RLock()
	entry, ok := p.gauges[name]
	p.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}

	gauge, err := entry.series(labels)
	if err != nil {
		return common.NewMetricError(op, name, err)
	}
	gauge.Add(amount)
	return nil
}

func (p *PrometheusMeter) DecrementGauge(name string, amount float64, labels common.Labels) error {

	const op = "decrement gauge"

	p.mu.RLock()
	entry, ok := p.gauges[name]
	p.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}

	gauge, err := entry.series(labels)
	if err != nil {
		return common.NewMetricError(op, name, err)
	}
	gauge.Sub(amount)
	return nil
}

func (p *PrometheusMeter) RecordHistogram(name string, value float64, labels common.Labels) error {

	const op = "record histogram"

	p.mu.RLock()
	entry, ok := p.histograms[name]
	p.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}

	observer, err := entry.series(labels)
	if err != nil {
		return common.NewMetricError(op, name, err)
	}
	observer.Observe(value)
	return nil
}

func (p *PrometheusMeter) RecordSummary(name string, value float64, labels common.Labels) error {

	const op = "record summary"

	p.mu.RLock()
	entry, ok := p.summaries[name]
	p.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}

	observer, err := entry.series(labels)
	if err != nil {
		return common.NewMetricError(op, name, err)
	}
	observer.Observe(value)
	return nil
}

// Handler serves the current state of every defined metric across all kinds.
func (p *PrometheusMeter) Handler() http.Handler {

	gatherers := prometheus.Gatherers{
		p.counterRegistry,
		p.gaugeRegistry,
		p.histogramRegistry,
		p.summaryRegistry,
	}
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Start binds the exposition listener and serves it in the background.
// The meter remains usable for definitions and mutations if the bind fails.
func (p *PrometheusMeter) Start() error {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.listener != nil {
		return common.NewMetricError("start", "", fmt.Errorf("%w: already started", common.ErrServer))
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", p.options.Port))
	if err != nil {
		p.logger.Error(err)
		return common.NewMetricError("start", "", fmt.Errorf("%w: %v", common.ErrServer, err))
	}
	p.listener = listener

	mux := http.NewServeMux()
	mux.Handle(p.options.URL, p.Handler())

	go func() {
		if err := http.Serve(listener, mux); err != nil {
			p.logger.Debug(err)
		}
	}()

	p.logger.Info("Prometheus endpoint is up on :%d%s", p.options.Port, p.options.URL)
	return nil
}

func (p *PrometheusMeter) Stop() {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.listener != nil {
		p.listener.Close()
		p.listener = nil
	}
}

func NewPrometheusMeter(options PrometheusOptions, logger common.Logger, stdout *Stdout) (*PrometheusMeter, error) {

	if logger == nil {
		logger = stdout
	}

	if options.Port <= 0 {
		return nil, common.NewMetricError("create meter", "",
			fmt.Errorf("%w: port must be a positive integer, got %d", common.ErrInvalidConfig, options.Port))
	}

	if utils.IsEmpty(options.URL) {
		options.URL = "/metrics"
	}

	return &PrometheusMeter{
		options:           options,
		logger:            logger,
		counters:          make(map[string]*prometheusCounter),
		gauges:            make(map[string]*prometheusGauge),
		histograms:        make(map[string]*prometheusObserver),
		summaries:         make(map[string]*prometheusObserver),
		counterRegistry:   prometheus.NewRegistry(),
		gaugeRegistry:     prometheus.NewRegistry(),
		histogramRegistry: prometheus.NewRegistry(),
		summaryRegistry:   prometheus.NewRegistry(),
	}, nil
}
