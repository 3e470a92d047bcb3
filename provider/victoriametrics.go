package provider

import (
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/devopsext/utils"

	"github.com/obskit/metrics/common"
)

type VictoriaMetricsOptions struct {
	URL     string
	Port    int
	Prefix  string
	Version string
}

type victoriaCounter struct {
	meter  *VictoriaMetricsMeter
	ident  string
	labels []string
}

type victoriaGaugeSeries struct {
	mu    sync.Mutex
	value float64
}

type victoriaGauge struct {
	meter  *VictoriaMetricsMeter
	ident  string
	labels []string

	mu     sync.Mutex
	series map[string]*victoriaGaugeSeries
}

type victoriaHistogram struct {
	meter  *VictoriaMetricsMeter
	ident  string
	labels []string
}

type victoriaSummary struct {
	meter     *VictoriaMetricsMeter
	ident     string
	labels    []string
	quantiles []float64
}

// VictoriaMetricsMeter is an alternate exposition registry backed by a
// private VictoriaMetrics set. Histograms there use the library's own
// bucketing scheme, so configured boundaries are validated for shape but
// not applied. The set rejects a name registered under two kinds, hence
// names are unique across kinds here, not per kind.
type VictoriaMetricsMeter struct {
	options  VictoriaMetricsOptions
	logger   common.Logger
	set      *metrics.Set
	listener net.Listener

	mu         sync.RWMutex
	counters   map[string]*victoriaCounter
	gauges     map[string]*victoriaGauge
	histograms map[string]*victoriaHistogram
	summaries  map[string]*victoriaSummary
}

func buildIdent(name string, labels common.Labels) string {

	lbs := ""
	if len(labels) > 0 {
		arr := []string{}
		for k, v := range labels {
			arr = append(arr, fmt.Sprintf(`%s="%s"`, k, v))
		}
		sort.Strings(arr)
		lbs = fmt.Sprintf("{%s}", strings.Join(arr, ","))
	}
	return fmt.Sprintf(`%s%s`, name, lbs)
}

func (v *VictoriaMetricsMeter) buildName(name string) string {

	var names []string

	if !utils.IsEmpty(v.options.Prefix) {
		names = append(names, v.options.Prefix)
	}
	names = append(names, name)
	return strings.Join(names, "_")
}

func (vc *victoriaCounter) series(labels common.Labels) (*metrics.FloatCounter, error) {

	if err := common.ValidateLabelValues(vc.labels, labels); err != nil {
		return nil, err
	}
	return vc.meter.set.GetOrCreateFloatCounter(buildIdent(vc.ident, labels)), nil
}

func (s *victoriaGaugeSeries) add(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value += delta
}

func (s *victoriaGaugeSeries) get() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (vg *victoriaGauge) seriesFor(labels common.Labels) (*victoriaGaugeSeries, error) {

	if err := common.ValidateLabelValues(vg.labels, labels); err != nil {
		return nil, err
	}

	ident := buildIdent(vg.ident, labels)

	vg.mu.Lock()
	defer vg.mu.Unlock()

	s, ok := vg.series[ident]
	if !ok {
		s = &victoriaGaugeSeries{}
		vg.series[ident] = s
		vg.meter.set.GetOrCreateGauge(ident, s.get)
	}
	return s, nil
}

func (vh *victoriaHistogram) series(labels common.Labels) (*metrics.Histogram, error) {

	if err := common.ValidateLabelValues(vh.labels, labels); err != nil {
		return nil, err
	}
	return vh.meter.set.GetOrCreateHistogram(buildIdent(vh.ident, labels)), nil
}

func (vs *victoriaSummary) series(labels common.Labels) (*metrics.Summary, error) {

	if err := common.ValidateLabelValues(vs.labels, labels); err != nil {
		return nil, err
	}

	ident := buildIdent(vs.ident, labels)
	if len(vs.quantiles) == 0 {
		return vs.meter.set.GetOrCreateSummary(ident), nil
	}
	return vs.meter.set.GetOrCreateSummaryExt(ident, 5*time.Minute, vs.quantiles), nil
}

// defined reports whether a name is taken by any kind. Callers must hold the lock.
func (v *VictoriaMetricsMeter) defined(name string) bool {

	if _, ok := v.counters[name]; ok {
		return true
	}
	if _, ok := v.gauges[name]; ok {
		return true
	}
	if _, ok := v.histograms[name]; ok {
		return true
	}
	if _, ok := v.summaries[name]; ok {
		return true
	}
	return false
}

func (v *VictoriaMetricsMeter) DefineCounter(name, description string, labels ...string) error {

	const op = "define counter"

	if err := validateDefinition(op, name, labels, ""); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.defined(name) {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	v.counters[name] = &victoriaCounter{
		meter:  v,
		ident:  v.buildName(name),
		labels: labels,
	}
	return nil
}

func (v *VictoriaMetricsMeter) DefineGauge(name, description string, labels ...string) error {

	const op = "define gauge"

	if err := validateDefinition(op, name, labels, ""); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.defined(name) {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	v.gauges[name] = &victoriaGauge{
		meter:  v,
		ident:  v.buildName(name),
		labels: labels,
		series: make(map[string]*victoriaGaugeSeries),
	}
	return nil
}

func (v *VictoriaMetricsMeter) DefineHistogram(name, description string, buckets []float64, labels ...string) error {

	const op = "define histogram"

	if err := validateDefinition(op, name, labels, "le"); err != nil {
		return err
	}
	if err := common.ValidateBuckets(buckets); err != nil {
		return common.NewMetricError(op, name, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.defined(name) {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	v.histograms[name] = &victoriaHistogram{
		meter:  v,
		ident:  v.buildName(name),
		labels: labels,
	}
	return nil
}

func (v *VictoriaMetricsMeter) DefineSummary(name, description string, objectives map[float64]float64, labels ...string) error {

	const op = "define summary"

	if err := validateDefinition(op, name, labels, "quantile"); err != nil {
		return err
	}
	if err := common.ValidateObjectives(objectives); err != nil {
		return common.NewMetricError(op, name, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.defined(name) {
		return common.NewMetricError(op, name, common.ErrDuplicateName)
	}

	var quantiles []float64
	for q := range objectives {
		quantiles = append(quantiles, q)
	}
	sort.Float64s(quantiles)

	v.summaries[name] = &victoriaSummary{
		meter:     v,
		ident:     v.buildName(name),
		labels:    labels,
		quantiles: quantiles,
	}
	return nil
}

func (v *VictoriaMetricsMeter) IncrementCounter(name string, amount float64, labels common.Labels) error {

	const op = "increment counter"

	v.mu.RLock()
	entry, ok := v.counters[name]
	v.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}

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

func (v *VictoriaMetricsMeter) IncrementGauge(name string, amount float64, labels common.Labels) error {

	const op = "increment gauge"

	v.mu.RLock()
	entry, ok := v.gauges[name]
	v.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}

	series, err := entry.seriesFor(labels)
	if err != nil {
		return common.NewMetricError(op, name, err)
	}
	series.add(amount)
	return nil
}

func (v *VictoriaMetricsMeter) DecrementGauge(name string, amount float64, labels common.Labels) error {

	const op = "decrement gauge"

	v.mu.RLock()
	entry, ok := v.gauges[name]
	v.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}

	series, err := entry.seriesFor(labels)
	if err != nil {
		return common.NewMetricError(op, name, err)
	}
	series.add(-amount)
	return nil
}

func (v *VictoriaMetricsMeter) RecordHistogram(name string, value float64, labels common.Labels) error {

	const op = "record histogram"

	v.mu.RLock()
	entry, ok := v.histograms[name]
	v.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}

	histogram, err := entry.series(labels)
	if err != nil {
		return common.NewMetricError(op, name, err)
	}
	histogram.Update(value)
	return nil
}

func (v *VictoriaMetricsMeter) RecordSummary(name string, value float64, labels common.Labels) error {

	const op = "record summary"

	v.mu.RLock()
	entry, ok := v.summaries[name]
	v.mu.RUnlock()
	if !ok {
		return common.NewMetricError(op, name, common.ErrNotFound)
	}

	summary, err := entry.series(labels)
	if err != nil {
		return common.NewMetricError(op, name, err)
	}
	summary.Update(value)
	return nil
}

func (v *VictoriaMetricsMeter) Handler() http.Handler {

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		v.set.WritePrometheus(w)
	})
}

func (v *VictoriaMetricsMeter) Start() error {

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.listener != nil {
		return common.NewMetricError("start", "", fmt.Errorf("%w: already started", common.ErrServer))
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", v.options.Port))
	if err != nil {
		v.logger.Error(err)
		return common.NewMetricError("start", "", fmt.Errorf("%w: %v", common.ErrServer, err))
	}
	v.listener = listener

	mux := http.NewServeMux()
	mux.Handle(v.options.URL, v.Handler())

	go func() {
		if err := http.Serve(listener, mux); err != nil {
			v.logger.Debug(err)
		}
	}()

	v.logger.Info("VictoriaMetrics endpoint is up on :%d%s", v.options.Port, v.options.URL)
	return nil
}

func (v *VictoriaMetricsMeter) Stop() {

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.listener != nil {
		v.listener.Close()
		v.listener = nil
	}
}

func NewVictoriaMetricsMeter(options VictoriaMetricsOptions, logger common.Logger, stdout *Stdout) (*VictoriaMetricsMeter, error) {

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

	return &VictoriaMetricsMeter{
		options:    options,
		logger:     logger,
		set:        metrics.NewSet(),
		counters:   make(map[string]*victoriaCounter),
		gauges:     make(map[string]*victoriaGauge),
		histograms: make(map[string]*victoriaHistogram),
		summaries:  make(map[string]*victoriaSummary),
	}, nil
}
