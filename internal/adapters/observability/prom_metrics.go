package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ghalamif/VoltLog/internal/ports"
)

// PromObs implements ports.Observability with logrus and Prometheus.
type PromObs struct {
	log      *logrus.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

var _ ports.Observability = (*PromObs)(nil)

func NewPromObs(reg prometheus.Registerer, log *logrus.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &PromObs{
		log:      log,
		counters: map[string]prometheus.Counter{},
		gauges:   map[string]prometheus.Gauge{},
		histos:   map[string]prometheus.Observer{},
	}

	counter := func(name, help string) {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		reg.MustRegister(c)
		p.counters[name] = c
	}
	gauge := func(name, help string) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
		reg.MustRegister(g)
		p.gauges[name] = g
	}
	histogram := func(name, help string) {
		h := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		})
		reg.MustRegister(h)
		p.histos[name] = h
	}

	counter(ports.MetricPolls, "Poll cycles started.")
	counter(ports.MetricPollFailures, "Poll cycles that produced no readings.")
	counter(ports.MetricRetries, "Retry attempts after a failed poll or probe.")
	counter(ports.MetricReadingsPersisted, "Readings flushed to the CSV and structured log.")
	counter(ports.MetricPersistFailures, "Batches whose persistence failed on at least one path.")
	counter(ports.MetricBatchesDropped, "Batches dropped because the write queue was full.")
	counter(ports.MetricMirrorFailures, "Batches a mirror failed to accept.")
	counter(ports.MetricMirrorDropped, "Batches skipped for a mirror whose queue was full.")

	gauge(ports.MetricQueueLength, "Batches waiting for the writer.")
	gauge(ports.MetricBackoff, "Current retry delay, zero when healthy.")
	gauge(ports.MetricDegraded, "1 while persistence keeps failing.")
	gauge(ports.MetricProcessRSS, "Resident memory of this process.")
	gauge(ports.MetricOutputDiskFree, "Free bytes on the filesystem holding the outputs.")

	histogram(ports.MetricFetchLatency, "Device fetch round trip.")
	histogram(ports.MetricPersistLatency, "Append plus fsync of one batch.")
	return p
}

// Logger exposes the underlying logger for components that log directly.
func (p *PromObs) Logger() *logrus.Logger { return p.log }

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.WithFields(toFields(fields)).Info(msg)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.WithFields(toFields(fields)).WithError(err).Error(msg)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.WithFields(toFields(fields)).WithError(err).WithField("critical", true).Error(msg)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func toFields(fields []ports.Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}
