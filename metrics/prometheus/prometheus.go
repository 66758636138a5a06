package prometheusmetrics

import (
	"time"

	"github.com/flippback/prebid-flipp/config"
	"github.com/flippback/prebid-flipp/metrics"
	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics defines the Prometheus metrics backing the MetricsEngine interface.
type Metrics struct {
	Registerer prometheus.Registerer
	Gatherer   *prometheus.Registry

	connectionsClosed prometheus.Counter
	connectionsError  *prometheus.CounterVec
	connectionsOpened prometheus.Counter

	adapterRequests   *prometheus.CounterVec
	adapterTimer      *prometheus.HistogramVec
	adapterPlacements *prometheus.HistogramVec
	adapterBids       *prometheus.CounterVec
	adapterPrices     *prometheus.HistogramVec
	userKeys          *prometheus.CounterVec
	syncPixels        prometheus.Counter
}

const (
	adapterLabel       = "adapter"
	adapterStatusLabel = "adapter_status"
	sourceLabel        = "source"
	connectionErrLabel = "connection_error"
)

const (
	connectionAcceptError = "accept"
	connectionCloseError  = "close"
)

// NewMetrics registers every collector on a fresh registry, so several engines can live in one process.
func NewMetrics(cfg config.PrometheusMetrics) *Metrics {
	timerBuckets := prometheus.LinearBuckets(0.05, 0.05, 20)
	timerBuckets = append(timerBuckets, []float64{1.5, 2.0, 3.0, 5.0, 10.0}...)

	reg := prometheus.NewRegistry()
	metrics := Metrics{
		Registerer: reg,
		Gatherer:   reg,
	}

	metrics.connectionsClosed = newCounterWithoutLabels(cfg, reg,
		"connections_closed",
		"Count of successful connections closed.")

	metrics.connectionsError = newCounter(cfg, reg,
		"connections_error",
		"Count of errors for connection open and close attempts by type.",
		[]string{connectionErrLabel})

	metrics.connectionsOpened = newCounterWithoutLabels(cfg, reg,
		"connections_opened",
		"Count of successful connections opened.")

	metrics.adapterRequests = newCounter(cfg, reg,
		"adapter_requests",
		"Count of batches sent to each bidder by outcome.",
		[]string{adapterLabel, adapterStatusLabel})

	metrics.adapterTimer = newHistogram(cfg, reg,
		"adapter_request_time_seconds",
		"Seconds to resolve each request to a bidder.",
		[]string{adapterLabel, adapterStatusLabel},
		timerBuckets)

	metrics.adapterPlacements = newHistogram(cfg, reg,
		"adapter_placements",
		"Placements carried by each outbound bidder request.",
		[]string{adapterLabel},
		[]float64{1, 2, 3, 5, 10, 20})

	metrics.adapterBids = newCounter(cfg, reg,
		"adapter_bids",
		"Count of bids received from each bidder.",
		[]string{adapterLabel})

	metrics.adapterPrices = newHistogram(cfg, reg,
		"adapter_prices",
		"CPM of the bids received from each bidder.",
		[]string{adapterLabel},
		prometheus.LinearBuckets(0.1, 0.1, 100))

	metrics.userKeys = newCounter(cfg, reg,
		"user_keys",
		"Count of user keys resolved by source.",
		[]string{sourceLabel})

	metrics.syncPixels = newCounterWithoutLabels(cfg, reg,
		"sync_pixels",
		"Count of user sync pixels fired.")

	return &metrics
}

func newCounter(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string, labels []string) *prometheus.CounterVec {
	opts := prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	}
	counter := prometheus.NewCounterVec(opts, labels)
	registry.MustRegister(counter)
	return counter
}

func newCounterWithoutLabels(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string) prometheus.Counter {
	opts := prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	}
	counter := prometheus.NewCounter(opts)
	registry.MustRegister(counter)
	return counter
}

func newHistogram(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	opts := prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}
	histogram := prometheus.NewHistogramVec(opts, labels)
	registry.MustRegister(histogram)
	return histogram
}

func (m *Metrics) RecordConnectionAccept(success bool) {
	if success {
		m.connectionsOpened.Inc()
	} else {
		m.connectionsError.With(prometheus.Labels{
			connectionErrLabel: connectionAcceptError,
		}).Inc()
	}
}

func (m *Metrics) RecordConnectionClose(success bool) {
	if success {
		m.connectionsClosed.Inc()
	} else {
		m.connectionsError.With(prometheus.Labels{
			connectionErrLabel: connectionCloseError,
		}).Inc()
	}
}

func (m *Metrics) RecordAdapterRequest(labels metrics.AdapterLabels) {
	m.adapterRequests.With(resolveAdapterLabels(labels)).Inc()
}

func (m *Metrics) RecordAdapterTime(labels metrics.AdapterLabels, length time.Duration) {
	m.adapterTimer.With(resolveAdapterLabels(labels)).Observe(length.Seconds())
}

func (m *Metrics) RecordAdapterPlacements(adapter openrtb_ext.BidderName, placements int) {
	m.adapterPlacements.With(prometheus.Labels{adapterLabel: string(adapter)}).Observe(float64(placements))
}

func (m *Metrics) RecordAdapterBidReceived(adapter openrtb_ext.BidderName, cpm float64) {
	labels := prometheus.Labels{adapterLabel: string(adapter)}
	m.adapterBids.With(labels).Inc()
	m.adapterPrices.With(labels).Observe(cpm)
}

func (m *Metrics) RecordUserKey(source metrics.UserKeySource) {
	m.userKeys.With(prometheus.Labels{sourceLabel: string(source)}).Inc()
}

func (m *Metrics) RecordSyncPixel() {
	m.syncPixels.Inc()
}

func resolveAdapterLabels(labels metrics.AdapterLabels) prometheus.Labels {
	return prometheus.Labels{
		adapterLabel:       string(labels.Adapter),
		adapterStatusLabel: string(labels.AdapterStatus),
	}
}
