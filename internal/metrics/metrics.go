package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bikeshop"

// Metrics holds the Prometheus collectors of the point of sale. All methods are safe on a
// nil *Metrics so components can run without instrumentation.
type Metrics struct {
	salesTotal       *prometheus.CounterVec
	saleFailures     *prometheus.CounterVec
	revenue          prometheus.Counter
	salesCancelled   prometheus.Counter
	stockByStatus    *prometheus.GaugeVec
	requestDuration  *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	eventsPublished  *prometheus.CounterVec
	receiptsApproved prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		salesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sales_total",
			Help: "Completed sales by payment method and document type.",
		}, []string{"payment_method", "document_type"}),
		saleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sale_failures_total",
			Help: "Rejected or failed sale attempts by reason.",
		}, []string{"reason"}),
		revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sales_revenue_total",
			Help: "Gross revenue of completed sales, tax included.",
		}),
		salesCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sales_cancelled_total",
			Help: "Sales cancelled after completion.",
		}),
		stockByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "stock_products",
			Help: "Active products per derived stock status.",
		}, []string{"status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "catalog_cache_lookups_total",
			Help: "Catalog cache lookups by result.",
		}, []string{"result"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_published_total",
			Help: "Domain events by routing key and outcome.",
		}, []string{"routing_key", "outcome"}),
		receiptsApproved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "goods_receipts_approved_total",
			Help: "Goods receipts approved into stock.",
		}),
	}
	reg.MustRegister(
		m.salesTotal, m.saleFailures, m.revenue, m.salesCancelled, m.stockByStatus,
		m.requestDuration, m.cacheLookups, m.eventsPublished, m.receiptsApproved,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) SaleCompleted(paymentMethod, documentType string, total float64) {
	if m == nil {
		return
	}
	m.salesTotal.WithLabelValues(paymentMethod, documentType).Inc()
	m.revenue.Add(total)
}

func (m *Metrics) SaleFailed(reason string) {
	if m == nil {
		return
	}
	m.saleFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) SaleCancelled() {
	if m == nil {
		return
	}
	m.salesCancelled.Inc()
}

func (m *Metrics) ReceiptApproved() {
	if m == nil {
		return
	}
	m.receiptsApproved.Inc()
}

// SetStockStatus replaces the per-status product gauges.
func (m *Metrics) SetStockStatus(counts map[string]int) {
	if m == nil {
		return
	}
	m.stockByStatus.Reset()
	for status, n := range counts {
		m.stockByStatus.WithLabelValues(status).Set(float64(n))
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) EventPublished(routingKey string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.eventsPublished.WithLabelValues(routingKey, outcome).Inc()
}
