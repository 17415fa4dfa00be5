package prom

import (
	"sync"

	xhttp "github.com/paykg/deposit-gateway/pkg/http"
	"github.com/paykg/deposit-gateway/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemMailbox    = "mailbox"
	SystemSettlement = "settlement"
)

const (
	MetricEmailsProcessed    = "emails_processed_total"
	MetricPaymentsIngested   = "payments_ingested_total"
	MetricSettleOutcome      = "outcome_total"
	MetricSettleDuration     = "duration_seconds"
	MetricRescanRequestsSeen = "rescan_requests_total"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

func Create(host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemMailbox, MetricEmailsProcessed, []string{"bank", "result"}))
	hasError(createCounterVec(SystemMailbox, MetricPaymentsIngested, []string{"bank"}))
	hasError(createCounterVec(SystemSettlement, MetricSettleOutcome, []string{"outcome"}))
	hasError(createHistogramVec(SystemSettlement, MetricSettleDuration, []string{"platform"}))
	hasError(createCounterVec(SystemSettlement, MetricRescanRequestsSeen, []string{"result"}))

	return err
}

func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	}, labels)
	return prometheus.Register(MetricCollectionHistogramVec[subsystem+name])
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

// AddEmailProcessed records one processed email and how it ended up:
// ingested, duplicate, unparseable or stale.
func AddEmailProcessed(bank, result string) {
	IncCounterVec(SystemMailbox, MetricEmailsProcessed, bank, result)
}

func AddPaymentIngested(bank string) {
	IncCounterVec(SystemMailbox, MetricPaymentsIngested, bank)
}

func AddSettlementOutcome(outcome string) {
	IncCounterVec(SystemSettlement, MetricSettleOutcome, outcome)
}

func AddSettlementDuration(seconds float64, platform string) {
	AddHistogramVec(SystemSettlement, MetricSettleDuration, seconds, platform)
}
