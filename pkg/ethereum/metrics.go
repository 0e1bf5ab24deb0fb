package ethereum

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	nodesTotal   *prometheus.GaugeVec
	lookupsTotal *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	once            sync.Once
)

// GetMetricsInstance registers the pool metrics once per process.
func GetMetricsInstance(namespace string) *Metrics {
	once.Do(func() {
		metricsInstance = &Metrics{
			nodesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "nodes_total",
				Help:      "Total number of execution nodes in the pool by health",
			}, []string{"type", "status"}),
			lookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "name_lookups_total",
				Help:      "Contract calls and code reads served by the pool for name resolution",
			}, []string{"method", "status"}),
		}

		prometheus.MustRegister(metricsInstance.nodesTotal, metricsInstance.lookupsTotal)
	})

	return metricsInstance
}

func (m *Metrics) SetNodesTotal(count float64, labels []string) {
	if m == nil || m.nodesTotal == nil {
		return
	}

	m.nodesTotal.WithLabelValues(labels...).Set(count)
}

// ObserveLookup counts a pooled eth_call or eth_getCode.
func (m *Metrics) ObserveLookup(method string, err error) {
	if m == nil || m.lookupsTotal == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.lookupsTotal.WithLabelValues(method, status).Inc()
}
