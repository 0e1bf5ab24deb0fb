package common

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StepsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "structlog_decoder_steps_decoded_total",
		Help: "Total number of struct log steps fed to the decoder",
	}, []string{"source"})

	ItemsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "structlog_decoder_items_decoded_total",
		Help: "Total number of decoded tree items",
	}, []string{"source", "opcode"})

	FaultyItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "structlog_decoder_faulty_items_total",
		Help: "Total number of items replaced by a fault marker",
	}, []string{"source", "opcode", "reason"})

	DecodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "structlog_decoder_decode_duration_seconds",
		Help:    "Time taken to build a call tree from a step log",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"source"})

	TracesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "structlog_decoder_traces_decoded_total",
		Help: "Total number of traces decoded",
	}, []string{"source", "status"})

	RPCCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "structlog_decoder_rpc_call_duration_seconds",
		Help:    "Duration of RPC calls to Ethereum nodes",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"chain_id", "node", "method", "status"})

	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "structlog_decoder_rpc_calls_total",
		Help: "Total RPC calls made to Ethereum nodes",
	}, []string{"chain_id", "node", "method", "status"})

	NameResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "structlog_decoder_name_resolutions_total",
		Help: "Total address name lookups by resolver and outcome",
	}, []string{"resolver", "status"})

	NameCacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "structlog_decoder_name_cache_entries",
		Help: "Number of entries held by the name tag cache",
	}, []string{"store"})

	NameCacheFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "structlog_decoder_name_cache_flushes_total",
		Help: "Total name tag cache flushes to the backing store",
	}, []string{"store", "status"})

	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "structlog_decoder_api_requests_total",
		Help: "Total HTTP API requests",
	}, []string{"route", "status"})
)

var (
	MemoryUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "structlog_decoder_memory_usage_bytes",
		Help: "Process memory usage by type",
	}, []string{"type"})

	GoroutineCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "structlog_decoder_goroutines",
		Help: "Number of running goroutines",
	})
)
