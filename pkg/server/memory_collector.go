package server

import (
	"context"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/structlog-decoder/pkg/common"
	"github.com/ethpandaops/structlog-decoder/pkg/config"
)

// MemoryStatsCollector reports process memory. Decoding holds a full step log
// with memory snapshots in memory, so large traces show up here first.
type MemoryStatsCollector struct {
	log    logrus.FieldLogger
	config config.MemoryMonitorConfig

	maxAllocBytes uint64
}

func NewMemoryStatsCollector(log logrus.FieldLogger, conf config.MemoryMonitorConfig) *MemoryStatsCollector {
	return &MemoryStatsCollector{
		log:    log.WithField("component", "memory_stats_collector"),
		config: conf,
	}
}

// Run collects until ctx is done.
func (m *MemoryStatsCollector) Run(ctx context.Context) {
	if !m.config.Enabled {
		return
	}

	m.log.WithFields(logrus.Fields{
		"interval":             m.config.Interval,
		"warning_threshold_mb": m.config.WarningThresholdMB,
	}).Info("Starting memory stats collector")

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.collect()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collect()
		}
	}
}

func (m *MemoryStatsCollector) collect() {
	var stats runtime.MemStats

	runtime.ReadMemStats(&stats)

	common.MemoryUsage.WithLabelValues("alloc").Set(float64(stats.Alloc))
	common.MemoryUsage.WithLabelValues("sys").Set(float64(stats.Sys))
	common.MemoryUsage.WithLabelValues("heap_alloc").Set(float64(stats.HeapAlloc))
	common.GoroutineCount.Set(float64(runtime.NumGoroutine()))

	if stats.Alloc > m.maxAllocBytes {
		m.maxAllocBytes = stats.Alloc
	}

	allocMB := stats.Alloc / 1024 / 1024

	fields := logrus.Fields{
		"alloc_mb":     allocMB,
		"sys_mb":       stats.Sys / 1024 / 1024,
		"max_alloc_mb": m.maxAllocBytes / 1024 / 1024,
		"goroutines":   runtime.NumGoroutine(),
		"num_gc":       stats.NumGC,
	}

	if allocMB > m.config.WarningThresholdMB {
		m.log.WithFields(fields).Warn("High memory usage detected")

		return
	}

	m.log.WithFields(fields).Debug("Memory usage summary")
}
