package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/Dhoini/stripe-sync/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheSizer - источник числа записей кэша (MemoryStore)
type CacheSizer interface {
	Len() int
}

// SystemMetrics интерфейс для системных метрик
type SystemMetrics interface {
	RecordGoroutines()
	RecordMemory()
	RecordCacheEntries()
	StartRecording(interval time.Duration)
	Stop()
}

type systemMetrics struct {
	log          *logger.Logger
	cache        CacheSizer
	goroutines   prometheus.Gauge
	memoryAlloc  prometheus.Gauge
	memorySystem prometheus.Gauge
	gcCycles     prometheus.Gauge
	cacheEntries prometheus.Gauge
	stopCh       chan struct{}
	stopOnce     sync.Once
}

// NewSystemMetrics создает новые системные метрики. cache может быть nil (внешний кэш).
func NewSystemMetrics(registry *prometheus.Registry, cache CacheSizer, log *logger.Logger) SystemMetrics {
	factory := promauto.With(registry)

	return &systemMetrics{
		log:   log,
		cache: cache,
		goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Name: "system_goroutines",
			Help: "Current number of goroutines",
		}),
		memoryAlloc: factory.NewGauge(prometheus.GaugeOpts{
			Name: "system_memory_alloc_bytes",
			Help: "Currently allocated memory in bytes",
		}),
		memorySystem: factory.NewGauge(prometheus.GaugeOpts{
			Name: "system_memory_system_bytes",
			Help: "Total memory obtained from system in bytes",
		}),
		gcCycles: factory.NewGauge(prometheus.GaugeOpts{
			Name: "system_gc_cycles",
			Help: "Number of completed GC cycles",
		}),
		cacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Number of live entries in the in-process cache",
		}),
		stopCh: make(chan struct{}),
	}
}

// RecordGoroutines записывает количество горутин
func (m *systemMetrics) RecordGoroutines() {
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// RecordMemory записывает метрики памяти
func (m *systemMetrics) RecordMemory() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.memoryAlloc.Set(float64(memStats.Alloc))
	m.memorySystem.Set(float64(memStats.Sys))
	m.gcCycles.Set(float64(memStats.NumGC))
}

// RecordCacheEntries записывает размер кэша в памяти
func (m *systemMetrics) RecordCacheEntries() {
	if m.cache == nil {
		return
	}
	m.cacheEntries.Set(float64(m.cache.Len()))
}

// StartRecording начинает запись метрик с заданным интервалом
func (m *systemMetrics) StartRecording(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.RecordGoroutines()
				m.RecordMemory()
				m.RecordCacheEntries()
			case <-m.stopCh:
				return
			}
		}
	}()
	m.log.Info("System metrics recording started with interval %s", interval)
}

// Stop останавливает запись метрик
func (m *systemMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.log.Info("System metrics recording stopped")
	})
}
