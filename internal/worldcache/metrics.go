package worldcache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	levelRegion = "region"
	levelChunk  = "chunk"
)

// Metrics переносит счётчики кешей рабочих потоков в Prometheus.
// Каждый поток вызывает Flush для своего кеша; вызовы для разных кешей
// могут идти параллельно.
type Metrics struct {
	lookups *prometheus.CounterVec
	broken  *prometheus.GaugeVec

	mu   sync.Mutex
	last map[*WorldCache][2]CacheStats
}

// NewMetrics создаёт и регистрирует метрики в reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worldcache",
			Name:      "lookups_total",
			Help:      "Запросы к кешу по уровню и результату.",
		}, []string{"level", "result"}),
		broken: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "worldcache",
			Name:      "broken",
			Help:      "Число регионов и чанков, помеченных повреждёнными.",
		}, []string{"level"}),
		last: make(map[*WorldCache][2]CacheStats),
	}

	reg.MustRegister(m.lookups, m.broken)
	return m
}

// Flush добавляет приращения счётчиков c с момента прошлого вызова
func (m *Metrics) Flush(c *WorldCache) {
	cur := [2]CacheStats{c.RegionStats(), c.ChunkStats()}

	m.mu.Lock()
	prev := m.last[c]
	m.last[c] = cur
	m.mu.Unlock()

	m.add(levelRegion, prev[0], cur[0])
	m.add(levelChunk, prev[1], cur[1])
}

// Forget забывает кеш; его накопленные значения остаются в метриках
func (m *Metrics) Forget(c *WorldCache) {
	m.mu.Lock()
	delete(m.last, c)
	m.mu.Unlock()
}

func (m *Metrics) add(level string, prev, cur CacheStats) {
	if d := cur.Hits - prev.Hits; d > 0 {
		m.lookups.WithLabelValues(level, "hit").Add(float64(d))
	}
	if d := cur.Misses - prev.Misses; d > 0 {
		m.lookups.WithLabelValues(level, "miss").Add(float64(d))
	}
	if d := cur.Unavailable - prev.Unavailable; d > 0 {
		m.lookups.WithLabelValues(level, "unavailable").Add(float64(d))
	}
	if d := cur.Broken - prev.Broken; d > 0 {
		m.broken.WithLabelValues(level).Add(float64(d))
	}
}
