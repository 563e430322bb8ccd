// Package probe обходит мир так же, как это делает рендерер тайлов:
// выделенный кеш на каждый рабочий поток и последовательный проход по
// чанкам регионов.
package probe

import (
	"context"
	"sync"

	"github.com/annel0/worldcache/internal/logging"
	"github.com/annel0/worldcache/internal/mc"
	"github.com/annel0/worldcache/internal/worldcache"
	"golang.org/x/sync/errgroup"
)

// Source мир, который можно перечислить по регионам
type Source interface {
	worldcache.World
	Regions() []mc.RegionPos
}

// Options параметры обхода
type Options struct {
	Workers    int
	MaxHeight  int
	FlushEvery int                 // через сколько чанков сбрасывать метрики
	Metrics    *worldcache.Metrics // может быть nil
}

// Report итог обхода
type Report struct {
	Regions       int
	Chunks        int
	Columns       int
	WaterSurface  int            // столбцы, верхний блок которых полная вода
	TopBlocks     map[uint16]int // тип верхнего блока -> число столбцов
	SkyLightSum   uint64         // сумма освещения от неба над верхним блоком
	RegionStats   worldcache.CacheStats
	ChunkStats    worldcache.CacheStats
	BrokenRegions int
	BrokenChunks  int
}

func newReport() *Report {
	return &Report{TopBlocks: make(map[uint16]int)}
}

func (r *Report) merge(o *Report) {
	r.Regions += o.Regions
	r.Chunks += o.Chunks
	r.Columns += o.Columns
	r.WaterSurface += o.WaterSurface
	r.SkyLightSum += o.SkyLightSum
	for id, n := range o.TopBlocks {
		r.TopBlocks[id] += n
	}
	r.RegionStats = addStats(r.RegionStats, o.RegionStats)
	r.ChunkStats = addStats(r.ChunkStats, o.ChunkStats)
	r.BrokenRegions += o.BrokenRegions
	r.BrokenChunks += o.BrokenChunks
}

func addStats(a, b worldcache.CacheStats) worldcache.CacheStats {
	return worldcache.CacheStats{
		Hits:        a.Hits + b.Hits,
		Misses:      a.Misses + b.Misses,
		Unavailable: a.Unavailable + b.Unavailable,
		Broken:      a.Broken + b.Broken,
	}
}

// Scan обходит все регионы src. Каждый поток работает со своим WorldCache.
func Scan(ctx context.Context, src Source, opts Options) (*Report, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxHeight <= 0 || opts.MaxHeight >= mc.ChunkHeight {
		opts.MaxHeight = mc.ChunkHeight - 1
	}

	jobs := make(chan mc.RegionPos)
	total := newReport()
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for _, pos := range src.Regions() {
			select {
			case jobs <- pos:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < opts.Workers; i++ {
		g.Go(func() error {
			w := &worker{cache: worldcache.New(src), opts: opts, report: newReport()}
			err := w.run(ctx, jobs)

			w.finish()
			mu.Lock()
			total.merge(w.report)
			mu.Unlock()
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return total, err
	}
	return total, nil
}

type worker struct {
	cache  *worldcache.WorldCache
	opts   Options
	report *Report
	since  int // чанков с последнего сброса метрик
}

func (w *worker) run(ctx context.Context, jobs <-chan mc.RegionPos) error {
	log := logging.GetProbeLogger()
	for pos := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}

		reg := w.cache.GetRegion(pos)
		if reg == nil {
			log.Debug("Регион %v недоступен", pos)
			continue
		}
		w.report.Regions++

		for _, cp := range reg.Chunks() {
			if err := ctx.Err(); err != nil {
				return err
			}
			w.scanChunk(cp)
		}
	}
	return nil
}

func (w *worker) scanChunk(pos mc.ChunkPos) {
	chunk := w.cache.GetChunk(pos)
	if chunk == nil {
		return
	}
	w.report.Chunks++

	for z := int32(0); z < mc.ChunkSize; z++ {
		for x := int32(0); x < mc.ChunkSize; x++ {
			w.scanColumn(mc.LocalBlockPos{X: x, Z: z}.Global(pos), chunk)
		}
	}

	w.since++
	if w.opts.Metrics != nil && w.opts.FlushEvery > 0 && w.since >= w.opts.FlushEvery {
		w.opts.Metrics.Flush(w.cache)
		w.since = 0
	}
}

// scanColumn ищет верхний непрозрачный блок столбца сверху вниз.
// Цикл доходит до y = -1, где кеш возвращает нулевой блок.
func (w *worker) scanColumn(pos mc.BlockPos, chunk *mc.Chunk) {
	w.report.Columns++

	for y := int32(w.opts.MaxHeight); y >= -1; y-- {
		pos.Y = y
		block := w.cache.GetBlock(pos, chunk, mc.GetID|mc.GetData)
		if block.ID == 0 {
			continue
		}

		w.report.TopBlocks[block.ID]++
		if block.IsFullWater() {
			w.report.WaterSurface++
		}

		above := pos
		above.Y++
		w.report.SkyLightSum += uint64(w.cache.GetBlock(above, chunk, mc.GetSkyLight).SkyLight)
		return
	}
}

func (w *worker) finish() {
	if w.opts.Metrics != nil {
		w.opts.Metrics.Flush(w.cache)
		w.opts.Metrics.Forget(w.cache)
	}
	w.report.RegionStats = w.cache.RegionStats()
	w.report.ChunkStats = w.cache.ChunkStats()
	w.report.BrokenRegions = w.cache.BrokenRegions()
	w.report.BrokenChunks = w.cache.BrokenChunks()
}
