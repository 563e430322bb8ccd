// Package worldcache кеширует регионы и чанки мира для последовательного
// обхода рендерером. Каждый уровень кеша устроен как массив фиксированного
// размера с прямым отображением координат на слоты. Повреждённые регионы и чанки
// запоминаются и больше не загружаются.
//
// WorldCache не синхронизирован: каждому рабочему потоку нужен свой экземпляр.
package worldcache

import (
	"github.com/annel0/worldcache/internal/logging"
	"github.com/annel0/worldcache/internal/mc"
	"github.com/annel0/worldcache/internal/mc/region"
)

// World источник файлов регионов.
// LoadRegion назначает регион в dst и возвращает false, если региона нет;
// в этом случае dst не изменяется.
type World interface {
	LoadRegion(pos mc.RegionPos, dst *region.File) bool
}

// CacheStats счётчики одного уровня кеша
type CacheStats struct {
	Hits        uint64 // найдено в кеше
	Misses      uint64 // успешно загружено из хранилища
	Unavailable uint64 // данных нет или они повреждены
	Broken      uint64 // записано в список повреждённых
}

// Lookups возвращает общее число запросов
func (s CacheStats) Lookups() uint64 {
	return s.Hits + s.Misses + s.Unavailable
}

// WorldCache двухуровневый кеш регионов и чанков
type WorldCache struct {
	world   World
	regions directCache[mc.RegionPos, region.File]
	chunks  directCache[mc.ChunkPos, mc.Chunk]
	log     *logging.Logger
}

// New создаёт кеш поверх world. world должен пережить кеш.
func New(world World) *WorldCache {
	return &WorldCache{
		world: world,
		regions: newDirectCache[mc.RegionPos, region.File](RegionCacheSize, func(p mc.RegionPos) int {
			return slotIndex(p.X, p.Z, RegionCacheWidth, RegionCacheSize, regionBias)
		}),
		chunks: newDirectCache[mc.ChunkPos, mc.Chunk](ChunkCacheSize, func(p mc.ChunkPos) int {
			return slotIndex(p.X, p.Z, ChunkCacheWidth, ChunkCacheSize, chunkBias)
		}),
		log: logging.GetCacheLogger(),
	}
}

// GetRegion возвращает прочитанный регион или nil, если он недоступен
func (c *WorldCache) GetRegion(pos mc.RegionPos) *region.File {
	slot, hit := c.regions.lookup(pos)
	if hit {
		c.regions.stats.Hits++
		return &slot.value
	}

	if c.regions.isBroken(pos) {
		c.regions.stats.Unavailable++
		return nil
	}

	// региона нет, содержимое слота не тронуто
	if !c.world.LoadRegion(pos, &slot.value) {
		c.regions.stats.Unavailable++
		return nil
	}

	if err := slot.value.Read(); err != nil {
		// слот мог быть перезаписан, поэтому освобождаем его
		c.regions.markBroken(slot, pos)
		c.regions.stats.Unavailable++
		c.log.Warn("Регион %v повреждён и пропускается: %v", pos, err)
		return nil
	}

	c.regions.stats.Misses++
	return slot.fill(pos)
}

// GetChunk возвращает загруженный чанк или nil, если он недоступен
func (c *WorldCache) GetChunk(pos mc.ChunkPos) *mc.Chunk {
	slot, hit := c.chunks.lookup(pos)
	if hit {
		c.chunks.stats.Hits++
		return &slot.value
	}

	reg := c.GetRegion(pos.Region())
	if reg == nil {
		c.chunks.stats.Unavailable++
		return nil
	}

	if c.chunks.isBroken(pos) {
		c.chunks.stats.Unavailable++
		return nil
	}

	status, err := reg.LoadChunk(pos, &slot.value)
	switch status {
	case region.ChunkOK:
		c.chunks.stats.Misses++
		return slot.fill(pos)
	case region.ChunkDoesNotExist:
		c.chunks.stats.Unavailable++
		return nil
	default:
		c.chunks.markBroken(slot, pos)
		c.chunks.stats.Unavailable++
		c.log.Warn("Чанк %v повреждён и пропускается: %v", pos, err)
		return nil
	}
}

// GetBlock возвращает атрибуты блока, выбранные get. Невыбранные поля
// остаются нулевыми. chunk задаёт уже известный вызывающему чанк и может быть nil;
// он используется, только если содержит pos. Ниже дна мира и в
// недоступных чанках возвращается нулевой блок.
func (c *WorldCache) GetBlock(pos mc.BlockPos, chunk *mc.Chunk, get mc.BlockFlags) mc.Block {
	if pos.Y < 0 {
		return mc.Block{}
	}

	chunkPos := pos.Chunk()
	if chunk == nil || chunk.Pos() != chunkPos {
		chunk = c.GetChunk(chunkPos)
	}
	if chunk == nil {
		return mc.Block{}
	}

	local := pos.Local()
	var block mc.Block
	if get.Has(mc.GetID) {
		block.ID = chunk.BlockID(local)
	}
	if get.Has(mc.GetData) {
		block.Data = chunk.BlockData(local)
	}
	if get.Has(mc.GetBiome) {
		block.Biome = chunk.Biome(local)
	}
	if get.Has(mc.GetBlockLight) {
		block.BlockLight = chunk.BlockLight(local)
	}
	if get.Has(mc.GetSkyLight) {
		block.SkyLight = chunk.SkyLight(local)
	}
	return block
}

// RegionStats возвращает счётчики кеша регионов
func (c *WorldCache) RegionStats() CacheStats {
	return c.regions.stats
}

// ChunkStats возвращает счётчики кеша чанков
func (c *WorldCache) ChunkStats() CacheStats {
	return c.chunks.stats
}

// BrokenRegions возвращает число регионов, помеченных повреждёнными
func (c *WorldCache) BrokenRegions() int {
	return len(c.regions.broken)
}

// BrokenChunks возвращает число чанков, помеченных повреждёнными
func (c *WorldCache) BrokenChunks() int {
	return len(c.chunks.broken)
}
