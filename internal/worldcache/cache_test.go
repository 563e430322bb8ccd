package worldcache

import (
	"testing"
	"time"

	"github.com/annel0/worldcache/internal/mc"
	"github.com/annel0/worldcache/internal/mc/region"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memWorld хранит образы регионов в памяти и считает обращения
type memWorld struct {
	regions map[mc.RegionPos][]byte
	calls   map[mc.RegionPos]int
}

func newMemWorld() *memWorld {
	return &memWorld{
		regions: make(map[mc.RegionPos][]byte),
		calls:   make(map[mc.RegionPos]int),
	}
}

func (w *memWorld) LoadRegion(pos mc.RegionPos, dst *region.File) bool {
	w.calls[pos]++
	data, ok := w.regions[pos]
	if !ok {
		return false
	}
	dst.AssignData(pos, data)
	return true
}

func (w *memWorld) put(t *testing.T, pos mc.RegionPos, chunks ...*mc.Chunk) *region.Writer {
	t.Helper()
	rw := region.NewWriter(pos)
	for _, c := range chunks {
		require.NoError(t, rw.Add(c, time.Time{}))
	}
	w.regions[pos] = rw.Bytes()
	return rw
}

var (
	testLocal = mc.LocalBlockPos{X: 3, Z: 11, Y: 70}
	testBlock = mc.Block{ID: 0x105, Data: 3, Biome: 7, BlockLight: 9, SkyLight: 4}
)

// chunkWith создаёт чанк с testBlock в testLocal
func chunkWith(pos mc.ChunkPos, id uint16) *mc.Chunk {
	c := mc.NewChunk(pos)
	c.SetBlock(testLocal, id, testBlock.Data)
	c.SetLight(testLocal, testBlock.BlockLight, testBlock.SkyLight)
	c.SetBiome(testLocal.X, testLocal.Z, testBlock.Biome)
	return c
}

func TestGetRegion_HitAfterLoad(t *testing.T) {
	w := newMemWorld()
	pos := mc.RegionPos{X: -3, Z: 5}
	w.put(t, pos)
	c := New(w)

	first := c.GetRegion(pos)
	require.NotNil(t, first)
	assert.Equal(t, pos, first.Pos())

	second := c.GetRegion(pos)
	assert.Same(t, first, second, "повторный запрос отдаёт тот же слот")
	assert.Equal(t, 1, w.calls[pos], "хранилище опрошено один раз")
	assert.Equal(t, CacheStats{Hits: 1, Misses: 1}, c.RegionStats())
}

func TestGetRegion_AbsentIsRetried(t *testing.T) {
	w := newMemWorld()
	pos := mc.RegionPos{X: 2, Z: 2}
	c := New(w)

	for i := 0; i < 3; i++ {
		assert.Nil(t, c.GetRegion(pos))
	}
	assert.Equal(t, 3, w.calls[pos], "отсутствующий регион запрашивается каждый раз")
	assert.Equal(t, 0, c.BrokenRegions())

	// регион появился позже
	w.put(t, pos)
	assert.NotNil(t, c.GetRegion(pos))
	assert.Equal(t, 4, w.calls[pos])
}

func TestGetRegion_AbsentKeepsResident(t *testing.T) {
	w := newMemWorld()
	a := mc.RegionPos{X: 0, Z: 0}
	b := mc.RegionPos{X: RegionCacheWidth, Z: 0} // тот же слот
	w.put(t, a)
	c := New(w)

	require.NotNil(t, c.GetRegion(a))
	assert.Nil(t, c.GetRegion(b))
	assert.NotNil(t, c.GetRegion(a))
	assert.Equal(t, 1, w.calls[a], "слот не был задет отсутствующим регионом")
}

func TestGetRegion_BrokenNeverRetried(t *testing.T) {
	w := newMemWorld()
	pos := mc.RegionPos{X: 1, Z: -1}
	w.regions[pos] = []byte("too short")
	c := New(w)

	for i := 0; i < 5; i++ {
		assert.Nil(t, c.GetRegion(pos))
	}
	assert.Equal(t, 1, w.calls[pos], "повреждённый регион читается один раз")
	assert.Equal(t, 1, c.BrokenRegions())
	assert.Equal(t, CacheStats{Unavailable: 5, Broken: 1}, c.RegionStats())

	// даже исправленные данные не перечитываются
	w.put(t, pos)
	assert.Nil(t, c.GetRegion(pos))
	assert.Equal(t, 1, w.calls[pos])
}

func TestGetRegion_BrokenFreesSlot(t *testing.T) {
	w := newMemWorld()
	a := mc.RegionPos{X: 0, Z: 0}
	b := mc.RegionPos{X: 0, Z: RegionCacheWidth}
	w.put(t, a)
	w.regions[b] = []byte("corrupt")
	c := New(w)

	require.NotNil(t, c.GetRegion(a))
	assert.Nil(t, c.GetRegion(b))

	// b перезаписал слот a, поэтому a загружается заново
	assert.NotNil(t, c.GetRegion(a))
	assert.Equal(t, 2, w.calls[a])
}

func TestGetRegion_CollisionEvicts(t *testing.T) {
	w := newMemWorld()
	a := mc.RegionPos{X: 1, Z: 1}
	b := mc.RegionPos{X: 1 - RegionCacheWidth, Z: 1 + 2*RegionCacheWidth}
	require.Equal(t, c0(a), c0(b), "регионы должны делить слот")
	w.put(t, a)
	w.put(t, b)
	c := New(w)

	for i := 0; i < 3; i++ {
		ra := c.GetRegion(a)
		require.NotNil(t, ra)
		assert.Equal(t, a, ra.Pos())

		rb := c.GetRegion(b)
		require.NotNil(t, rb)
		assert.Equal(t, b, rb.Pos())
	}
	assert.Equal(t, 3, w.calls[a], "ложных попаданий нет")
	assert.Equal(t, 3, w.calls[b])
}

func c0(p mc.RegionPos) int {
	return slotIndex(p.X, p.Z, RegionCacheWidth, RegionCacheSize, regionBias)
}

func TestGetRegion_ReloadSeesNewData(t *testing.T) {
	w := newMemWorld()
	a := mc.RegionPos{}
	b := mc.RegionPos{X: RegionCacheWidth}
	cp := mc.ChunkPos{X: 1, Z: 1}
	w.put(t, a)
	w.put(t, b)
	c := New(w)

	require.NotNil(t, c.GetRegion(a))
	assert.False(t, c.GetRegion(a).ContainsChunk(cp))

	require.NotNil(t, c.GetRegion(b))
	w.put(t, a, chunkWith(cp, 1))

	ra := c.GetRegion(a)
	require.NotNil(t, ra)
	assert.True(t, ra.ContainsChunk(cp), "после вытеснения регион читается заново")
}

func TestGetChunk_HitAfterLoad(t *testing.T) {
	w := newMemWorld()
	cp := mc.ChunkPos{X: 40, Z: -7}
	w.put(t, cp.Region(), chunkWith(cp, 1))
	c := New(w)

	first := c.GetChunk(cp)
	require.NotNil(t, first)
	assert.Equal(t, cp, first.Pos())
	assert.Same(t, first, c.GetChunk(cp))

	assert.Equal(t, CacheStats{Hits: 1, Misses: 1}, c.ChunkStats())
	assert.Equal(t, CacheStats{Misses: 1}, c.RegionStats(), "попадание в чанк не трогает регион")
}

func TestGetChunk_RegionUnavailable(t *testing.T) {
	w := newMemWorld()
	cp := mc.ChunkPos{X: 5, Z: 5}
	c := New(w)

	assert.Nil(t, c.GetChunk(cp))
	assert.Nil(t, c.GetChunk(cp))
	assert.Equal(t, 2, w.calls[cp.Region()])
	assert.Equal(t, 0, c.BrokenChunks(), "ошибка региона не помечает чанк")

	w.regions[cp.Region()] = []byte("corrupt")
	assert.Nil(t, c.GetChunk(cp))
	assert.Nil(t, c.GetChunk(cp))
	assert.Equal(t, 1, c.BrokenRegions())
	assert.Equal(t, 0, c.BrokenChunks())
	assert.Equal(t, 3, w.calls[cp.Region()])
}

func TestGetChunk_AbsentIsRetried(t *testing.T) {
	w := newMemWorld()
	present := mc.ChunkPos{X: 0, Z: 0}
	absent := mc.ChunkPos{X: 1, Z: 0}
	w.put(t, present.Region(), chunkWith(present, 1))
	c := New(w)

	for i := 0; i < 3; i++ {
		assert.Nil(t, c.GetChunk(absent))
	}
	assert.Equal(t, 0, c.BrokenChunks())
	assert.Equal(t, CacheStats{Unavailable: 3}, c.ChunkStats())
	assert.NotNil(t, c.GetChunk(present))
}

func TestGetChunk_BrokenNeverRetried(t *testing.T) {
	w := newMemWorld()
	good := mc.ChunkPos{X: 2, Z: 3}
	bad := mc.ChunkPos{X: 3, Z: 3}
	rw := w.put(t, good.Region(), chunkWith(good, 1))
	require.NoError(t, rw.AddRaw(bad, region.CompressionZlib, []byte("broken"), time.Time{}))
	w.regions[good.Region()] = rw.Bytes()
	c := New(w)

	for i := 0; i < 4; i++ {
		assert.Nil(t, c.GetChunk(bad))
	}
	assert.Equal(t, 1, c.BrokenChunks())
	stats := c.ChunkStats()
	assert.Equal(t, uint64(1), stats.Broken, "загрузка повреждённого чанка предпринята один раз")
	assert.Equal(t, uint64(4), stats.Unavailable)
	assert.Equal(t, uint64(0), stats.Misses)

	assert.NotNil(t, c.GetChunk(good), "соседний чанк загружается")
	assert.Equal(t, 1, w.calls[good.Region()])
}

func TestGetChunk_CollisionEvicts(t *testing.T) {
	w := newMemWorld()
	a := mc.ChunkPos{X: 0, Z: 0}
	b := mc.ChunkPos{X: -ChunkCacheWidth, Z: ChunkCacheWidth}
	require.Equal(t,
		slotIndex(a.X, a.Z, ChunkCacheWidth, ChunkCacheSize, chunkBias),
		slotIndex(b.X, b.Z, ChunkCacheWidth, ChunkCacheSize, chunkBias))
	w.put(t, a.Region(), chunkWith(a, 1))
	w.put(t, b.Region(), chunkWith(b, 2))
	c := New(w)

	for i := 0; i < 2; i++ {
		ca := c.GetChunk(a)
		require.NotNil(t, ca)
		assert.Equal(t, uint16(1), ca.BlockID(testLocal))

		cb := c.GetChunk(b)
		require.NotNil(t, cb)
		assert.Equal(t, uint16(2), cb.BlockID(testLocal))
	}
	assert.Equal(t, CacheStats{Misses: 4}, c.ChunkStats(), "каждый запрос считается промахом")
}

func TestGetBlock_BelowFloor(t *testing.T) {
	w := newMemWorld()
	cp := mc.ChunkPos{}
	w.put(t, cp.Region(), chunkWith(cp, 1))
	c := New(w)

	pos := mc.BlockPos{X: 3, Z: 11, Y: -1}
	assert.Equal(t, mc.Block{}, c.GetBlock(pos, nil, mc.GetAll), "холодный кеш")
	assert.Empty(t, w.calls, "ниже дна мира хранилище не опрашивается")

	chunk := c.GetChunk(cp)
	require.NotNil(t, chunk)
	assert.Equal(t, mc.Block{}, c.GetBlock(pos, nil, mc.GetAll), "тёплый кеш")
	assert.Equal(t, mc.Block{}, c.GetBlock(pos, chunk, mc.GetAll), "с подсказкой")
}

func TestGetBlock_UnavailableChunk(t *testing.T) {
	c := New(newMemWorld())
	assert.Equal(t, mc.Block{}, c.GetBlock(mc.BlockPos{X: 100, Z: 100, Y: 64}, nil, mc.GetAll))
}

func TestGetBlock_FlagCombinations(t *testing.T) {
	w := newMemWorld()
	cp := mc.ChunkPos{X: -1, Z: 2}
	w.put(t, cp.Region(), chunkWith(cp, testBlock.ID))
	c := New(w)
	pos := testLocal.Global(cp)

	for get := mc.BlockFlags(0); get <= mc.GetAll; get++ {
		var want mc.Block
		if get.Has(mc.GetID) {
			want.ID = testBlock.ID
		}
		if get.Has(mc.GetData) {
			want.Data = testBlock.Data
		}
		if get.Has(mc.GetBiome) {
			want.Biome = testBlock.Biome
		}
		if get.Has(mc.GetBlockLight) {
			want.BlockLight = testBlock.BlockLight
		}
		if get.Has(mc.GetSkyLight) {
			want.SkyLight = testBlock.SkyLight
		}

		if diff := cmp.Diff(want, c.GetBlock(pos, nil, get)); diff != "" {
			t.Errorf("флаги %05b: (-want +got)\n%s", get, diff)
		}
	}
}

func TestGetBlock_MismatchedHintIgnored(t *testing.T) {
	w := newMemWorld()
	cp := mc.ChunkPos{X: 4, Z: 4}
	w.put(t, cp.Region(), chunkWith(cp, 1))
	c := New(w)

	// подсказка с другими координатами и другим содержимым
	stray := chunkWith(mc.ChunkPos{X: 5, Z: 4}, 77)

	b := c.GetBlock(testLocal.Global(cp), stray, mc.GetID)
	assert.Equal(t, uint16(1), b.ID, "данные взяты из настоящего чанка")
	assert.Equal(t, uint64(1), c.ChunkStats().Misses)
}

func TestGetBlock_MatchingHintSkipsLookup(t *testing.T) {
	w := newMemWorld()
	cp := mc.ChunkPos{X: 4, Z: 4}
	c := New(w)

	hint := chunkWith(cp, 33)
	b := c.GetBlock(testLocal.Global(cp), hint, mc.GetID|mc.GetSkyLight)
	assert.Equal(t, mc.Block{ID: 33, SkyLight: testBlock.SkyLight}, b)
	assert.Equal(t, uint64(0), c.ChunkStats().Lookups())
	assert.Empty(t, w.calls)
}

func TestGetBlock_ReturnsCopy(t *testing.T) {
	w := newMemWorld()
	cp := mc.ChunkPos{}
	w.put(t, cp.Region(), chunkWith(cp, 1))
	c := New(w)
	pos := testLocal.Global(cp)

	b := c.GetBlock(pos, nil, mc.GetAll)
	b.ID = 99
	assert.Equal(t, uint16(1), c.GetBlock(pos, nil, mc.GetID).ID)
}
