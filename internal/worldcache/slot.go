package worldcache

// Параметры кеша регионов: 4x4 слота
const (
	RegionCacheWidth = 4
	RegionCacheSize  = RegionCacheWidth * RegionCacheWidth
	regionBias       = 4096
)

// Параметры кеша чанков: 32x32 слота
const (
	ChunkCacheWidth = 32
	ChunkCacheSize  = ChunkCacheWidth * ChunkCacheWidth
	chunkBias       = 4096 * 32
)

// slotIndex отображает координату на слот прямого отображения.
// width и size должны быть степенями двойки. Смещение bias делает
// координаты неотрицательными, не меняя их остатка по модулю width.
func slotIndex(x, z, width, size, bias int32) int {
	mask := width - 1
	return int((((x+bias)&mask)*width + ((z+bias) & mask)) & (size - 1))
}

// Slot ячейка кеша: флаг занятости, ключ и значение. Значение
// заполняется на месте, ячейки не перевыделяются.
type Slot[K comparable, V any] struct {
	used  bool
	key   K
	value V
}

// directCache фиксированный массив слотов и множество ключей, загрузка
// которых однажды провалилась. Множество никогда не очищается: его рост
// ограничен числом различных повреждённых контейнеров.
type directCache[K comparable, V any] struct {
	slots  []Slot[K, V]
	index  func(K) int
	broken map[K]struct{}
	stats  CacheStats
}

func newDirectCache[K comparable, V any](size int, index func(K) int) directCache[K, V] {
	return directCache[K, V]{
		slots:  make([]Slot[K, V], size),
		index:  index,
		broken: make(map[K]struct{}),
	}
}

func (c *directCache[K, V]) slot(key K) *Slot[K, V] {
	return &c.slots[c.index(key)]
}

// lookup возвращает слот ключа и признак попадания
func (c *directCache[K, V]) lookup(key K) (*Slot[K, V], bool) {
	s := c.slot(key)
	return s, s.used && s.key == key
}

func (c *directCache[K, V]) isBroken(key K) bool {
	_, ok := c.broken[key]
	return ok
}

func (c *directCache[K, V]) markBroken(s *Slot[K, V], key K) {
	s.used = false
	c.broken[key] = struct{}{}
	c.stats.Broken++
}

func (s *Slot[K, V]) fill(key K) *V {
	s.used = true
	s.key = key
	return &s.value
}
