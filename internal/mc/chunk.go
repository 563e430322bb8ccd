package mc

const (
	// SectionHeight высота секции чанка в блоках
	SectionHeight = 16
	// SectionCount количество секций в чанке
	SectionCount = ChunkHeight / SectionHeight
	// SectionVolume количество блоков в секции
	SectionVolume = ChunkSize * ChunkSize * SectionHeight

	// MaxLight максимальный уровень освещения
	MaxLight = 15

	// DefaultBiome биом для чанков без массива биомов (равнины)
	DefaultBiome = 1
)

// NibbleArray упакованный массив 4-битных значений, два на байт.
// Чётный индекс хранится в младшем полубайте.
type NibbleArray [SectionVolume / 2]byte

// Get возвращает значение по индексу блока в секции
func (n *NibbleArray) Get(i int) uint8 {
	if i&1 == 0 {
		return n[i>>1] & 0x0F
	}
	return n[i>>1] >> 4
}

// Set записывает значение (0..15) по индексу блока в секции
func (n *NibbleArray) Set(i int, v uint8) {
	v &= 0x0F
	if i&1 == 0 {
		n[i>>1] = n[i>>1]&0xF0 | v
	} else {
		n[i>>1] = n[i>>1]&0x0F | v<<4
	}
}

// Fill заполняет массив одним значением
func (n *NibbleArray) Fill(v uint8) {
	b := v&0x0F | v<<4
	for i := range n {
		n[i] = b
	}
}

// Section 16 блоков по высоте одного чанка.
// Индекс блока: y*256 + z*16 + x.
type Section struct {
	Y          int
	Blocks     [SectionVolume]byte
	Add        NibbleArray
	Data       NibbleArray
	BlockLight NibbleArray
	SkyLight   NibbleArray
}

func (s *Section) reset(y int) {
	*s = Section{Y: y}
}

// SectionIndex возвращает индекс блока внутри секции
func SectionIndex(x, y, z int) int {
	return (y&(SectionHeight-1))<<8 | z<<4 | x
}

// Chunk декодированный чанк: до 16 секций и карта биомов 16x16.
// Отсутствующая секция означает воздух.
type Chunk struct {
	pos       ChunkPos
	sections  [SectionCount]*Section
	biomes    [ChunkSize * ChunkSize]byte
	hasBiomes bool

	spare []*Section // секции, освобождённые Reset, для повторного использования
}

// NewChunk создаёт пустой чанк с указанными координатами
func NewChunk(pos ChunkPos) *Chunk {
	return &Chunk{pos: pos}
}

// Reset очищает чанк для повторного заполнения, сохраняя выделенные секции
func (c *Chunk) Reset(pos ChunkPos) {
	c.pos = pos
	for i, s := range c.sections {
		if s != nil {
			c.spare = append(c.spare, s)
			c.sections[i] = nil
		}
	}
	c.biomes = [ChunkSize * ChunkSize]byte{}
	c.hasBiomes = false
}

// Pos возвращает координаты чанка
func (c *Chunk) Pos() ChunkPos {
	return c.pos
}

// Section возвращает секцию по номеру 0..15 или nil
func (c *Chunk) Section(y int) *Section {
	if y < 0 || y >= SectionCount {
		return nil
	}
	return c.sections[y]
}

// EnsureSection возвращает секцию, создавая пустую при необходимости.
// Для номера вне 0..15 возвращает nil.
func (c *Chunk) EnsureSection(y int) *Section {
	if y < 0 || y >= SectionCount {
		return nil
	}
	if s := c.sections[y]; s != nil {
		return s
	}
	var s *Section
	if n := len(c.spare); n > 0 {
		s = c.spare[n-1]
		c.spare = c.spare[:n-1]
	} else {
		s = new(Section)
	}
	s.reset(y)
	c.sections[y] = s
	return s
}

// Biomes возвращает карту биомов, индекс z*16 + x
func (c *Chunk) Biomes() []byte {
	if !c.hasBiomes {
		return nil
	}
	return c.biomes[:]
}

// SetBiomes копирует карту биомов. Массив неверной длины сбрасывает карту.
func (c *Chunk) SetBiomes(biomes []byte) {
	if len(biomes) != len(c.biomes) {
		c.hasBiomes = false
		return
	}
	copy(c.biomes[:], biomes)
	c.hasBiomes = true
}

func (c *Chunk) lookup(l LocalBlockPos) (*Section, int) {
	if l.Y < 0 || l.Y >= ChunkHeight {
		return nil, 0
	}
	s := c.sections[l.Y/SectionHeight]
	if s == nil {
		return nil, 0
	}
	return s, SectionIndex(int(l.X), int(l.Y), int(l.Z))
}

// BlockID возвращает тип блока
func (c *Chunk) BlockID(l LocalBlockPos) uint16 {
	s, i := c.lookup(l)
	if s == nil {
		return 0
	}
	return uint16(s.Blocks[i]) | uint16(s.Add.Get(i))<<8
}

// BlockData возвращает вариант блока
func (c *Chunk) BlockData(l LocalBlockPos) uint16 {
	s, i := c.lookup(l)
	if s == nil {
		return 0
	}
	return uint16(s.Data.Get(i))
}

// Biome возвращает биом столбца блока
func (c *Chunk) Biome(l LocalBlockPos) uint8 {
	if !c.hasBiomes {
		return DefaultBiome
	}
	return c.biomes[l.Z*ChunkSize+l.X]
}

// BlockLight возвращает уровень освещения от блоков
func (c *Chunk) BlockLight(l LocalBlockPos) uint8 {
	s, i := c.lookup(l)
	if s == nil {
		return 0
	}
	return s.BlockLight.Get(i)
}

// SkyLight возвращает уровень освещения от неба.
// Вне существующих секций небо видно полностью.
func (c *Chunk) SkyLight(l LocalBlockPos) uint8 {
	s, i := c.lookup(l)
	if s == nil {
		return MaxLight
	}
	return s.SkyLight.Get(i)
}

// SetBlock устанавливает тип и вариант блока.
// Новая секция создаётся с полным освещением от неба.
func (c *Chunk) SetBlock(l LocalBlockPos, id, data uint16) {
	s, i := c.ensure(l)
	if s == nil {
		return
	}
	s.Blocks[i] = byte(id)
	s.Add.Set(i, uint8(id>>8))
	s.Data.Set(i, uint8(data))
}

// SetLight устанавливает уровни освещения блока
func (c *Chunk) SetLight(l LocalBlockPos, blockLight, skyLight uint8) {
	s, i := c.ensure(l)
	if s == nil {
		return
	}
	s.BlockLight.Set(i, blockLight)
	s.SkyLight.Set(i, skyLight)
}

// SetBiome устанавливает биом столбца. Остальные столбцы получают DefaultBiome,
// если карты биомов ещё не было.
func (c *Chunk) SetBiome(x, z int32, biome uint8) {
	if !c.hasBiomes {
		for i := range c.biomes {
			c.biomes[i] = DefaultBiome
		}
		c.hasBiomes = true
	}
	c.biomes[z*ChunkSize+x] = biome
}

func (c *Chunk) ensure(l LocalBlockPos) (*Section, int) {
	if l.Y < 0 || l.Y >= ChunkHeight {
		return nil, 0
	}
	y := int(l.Y) / SectionHeight
	fresh := c.sections[y] == nil
	s := c.EnsureSection(y)
	if fresh {
		s.SkyLight.Fill(MaxLight)
	}
	return s, SectionIndex(int(l.X), int(l.Y), int(l.Z))
}
