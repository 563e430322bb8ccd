package mc

import "fmt"

const (
	// ChunkSize ширина чанка в блоках по X и Z
	ChunkSize = 16
	// ChunkHeight высота чанка в блоках
	ChunkHeight = 256
	// RegionSize ширина региона в чанках по X и Z
	RegionSize = 32
)

// RegionPos координаты региона (одного файла r.X.Z.mca)
type RegionPos struct {
	X, Z int32
}

func (p RegionPos) String() string {
	return fmt.Sprintf("r(%d,%d)", p.X, p.Z)
}

// ChunkPos координаты чанка в мире
type ChunkPos struct {
	X, Z int32
}

// Region возвращает регион, которому принадлежит чанк (деление на 32)
func (p ChunkPos) Region() RegionPos {
	return RegionPos{X: p.X >> 5, Z: p.Z >> 5}
}

// LocalInRegion возвращает координаты чанка внутри региона, 0..31
func (p ChunkPos) LocalInRegion() (int, int) {
	return int(p.X & (RegionSize - 1)), int(p.Z & (RegionSize - 1))
}

func (p ChunkPos) String() string {
	return fmt.Sprintf("c(%d,%d)", p.X, p.Z)
}

// BlockPos глобальные координаты блока. Y может быть отрицательным
// (запросы ниже дна мира), это не ошибка.
type BlockPos struct {
	X, Z, Y int32
}

// Chunk возвращает чанк, содержащий блок (деление на 16)
func (p BlockPos) Chunk() ChunkPos {
	return ChunkPos{X: p.X >> 4, Z: p.Z >> 4}
}

// Local возвращает координаты блока относительно начала его чанка
func (p BlockPos) Local() LocalBlockPos {
	return LocalBlockPos{X: p.X & (ChunkSize - 1), Z: p.Z & (ChunkSize - 1), Y: p.Y}
}

func (p BlockPos) String() string {
	return fmt.Sprintf("b(%d,%d,%d)", p.X, p.Z, p.Y)
}

// LocalBlockPos координаты блока внутри чанка: X, Z в 0..15, Y в 0..255
type LocalBlockPos struct {
	X, Z, Y int32
}

// Global восстанавливает глобальные координаты блока для чанка pos
func (p LocalBlockPos) Global(pos ChunkPos) BlockPos {
	return BlockPos{X: pos.X*ChunkSize + p.X, Z: pos.Z*ChunkSize + p.Z, Y: p.Y}
}
