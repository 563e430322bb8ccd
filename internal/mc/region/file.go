package region

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/annel0/worldcache/internal/mc"
)

const (
	// SectorSize размер сектора региона в байтах
	SectorSize = 4096
	// HeaderSize размер заголовка: таблица расположений и таблица времени
	HeaderSize = 2 * SectorSize

	chunksPerRegion = mc.RegionSize * mc.RegionSize
)

var (
	ErrNotAssigned        = errors.New("region: файл региона не назначен")
	ErrHeaderTooShort     = errors.New("region: заголовок короче 8 КиБ")
	ErrBadLocation        = errors.New("region: запись расположения чанка вне файла")
	ErrNotRead            = errors.New("region: регион не прочитан")
	ErrBadLength          = errors.New("region: неверная длина данных чанка")
	ErrUnknownCompression = errors.New("region: неизвестный способ сжатия")
	ErrChunkMismatch      = errors.New("region: координаты чанка не совпадают")
	ErrBadSection         = errors.New("region: повреждённая секция")
)

// LoadStatus результат загрузки чанка
type LoadStatus int

const (
	ChunkOK LoadStatus = iota
	ChunkDoesNotExist
	ChunkOtherError
)

func (s LoadStatus) String() string {
	switch s {
	case ChunkOK:
		return "OK"
	case ChunkDoesNotExist:
		return "DOES_NOT_EXIST"
	case ChunkOtherError:
		return "OTHER_ERROR"
	default:
		return "UNKNOWN"
	}
}

// File регион в формате Anvil: заголовок на 1024 чанка и секторы с
// сжатыми данными. Файл назначается методом Assign или AssignData
// и становится пригодным после успешного Read.
type File struct {
	pos  mc.RegionPos
	path string
	src  []byte

	data       []byte
	locations  [chunksPerRegion]uint32
	timestamps [chunksPerRegion]uint32
	read       bool
}

// Assign назначает файл на диске. Предыдущее содержимое сбрасывается.
func (f *File) Assign(pos mc.RegionPos, path string) {
	f.reset(pos)
	f.path = path
}

// AssignData назначает образ региона в памяти
func (f *File) AssignData(pos mc.RegionPos, data []byte) {
	f.reset(pos)
	f.src = data
}

func (f *File) reset(pos mc.RegionPos) {
	f.pos = pos
	f.path = ""
	f.src = nil
	f.data = nil
	f.read = false
}

// Pos возвращает координаты региона
func (f *File) Pos() mc.RegionPos {
	return f.pos
}

// Path возвращает путь к файлу или пустую строку для региона в памяти
func (f *File) Path() string {
	return f.path
}

// Read загружает данные региона и проверяет заголовок
func (f *File) Read() error {
	f.read = false

	switch {
	case f.path != "":
		data, err := os.ReadFile(f.path)
		if err != nil {
			return fmt.Errorf("ошибка чтения %s: %w", f.path, err)
		}
		f.data = data
	case f.src != nil:
		f.data = f.src
	default:
		return ErrNotAssigned
	}

	if len(f.data) < HeaderSize {
		return fmt.Errorf("%w: %d байт", ErrHeaderTooShort, len(f.data))
	}

	for i := 0; i < chunksPerRegion; i++ {
		loc := binary.BigEndian.Uint32(f.data[i*4:])
		f.locations[i] = loc
		f.timestamps[i] = binary.BigEndian.Uint32(f.data[SectorSize+i*4:])
		if loc == 0 {
			continue
		}

		offset, count := int(loc>>8), int(loc&0xFF)
		if offset < HeaderSize/SectorSize || count == 0 || offset*SectorSize >= len(f.data) {
			return fmt.Errorf("%w: чанк %d, сектор %d, секторов %d", ErrBadLocation, i, offset, count)
		}
	}

	f.read = true
	return nil
}

func (f *File) index(pos mc.ChunkPos) (int, bool) {
	if pos.Region() != f.pos {
		return 0, false
	}
	x, z := pos.LocalInRegion()
	return z*mc.RegionSize + x, true
}

// ContainsChunk сообщает, есть ли данные чанка в регионе
func (f *File) ContainsChunk(pos mc.ChunkPos) bool {
	i, ok := f.index(pos)
	return ok && f.read && f.locations[i] != 0
}

// Timestamp возвращает время последней записи чанка
func (f *File) Timestamp(pos mc.ChunkPos) time.Time {
	i, ok := f.index(pos)
	if !ok || !f.read || f.timestamps[i] == 0 {
		return time.Time{}
	}
	return time.Unix(int64(f.timestamps[i]), 0)
}

// Chunks возвращает координаты всех чанков региона
func (f *File) Chunks() []mc.ChunkPos {
	if !f.read {
		return nil
	}
	var out []mc.ChunkPos
	for i, loc := range f.locations {
		if loc == 0 {
			continue
		}
		out = append(out, mc.ChunkPos{
			X: f.pos.X*mc.RegionSize + int32(i%mc.RegionSize),
			Z: f.pos.Z*mc.RegionSize + int32(i/mc.RegionSize),
		})
	}
	return out
}

// LoadChunk декодирует чанк в dst. Ошибка возвращается только вместе
// со статусом ChunkOtherError. При ChunkDoesNotExist dst не изменяется.
func (f *File) LoadChunk(pos mc.ChunkPos, dst *mc.Chunk) (LoadStatus, error) {
	if !f.read {
		return ChunkOtherError, ErrNotRead
	}
	i, ok := f.index(pos)
	if !ok || f.locations[i] == 0 {
		return ChunkDoesNotExist, nil
	}

	start := int(f.locations[i]>>8) * SectorSize
	if start+5 > len(f.data) {
		return ChunkOtherError, fmt.Errorf("%w: %v за концом файла", ErrBadLength, pos)
	}
	length := int(binary.BigEndian.Uint32(f.data[start:]))
	if length < 1 || start+4+length > len(f.data) {
		return ChunkOtherError, fmt.Errorf("%w: %v, длина %d", ErrBadLength, pos, length)
	}

	compression := f.data[start+4]
	raw, err := decompress(compression, f.data[start+5:start+4+length])
	if err != nil {
		return ChunkOtherError, fmt.Errorf("чанк %v: %w", pos, err)
	}
	if err := decodeChunk(raw, pos, dst); err != nil {
		return ChunkOtherError, fmt.Errorf("чанк %v: %w", pos, err)
	}
	return ChunkOK, nil
}
