package region

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/annel0/worldcache/internal/mc"
	"github.com/klauspost/compress/zlib"
	"github.com/natefinch/atomic"
)

type rawChunk struct {
	compression byte
	payload     []byte
	timestamp   uint32
}

// Writer собирает образ региона в памяти. Используется генератором
// миров и тестами.
type Writer struct {
	pos    mc.RegionPos
	chunks [chunksPerRegion]*rawChunk
}

// NewWriter создаёт пустой регион
func NewWriter(pos mc.RegionPos) *Writer {
	return &Writer{pos: pos}
}

// Add сжимает чанк zlib и добавляет его в регион
func (w *Writer) Add(c *mc.Chunk, modified time.Time) error {
	raw, err := encodeChunk(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return fmt.Errorf("ошибка сжатия чанка %v: %w", c.Pos(), err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("ошибка сжатия чанка %v: %w", c.Pos(), err)
	}

	return w.AddRaw(c.Pos(), CompressionZlib, buf.Bytes(), modified)
}

// AddRaw добавляет уже подготовленные данные чанка как есть
func (w *Writer) AddRaw(pos mc.ChunkPos, compression byte, payload []byte, modified time.Time) error {
	if pos.Region() != w.pos {
		return fmt.Errorf("чанк %v не принадлежит региону %v", pos, w.pos)
	}
	x, z := pos.LocalInRegion()
	var ts uint32
	if !modified.IsZero() {
		ts = uint32(modified.Unix())
	}
	w.chunks[z*mc.RegionSize+x] = &rawChunk{compression: compression, payload: payload, timestamp: ts}
	return nil
}

// Bytes возвращает образ файла региона
func (w *Writer) Bytes() []byte {
	out := make([]byte, HeaderSize)
	sector := HeaderSize / SectorSize

	for i, c := range w.chunks {
		if c == nil {
			continue
		}
		size := 5 + len(c.payload)
		count := (size + SectorSize - 1) / SectorSize

		binary.BigEndian.PutUint32(out[i*4:], uint32(sector)<<8|uint32(count&0xFF))
		binary.BigEndian.PutUint32(out[SectorSize+i*4:], c.timestamp)

		block := make([]byte, count*SectorSize)
		binary.BigEndian.PutUint32(block, uint32(len(c.payload)+1))
		block[4] = c.compression
		copy(block[5:], c.payload)
		out = append(out, block...)
		sector += count
	}
	return out
}

// WriteFile атомарно записывает регион на диск
func (w *Writer) WriteFile(path string) error {
	if err := atomic.WriteFile(path, bytes.NewReader(w.Bytes())); err != nil {
		return fmt.Errorf("ошибка записи региона %s: %w", path, err)
	}
	return nil
}
