package region

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Tnze/go-mc/nbt"
	"github.com/annel0/worldcache/internal/mc"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Способы сжатия данных чанка
const (
	CompressionGzip byte = 1
	CompressionZlib byte = 2
	CompressionNone byte = 3
)

// chunkTag корневой NBT-тег чанка
type chunkTag struct {
	Level levelTag `nbt:"Level"`
}

type levelTag struct {
	XPos     int32        `nbt:"xPos"`
	ZPos     int32        `nbt:"zPos"`
	Biomes   []byte       `nbt:"Biomes"`
	Sections []sectionTag `nbt:"Sections"`
}

type sectionTag struct {
	Y          int8   `nbt:"Y"`
	Blocks     []byte `nbt:"Blocks"`
	Add        []byte `nbt:"Add"`
	Data       []byte `nbt:"Data"`
	BlockLight []byte `nbt:"BlockLight"`
	SkyLight   []byte `nbt:"SkyLight"`
}

func decompress(compression byte, payload []byte) ([]byte, error) {
	var r io.ReadCloser
	var err error
	switch compression {
	case CompressionGzip:
		r, err = gzip.NewReader(bytes.NewReader(payload))
	case CompressionZlib:
		r, err = zlib.NewReader(bytes.NewReader(payload))
	case CompressionNone:
		return payload, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, compression)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации распаковки: %w", err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки чанка: %w", err)
	}
	return raw, nil
}

// decodeChunk разбирает NBT чанка в dst. Ожидается, что чанк лежит по адресу pos.
func decodeChunk(raw []byte, pos mc.ChunkPos, dst *mc.Chunk) error {
	var root chunkTag
	if err := nbt.Unmarshal(raw, &root); err != nil {
		return fmt.Errorf("ошибка разбора NBT: %w", err)
	}

	level := &root.Level
	if level.XPos != pos.X || level.ZPos != pos.Z {
		return fmt.Errorf("%w: в файле c(%d,%d), ожидался %v", ErrChunkMismatch, level.XPos, level.ZPos, pos)
	}

	dst.Reset(pos)
	dst.SetBiomes(level.Biomes)

	for i := range level.Sections {
		tag := &level.Sections[i]
		if tag.Y < 0 || int(tag.Y) >= mc.SectionCount {
			continue
		}
		if err := tag.validate(); err != nil {
			return fmt.Errorf("секция %d: %w", tag.Y, err)
		}

		s := dst.EnsureSection(int(tag.Y))
		copy(s.Blocks[:], tag.Blocks)
		copy(s.Data[:], tag.Data)
		copy(s.BlockLight[:], tag.BlockLight)
		copy(s.SkyLight[:], tag.SkyLight)
		if len(tag.Add) > 0 {
			copy(s.Add[:], tag.Add)
		}
	}
	return nil
}

func (t *sectionTag) validate() error {
	const nibbles = mc.SectionVolume / 2
	switch {
	case len(t.Blocks) != mc.SectionVolume:
		return fmt.Errorf("%w: Blocks=%d", ErrBadSection, len(t.Blocks))
	case len(t.Data) != nibbles, len(t.BlockLight) != nibbles, len(t.SkyLight) != nibbles:
		return fmt.Errorf("%w: Data=%d BlockLight=%d SkyLight=%d",
			ErrBadSection, len(t.Data), len(t.BlockLight), len(t.SkyLight))
	case len(t.Add) != 0 && len(t.Add) != nibbles:
		return fmt.Errorf("%w: Add=%d", ErrBadSection, len(t.Add))
	}
	return nil
}

// encodeChunk сериализует чанк в NBT
func encodeChunk(c *mc.Chunk) ([]byte, error) {
	pos := c.Pos()
	root := chunkTag{Level: levelTag{
		XPos:     pos.X,
		ZPos:     pos.Z,
		Biomes:   c.Biomes(),
		Sections: make([]sectionTag, 0, mc.SectionCount),
	}}

	for y := 0; y < mc.SectionCount; y++ {
		s := c.Section(y)
		if s == nil {
			continue
		}
		tag := sectionTag{
			Y:          int8(y),
			Blocks:     s.Blocks[:],
			Data:       s.Data[:],
			BlockLight: s.BlockLight[:],
			SkyLight:   s.SkyLight[:],
		}
		if s.Add != (mc.NibbleArray{}) {
			tag.Add = s.Add[:]
		}
		root.Level.Sections = append(root.Level.Sections, tag)
	}

	data, err := nbt.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации NBT: %w", err)
	}
	return data, nil
}
