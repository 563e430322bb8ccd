package probe

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/annel0/worldcache/internal/mc"
	"github.com/annel0/worldcache/internal/mc/region"
	"github.com/annel0/worldcache/internal/mc/world"
	"github.com/aquilax/go-perlin"
)

// Типы блоков синтетического мира
const (
	StoneBlockID uint16 = 1
	GrassBlockID uint16 = 2
	DirtBlockID  uint16 = 3
	SandBlockID  uint16 = 12

	SeaLevel = 62

	OceanBiome  uint8 = 0
	PlainsBiome uint8 = 1
)

// GenOptions параметры генерации синтетического мира
type GenOptions struct {
	Seed          int64
	Radius        int32 // регионы от -Radius до Radius-1 по обеим осям
	ChunksPerSide int32 // заполненных чанков вдоль стороны региона, до 32
	CorruptRegion bool  // добавить повреждённый файл региона
	CorruptChunks int   // испорченных чанков в каждом регионе
}

// Generate записывает синтетический мир в каталог dir
func Generate(dir string, opts GenOptions) error {
	if opts.Radius < 1 {
		opts.Radius = 1
	}
	if opts.ChunksPerSide < 1 || opts.ChunksPerSide > mc.RegionSize {
		opts.ChunksPerSide = 4
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("не удалось создать каталог мира %s: %w", dir, err)
	}

	noise := newTerrainNoise(opts.Seed)
	now := time.Now()

	for rz := -opts.Radius; rz < opts.Radius; rz++ {
		for rx := -opts.Radius; rx < opts.Radius; rx++ {
			pos := mc.RegionPos{X: rx, Z: rz}
			w := region.NewWriter(pos)
			broken := opts.CorruptChunks

			for cz := int32(0); cz < opts.ChunksPerSide; cz++ {
				for cx := int32(0); cx < opts.ChunksPerSide; cx++ {
					cp := mc.ChunkPos{X: rx*mc.RegionSize + cx, Z: rz*mc.RegionSize + cz}
					if broken > 0 {
						broken--
						if err := w.AddRaw(cp, region.CompressionZlib, []byte("not a zlib stream"), now); err != nil {
							return err
						}
						continue
					}
					if err := w.Add(noise.chunk(cp), now); err != nil {
						return err
					}
				}
			}

			if err := w.WriteFile(filepath.Join(dir, world.RegionFileName(pos))); err != nil {
				return err
			}
		}
	}

	if opts.CorruptRegion {
		// файл короче заголовка
		path := filepath.Join(dir, world.RegionFileName(mc.RegionPos{X: opts.Radius, Z: opts.Radius}))
		if err := os.WriteFile(path, []byte("corrupt"), 0644); err != nil {
			return fmt.Errorf("ошибка записи %s: %w", path, err)
		}
	}
	return nil
}

type terrainNoise struct {
	p *perlin.Perlin
}

func newTerrainNoise(seed int64) *terrainNoise {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &terrainNoise{p: perlin.NewPerlin(alpha, beta, n, seed)}
}

// height возвращает высоту поверхности в точке, в среднем от 40 до 104
func (t *terrainNoise) height(x, z int32) int32 {
	v := (t.p.Noise2D(float64(x)/64, float64(z)/64) + 1) / 2
	return 40 + int32(v*64)
}

func (t *terrainNoise) chunk(pos mc.ChunkPos) *mc.Chunk {
	c := mc.NewChunk(pos)
	for z := int32(0); z < mc.ChunkSize; z++ {
		for x := int32(0); x < mc.ChunkSize; x++ {
			g := mc.LocalBlockPos{X: x, Z: z}.Global(pos)
			h := t.height(g.X, g.Z)
			fillColumn(c, x, z, h)
		}
	}
	return c
}

func fillColumn(c *mc.Chunk, x, z, h int32) {
	underwater := h < SeaLevel
	for y := int32(0); y <= h; y++ {
		l := mc.LocalBlockPos{X: x, Z: z, Y: y}
		switch {
		case y == h && underwater:
			c.SetBlock(l, SandBlockID, 0)
		case y == h:
			c.SetBlock(l, GrassBlockID, 0)
		case y >= h-3:
			c.SetBlock(l, DirtBlockID, 0)
		default:
			c.SetBlock(l, StoneBlockID, 0)
		}
		c.SetLight(l, 0, 0)
	}

	for y := h + 1; y <= SeaLevel; y++ {
		l := mc.LocalBlockPos{X: x, Z: z, Y: y}
		c.SetBlock(l, mc.StillWaterBlockID, 0)
		c.SetLight(l, 0, waterSkyLight(SeaLevel-y+1))
	}

	if underwater {
		c.SetBiome(x, z, OceanBiome)
	} else {
		c.SetBiome(x, z, PlainsBiome)
	}
}

// waterSkyLight освещение от неба на глубине depth блоков воды
func waterSkyLight(depth int32) uint8 {
	if depth >= mc.MaxLight {
		return 0
	}
	return uint8(mc.MaxLight - depth)
}
