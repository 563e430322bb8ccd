package world

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/annel0/worldcache/internal/mc"
	"github.com/annel0/worldcache/internal/mc/region"
)

// Dir мир, хранящийся как каталог файлов r.<x>.<z>.mca
type Dir struct {
	path    string
	regions map[mc.RegionPos]string
}

// ErrNoRegions возвращается, если в каталоге нет ни одного файла региона
var ErrNoRegions = errors.New("world: в каталоге нет файлов регионов")

// RegionFileName возвращает имя файла региона
func RegionFileName(pos mc.RegionPos) string {
	return fmt.Sprintf("r.%d.%d.mca", pos.X, pos.Z)
}

// Open сканирует каталог мира. Каталог region/ внутри используется, если он есть.
func Open(path string) (*Dir, error) {
	if sub := filepath.Join(path, "region"); isDir(sub) {
		path = sub
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть мир %s: %w", path, err)
	}

	d := &Dir{path: path, regions: make(map[mc.RegionPos]string)}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var pos mc.RegionPos
		if _, err := fmt.Sscanf(e.Name(), "r.%d.%d.mca", &pos.X, &pos.Z); err != nil {
			continue
		}
		// Sscanf принимает и r.1.2.mcaX, поэтому сверяем имя целиком
		if e.Name() != RegionFileName(pos) {
			continue
		}
		d.regions[pos] = filepath.Join(path, e.Name())
	}

	if len(d.regions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRegions, path)
	}
	return d, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Path возвращает каталог с файлами регионов
func (d *Dir) Path() string {
	return d.path
}

// LoadRegion назначает файл региона в dst. Возвращает false, если региона нет.
// Регионы, появившиеся после Open, тоже находятся.
func (d *Dir) LoadRegion(pos mc.RegionPos, dst *region.File) bool {
	path, ok := d.regions[pos]
	if !ok {
		path = filepath.Join(d.path, RegionFileName(pos))
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	dst.Assign(pos, path)
	return true
}

// Regions возвращает отсортированный список регионов, найденных при Open
func (d *Dir) Regions() []mc.RegionPos {
	out := make([]mc.RegionPos, 0, len(d.regions))
	for pos := range d.regions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		return out[i].X < out[j].X
	})
	return out
}

// Bounds возвращает минимальные и максимальные координаты регионов
func (d *Dir) Bounds() (min, max mc.RegionPos) {
	first := true
	for pos := range d.regions {
		if first {
			min, max = pos, pos
			first = false
			continue
		}
		if pos.X < min.X {
			min.X = pos.X
		}
		if pos.Z < min.Z {
			min.Z = pos.Z
		}
		if pos.X > max.X {
			max.X = pos.X
		}
		if pos.Z > max.Z {
			max.Z = pos.Z
		}
	}
	return min, max
}
