package world

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/worldcache/internal/mc"
	"github.com/annel0/worldcache/internal/mc/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRegion(t *testing.T, dir string, pos mc.RegionPos) {
	t.Helper()
	require.NoError(t, region.NewWriter(pos).WriteFile(filepath.Join(dir, RegionFileName(pos))))
}

func TestOpen_ScansRegionFiles(t *testing.T) {
	dir := t.TempDir()
	writeRegion(t, dir, mc.RegionPos{X: 1, Z: 0})
	writeRegion(t, dir, mc.RegionPos{X: -2, Z: 3})
	writeRegion(t, dir, mc.RegionPos{X: 0, Z: 0})

	// посторонние файлы игнорируются
	require.NoError(t, os.WriteFile(filepath.Join(dir, "level.dat"), []byte{1}, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.4.4.mca.bak"), []byte{1}, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.x.y.mca"), []byte{1}, 0644))

	d, err := Open(dir)
	require.NoError(t, err)

	assert.Equal(t, []mc.RegionPos{{X: 0, Z: 0}, {X: 1, Z: 0}, {X: -2, Z: 3}}, d.Regions())

	min, max := d.Bounds()
	assert.Equal(t, mc.RegionPos{X: -2, Z: 0}, min)
	assert.Equal(t, mc.RegionPos{X: 1, Z: 3}, max)
}

func TestOpen_RegionSubdirectory(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "region")
	require.NoError(t, os.Mkdir(sub, 0755))
	writeRegion(t, sub, mc.RegionPos{})

	d, err := Open(root)
	require.NoError(t, err)
	assert.Equal(t, sub, d.Path())
	assert.Len(t, d.Regions(), 1)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	_, err = Open(t.TempDir())
	assert.ErrorIs(t, err, ErrNoRegions)
}

func TestLoadRegion(t *testing.T) {
	dir := t.TempDir()
	writeRegion(t, dir, mc.RegionPos{X: 0, Z: 0})

	d, err := Open(dir)
	require.NoError(t, err)

	var f region.File
	require.True(t, d.LoadRegion(mc.RegionPos{}, &f))
	assert.Equal(t, filepath.Join(dir, "r.0.0.mca"), f.Path())
	assert.NoError(t, f.Read())

	// отсутствующий регион не трогает dst
	assert.False(t, d.LoadRegion(mc.RegionPos{X: 7}, &f))
	assert.Equal(t, mc.RegionPos{}, f.Pos())

	// регион, дописанный после Open, тоже находится
	writeRegion(t, dir, mc.RegionPos{X: 7})
	assert.True(t, d.LoadRegion(mc.RegionPos{X: 7}, &f))
	assert.Equal(t, mc.RegionPos{X: 7}, f.Pos())
}
