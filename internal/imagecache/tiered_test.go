package imagecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTiered_BackfillsUpperTiers(t *testing.T) {
	mem, err := NewMemory(8)
	require.NoError(t, err)
	disk, err := NewDisk(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	tiered := NewTiered(mem, disk)
	disk.Put("k", []byte("v"))

	data, ok := tiered.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), data)

	data, ok = mem.Get("k")
	require.True(t, ok, "memory tier should be back-filled")
	assert.Equal(t, []byte("v"), data)
}

func TestTiered_WritesAllTiers(t *testing.T) {
	mem, err := NewMemory(8)
	require.NoError(t, err)
	disk, err := NewDisk(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	tiered := NewTiered(mem, nil, disk)
	assert.Equal(t, 2, tiered.Len())

	tiered.Put("k", []byte("v"))

	_, ok := mem.Get("k")
	assert.True(t, ok)
	_, ok = disk.Get("k")
	assert.True(t, ok)
}

func TestTiered_ClearMemoryFallsBackToDisk(t *testing.T) {
	mem, err := NewMemory(8)
	require.NoError(t, err)
	disk, err := NewDisk(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	tiered := NewTiered(mem, disk)
	tiered.Put("k", []byte("v"))
	tiered.ClearMemory()

	assert.Equal(t, 0, mem.Len())
	data, ok := tiered.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), data)
}

func TestTiered_Empty(t *testing.T) {
	tiered := NewTiered()
	tiered.Put("k", []byte("v"))

	_, ok := tiered.Get("k")
	assert.False(t, ok)
	tiered.ClearMemory()
}
