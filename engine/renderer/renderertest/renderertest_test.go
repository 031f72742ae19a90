package renderertest_test

import (
	"testing"

	"github.com/Carmen-Shannon/phex-go/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/phex-go/engine/renderer/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepeatedWriteLeavesContentsUnchanged(t *testing.T) {
	backend := renderertest.NewBackend(renderertest.NewRecorder())
	m := resource.NewManager(backend)
	buf, err := m.CreateBuffer("scales", resource.BufferUsageStorage, 16)
	require.NoError(t, err)

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, m.WriteBuffer(buf, 8, data))
	first := backend.Contents("scales")
	require.NoError(t, m.WriteBuffer(buf, 8, data))

	assert.Equal(t, first, backend.Contents("scales"))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8}, first)
	assert.Len(t, backend.Writes, 2)
}

func TestWriteAppliesAtOffset(t *testing.T) {
	backend := renderertest.NewBackend(renderertest.NewRecorder())
	m := resource.NewManager(backend)
	buf, err := m.CreateBuffer("bases", resource.BufferUsageStorage, 8)
	require.NoError(t, err)

	require.NoError(t, m.WriteBuffer(buf, 0, []byte{9, 9, 9, 9, 9, 9, 9, 9}))
	require.NoError(t, m.WriteBuffer(buf, 4, []byte{1, 1, 1, 1}))
	assert.Equal(t, []byte{9, 9, 9, 9, 1, 1, 1, 1}, backend.Contents("bases"))
	assert.Nil(t, backend.Contents("missing"))
}
