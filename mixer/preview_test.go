package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holodeck/assets"
	"holodeck/audio"
)

func TestPreviewLoadsWithoutPlaying(t *testing.T) {
	engine := audio.NewSilentEngine()
	p := NewPreview(engine, fileURL, nil)

	a := song(4, "theme")
	require.NoError(t, p.Show(&a))
	require.Len(t, engine.Handles(), 1)
	h := engine.Handles()[0]
	assert.Equal(t, PreviewVolume, h.Volume())
	assert.Equal(t, "http://store/uploads/theme.mp3", h.URL())
	assert.False(t, p.Playing())
	assert.Equal(t, uint64(4), p.AssetID())

	p.Play()
	p.Play()
	assert.True(t, p.Playing())
	p.Pause()
	assert.False(t, p.Playing())
	p.Play()
	p.Stop()
	assert.False(t, h.Playing())
}

func TestPreviewReleasesPreviousHandle(t *testing.T) {
	engine := audio.NewSilentEngine()
	p := NewPreview(engine, fileURL, nil)

	first := song(4, "theme")
	require.NoError(t, p.Show(&first))
	p.Play()

	second := song(5, "outro")
	require.NoError(t, p.Show(&second))
	hs := engine.Handles()
	require.Len(t, hs, 2)
	assert.True(t, hs[0].Unloaded())
	assert.False(t, hs[0].Playing())
	assert.False(t, hs[1].Unloaded())

	model := assets.Asset{ID: 6, AssetType: assets.TypeModel3D}
	require.NoError(t, p.Show(&model))
	assert.True(t, hs[1].Unloaded())
	assert.Equal(t, uint64(0), p.AssetID())
	assert.Len(t, engine.Handles(), 2)

	p.Play()
	assert.False(t, p.Playing())
}

func TestPreviewClose(t *testing.T) {
	engine := audio.NewSilentEngine()
	p := NewPreview(engine, fileURL, nil)
	a := song(4, "theme")
	require.NoError(t, p.Show(&a))

	p.Close()
	assert.True(t, engine.Handles()[0].Unloaded())
	assert.Equal(t, uint64(0), p.AssetID())
}
