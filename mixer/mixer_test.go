package mixer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holodeck/assets"
	"holodeck/audio"
)

func fileURL(p string) string { return assets.FileURL("http://store", p) }

func song(id uint64, name string) assets.Asset {
	return assets.Asset{ID: id, Name: name, AssetType: assets.TypeAudio, FilePath: "./uploads/" + name + ".mp3"}
}

func newMixer(t *testing.T) (*Mixer, *audio.SilentEngine) {
	t.Helper()
	engine := audio.NewSilentEngine()
	m := New(engine, fileURL, nil)
	t.Cleanup(m.Close)
	return m, engine
}

func TestAddTrackIsIdempotent(t *testing.T) {
	m, engine := newMixer(t)

	added, err := m.AddTrack(song(1, "rain"))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = m.AddTrack(song(1, "rain"))
	require.NoError(t, err)
	assert.False(t, added)

	tracks := m.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, Track{AssetID: 1, Name: "rain", URL: "http://store/uploads/rain.mp3", Volume: DefaultVolume}, tracks[0])
	require.Len(t, engine.Handles(), 1)
	assert.Equal(t, DefaultVolume, engine.Handles()[0].Volume())
	assert.False(t, engine.Handles()[0].Playing())
}

func TestAddTrackIgnoresNonAudio(t *testing.T) {
	m, engine := newMixer(t)
	added, err := m.AddTrack(assets.Asset{ID: 2, AssetType: assets.TypeModel3D, FilePath: "./uploads/chair.glb"})
	require.NoError(t, err)
	assert.False(t, added)
	assert.Empty(t, m.Tracks())
	assert.Empty(t, engine.Handles())
}

func TestToggleFollowsEngineState(t *testing.T) {
	m, engine := newMixer(t)
	_, err := m.AddTrack(song(1, "rain"))
	require.NoError(t, err)
	h := engine.Handles()[0]

	require.NoError(t, m.TogglePlayPause(1))
	assert.True(t, h.Playing())
	tr, _ := m.Track(1)
	assert.True(t, tr.Playing)

	require.NoError(t, m.TogglePlayPause(1))
	assert.False(t, h.Playing())
	tr, _ = m.Track(1)
	assert.False(t, tr.Playing)

	// The sound ending on its own is reflected without any mixer call.
	require.NoError(t, m.TogglePlayPause(1))
	h.Finish()
	tr, _ = m.Track(1)
	assert.False(t, tr.Playing)

	require.NoError(t, m.TogglePlayPause(1))
	assert.True(t, h.Playing())

	assert.ErrorIs(t, m.TogglePlayPause(99), ErrNoTrack)
}

func TestSetVolumeClamps(t *testing.T) {
	m, engine := newMixer(t)
	_, _ = m.AddTrack(song(1, "rain"))

	require.NoError(t, m.SetVolume(1, 1.7))
	tr, _ := m.Track(1)
	assert.Equal(t, 1.0, tr.Volume)
	assert.Equal(t, 1.0, engine.Handles()[0].Volume())

	require.NoError(t, m.SetVolume(1, 0.2))
	tr, _ = m.Track(1)
	assert.Equal(t, 0.2, tr.Volume)

	assert.ErrorIs(t, m.SetVolume(3, 0.5), ErrNoTrack)
}

func TestMasterToggle(t *testing.T) {
	m, engine := newMixer(t)
	_, _ = m.AddTrack(song(1, "rain"))
	_, _ = m.AddTrack(song(2, "wind"))
	_, _ = m.AddTrack(song(3, "birds"))
	hs := engine.Handles()

	require.NoError(t, m.TogglePlayPause(2))

	assert.True(t, m.ToggleMasterPlayPause())
	for _, h := range hs {
		assert.True(t, h.Playing(), h.URL())
	}

	// Individual toggles drift from the master flag without correcting it.
	require.NoError(t, m.TogglePlayPause(1))
	assert.True(t, m.MasterPlaying())

	assert.False(t, m.ToggleMasterPlayPause())
	for _, tr := range m.Tracks() {
		assert.False(t, tr.Playing, tr.Name)
	}
}

func TestRemoveTrackUnloads(t *testing.T) {
	m, engine := newMixer(t)
	_, _ = m.AddTrack(song(1, "rain"))
	_, _ = m.AddTrack(song(2, "wind"))
	require.NoError(t, m.TogglePlayPause(1))

	require.NoError(t, m.RemoveTrack(1))
	h := engine.Handles()[0]
	assert.True(t, h.Unloaded())
	assert.False(t, h.Playing())

	tracks := m.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, uint64(2), tracks[0].AssetID)
	assert.ErrorIs(t, m.RemoveTrack(1), ErrNoTrack)

	added, err := m.AddTrack(song(1, "rain"))
	require.NoError(t, err)
	assert.True(t, added)
}

func TestAvailable(t *testing.T) {
	m, _ := newMixer(t)
	_, _ = m.AddTrack(song(1, "rain"))

	list := []assets.Asset{
		song(1, "rain"),
		song(2, "wind"),
		{ID: 3, Name: "chair", AssetType: assets.TypeModel3D},
	}
	got := m.Available(list)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), got[0].ID)
}

type brokenEngine struct{}

func (brokenEngine) Open(string, audio.Options) (audio.Handle, error) {
	return nil, errors.New("no device")
}

func TestAddTrackOpenFailure(t *testing.T) {
	m := New(brokenEngine{}, fileURL, nil)
	added, err := m.AddTrack(song(1, "rain"))
	assert.Error(t, err)
	assert.False(t, added)
	assert.Empty(t, m.Tracks())
}

func TestCloseUnloadsAll(t *testing.T) {
	engine := audio.NewSilentEngine()
	m := New(engine, fileURL, nil)
	_, _ = m.AddTrack(song(1, "rain"))
	_, _ = m.AddTrack(song(2, "wind"))

	m.Close()
	assert.Empty(t, m.Tracks())
	for _, h := range engine.Handles() {
		assert.True(t, h.Unloaded())
	}
}
