package holodeck

import (
	"context"
	"math"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holodeck/assets"
	"holodeck/audio"
	"holodeck/client"
	"holodeck/editor"
	"holodeck/library"
	"holodeck/scene"
)

type meshLoader struct {
	gate chan struct{}
}

func (l *meshLoader) Load(ctx context.Context, url string) (*scene.Node, error) {
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	root := scene.NewGroup(url)
	root.Add(scene.NewMesh("body", &scene.Geometry{Name: "body", Primitives: 1}, &scene.Material{Name: "paint"}))
	return root, nil
}

func newSession(t *testing.T, loader scene.Loader) (*Session, *audio.SilentEngine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	db, err := assets.OpenDatabase("sqlite", filepath.Join(dir, "holodeck.db"))
	require.NoError(t, err)
	blobs, err := assets.NewLocalStorage(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	mod, err := assets.NewModule(db, blobs, nil, nil)
	require.NoError(t, err)
	r := gin.New()
	mod.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := client.New(srv.URL, srv.Client(), nil)
	require.NoError(t, err)

	engine := audio.NewSilentEngine()
	s := New(c, Options{Loader: loader, Engine: engine}, nil)
	t.Cleanup(s.Close)
	require.NoError(t, s.Start(context.Background()))
	return s, engine
}

func upload(t *testing.T, s *Session, filename string, typ assets.AssetType) assets.Asset {
	t.Helper()
	f := library.NewForm()
	f.Type = typ
	f.SetFile(filename, strings.NewReader("payload"))
	_, err := s.Library.Upload(context.Background(), f)
	require.NoError(t, err)
	for _, a := range s.Store.Assets() {
		if a.Name == strings.TrimSuffix(filename, filepath.Ext(filename)) {
			return a
		}
	}
	t.Fatalf("uploaded asset %s not in list", filename)
	return assets.Asset{}
}

func TestSessionEditCycle(t *testing.T) {
	s, _ := newSession(t, &meshLoader{})
	ctx := context.Background()

	chair := upload(t, s, "Chair.glb", assets.TypeModel3D)
	s.Sync.Wait()
	require.True(t, s.Sync.Bound(chair.ID))
	require.Len(t, s.Scene.Models(), 1)

	require.NoError(t, s.Library.Select(chair.ID))
	require.True(t, s.Editor.Active())
	v, _ := s.Editor.Values()
	assert.Equal(t, assets.IdentityTransform(), v)

	require.NoError(t, s.Editor.SetField(editor.FieldX, 2))
	require.NoError(t, s.Editor.OnFieldChange(editor.FieldRotY, "90"))
	_, err := s.Editor.Commit(ctx)
	require.NoError(t, err)

	node, ok := s.Sync.Node(chair.ID)
	require.True(t, ok)
	pose, ok := s.Sync.Pose(chair.ID)
	require.True(t, ok)
	assert.InDelta(t, 2, pose.Position.X(), 1e-6)
	assert.InDelta(t, math.Pi/2, pose.Rotation.Y(), 1e-5)

	v, _ = s.Editor.Values()
	assert.Equal(t, 2.0, v.X)
	assert.Equal(t, 90.0, v.RotationY)

	require.NoError(t, s.Library.Delete(ctx, chair.ID))
	assert.False(t, s.Sync.Bound(chair.ID))
	assert.Empty(t, s.Scene.Models())
	node.Traverse(func(n *scene.Node) {
		if n.IsMesh() {
			assert.True(t, n.Geometry.Disposed())
		}
	})
	assert.False(t, s.Editor.Active())
}

func TestEditorActivatesWhenSelectedModelBinds(t *testing.T) {
	loader := &meshLoader{gate: make(chan struct{})}
	s, _ := newSession(t, loader)

	lamp := upload(t, s, "Lamp.glb", assets.TypeModel3D)
	require.NoError(t, s.Library.Select(lamp.ID))
	assert.False(t, s.Editor.Active())

	close(loader.gate)
	s.Sync.Wait()
	assert.True(t, s.Editor.Active())
	assert.Equal(t, lamp.ID, s.Editor.AssetID())
}

func TestSessionAudioPreviewAndMixer(t *testing.T) {
	s, engine := newSession(t, &meshLoader{})
	ctx := context.Background()

	rain := upload(t, s, "rain.mp3", assets.TypeAudio)
	wind := upload(t, s, "wind.mp3", assets.TypeAudio)

	require.NoError(t, s.Library.Select(rain.ID))
	assert.Equal(t, rain.ID, s.Preview.AssetID())
	assert.False(t, s.Editor.Active())

	added, err := s.Mixer.AddTrack(wind)
	require.NoError(t, err)
	require.True(t, added)
	assert.Len(t, s.Mixer.Available(s.Store.Assets()), 1)

	require.NoError(t, s.Library.Select(wind.ID))
	handles := engine.Handles()
	require.Len(t, handles, 3)
	assert.True(t, handles[0].Unloaded(), "previous preview released")

	require.NoError(t, s.Library.Delete(ctx, wind.ID))
	assert.Empty(t, s.Mixer.Tracks())
	assert.Equal(t, uint64(0), s.Preview.AssetID())
	for _, h := range engine.Handles() {
		assert.True(t, h.Unloaded(), h.URL())
	}
}

func TestSessionCloseReleasesScene(t *testing.T) {
	loader := &meshLoader{}
	s, _ := newSession(t, loader)
	upload(t, s, "Chair.glb", assets.TypeModel3D)
	require.Eventually(t, func() bool { return len(s.Scene.Models()) == 1 }, time.Second, time.Millisecond)

	s.Close()
	assert.Empty(t, s.Scene.Children())
	s.Close()
}
