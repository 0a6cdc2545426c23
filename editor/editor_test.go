package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holodeck/assets"
	"holodeck/state"
)

type fakeUpdater struct {
	calls []assets.Update
	err   error
	base  map[uint64]assets.Asset
}

func (f *fakeUpdater) Update(_ context.Context, id uint64, u assets.Update) (assets.Asset, error) {
	f.calls = append(f.calls, u)
	if f.err != nil {
		return assets.Asset{}, f.err
	}
	a := f.base[id]
	u.Apply(&a)
	f.base[id] = a
	return a.Clone(), nil
}

type boundSet map[uint64]bool

func (b boundSet) Bound(id uint64) bool { return b[id] }

type listOf []assets.Asset

func (l listOf) List(context.Context) ([]assets.Asset, error) { return l, nil }

func fixture(t *testing.T) (*Editor, *fakeUpdater, *state.Store) {
	t.Helper()
	chair := assets.Asset{ID: 1, Name: "Chair", AssetType: assets.TypeModel3D, FilePath: "./uploads/chair.glb"}
	lamp := assets.Asset{ID: 2, Name: "Lamp", AssetType: assets.TypeModel3D, FilePath: "./uploads/lamp.glb", X: assets.Float(3)}
	song := assets.Asset{ID: 3, Name: "Song", AssetType: assets.TypeAudio, FilePath: "./uploads/song.mp3"}

	store := state.New(listOf{chair, lamp, song}, nil)
	require.NoError(t, store.Refresh(context.Background()))

	up := &fakeUpdater{base: map[uint64]assets.Asset{1: chair, 2: lamp}}
	return New(up, boundSet{1: true, 2: true}, store, nil), up, store
}

func selected(t *testing.T, s *state.Store) *assets.Asset {
	t.Helper()
	a, ok := s.Selected()
	require.True(t, ok)
	return &a
}

func TestLoadFromSelectionDefaults(t *testing.T) {
	e, _, store := fixture(t)
	require.True(t, store.SelectID(1))

	require.True(t, e.LoadFromSelection(selected(t, store)))
	v, active := e.Values()
	assert.True(t, active)
	assert.Equal(t, assets.IdentityTransform(), v)
	assert.Equal(t, uint64(1), e.AssetID())
}

func TestLoadFromSelectionInactive(t *testing.T) {
	e, _, store := fixture(t)

	require.True(t, store.SelectID(3))
	assert.False(t, e.LoadFromSelection(selected(t, store)), "audio asset")

	unbound := assets.Asset{ID: 9, AssetType: assets.TypeModel3D, FilePath: "./uploads/x.glb"}
	assert.False(t, e.LoadFromSelection(&unbound), "model without scene node")

	assert.False(t, e.LoadFromSelection(nil))
	assert.False(t, e.Active())
	assert.ErrorIs(t, e.SetField(FieldX, 1), ErrInactive)

	_, err := e.Commit(context.Background())
	assert.ErrorIs(t, err, ErrInactive)
}

func TestOnFieldChangeCoercesInput(t *testing.T) {
	e, _, store := fixture(t)
	store.SelectID(1)
	e.LoadFromSelection(selected(t, store))

	require.NoError(t, e.OnFieldChange(FieldX, "2.5"))
	require.NoError(t, e.OnFieldChange(FieldY, "abc"))
	require.NoError(t, e.OnFieldChange(FieldZ, "12abc"))
	require.NoError(t, e.OnFieldChange(FieldScaleX, ""))
	require.NoError(t, e.OnFieldChange(FieldRotZ, "NaN"))

	v, _ := e.Values()
	assert.Equal(t, 2.5, v.X)
	assert.Equal(t, 0.0, v.Y)
	assert.Equal(t, 12.0, v.Z)
	assert.Equal(t, 0.0, v.ScaleX)
	assert.Equal(t, 0.0, v.RotationZ)

	assert.ErrorIs(t, e.OnFieldChange("w", "1"), ErrUnknownField)
}

func TestParseNumber(t *testing.T) {
	cases := map[string]float64{
		"":        0,
		"  7 ":    7,
		"-3.25":   -3.25,
		"1e2":     100,
		"1e":      1,
		".5deg":   0.5,
		"Inf":     0,
		"degrees": 0,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseNumber(in), "input %q", in)
	}
}

func TestCommitPropagatesToCache(t *testing.T) {
	e, up, store := fixture(t)
	store.SelectID(1)
	e.LoadFromSelection(selected(t, store))

	require.NoError(t, e.OnFieldChange(FieldX, "2"))
	require.NoError(t, e.OnFieldChange(FieldRotY, "90"))

	updated, err := e.Commit(context.Background())
	require.NoError(t, err)
	require.Len(t, up.calls, 1)

	sent := up.calls[0]
	assert.Nil(t, sent.Name)
	require.NotNil(t, sent.ScaleZ)
	assert.Equal(t, 1.0, *sent.ScaleZ)
	assert.Equal(t, 2.0, *updated.X)
	assert.Equal(t, 90.0, *updated.RotationY)

	cached, ok := store.Find(1)
	require.True(t, ok)
	assert.Equal(t, 2.0, *cached.X)

	sel := selected(t, store)
	assert.Equal(t, 90.0, *sel.RotationY)

	// Reloading from the updated selection reproduces the committed values.
	require.True(t, e.LoadFromSelection(sel))
	v, _ := e.Values()
	assert.Equal(t, 2.0, v.X)
	assert.Equal(t, 90.0, v.RotationY)
	assert.Equal(t, 1.0, v.ScaleY)
}

func TestCommitTwiceIsIdempotent(t *testing.T) {
	e, _, store := fixture(t)
	store.SelectID(2)
	e.LoadFromSelection(selected(t, store))
	require.NoError(t, e.SetField(FieldScaleX, 4))

	_, err := e.Commit(context.Background())
	require.NoError(t, err)
	once, _ := store.Find(2)

	_, err = e.Commit(context.Background())
	require.NoError(t, err)
	twice, _ := store.Find(2)

	assert.Equal(t, once.Transform(), twice.Transform())
	assert.Equal(t, 3.0, twice.Transform().X)
}

func TestCommitFailureKeepsLocalEdit(t *testing.T) {
	e, up, store := fixture(t)
	up.err = errors.New("Failed to update asset transform")
	store.SelectID(1)
	e.LoadFromSelection(selected(t, store))
	require.NoError(t, e.SetField(FieldX, 8))

	_, err := e.Commit(context.Background())
	require.Error(t, err)

	v, active := e.Values()
	assert.True(t, active)
	assert.Equal(t, 8.0, v.X)

	cached, _ := store.Find(1)
	assert.Nil(t, cached.X)

	// Further edits are not blocked.
	assert.NoError(t, e.SetField(FieldY, 1))
}

func TestSelectionSwitchDiscardsEdits(t *testing.T) {
	e, _, store := fixture(t)
	store.SelectID(1)
	e.LoadFromSelection(selected(t, store))
	require.NoError(t, e.SetField(FieldX, 5))

	store.SelectID(2)
	e.LoadFromSelection(selected(t, store))
	store.SelectID(1)
	e.LoadFromSelection(selected(t, store))

	v, _ := e.Values()
	assert.Equal(t, 0.0, v.X)
}
