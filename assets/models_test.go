package assets

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssetType(t *testing.T) {
	for _, typ := range Types {
		got, err := ParseAssetType(string(typ))
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseAssetType("3d_model")
	require.ErrorIs(t, err, ErrInvalidAssetType)
}

func TestTransformDefaults(t *testing.T) {
	var a Asset
	require.Equal(t, IdentityTransform(), a.Transform())

	a.ScaleY = Float(0)
	a.RotationY = Float(90)
	tr := a.Transform()
	assert.Equal(t, 0.0, tr.ScaleY, "a stored zero scale is kept")
	assert.Equal(t, 1.0, tr.ScaleX)
	assert.Equal(t, 90.0, tr.RotationY)
}

func TestUpdateApplyOnlySetFields(t *testing.T) {
	a := Asset{Name: "Chair", X: Float(1), ScaleX: Float(2)}
	Update{X: Float(2), RotationY: Float(90)}.Apply(&a)

	assert.Equal(t, "Chair", a.Name)
	assert.Equal(t, 2.0, *a.X)
	assert.Equal(t, 90.0, *a.RotationY)
	assert.Equal(t, 2.0, *a.ScaleX)
	assert.Nil(t, a.Y)
}

func TestUpdateJSONOmitsUnset(t *testing.T) {
	raw, err := json.Marshal(Update{X: Float(2), RotationY: Float(90)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":2,"rotation_y":90}`, string(raw))

	full, err := json.Marshal(IdentityTransform().Update())
	require.NoError(t, err)
	var fields map[string]float64
	require.NoError(t, json.Unmarshal(full, &fields))
	assert.Len(t, fields, 9)
	assert.Equal(t, 1.0, fields["scale_z"])
}

func TestCloneIsDeep(t *testing.T) {
	a := Asset{X: Float(1)}
	b := a.Clone()
	*b.X = 5
	assert.Equal(t, 1.0, *a.X)
}

func TestFileURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8000/uploads/chair.glb", FileURL("http://localhost:8000", "./uploads/chair.glb"))
	assert.Equal(t, "http://h/uploads/a.mp3", FileURL("http://h/", "uploads/a.mp3"))
	assert.Equal(t, "http://h/./x", FileURL("http://h", "././x"), "only one leading ./ is stripped")
}
