package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holodeck/assets"
)

func newStore(t *testing.T) (*Client, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := assets.OpenDatabase("sqlite", filepath.Join(t.TempDir(), "assets.db"))
	require.NoError(t, err)
	local, err := assets.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	module, err := assets.NewModule(db, local, nil, nil)
	require.NoError(t, err)

	router := gin.New()
	module.Register(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, nil, nil)
	require.NoError(t, err)
	return c, srv
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("localhost:8000", nil, nil)
	require.Error(t, err)

	c, err := New("http://localhost:8000/", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
	assert.Equal(t, "http://localhost:8000/uploads/a.glb", c.FileURL("./uploads/a.glb"))
}

func TestUploadChairThenList(t *testing.T) {
	c, _ := newStore(t)
	ctx := context.Background()

	created, err := c.Upload(ctx, UploadRequest{
		Name:     "Chair",
		Type:     assets.TypeModel3D,
		Filename: "chair.glb",
		Body:     strings.NewReader("glTF"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Chair", created.Name)

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	tr := list[0].Transform()
	assert.Equal(t, 0.0, tr.X)
	assert.Equal(t, 0.0, tr.Y)
	assert.Equal(t, 0.0, tr.Z)
	assert.Equal(t, 1.0, tr.ScaleX)
	assert.Equal(t, 1.0, tr.ScaleY)
	assert.Equal(t, 1.0, tr.ScaleZ)

	resp, err := http.Get(c.FileURL(created.FilePath))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadValidatesLocally(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()
	c, err := New(srv.URL, nil, nil)
	require.NoError(t, err)

	_, err = c.Upload(context.Background(), UploadRequest{Name: "x", Type: assets.TypeAudio})
	require.ErrorIs(t, err, ErrMissingField)
	_, err = c.Upload(context.Background(), UploadRequest{Type: assets.TypeAudio, Filename: "a.mp3", Body: strings.NewReader("x")})
	require.ErrorIs(t, err, ErrMissingField)
	_, err = c.Upload(context.Background(), UploadRequest{Name: "x", Type: "MESH", Filename: "a", Body: strings.NewReader("x")})
	require.ErrorIs(t, err, assets.ErrInvalidAssetType)
	assert.Zero(t, hits)
}

func TestUpdateAndGet(t *testing.T) {
	c, _ := newStore(t)
	ctx := context.Background()

	created, err := c.Upload(ctx, UploadRequest{Name: "Chair", Type: assets.TypeModel3D, Filename: "chair.glb", Body: strings.NewReader("x")})
	require.NoError(t, err)

	updated, err := c.Update(ctx, created.ID, assets.Update{X: assets.Float(2), RotationY: assets.Float(90)})
	require.NoError(t, err)
	assert.Equal(t, 2.0, updated.Transform().X)
	assert.Equal(t, 90.0, updated.Transform().RotationY)

	fetched, err := c.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Transform(), fetched.Transform())
}

func TestDeleteThenNotFound(t *testing.T) {
	c, _ := newStore(t)
	ctx := context.Background()

	created, err := c.Upload(ctx, UploadRequest{Name: "Song", Type: assets.TypeAudio, Filename: "song.mp3", Body: strings.NewReader("x")})
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, created.ID))

	err = c.Delete(ctx, created.ID)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Asset not found", apiErr.Detail)

	_, err = c.Get(ctx, created.ID)
	require.ErrorAs(t, err, &apiErr)
}

func TestErrorDetailFallbacks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "<html>oops</html>")
		case http.MethodPut:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"detail":"down for maintenance"}`)
		}
	}))
	defer srv.Close()
	c, err := New(srv.URL, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	err = c.Delete(ctx, 7)
	assert.EqualError(t, err, "Deletion failed with no specific error message.")

	_, err = c.Update(ctx, 7, assets.Update{X: assets.Float(1)})
	assert.EqualError(t, err, "Failed to update asset transform")

	_, err = c.Get(ctx, 7)
	assert.EqualError(t, err, "down for maintenance")

	_, err = c.List(ctx)
	assert.EqualError(t, err, "Failed to fetch assets: Service Unavailable")
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, nil, nil)
	require.NoError(t, err)
	_, err = c.List(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
