// Package library implements the asset library actions: selecting,
// deleting and uploading assets.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"holodeck/assets"
	"holodeck/client"
	"holodeck/logging"
)

const (
	MsgMissingFields = "Please provide a file, asset name, and asset type."
	MsgDeletePrefix  = "Error deleting asset: "
)

var ErrNotFound = errors.New("library: asset not in list")

// UserError carries the message shown next to the action that failed.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string { return e.Message }
func (e *UserError) Unwrap() error { return e.Err }

// API is the part of the Asset Store client the library calls.
type API interface {
	Upload(ctx context.Context, up client.UploadRequest) (assets.Asset, error)
	Delete(ctx context.Context, id uint64) error
}

// Cache is the part of the state store the library changes.
type Cache interface {
	Assets() []assets.Asset
	SelectID(id uint64) bool
	Select(a *assets.Asset)
	Remove(id uint64)
	Refresh(ctx context.Context) error
}

type Library struct {
	api   API
	cache Cache
	log   *logging.Logger
}

func New(api API, cache Cache, log *logging.Logger) *Library {
	return &Library{api: api, cache: cache, log: logging.OrNop(log).With("component", "library")}
}

func (l *Library) Assets() []assets.Asset {
	return l.cache.Assets()
}

// Select makes id the current selection.
func (l *Library) Select(id uint64) error {
	if !l.cache.SelectID(id) {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

func (l *Library) ClearSelection() {
	l.cache.Select(nil)
}

// Delete removes the asset from the Asset Store and, once that succeeds,
// from the cached list.
func (l *Library) Delete(ctx context.Context, id uint64) error {
	if err := l.api.Delete(ctx, id); err != nil {
		l.log.Error("delete asset failed", "asset_id", id, "error", err)
		return &UserError{Message: MsgDeletePrefix + err.Error(), Err: err}
	}
	l.cache.Remove(id)
	l.log.Info("asset deleted", "asset_id", id)
	return nil
}

// Form is the upload form state.
type Form struct {
	Name     string
	Type     assets.AssetType
	Filename string
	Body     io.Reader
}

// NewForm returns an empty form defaulting to a 3D model.
func NewForm() *Form {
	return &Form{Type: assets.TypeModel3D}
}

// SetFile attaches a file. An empty name is filled from the filename minus
// its extension.
func (f *Form) SetFile(filename string, body io.Reader) {
	f.Filename = filename
	f.Body = body
	if strings.TrimSpace(f.Name) == "" && filename != "" {
		base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
		f.Name = strings.TrimSuffix(base, path.Ext(base))
	}
}

// Upload validates and submits the form. On success the cached list is
// refreshed, the file and name are cleared and the success message returned.
func (l *Library) Upload(ctx context.Context, f *Form) (string, error) {
	req := client.UploadRequest{
		Name:     strings.TrimSpace(f.Name),
		Type:     f.Type,
		Filename: f.Filename,
		Body:     f.Body,
	}
	if err := req.Validate(); err != nil {
		if errors.Is(err, client.ErrMissingField) {
			return "", &UserError{Message: MsgMissingFields, Err: err}
		}
		return "", &UserError{Message: err.Error(), Err: err}
	}

	created, err := l.api.Upload(ctx, req)
	if err != nil {
		l.log.Error("upload failed", "name", req.Name, "error", err)
		return "", &UserError{Message: err.Error(), Err: err}
	}

	if err := l.cache.Refresh(ctx); err != nil {
		l.log.Warn("refresh after upload failed", "error", err)
	}
	f.Name = ""
	f.Filename = ""
	f.Body = nil
	return fmt.Sprintf("Asset \"%s\" uploaded successfully!", created.Name), nil
}
