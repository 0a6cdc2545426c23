// Package editor holds the uncommitted transform of the selected 3D model.
package editor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"holodeck/assets"
	"holodeck/logging"
)

var (
	ErrInactive     = errors.New("editor: no bound 3D model is selected")
	ErrUnknownField = errors.New("editor: unknown field")
)

// Field names one of the nine editable inputs.
type Field string

const (
	FieldX      Field = "x"
	FieldY      Field = "y"
	FieldZ      Field = "z"
	FieldRotX   Field = "rotX"
	FieldRotY   Field = "rotY"
	FieldRotZ   Field = "rotZ"
	FieldScaleX Field = "scaleX"
	FieldScaleY Field = "scaleY"
	FieldScaleZ Field = "scaleZ"
)

// Fields lists the inputs in display order.
var Fields = []Field{FieldX, FieldY, FieldZ, FieldRotX, FieldRotY, FieldRotZ, FieldScaleX, FieldScaleY, FieldScaleZ}

// Updater persists a partial update. *client.Client satisfies it.
type Updater interface {
	Update(ctx context.Context, id uint64, update assets.Update) (assets.Asset, error)
}

// Bindings reports which assets have a scene node. *scene.Synchronizer
// satisfies it.
type Bindings interface {
	Bound(id uint64) bool
}

// Cache receives committed records. *state.Store satisfies it.
type Cache interface {
	Update(a assets.Asset)
}

type Editor struct {
	updater  Updater
	bindings Bindings
	cache    Cache
	log      *logging.Logger

	mu      sync.Mutex
	active  bool
	assetID uint64
	values  assets.Transform
}

func New(updater Updater, bindings Bindings, cache Cache, log *logging.Logger) *Editor {
	return &Editor{
		updater:  updater,
		bindings: bindings,
		cache:    cache,
		log:      logging.OrNop(log).With("component", "editor"),
	}
}

// LoadFromSelection resets the fields from a's persisted values. The editor
// is active only for a 3D model that already has a scene node; a nil asset
// deactivates it. Unsaved edits are always discarded.
func (e *Editor) LoadFromSelection(a *assets.Asset) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if a == nil || !a.Is3DModel() || e.bindings == nil || !e.bindings.Bound(a.ID) {
		e.active = false
		e.assetID = 0
		e.values = assets.Transform{}
		return false
	}
	e.active = true
	e.assetID = a.ID
	e.values = a.Transform()
	return true
}

func (e *Editor) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// AssetID is the id being edited, or 0 when inactive.
func (e *Editor) AssetID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.assetID
}

// Values returns the current, possibly uncommitted, field values.
func (e *Editor) Values() (assets.Transform, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.values, e.active
}

// OnFieldChange sets one field from raw text input. Text that is not a
// number becomes 0.
func (e *Editor) OnFieldChange(field Field, raw string) error {
	return e.SetField(field, ParseNumber(raw))
}

// SetField sets one field in the local edit state.
func (e *Editor) SetField(field Field, v float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return ErrInactive
	}
	p := fieldPtr(&e.values, field)
	if p == nil {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	*p = v
	return nil
}

// Commit sends all nine values to the Asset Store and merges the returned
// record into the cache. On failure nothing outside the editor changes.
func (e *Editor) Commit(ctx context.Context) (assets.Asset, error) {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return assets.Asset{}, ErrInactive
	}
	id, values := e.assetID, e.values
	e.mu.Unlock()

	updated, err := e.updater.Update(ctx, id, values.Update())
	if err != nil {
		e.log.Warn("commit transform failed", "asset_id", id, "error", err)
		return assets.Asset{}, err
	}

	e.mu.Lock()
	if e.active && e.assetID == id {
		e.values = updated.Transform()
	}
	e.mu.Unlock()

	if e.cache != nil {
		e.cache.Update(updated)
	}
	e.log.Info("transform committed", "asset_id", id)
	return updated, nil
}

// ParseNumber reads the longest numeric prefix of raw. Empty, non-numeric and
// non-finite input reads as 0.
func ParseNumber(raw string) float64 {
	s := strings.TrimSpace(raw)
	for i := len(s); i > 0; i-- {
		v, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}
	return 0
}

func fieldPtr(t *assets.Transform, f Field) *float64 {
	switch f {
	case FieldX:
		return &t.X
	case FieldY:
		return &t.Y
	case FieldZ:
		return &t.Z
	case FieldRotX:
		return &t.RotationX
	case FieldRotY:
		return &t.RotationY
	case FieldRotZ:
		return &t.RotationZ
	case FieldScaleX:
		return &t.ScaleX
	case FieldScaleY:
		return &t.ScaleY
	case FieldScaleZ:
		return &t.ScaleZ
	default:
		return nil
	}
}
