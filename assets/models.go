package assets

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AssetType is the closed set of media kinds the store accepts.
type AssetType string

const (
	TypeModel3D AssetType = "3D_MODEL"
	TypeAudio   AssetType = "AUDIO"
	TypeImage   AssetType = "IMAGE"
	TypeVideo   AssetType = "VIDEO"
	TypeText    AssetType = "TEXT"
)

var ErrInvalidAssetType = errors.New("assets: invalid asset type")

// Types lists every AssetType in upload-form order.
var Types = []AssetType{TypeModel3D, TypeAudio, TypeImage, TypeVideo, TypeText}

func (t AssetType) Valid() bool {
	switch t {
	case TypeModel3D, TypeAudio, TypeImage, TypeVideo, TypeText:
		return true
	default:
		return false
	}
}

// ParseAssetType accepts the wire spelling of an asset type.
func ParseAssetType(raw string) (AssetType, error) {
	t := AssetType(strings.TrimSpace(raw))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAssetType, raw)
	}
	return t, nil
}

// Asset is a named, typed media record. Transform columns are nullable and only
// meaningful for 3D models.
type Asset struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;index;not null" json:"name"`
	AssetType AssetType `gorm:"size:16;not null" json:"asset_type"`
	FilePath  string    `gorm:"size:512;uniqueIndex" json:"file_path"`
	CreatedAt time.Time `json:"created_at"`

	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
	Z         *float64 `json:"z"`
	RotationX *float64 `json:"rotation_x"`
	RotationY *float64 `json:"rotation_y"`
	RotationZ *float64 `json:"rotation_z"`
	ScaleX    *float64 `json:"scale_x"`
	ScaleY    *float64 `json:"scale_y"`
	ScaleZ    *float64 `json:"scale_z"`
}

func (Asset) TableName() string {
	return "assets"
}

func (a Asset) Is3DModel() bool { return a.AssetType == TypeModel3D }
func (a Asset) IsAudio() bool   { return a.AssetType == TypeAudio }

// Transform is a fully defaulted position/rotation/scale triple. Rotation is
// Euler degrees.
type Transform struct {
	X, Y, Z                         float64
	RotationX, RotationY, RotationZ float64
	ScaleX, ScaleY, ScaleZ          float64
}

// IdentityTransform is the transform of an asset with no stored values.
func IdentityTransform() Transform {
	return Transform{ScaleX: 1, ScaleY: 1, ScaleZ: 1}
}

// Transform resolves the nullable columns: missing position and rotation read
// as 0, missing scale as 1.
func (a Asset) Transform() Transform {
	return Transform{
		X:         valueOr(a.X, 0),
		Y:         valueOr(a.Y, 0),
		Z:         valueOr(a.Z, 0),
		RotationX: valueOr(a.RotationX, 0),
		RotationY: valueOr(a.RotationY, 0),
		RotationZ: valueOr(a.RotationZ, 0),
		ScaleX:    valueOr(a.ScaleX, 1),
		ScaleY:    valueOr(a.ScaleY, 1),
		ScaleZ:    valueOr(a.ScaleZ, 1),
	}
}

// Clone returns a deep copy so snapshots never share pointer fields.
func (a Asset) Clone() Asset {
	out := a
	out.X = clonePtr(a.X)
	out.Y = clonePtr(a.Y)
	out.Z = clonePtr(a.Z)
	out.RotationX = clonePtr(a.RotationX)
	out.RotationY = clonePtr(a.RotationY)
	out.RotationZ = clonePtr(a.RotationZ)
	out.ScaleX = clonePtr(a.ScaleX)
	out.ScaleY = clonePtr(a.ScaleY)
	out.ScaleZ = clonePtr(a.ScaleZ)
	return out
}

// Update is a partial update body for PUT /assets/{id}. Nil fields are left
// untouched.
type Update struct {
	Name      *string  `json:"name,omitempty"`
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
	Z         *float64 `json:"z,omitempty"`
	RotationX *float64 `json:"rotation_x,omitempty"`
	RotationY *float64 `json:"rotation_y,omitempty"`
	RotationZ *float64 `json:"rotation_z,omitempty"`
	ScaleX    *float64 `json:"scale_x,omitempty"`
	ScaleY    *float64 `json:"scale_y,omitempty"`
	ScaleZ    *float64 `json:"scale_z,omitempty"`
}

// Update turns a transform into a body that sets all nine fields.
func (t Transform) Update() Update {
	return Update{
		X:         Float(t.X),
		Y:         Float(t.Y),
		Z:         Float(t.Z),
		RotationX: Float(t.RotationX),
		RotationY: Float(t.RotationY),
		RotationZ: Float(t.RotationZ),
		ScaleX:    Float(t.ScaleX),
		ScaleY:    Float(t.ScaleY),
		ScaleZ:    Float(t.ScaleZ),
	}
}

// Empty reports whether the update carries no fields.
func (u Update) Empty() bool {
	return u.Name == nil && u.X == nil && u.Y == nil && u.Z == nil &&
		u.RotationX == nil && u.RotationY == nil && u.RotationZ == nil &&
		u.ScaleX == nil && u.ScaleY == nil && u.ScaleZ == nil
}

// Apply copies every set field of u onto a.
func (u Update) Apply(a *Asset) {
	if u.Name != nil {
		a.Name = strings.TrimSpace(*u.Name)
	}
	setIf(&a.X, u.X)
	setIf(&a.Y, u.Y)
	setIf(&a.Z, u.Z)
	setIf(&a.RotationX, u.RotationX)
	setIf(&a.RotationY, u.RotationY)
	setIf(&a.RotationZ, u.RotationZ)
	setIf(&a.ScaleX, u.ScaleX)
	setIf(&a.ScaleY, u.ScaleY)
	setIf(&a.ScaleZ, u.ScaleZ)
}

// FileURL joins the store base URL with a stored file path, dropping one
// leading "./" from the path.
func FileURL(baseURL, filePath string) string {
	rel := strings.TrimPrefix(strings.TrimSpace(filePath), "./")
	return strings.TrimRight(baseURL, "/") + "/" + rel
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func setIf(dst **float64, src *float64) {
	if src != nil {
		*dst = clonePtr(src)
	}
}
