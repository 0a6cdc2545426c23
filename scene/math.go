package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"holodeck/assets"
)

// Epsilon is the tolerance used when comparing scene transforms.
const Epsilon float32 = 1e-5

// Pose is a node's local transform. Rotation is XYZ Euler radians.
type Pose struct {
	Position mgl32.Vec3
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3
}

// IdentityPose has unit scale and nothing else.
func IdentityPose() Pose {
	return Pose{Scale: mgl32.Vec3{1, 1, 1}}
}

// PoseFromTransform converts a stored asset transform (Euler degrees) into a
// scene pose (Euler radians).
func PoseFromTransform(t assets.Transform) Pose {
	return Pose{
		Position: mgl32.Vec3{float32(t.X), float32(t.Y), float32(t.Z)},
		Rotation: mgl32.Vec3{
			mgl32.DegToRad(float32(t.RotationX)),
			mgl32.DegToRad(float32(t.RotationY)),
			mgl32.DegToRad(float32(t.RotationZ)),
		},
		Scale: mgl32.Vec3{float32(t.ScaleX), float32(t.ScaleY), float32(t.ScaleZ)},
	}
}

// ApproxEqual compares two poses component-wise within Epsilon.
func (p Pose) ApproxEqual(o Pose) bool {
	return p.Position.ApproxEqualThreshold(o.Position, Epsilon) &&
		p.Rotation.ApproxEqualThreshold(o.Rotation, Epsilon) &&
		p.Scale.ApproxEqualThreshold(o.Scale, Epsilon)
}

// PoseFromTRS builds a pose from a translation, an (x, y, z, w) rotation
// quaternion and a scale.
func PoseFromTRS(t [3]float64, q [4]float64, s [3]float64) Pose {
	rot := mgl32.Quat{W: float32(q[3]), V: mgl32.Vec3{float32(q[0]), float32(q[1]), float32(q[2])}}
	if rot.Len() == 0 {
		rot = mgl32.QuatIdent()
	}
	return Pose{
		Position: mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])},
		Rotation: eulerXYZ(rot.Normalize().Mat4()),
		Scale:    mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])},
	}
}

// PoseFromMatrix decomposes an affine column-major matrix into a pose.
func PoseFromMatrix(m mgl32.Mat4) Pose {
	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()
	if m.Mat3().Det() < 0 {
		sx = -sx
	}

	rot := m
	for col, s := range [3]float32{sx, sy, sz} {
		if s == 0 {
			continue
		}
		for row := 0; row < 3; row++ {
			rot.Set(row, col, m.At(row, col)/s)
		}
	}
	return Pose{
		Position: m.Col(3).Vec3(),
		Rotation: eulerXYZ(rot),
		Scale:    mgl32.Vec3{sx, sy, sz},
	}
}

// eulerXYZ extracts XYZ Euler radians from the rotation part of m.
func eulerXYZ(m mgl32.Mat4) mgl32.Vec3 {
	m11, m12, m13 := float64(m.At(0, 0)), float64(m.At(0, 1)), float64(m.At(0, 2))
	m22, m23 := float64(m.At(1, 1)), float64(m.At(1, 2))
	m32, m33 := float64(m.At(2, 1)), float64(m.At(2, 2))

	y := math.Asin(math.Max(-1, math.Min(1, m13)))
	var x, z float64
	if math.Abs(m13) < 0.9999999 {
		x = math.Atan2(-m23, m33)
		z = math.Atan2(-m12, m11)
	} else {
		// Gimbal lock: fold the whole X/Z rotation into X.
		x = math.Atan2(m32, m22)
	}
	return mgl32.Vec3{float32(x), float32(y), float32(z)}
}
