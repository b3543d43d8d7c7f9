// Package pose converts a server-estimated pose in map space plus the locally
// tracked camera pose into an anchor pose in tracking space.
package pose

import (
	"math"

	iface "VpsClient/interface"

	"github.com/go-gl/mathgl/mgl64"
)

// RigidTransform is a rotation followed by a translation. It can only be built
// from a quaternion and a vector, so the rotation block is always orthonormal
// and Inverse may use the transpose.
type RigidTransform struct {
	rot   mgl64.Mat3
	trans mgl64.Vec3
}

func Identity() RigidTransform {
	return RigidTransform{rot: mgl64.Ident3()}
}

// NewRigidTransform builds the transform for rotation q then translation t.
// q is normalized first.
func NewRigidTransform(q iface.Quaternion, t iface.Vector3) RigidTransform {
	return RigidTransform{
		rot:   QuaternionToMatrix(q.Normalized()),
		trans: mgl64.Vec3{t.X, t.Y, t.Z},
	}
}

// QuaternionToMatrix returns the rotation matrix of a unit quaternion.
func QuaternionToMatrix(q iface.Quaternion) mgl64.Mat3 {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return mgl64.Mat3FromRows(
		mgl64.Vec3{1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy)},
		mgl64.Vec3{2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx)},
		mgl64.Vec3{2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy)},
	)
}

// ExtractRotation recovers a quaternion from a rotation matrix. When the trace
// is not positive the largest diagonal entry picks the branch, which keeps the
// divisor away from zero near 180 degree rotations.
func ExtractRotation(m mgl64.Mat3) iface.Quaternion {
	m00, m11, m22 := m.At(0, 0), m.At(1, 1), m.At(2, 2)
	tr := m00 + m11 + m22

	switch {
	case tr > 0:
		s := 2 * math.Sqrt(tr+1) // 4w
		return iface.Quaternion{
			X: (m.At(2, 1) - m.At(1, 2)) / s,
			Y: (m.At(0, 2) - m.At(2, 0)) / s,
			Z: (m.At(1, 0) - m.At(0, 1)) / s,
			W: s / 4,
		}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22) // 4x
		return iface.Quaternion{
			X: s / 4,
			Y: (m.At(0, 1) + m.At(1, 0)) / s,
			Z: (m.At(0, 2) + m.At(2, 0)) / s,
			W: (m.At(2, 1) - m.At(1, 2)) / s,
		}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22) // 4y
		return iface.Quaternion{
			X: (m.At(0, 1) + m.At(1, 0)) / s,
			Y: s / 4,
			Z: (m.At(1, 2) + m.At(2, 1)) / s,
			W: (m.At(0, 2) - m.At(2, 0)) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11) // 4z
		return iface.Quaternion{
			X: (m.At(0, 2) + m.At(2, 0)) / s,
			Y: (m.At(1, 2) + m.At(2, 1)) / s,
			Z: s / 4,
			W: (m.At(1, 0) - m.At(0, 1)) / s,
		}
	}
}

// Compose returns t·o: o is applied first, then t.
func (t RigidTransform) Compose(o RigidTransform) RigidTransform {
	return RigidTransform{
		rot:   t.rot.Mul3(o.rot),
		trans: t.rot.Mul3x1(o.trans).Add(t.trans),
	}
}

// Inverse uses R^T and -R^T·t.
func (t RigidTransform) Inverse() RigidTransform {
	rt := t.rot.Transpose()
	return RigidTransform{
		rot:   rt,
		trans: rt.Mul3x1(t.trans).Mul(-1),
	}
}

func (t RigidTransform) Apply(p iface.Vector3) iface.Vector3 {
	v := t.rot.Mul3x1(mgl64.Vec3{p.X, p.Y, p.Z}).Add(t.trans)
	return iface.Vector3{X: v[0], Y: v[1], Z: v[2]}
}

func (t RigidTransform) Rotation() mgl64.Mat3 {
	return t.rot
}

func (t RigidTransform) Translation() iface.Vector3 {
	return iface.Vector3{X: t.trans[0], Y: t.trans[1], Z: t.trans[2]}
}

func (t RigidTransform) Quaternion() iface.Quaternion {
	return ExtractRotation(t.rot)
}

// Matrix returns the homogeneous 4x4 form, row 3 being (0,0,0,1).
func (t RigidTransform) Matrix() mgl64.Mat4 {
	m := t.rot.Mat4()
	m.Set(0, 3, t.trans[0])
	m.Set(1, 3, t.trans[1])
	m.Set(2, 3, t.trans[2])
	return m
}

func (t RigidTransform) ApproxEqual(o RigidTransform, eps float64) bool {
	return t.Matrix().ApproxFuncEqual(o.Matrix(), func(a, b float64) bool {
		return math.Abs(a-b) <= eps
	})
}
