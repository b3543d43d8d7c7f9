// Package camera adapts captured frames and their intrinsics to the fixed
// resolution the localization service expects.
package camera

import (
	"math"

	iface "VpsClient/interface"
)

type Size struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// DefaultLandscape is the submission size in landscape; portrait swaps it.
var DefaultLandscape = Size{Width: 960, Height: 720}

// TargetSize 按设备方向选择提交分辨率
func TargetSize(landscape Size, o iface.Orientation) Size {
	if o == iface.Portrait {
		return Size{Width: landscape.Height, Height: landscape.Width}
	}
	return landscape
}

// Remapped holds intrinsics expressed in the target image.
type Remapped struct {
	Fx, Fy float64
	Px, Py float64
	ScaleX float64
	ScaleY float64
}

// RemapIntrinsics rescales in to target. In portrait the frame is rotated a
// quarter turn relative to sensor order, so the axes and focal lengths swap and
// the principal point becomes ((H - cy)·sx, cx·sy).
func RemapIntrinsics(in iface.Intrinsics, o iface.Orientation, target Size) Remapped {
	origW, origH := float64(in.Width), float64(in.Height)
	tw, th := float64(target.Width), float64(target.Height)

	if o == iface.Portrait {
		sx, sy := tw/origH, th/origW
		return Remapped{
			Fx:     in.Fy * sx,
			Fy:     in.Fx * sy,
			Px:     (origH - in.Cy) * sx,
			Py:     in.Cx * sy,
			ScaleX: sx,
			ScaleY: sy,
		}
	}
	sx, sy := tw/origW, th/origH
	return Remapped{
		Fx:     in.Fx * sx,
		Fy:     in.Fy * sy,
		Px:     in.Cx * sx,
		Py:     in.Cy * sy,
		ScaleX: sx,
		ScaleY: sy,
	}
}

// FieldOfView returns the full angle in radians spanned by size pixels at focal length f.
func FieldOfView(f float64, size int) float64 {
	return 2 * math.Atan(float64(size)/(2*f))
}
