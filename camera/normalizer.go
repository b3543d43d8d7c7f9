package camera

import (
	"image"

	iface "VpsClient/interface"
	"VpsClient/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const DefaultJPEGQuality = 90

type Normalizer struct {
	Landscape   Size
	JPEGQuality int
}

func NewNormalizer(landscape Size, quality int) *Normalizer {
	if landscape.Width <= 0 || landscape.Height <= 0 {
		landscape = DefaultLandscape
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Normalizer{Landscape: landscape, JPEGQuality: quality}
}

// Normalize resizes frame to the orientation's target size and remaps the
// intrinsics to match. When in carries no capture size the frame's own size is
// used. The returned Image is a new Mat owned by the caller.
func (n *Normalizer) Normalize(frame gocv.Mat, in iface.Intrinsics, o iface.Orientation) iface.ProcessedImageData {
	if in.Width <= 0 || in.Height <= 0 {
		in.Width, in.Height = frame.Cols(), frame.Rows()
	}
	target := TargetSize(n.Landscape, o)
	r := RemapIntrinsics(in, o, target)

	resized := gocv.NewMat()
	gocv.Resize(frame, &resized, image.Pt(target.Width, target.Height), 0, 0, gocv.InterpolationLinear)

	logger.Log().Debug("frame normalized",
		zap.Stringer("orientation", o),
		zap.Int("src_w", frame.Cols()), zap.Int("src_h", frame.Rows()),
		zap.Int("dst_w", target.Width), zap.Int("dst_h", target.Height),
		zap.Float64("fx", r.Fx), zap.Float64("fy", r.Fy),
		zap.Float64("px", r.Px), zap.Float64("py", r.Py))

	return iface.ProcessedImageData{
		Image:  resized,
		Width:  target.Width,
		Height: target.Height,
		Fx:     r.Fx,
		Fy:     r.Fy,
		Px:     r.Px,
		Py:     r.Py,
	}
}

// DecodeFrame decodes an encoded image into a BGR Mat.
func DecodeFrame(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), errors.New("empty frame")
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "decode frame")
	}
	if mat.Empty() {
		// IMDecode 返回空 Mat 表示解码失败
		_ = mat.Close()
		return gocv.NewMat(), errors.New("decoded frame is empty or unsupported format")
	}
	return mat, nil
}

// EncodeJPEG encodes img at the normalizer's quality.
func (n *Normalizer) EncodeJPEG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, n.JPEGQuality})
	if err != nil {
		return nil, errors.Wrap(err, "encode jpeg")
	}
	defer buf.Close()
	// GetBytes 指向 C 内存，Close 之前复制出来
	return append([]byte(nil), buf.GetBytes()...), nil
}

// Prepare decodes an encoded frame, normalizes it and re-encodes it for submission.
func (n *Normalizer) Prepare(data []byte, in iface.Intrinsics, o iface.Orientation) (iface.ProcessedImageData, []byte, error) {
	frame, err := DecodeFrame(data)
	if err != nil {
		return iface.ProcessedImageData{}, nil, err
	}
	defer frame.Close()

	processed := n.Normalize(frame, in, o)
	jpeg, err := n.EncodeJPEG(processed.Image)
	if err != nil {
		_ = processed.Close()
		return iface.ProcessedImageData{}, nil, err
	}
	return processed, jpeg, nil
}
