package iface

import (
	"math"
	"time"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/num/quat"
)

// UnitTolerance is how far a quaternion norm may drift from 1 before it is
// considered malformed.
const UnitTolerance = 1e-3

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}

// Norm 四元数的模
func (q Quaternion) Norm() float64 {
	return quat.Abs(q.number())
}

// Normalized returns q scaled to unit length. A zero quaternion maps to identity.
func (q Quaternion) Normalized() Quaternion {
	n := q.Norm()
	if n == 0 || math.IsNaN(n) {
		return IdentityQuaternion()
	}
	return fromNumber(quat.Scale(1/n, q.number()))
}

func (q Quaternion) IsUnit() bool {
	return math.Abs(q.Norm()-1) <= UnitTolerance
}

// CameraPose is the device pose in the tracking session frame at capture time.
type CameraPose struct {
	Position Vector3    `json:"position"`
	Rotation Quaternion `json:"rotation"`
}

// Intrinsics 原始采集分辨率下的相机内参
type Intrinsics struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Cx     float64 `json:"cx"`
	Cy     float64 `json:"cy"`
}

type Orientation int

const (
	Landscape Orientation = iota
	Portrait
)

func (o Orientation) String() string {
	if o == Portrait {
		return "portrait"
	}
	return "landscape"
}

func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Orientation) UnmarshalText(b []byte) error {
	switch string(b) {
	case "portrait":
		*o = Portrait
	default:
		*o = Landscape
	}
	return nil
}

// TrackingSnapshot is sampled atomically from the tracking collaborator so the
// pose, intrinsics and orientation all describe the same instant.
type TrackingSnapshot struct {
	Pose        CameraPose  `json:"pose"`
	Intrinsics  Intrinsics  `json:"intrinsics"`
	Orientation Orientation `json:"orientation"`
}

// LocalizationResponse 定位服务返回的结果
type LocalizationResponse struct {
	PoseFound  bool       `json:"poseFound"`
	Position   Vector3    `json:"position"`
	Rotation   Quaternion `json:"rotation"`
	Confidence float64    `json:"confidence"`
	MapIds     []string   `json:"mapIds"`
}

type ResultPose struct {
	Position Vector3    `json:"position"`
	Rotation Quaternion `json:"rotation"`
}

// ProcessedImageData is a frame resized to the submission size plus the
// intrinsics remapped to match it. Image must be closed by the owner.
type ProcessedImageData struct {
	Image  gocv.Mat
	Width  int
	Height int
	Fx     float64
	Fy     float64
	Px     float64
	Py     float64
}

func (p *ProcessedImageData) Close() error {
	return p.Image.Close()
}

type Status string

const (
	StatusSuccess  Status = "success"
	StatusNotFound Status = "pose not found"
	StatusError    Status = "error"
)

// Result is what the presentation boundary receives once per attempt.
type Result struct {
	AttemptID string                `json:"attemptId"`
	Status    Status                `json:"status"`
	Message   string                `json:"message"`
	Pose      *ResultPose           `json:"pose,omitempty"`
	Camera    *CameraPose           `json:"cameraPose,omitempty"`
	Response  *LocalizationResponse `json:"response,omitempty"`
	Kind      Kind                  `json:"kind,omitempty"`
	Finished  time.Time             `json:"finishedAt"`
}
