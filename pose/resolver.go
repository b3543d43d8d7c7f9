package pose

import (
	iface "VpsClient/interface"
)

// Resolve places the map origin in the live tracking frame:
//
//	result = tracker · response⁻¹
//
// response.PoseFound must be true; the caller is expected to short-circuit otherwise.
func Resolve(response iface.LocalizationResponse, camera iface.CameraPose) iface.ResultPose {
	inMap := NewRigidTransform(response.Rotation, response.Position)
	inTracker := NewRigidTransform(camera.Rotation, camera.Position)

	result := inTracker.Compose(inMap.Inverse())
	return iface.ResultPose{
		Position: result.Translation(),
		Rotation: result.Quaternion(),
	}
}

// Resolver adapts Resolve to the signature the session calls through.
type Resolver func(response iface.LocalizationResponse, camera iface.CameraPose) iface.ResultPose
