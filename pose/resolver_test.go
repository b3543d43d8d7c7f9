package pose

import (
	"math"
	"math/rand"
	"testing"

	iface "VpsClient/interface"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestResolveTranslationOnly(t *testing.T) {
	camera := iface.CameraPose{Rotation: iface.IdentityQuaternion()}
	response := iface.LocalizationResponse{
		PoseFound: true,
		Position:  iface.Vector3{X: 1},
		Rotation:  iface.IdentityQuaternion(),
	}

	got := Resolve(response, camera)

	assert.InDelta(t, -1.0, got.Position.X, tol)
	assert.InDelta(t, 0.0, got.Position.Y, tol)
	assert.InDelta(t, 0.0, got.Position.Z, tol)
	assertSameRotation(t, iface.IdentityQuaternion(), got.Rotation)
}

func TestResolveSamePoseGivesIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	q, p := randomQuaternion(r), randomVector(r)

	got := Resolve(
		iface.LocalizationResponse{PoseFound: true, Position: p, Rotation: q},
		iface.CameraPose{Position: p, Rotation: q},
	)

	assert.InDelta(t, 0.0, got.Position.X, tol)
	assert.InDelta(t, 0.0, got.Position.Y, tol)
	assert.InDelta(t, 0.0, got.Position.Z, tol)
	assertSameRotation(t, iface.IdentityQuaternion(), got.Rotation)
}

func TestResolveRotatedResponse(t *testing.T) {
	// device a quarter turn about z in the map, one metre along map x
	q := fromMgl(mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))
	response := iface.LocalizationResponse{PoseFound: true, Position: iface.Vector3{X: 1}, Rotation: q}
	camera := iface.CameraPose{Rotation: iface.IdentityQuaternion()}

	got := Resolve(response, camera)

	// inverse: R^T = -90° about z, t' = -R^T·(1,0,0) = (0,1,0)
	assert.InDelta(t, 0.0, got.Position.X, tol)
	assert.InDelta(t, 1.0, got.Position.Y, tol)
	assert.InDelta(t, 0.0, got.Position.Z, tol)
	assertSameRotation(t, fromMgl(mgl64.QuatRotate(-math.Pi/2, mgl64.Vec3{0, 0, 1})), got.Rotation)
}

func TestResolveMapsMapPointsIntoTracking(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	for i := 0; i < 50; i++ {
		response := iface.LocalizationResponse{PoseFound: true, Position: randomVector(r), Rotation: randomQuaternion(r)}
		camera := iface.CameraPose{Position: randomVector(r), Rotation: randomQuaternion(r)}
		anchor := Resolve(response, camera)
		anchorT := NewRigidTransform(anchor.Rotation, anchor.Position)

		// the device position expressed in map space must land on the tracked camera position
		device := anchorT.Apply(response.Position)
		assert.InDelta(t, camera.Position.X, device.X, tol)
		assert.InDelta(t, camera.Position.Y, device.Y, tol)
		assert.InDelta(t, camera.Position.Z, device.Z, tol)
	}
}

func TestResolveDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	response := iface.LocalizationResponse{PoseFound: true, Position: randomVector(r), Rotation: randomQuaternion(r)}
	camera := iface.CameraPose{Position: randomVector(r), Rotation: randomQuaternion(r)}

	first := Resolve(response, camera)
	second := Resolve(response, camera)
	assert.Equal(t, first, second)
	assert.Equal(t, math.Float64bits(first.Rotation.W), math.Float64bits(second.Rotation.W))
}

func TestResolveUnitRotation(t *testing.T) {
	r := rand.New(rand.NewSource(17))
	for i := 0; i < 100; i++ {
		got := Resolve(
			iface.LocalizationResponse{PoseFound: true, Position: randomVector(r), Rotation: randomQuaternion(r)},
			iface.CameraPose{Position: randomVector(r), Rotation: randomQuaternion(r)},
		)
		assert.True(t, got.Rotation.IsUnit(), "rotation %+v", got.Rotation)
	}
}
