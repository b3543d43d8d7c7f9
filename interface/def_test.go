package iface

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuaternionNormalized(t *testing.T) {
	q := Quaternion{X: 0, Y: 0, Z: 3, W: 4}.Normalized()
	assert.InDelta(t, 0.6, q.Z, 1e-12)
	assert.InDelta(t, 0.8, q.W, 1e-12)
	assert.True(t, q.IsUnit())

	assert.Equal(t, IdentityQuaternion(), Quaternion{}.Normalized())
	assert.Equal(t, IdentityQuaternion(), Quaternion{W: math.NaN()}.Normalized())
	assert.False(t, Quaternion{W: 1.1}.IsUnit())
}

func TestOrientationText(t *testing.T) {
	var snap TrackingSnapshot
	require.NoError(t, json.Unmarshal([]byte(`{"orientation":"portrait"}`), &snap))
	assert.Equal(t, Portrait, snap.Orientation)

	b, err := json.Marshal(TrackingSnapshot{Orientation: Landscape})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"orientation":"landscape"`)
}

func TestKindOf(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("outer: %w", NewError(KindAuth, "authenticate", base))

	assert.Equal(t, KindAuth, KindOf(err))
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, KindNone, KindOf(base))
	assert.Equal(t, "auth authenticate: boom", NewError(KindAuth, "authenticate", base).Error())
	assert.Equal(t, "capture: boom", NewError(KindCapture, "", base).Error())
}

func TestResultJSON(t *testing.T) {
	in := Result{AttemptID: "a", Status: StatusError, Message: "Localization failed!", Kind: KindLocalization}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"localization"`)
	assert.NotContains(t, string(b), `"pose"`)

	var out Result
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, KindLocalization, out.Kind)
	assert.Equal(t, StatusError, out.Status)
}
