package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"VpsClient/acquire"
	iface "VpsClient/interface"
	"VpsClient/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSession struct {
	result  iface.Result
	err     error
	authErr error
	state   session.State
	authed  bool
}

func (f *fakeSession) Localize(ctx context.Context) (iface.Result, error) {
	return f.result, f.err
}

func (f *fakeSession) Authenticate(ctx context.Context) error {
	if f.authErr == nil {
		f.authed = true
	}
	return f.authErr
}

func (f *fakeSession) State() session.State { return f.state }
func (f *fakeSession) IsAuthenticated() bool  { return f.authed }

func newServer(sess *fakeSession) *Server {
	return &Server{Session: sess, Tracking: &TrackingStore{}, Hub: NewHub(), Uploads: &acquire.Latest{}}
}

func do(t *testing.T, h http.Handler, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPing(t *testing.T) {
	rec := do(t, newServer(&fakeSession{}).Router(), http.MethodGet, "/api/ping", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"ok", nil, http.StatusOK},
		{"rejected", iface.NewError(iface.KindAuth, "authenticate", errors.New("401")), http.StatusUnauthorized},
		{"config", iface.NewError(iface.KindConfig, "authenticate", errors.New("client_id is required")), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newServer(&fakeSession{authErr: tt.err}).Router(), http.MethodPost, "/api/auth", nil, "")
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestLocalizeEndpoint(t *testing.T) {
	t.Run("result", func(t *testing.T) {
		sess := &fakeSession{result: iface.Result{
			AttemptID: "a1",
			Status:    iface.StatusSuccess,
			Message:   session.MsgSuccess,
			Pose:      &iface.ResultPose{Position: iface.Vector3{X: -1}, Rotation: iface.IdentityQuaternion()},
		}}
		rec := do(t, newServer(sess).Router(), http.MethodPost, "/api/localize", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got iface.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, iface.StatusSuccess, got.Status)
		assert.Equal(t, -1.0, got.Pose.Position.X)
	})

	t.Run("failed attempt is still a result", func(t *testing.T) {
		sess := &fakeSession{
			result: iface.Result{Status: iface.StatusError, Message: session.MsgFailed, Kind: iface.KindLocalization},
			err:    iface.NewError(iface.KindLocalization, "localize", errors.New("500")),
		}
		rec := do(t, newServer(sess).Router(), http.MethodPost, "/api/localize", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"kind":"localization"`)
	})

	t.Run("busy", func(t *testing.T) {
		sess := &fakeSession{err: iface.ErrBusy, state: session.Submitting}
		rec := do(t, newServer(sess).Router(), http.MethodPost, "/api/localize", nil, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "SUBMITTING")
	})

	t.Run("config", func(t *testing.T) {
		sess := &fakeSession{err: iface.NewError(iface.KindConfig, "validate", errors.New("map_code or map_set_code is required"))}
		rec := do(t, newServer(sess).Router(), http.MethodPost, "/api/localize", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStatus(t *testing.T) {
	rec := do(t, newServer(&fakeSession{authed: true}).Router(), http.MethodGet, "/api/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"IDLE","authenticated":true,"clients":0}`, rec.Body.String())
}

func TestPutTracking(t *testing.T) {
	s := newServer(&fakeSession{})
	r := s.Router()

	body := bytes.NewBufferString(`{
		"pose":{"position":{"x":1,"y":2,"z":3},"rotation":{"x":0,"y":0,"z":0,"w":2}},
		"intrinsics":{"width":1920,"height":1080,"fx":1000,"fy":1000,"cx":960,"cy":540},
		"orientation":"portrait"}`)
	rec := do(t, r, http.MethodPut, "/api/tracking", body, "application/json")
	require.Equal(t, http.StatusNoContent, rec.Code)

	snap, err := s.Tracking.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, iface.Portrait, snap.Orientation)
	assert.Equal(t, iface.IdentityQuaternion(), snap.Pose.Rotation)
	assert.Equal(t, 1920, snap.Intrinsics.Width)

	rec = do(t, r, http.MethodPut, "/api/tracking", bytes.NewBufferString(`{"pose":{}}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, r, http.MethodPut, "/api/tracking", bytes.NewBufferString(`{`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostFrame(t *testing.T) {
	s := newServer(&fakeSession{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("frame", "frame.jpg")
	require.NoError(t, err)
	_, _ = fw.Write([]byte{0xff, 0xd8, 0xff})
	require.NoError(t, mw.Close())

	rec := do(t, s.Router(), http.MethodPost, "/api/frame", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusAccepted, rec.Code)

	got, err := s.Uploads.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, got)

	rec = do(t, s.Router(), http.MethodPost, "/api/frame", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.Uploads = nil
	rec = do(t, s.Router(), http.MethodPost, "/api/frame", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTrackingStore(t *testing.T) {
	s := &TrackingStore{MaxAge: 20 * time.Millisecond}
	_, err := s.Snapshot()
	assert.Error(t, err)

	snap := iface.TrackingSnapshot{
		Pose:       iface.CameraPose{Rotation: iface.IdentityQuaternion()},
		Intrinsics: iface.Intrinsics{Fx: 1, Fy: 1},
	}
	require.NoError(t, s.Set(snap))
	_, err = s.Snapshot()
	assert.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	_, err = s.Snapshot()
	assert.Error(t, err, "stale snapshot")
}

func TestHubBroadcast(t *testing.T) {
	s := newServer(&fakeSession{})
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/results"
	conns := make([]*websocket.Conn, 2)
	for i := range conns {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()
		conns[i] = conn
	}
	require.Eventually(t, func() bool { return s.Hub.Clients() == 2 }, time.Second, 5*time.Millisecond)

	s.Hub.Apply(iface.Result{AttemptID: "a1", Status: iface.StatusNotFound, Message: session.MsgNotFound})

	for _, conn := range conns {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got iface.Result
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, "a1", got.AttemptID)
		assert.Equal(t, iface.StatusNotFound, got.Status)
	}

	_ = conns[0].Close()
	require.Eventually(t, func() bool { return s.Hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	s.Hub.Close()
	assert.Equal(t, 0, s.Hub.Clients())
}
