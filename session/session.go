// Package session runs one localization attempt at a time:
// capture, normalize, submit, resolve, apply.
package session

import (
	"context"
	"sync"
	"time"

	"VpsClient/acquire"
	iface "VpsClient/interface"
	"VpsClient/logger"
	"VpsClient/monitor"
	"VpsClient/pose"
	"VpsClient/vps"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	MsgSuccess        = "Localization successful!"
	MsgNotFound       = "Pose not found"
	MsgFailed         = "Localization failed!"
	MsgCaptureFailed  = "Failed to fetch image from device"
	MsgTrackingFailed = "Camera pose unavailable"
	MsgBadCredentials = "Please confirm your credentials!"
)

// Preparer turns an encoded frame into submission-ready data.
type Preparer interface {
	Prepare(data []byte, in iface.Intrinsics, o iface.Orientation) (iface.ProcessedImageData, []byte, error)
}

type Deps struct {
	Frames    iface.FrameSource
	Tracker   iface.Tracker
	Localizer iface.Localizer
	Preparer  Preparer
	Sink      iface.ResultSink
	// Resolver defaults to pose.Resolve.
	Resolver pose.Resolver

	Credentials iface.Credentials
	Maps        iface.MapSelection
	// StopStream pauses a streaming frame source before capture.
	StopStream bool
	// OnTransition is called after every state change, outside the session lock.
	OnTransition func(from, to State)
}

type Session struct {
	deps   Deps
	tokens *vps.TokenHolder
	log    *zap.Logger

	mu    sync.Mutex
	state State
}

// New builds a session. tokens may be shared with other sessions; nil gets a fresh holder.
func New(deps Deps, tokens *vps.TokenHolder) *Session {
	if deps.Resolver == nil {
		deps.Resolver = pose.Resolve
	}
	if tokens == nil {
		tokens = &vps.TokenHolder{}
	}
	return &Session{
		deps:   deps,
		tokens: tokens,
		log:    logger.Named("session"),
		state:  Idle,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) IsAuthenticated() bool {
	return s.tokens.IsAuthenticated()
}

func (s *Session) Tokens() *vps.TokenHolder {
	return s.tokens
}

// Validate reports every missing credential and map identifier as one ConfigError.
func Validate(creds iface.Credentials, maps iface.MapSelection) error {
	var err error
	err = multierr.Append(err, validateCredentials(creds))
	if maps.MapCode == "" && maps.MapSetCode == "" {
		err = multierr.Append(err, errors.New("map_code or map_set_code is required"))
	}
	if err != nil {
		return iface.NewError(iface.KindConfig, "validate", err)
	}
	return nil
}

func validateCredentials(creds iface.Credentials) error {
	var err error
	if creds.ClientID == "" {
		err = multierr.Append(err, errors.New("client_id is required"))
	}
	if creds.ClientSecret == "" {
		err = multierr.Append(err, errors.New("client_secret is required"))
	}
	return err
}

// Authenticate exchanges the configured credentials for a token and stores it.
func (s *Session) Authenticate(ctx context.Context) error {
	if err := validateCredentials(s.deps.Credentials); err != nil {
		return iface.NewError(iface.KindConfig, "authenticate", err)
	}
	token, err := s.deps.Localizer.Authenticate(ctx, s.deps.Credentials)
	monitor.AuthAttempt(err == nil)
	if err != nil {
		s.log.Warn("authentication failed", zap.Error(err))
		return err
	}
	s.tokens.Set(token)
	return nil
}

// Localize runs one attempt to completion. A concurrent call fails with
// iface.ErrBusy and leaves the running attempt untouched. The returned error
// is nil for success and pose-not-found.
func (s *Session) Localize(ctx context.Context) (iface.Result, error) {
	if err := s.begin(); err != nil {
		return iface.Result{}, err
	}
	return s.run(ctx)
}

// Start claims the session and runs the attempt in the background. The
// channel yields exactly one Result.
func (s *Session) Start(ctx context.Context) (<-chan iface.Result, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	out := make(chan iface.Result, 1)
	go func() {
		defer close(out)
		res, _ := s.run(ctx)
		out <- res
	}()
	return out, nil
}

func (s *Session) begin() error {
	if err := Validate(s.deps.Credentials, s.deps.Maps); err != nil {
		return err
	}
	s.mu.Lock()
	if s.state != Idle {
		cur := s.state
		s.mu.Unlock()
		s.log.Debug("localization rejected", zap.Stringer("state", cur))
		return iface.ErrBusy
	}
	s.state = Capturing
	s.mu.Unlock()
	s.notify(Idle, Capturing)
	return nil
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	s.notify(from, to)
}

func (s *Session) notify(from, to State) {
	s.log.Debug("transition", zap.Stringer("from", from), zap.Stringer("to", to))
	if s.deps.OnTransition != nil {
		s.deps.OnTransition(from, to)
	}
}

type attempt struct {
	id    string
	start time.Time
	log   *zap.Logger
}

func (s *Session) run(ctx context.Context) (iface.Result, error) {
	a := attempt{id: uuid.NewString(), start: time.Now()}
	a.log = s.log.With(zap.String("attempt", a.id))
	a.log.Info("localization started")

	if s.deps.StopStream {
		if stopper, ok := s.deps.Frames.(acquire.StreamStopper); ok {
			if err := stopper.StopStream(ctx); err != nil {
				a.log.Debug("stopstream ignored", zap.Error(err))
			}
		}
	}

	frame, err := s.deps.Frames.Acquire(ctx)
	if err != nil {
		return s.fail(a, MsgCaptureFailed, withKind(iface.KindCapture, "capture", err))
	}

	// 帧到手之后再采样位姿
	snap, err := s.deps.Tracker.Snapshot()
	if err != nil {
		return s.fail(a, MsgTrackingFailed, withKind(iface.KindCapture, "tracking", err))
	}
	camera := snap.Pose

	s.transition(Submitting)
	processed, jpeg, err := s.deps.Preparer.Prepare(frame, snap.Intrinsics, snap.Orientation)
	if err != nil {
		return s.fail(a, MsgCaptureFailed, withKind(iface.KindCapture, "normalize", err))
	}
	defer processed.Close()

	token, ok := s.tokens.Get()
	if !ok {
		a.log.Info("no token, authenticating")
		if err := s.Authenticate(ctx); err != nil {
			return s.fail(a, MsgBadCredentials, withKind(iface.KindAuth, "authenticate", err))
		}
		token, _ = s.tokens.Get()
	}

	params := vps.QueryParams(processed, s.deps.Maps)
	resp, err := s.deps.Localizer.Localize(ctx, token, params, jpeg)
	if err != nil {
		return s.fail(a, MsgFailed, withKind(iface.KindLocalization, "localize", err))
	}

	if !resp.PoseFound {
		res := iface.Result{
			AttemptID: a.id,
			Status:    iface.StatusNotFound,
			Message:   MsgNotFound,
			Camera:    &camera,
			Response:  &resp,
		}
		a.log.Warn("pose not found", zap.Strings("map_ids", resp.MapIds))
		return s.finish(a, NotFound, res), nil
	}

	s.transition(Resolving)
	resolved := s.deps.Resolver(resp, camera)
	res := iface.Result{
		AttemptID: a.id,
		Status:    iface.StatusSuccess,
		Message:   MsgSuccess,
		Pose:      &resolved,
		Camera:    &camera,
		Response:  &resp,
	}
	a.log.Info("localization applied",
		zap.Float64("confidence", resp.Confidence),
		zap.Strings("map_ids", resp.MapIds),
		zap.Any("pose", resolved))
	return s.finish(a, Applied, res), nil
}

func (s *Session) fail(a attempt, msg string, err error) (iface.Result, error) {
	a.log.Error("localization failed", zap.String("message", msg), zap.Error(err))
	res := iface.Result{
		AttemptID: a.id,
		Status:    iface.StatusError,
		Message:   msg,
		Kind:      iface.KindOf(err),
	}
	return s.finish(a, Failed, res), err
}

// finish enters the terminal state, hands the result to the sink and returns to Idle.
func (s *Session) finish(a attempt, terminal State, res iface.Result) iface.Result {
	res.Finished = time.Now()
	s.transition(terminal)
	monitor.ObserveLocalization(string(res.Status), res.Finished.Sub(a.start))
	if s.deps.Sink != nil {
		s.deps.Sink.Apply(res)
	}
	s.transition(Idle)
	return res
}

// withKind keeps an existing taxonomy kind and tags untyped errors with kind.
func withKind(kind iface.Kind, op string, err error) error {
	if iface.KindOf(err) != iface.KindNone {
		return err
	}
	return iface.NewError(kind, op, err)
}
