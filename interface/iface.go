package iface

import "context"

// FrameSource produces one encoded (JPEG) frame per call.
type FrameSource interface {
	Acquire(ctx context.Context) ([]byte, error)
}

// Tracker is the local visual-inertial tracking collaborator.
type Tracker interface {
	Snapshot() (TrackingSnapshot, error)
}

// ResultSink is the presentation boundary: it decides where and how a result is applied.
type ResultSink interface {
	Apply(result Result)
}

type SinkFunc func(result Result)

func (f SinkFunc) Apply(result Result) {
	f(result)
}

// Credentials 客户端凭据
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// MapSelection names exactly one of a map or a map set.
type MapSelection struct {
	MapCode    string
	MapSetCode string
}

// Localizer is the remote localization service.
type Localizer interface {
	Authenticate(ctx context.Context, creds Credentials) (string, error)
	Localize(ctx context.Context, token string, params map[string]string, image []byte) (LocalizationResponse, error)
}
