// Package vps talks to the remote visual positioning service: credential
// exchange and the multipart pose query.
package vps

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	iface "VpsClient/interface"
	"VpsClient/logger"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultAuthURL      = "https://api.multiset.ai/v1/m2m/token"
	DefaultQueryURL     = "https://api.multiset.ai/v1/vps/map/query-form"
	DefaultQueryTimeout = 30 * time.Second
	DefaultAuthTimeout  = 10 * time.Second

	imageField    = "queryImage"
	imageFileName = "frame.jpg"
)

// ErrCredentialsRejected is returned for any non-200 answer from the auth endpoint.
var ErrCredentialsRejected = errors.New("Please confirm your credentials!")

type Options struct {
	AuthURL      string
	QueryURL     string
	AuthTimeout  time.Duration
	QueryTimeout time.Duration
}

// Client performs single-shot calls; retrying is left to the caller.
type Client struct {
	http         *resty.Client
	authURL      string
	queryURL     string
	authTimeout  time.Duration
	queryTimeout time.Duration
	log          *zap.Logger
}

var _ iface.Localizer = (*Client)(nil)

func NewClient(opts Options) *Client {
	if opts.AuthURL == "" {
		opts.AuthURL = DefaultAuthURL
	}
	if opts.QueryURL == "" {
		opts.QueryURL = DefaultQueryURL
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = DefaultAuthTimeout
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	return &Client{
		http:         resty.New().SetLogger(logger.S()),
		authURL:      opts.AuthURL,
		queryURL:     opts.QueryURL,
		authTimeout:  opts.AuthTimeout,
		queryTimeout: opts.QueryTimeout,
		log:          logger.Named("vps"),
	}
}

type tokenResponse struct {
	Token *string `json:"token"`
}

// Authenticate exchanges client credentials for a bearer token.
func (c *Client) Authenticate(ctx context.Context, creds iface.Credentials) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.authTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(creds.ClientID, creds.ClientSecret).
		Post(c.authURL)
	if err != nil {
		c.log.Error("auth request failed", zap.Error(err))
		return "", iface.NewError(iface.KindAuth, "authenticate", errors.Wrap(err, "auth transport"))
	}
	if resp.StatusCode() != http.StatusOK {
		c.log.Warn("auth rejected", zap.Int("status", resp.StatusCode()))
		return "", iface.NewError(iface.KindAuth, "authenticate",
			errors.Wrapf(ErrCredentialsRejected, "status %d", resp.StatusCode()))
	}

	var body tokenResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", iface.NewError(iface.KindAuth, "authenticate", errors.Wrap(err, "malformed auth response"))
	}
	if body.Token == nil || *body.Token == "" {
		return "", iface.NewError(iface.KindAuth, "authenticate", errors.New("auth response has no token"))
	}
	c.log.Info("authenticated")
	return *body.Token, nil
}

type wireResponse struct {
	PoseFound  *bool            `json:"poseFound"`
	Position   iface.Vector3    `json:"position"`
	Rotation   iface.Quaternion `json:"rotation"`
	Confidence float64          `json:"confidence"`
	MapIds     []string         `json:"mapIds"`
}

// Localize submits one frame. params are sent as scalar form fields and image
// as the queryImage JPEG part.
func (c *Client) Localize(ctx context.Context, token string, params map[string]string, image []byte) (iface.LocalizationResponse, error) {
	if token == "" {
		return iface.LocalizationResponse{}, iface.NewError(iface.KindLocalization, "localize", iface.ErrNotAuthenticated)
	}
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetMultipartFormData(params).
		SetMultipartField(imageField, imageFileName, "image/jpeg", bytes.NewReader(image)).
		Post(c.queryURL)
	if err != nil {
		c.log.Error("localize request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return iface.LocalizationResponse{}, iface.NewError(iface.KindLocalization, "localize", errors.Wrap(err, "query transport"))
	}
	if resp.StatusCode() != http.StatusOK {
		c.log.Error("localize rejected", zap.Int("status", resp.StatusCode()), zap.String("body", resp.String()))
		return iface.LocalizationResponse{}, iface.NewError(iface.KindLocalization, "localize",
			errors.Errorf("Localization failed: %d", resp.StatusCode()))
	}

	out, err := decodeResponse(resp.Body())
	if err != nil {
		return iface.LocalizationResponse{}, iface.NewError(iface.KindLocalization, "localize", err)
	}
	c.log.Debug("localize answered",
		zap.Bool("pose_found", out.PoseFound),
		zap.Float64("confidence", out.Confidence),
		zap.Strings("map_ids", out.MapIds),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

func decodeResponse(body []byte) (iface.LocalizationResponse, error) {
	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return iface.LocalizationResponse{}, errors.Wrap(err, "malformed localization response")
	}
	if w.PoseFound == nil {
		return iface.LocalizationResponse{}, errors.New("localization response has no poseFound")
	}
	out := iface.LocalizationResponse{
		PoseFound:  *w.PoseFound,
		Position:   w.Position,
		Rotation:   w.Rotation,
		Confidence: w.Confidence,
		MapIds:     w.MapIds,
	}
	if !out.PoseFound {
		return out, nil
	}
	if out.Rotation.Norm() == 0 {
		return iface.LocalizationResponse{}, errors.New("localization response has a zero rotation")
	}
	out.Rotation = out.Rotation.Normalized()
	return out, nil
}
