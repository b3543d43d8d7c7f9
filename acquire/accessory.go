package acquire

import (
	"context"
	"net/http"
	"strings"
	"time"

	"VpsClient/logger"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultFetchTimeout = 5 * time.Second

// Accessory fetches single snapshots from a camera accessory that otherwise
// streams MJPEG over the local link.
type Accessory struct {
	client  *resty.Client
	baseURL string
	timeout time.Duration
	log     *zap.Logger
}

var _ Fetcher = (*Accessory)(nil)

// NormalizeBaseURL adds a missing http:// scheme and the trailing slash.
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http") {
		raw = "http://" + raw
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return raw
}

func NewAccessory(baseURL string, timeout time.Duration) *Accessory {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Accessory{
		client:  resty.New().SetLogger(logger.S()),
		baseURL: NormalizeBaseURL(baseURL),
		timeout: timeout,
		log:     logger.Named("accessory"),
	}
}

func (a *Accessory) BaseURL() string {
	return a.baseURL
}

// Capture performs one bounded GET <base>/capture.
func (a *Accessory) Capture(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.R().SetContext(ctx).Get(a.baseURL + "capture")
	if err != nil {
		return nil, errors.Wrap(err, "capture transport")
	}
	if resp.StatusCode() != http.StatusOK {
		a.log.Warn("capture non-200", zap.Int("status", resp.StatusCode()))
		return nil, errors.Errorf("capture returned %d", resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, errors.New("capture returned an empty body")
	}
	return body, nil
}

// StopStream asks the accessory to halt streaming so the snapshot gets the
// camera. Failures are logged and returned; callers treat them as advisory.
func (a *Accessory) StopStream(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.R().SetContext(ctx).Get(a.baseURL + "stopstream")
	if err != nil {
		a.log.Debug("stopstream failed", zap.Error(err))
		return errors.Wrap(err, "stopstream transport")
	}
	if resp.IsError() {
		a.log.Debug("stopstream rejected", zap.Int("status", resp.StatusCode()))
		return errors.Errorf("stopstream returned %d", resp.StatusCode())
	}
	return nil
}
