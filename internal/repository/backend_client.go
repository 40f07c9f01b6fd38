package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/timetable-console/pkg/errors"
)

type ctxKey int

const (
	tokenKey ctxKey = iota
	requestIDKey
)

// WithAuthToken attaches the caller's bearer token; the backend client forwards it verbatim.
func WithAuthToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// WithRequestID attaches a request id propagated as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// AuthToken returns the bearer token stored on ctx.
func AuthToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// RequestID returns the request id stored on ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// CallObserver receives timing for every backend call.
type CallObserver interface {
	ObserveBackendCall(method, route string, status int, duration time.Duration)
}

// BackendClient performs JSON calls against the university REST backend.
type BackendClient struct {
	baseURL  string
	client   *http.Client
	observer CallObserver
	logger   *zap.Logger
}

// NewBackendClient builds a client. A zero timeout keeps the transport default.
func NewBackendClient(baseURL string, timeout time.Duration, observer CallObserver, logger *zap.Logger) *BackendClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &http.Client{}
	if timeout > 0 {
		client.Timeout = timeout
	}
	return &BackendClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		observer: observer,
		logger:   logger,
	}
}

// backendError mirrors the backend's validation error body.
type backendError struct {
	Message string                     `json:"message"`
	Error   string                     `json:"error"`
	Errors  map[string]json.RawMessage `json:"errors"`
}

// call issues a request. route is the metrics label, path the concrete URL path.
func (c *BackendClient) call(ctx context.Context, method, route, path string, query url.Values, body, dest interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, route, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, route, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := AuthToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.observe(method, route, http.StatusServiceUnavailable, duration)
		if errors.Is(err, context.Canceled) {
			return err
		}
		return appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, appErrors.ErrUpstreamUnavailable.Message)
	}
	defer resp.Body.Close()
	c.observe(method, route, resp.StatusCode, duration)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "failed to read backend response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Debug("backend call failed",
			zap.String("method", method),
			zap.String("route", route),
			zap.Int("status", resp.StatusCode),
		)
		return decodeBackendError(resp.StatusCode, raw)
	}

	if dest == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "unexpected backend response")
	}
	return nil
}

func (c *BackendClient) observe(method, route string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer.ObserveBackendCall(method, route, status, duration)
	}
}

func decodeBackendError(status int, raw []byte) error {
	var body backendError
	_ = json.Unmarshal(raw, &body)
	message := body.Message
	if message == "" {
		message = body.Error
	}
	cause := fmt.Errorf("backend status %d", status)

	switch {
	case status == http.StatusUnauthorized:
		e := appErrors.Clone(appErrors.ErrUnauthorized, message)
		e.Err = cause
		return e
	case status == http.StatusForbidden:
		e := appErrors.Clone(appErrors.ErrForbidden, message)
		e.Err = cause
		return e
	case status == http.StatusNotFound:
		e := appErrors.Clone(appErrors.ErrNotFound, message)
		e.Err = cause
		return e
	case status >= http.StatusInternalServerError:
		return appErrors.Wrap(cause, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, appErrors.ErrUpstreamUnavailable.Message)
	}

	e := appErrors.WithDetails(appErrors.ErrUpstreamRejected, fieldErrors(body.Errors))
	if message != "" {
		e.Message = message
	}
	e.Err = cause
	return e
}

// fieldErrors flattens {"field": ["msg", ...]} or {"field": "msg"} into the first message per field.
func fieldErrors(raw map[string]json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var list []string
		if err := json.Unmarshal(v, &list); err == nil {
			if len(list) > 0 {
				out[k] = list[0]
			}
			continue
		}
		var single string
		if err := json.Unmarshal(v, &single); err == nil {
			out[k] = single
		}
	}
	return out
}

// unwrap returns the first present key of a JSON object, or the payload itself.
func unwrap(raw json.RawMessage, keys ...string) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return trimmed
	}
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			return v
		}
	}
	return trimmed
}
