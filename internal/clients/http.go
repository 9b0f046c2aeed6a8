// Package clients holds the outbound dependencies of the services: each upstream service is an
// interface with an HTTP implementation and a resilient decorator that runs every call through a
// resilience.Policy.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"roombooker/internal/apperr"
)

type HTTPConfig struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{ConnectTimeout: 3 * time.Second, ReadTimeout: 3 * time.Second}
}

// StatusError is a non-2xx answer of an upstream service.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string, cfg HTTPConfig) *httpClient {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 3 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Transport: transport},
	}
}

// do sends the request and returns the body of a 2xx answer. Other answers are mapped to
// apperr kinds: 404 → NotFound, other 4xx keep their status, 5xx → Upstream.
func (c *httpClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	statusErr := &StatusError{Method: method, URL: req.URL.String(), Code: resp.StatusCode, Body: string(data)}
	msg := remoteMessage(data, resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperr.Wrap(apperr.KindNotFound, msg, statusErr)
	case resp.StatusCode == http.StatusConflict:
		return nil, apperr.Wrap(apperr.KindConflict, msg, statusErr)
	case resp.StatusCode == http.StatusForbidden:
		return nil, apperr.Wrap(apperr.KindForbidden, msg, statusErr)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, apperr.Wrap(apperr.KindValidation, msg, statusErr).WithStatus(resp.StatusCode)
	default:
		return nil, apperr.Upstream(msg, statusErr).WithStatus(resp.StatusCode)
	}
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code string `json:"code"`
		Desc string `json:"desc"`
	} `json:"error"`
}

// remoteMessage extracts the failure reason of an answer, from the response envelope when
// there is one, else from the raw body.
func remoteMessage(body []byte, code int) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil && env.Error.Desc != "" {
		return env.Error.Desc
	}
	if text := strings.Trim(strings.TrimSpace(string(body)), `"`); text != "" {
		return text
	}
	return http.StatusText(code)
}

// decode reads a value answered either inside the response envelope or bare, as JSON or as
// plain text ("STUDENT", true, 120).
func decode[T any](body []byte) (T, error) {
	var v T
	trimmed := bytes.TrimSpace(body)

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err == nil && env.Status != "" && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &v); err == nil {
			return v, nil
		}
	}
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v, nil
	}

	text := strings.Trim(string(trimmed), `"`)
	switch p := any(&v).(type) {
	case *string:
		*p = text
		return v, nil
	case *bool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return v, fmt.Errorf("unexpected boolean answer %q", text)
		}
		*p = b
		return v, nil
	case *int:
		n, err := strconv.Atoi(text)
		if err != nil {
			return v, fmt.Errorf("unexpected integer answer %q", text)
		}
		*p = n
		return v, nil
	}
	return v, fmt.Errorf("failed to decode answer %q", text)
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}
