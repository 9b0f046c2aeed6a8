package clients

import (
	"context"
	"net/http"
	"net/url"

	"roombooker/internal/model"
	"roombooker/internal/resilience"
)

type HTTPEventClient struct {
	http *httpClient
}

func NewHTTPEventClient(baseURL string, cfg HTTPConfig) *HTTPEventClient {
	return &HTTPEventClient{http: newHTTPClient(baseURL, cfg)}
}

func (c *HTTPEventClient) Exists(ctx context.Context, eventID int64) (bool, error) {
	body, err := c.http.do(ctx, http.MethodGet, idPath("/api/events/%d/exists", eventID), nil)
	if err != nil {
		return false, err
	}
	return decode[bool](body)
}

func (c *HTTPEventClient) UpdateStatus(ctx context.Context, eventID int64, status model.EventStatus) error {
	path := idPath("/api/events/%d/status", eventID) + "?status=" + url.QueryEscape(string(status))
	_, err := c.http.do(ctx, http.MethodPut, path, nil)
	return err
}

func (c *HTTPEventClient) Delete(ctx context.Context, eventID int64) error {
	_, err := c.http.do(ctx, http.MethodDelete, idPath("/api/events/%d", eventID), nil)
	return err
}

type resilientEventClient struct {
	next   EventClient
	policy *resilience.Policy
}

// NewResilientEventClient never substitutes a value: existence checks are retried, and every
// failure to reach the event service is returned as an upstream error.
func NewResilientEventClient(next EventClient, policy *resilience.Policy) EventClient {
	return &resilientEventClient{next: next, policy: policy}
}

func (c *resilientEventClient) Exists(ctx context.Context, eventID int64) (bool, error) {
	return resilience.Query(ctx, c.policy, "exists", func(ctx context.Context) (bool, error) {
		return c.next.Exists(ctx, eventID)
	}, nil)
}

func (c *resilientEventClient) UpdateStatus(ctx context.Context, eventID int64, status model.EventStatus) error {
	_, err := resilience.Command(ctx, c.policy, "update_status", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.next.UpdateStatus(ctx, eventID, status)
	})
	return err
}

func (c *resilientEventClient) Delete(ctx context.Context, eventID int64) error {
	_, err := resilience.Command(ctx, c.policy, "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.next.Delete(ctx, eventID)
	})
	return err
}
