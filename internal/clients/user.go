package clients

import (
	"context"
	"net/http"
	"strings"

	"roombooker/internal/model"
	"roombooker/internal/resilience"
)

type HTTPUserClient struct {
	http *httpClient
}

func NewHTTPUserClient(baseURL string, cfg HTTPConfig) *HTTPUserClient {
	return &HTTPUserClient{http: newHTTPClient(baseURL, cfg)}
}

func (c *HTTPUserClient) Role(ctx context.Context, userID int64) (string, error) {
	return c.attribute(ctx, idPath("/api/users/%d/role", userID))
}

func (c *HTTPUserClient) Type(ctx context.Context, userID int64) (string, error) {
	return c.attribute(ctx, idPath("/api/users/%d/type", userID))
}

func (c *HTTPUserClient) attribute(ctx context.Context, path string) (string, error) {
	body, err := c.http.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	v, err := decode[string](body)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(strings.TrimSpace(v)), nil
}

type resilientUserClient struct {
	next   UserClient
	policy *resilience.Policy
}

// NewResilientUserClient answers model.Unknown for role and type when the user service
// cannot be reached.
func NewResilientUserClient(next UserClient, policy *resilience.Policy) UserClient {
	return &resilientUserClient{next: next, policy: policy}
}

func (c *resilientUserClient) Role(ctx context.Context, userID int64) (string, error) {
	return resilience.Query(ctx, c.policy, "role", func(ctx context.Context) (string, error) {
		return c.next.Role(ctx, userID)
	}, resilience.Value(model.Unknown))
}

func (c *resilientUserClient) Type(ctx context.Context, userID int64) (string, error) {
	return resilience.Query(ctx, c.policy, "type", func(ctx context.Context) (string, error) {
		return c.next.Type(ctx, userID)
	}, resilience.Value(model.Unknown))
}
