package clients

import (
	"context"
	"net/http"

	"roombooker/internal/resilience"
)

type HTTPRoomClient struct {
	http *httpClient
}

func NewHTTPRoomClient(baseURL string, cfg HTTPConfig) *HTTPRoomClient {
	return &HTTPRoomClient{http: newHTTPClient(baseURL, cfg)}
}

func (c *HTTPRoomClient) Exists(ctx context.Context, roomID int64) (bool, error) {
	body, err := c.http.do(ctx, http.MethodGet, idPath("/api/room/%d/exists", roomID), nil)
	if err != nil {
		return false, err
	}
	return decode[bool](body)
}

func (c *HTTPRoomClient) Capacity(ctx context.Context, roomID int64) (int, error) {
	body, err := c.http.do(ctx, http.MethodGet, idPath("/api/room/%d/capacity", roomID), nil)
	if err != nil {
		return 0, err
	}
	return decode[int](body)
}

func (c *HTTPRoomClient) Available(ctx context.Context, roomID int64) (bool, error) {
	body, err := c.http.do(ctx, http.MethodGet, idPath("/api/room/%d/availability", roomID), nil)
	if err != nil {
		return false, err
	}
	return decode[bool](body)
}

type resilientRoomClient struct {
	next   RoomClient
	policy *resilience.Policy
}

// NewResilientRoomClient fails safe: an unreachable room service reads as a room that does not
// exist, has no capacity and is not available.
func NewResilientRoomClient(next RoomClient, policy *resilience.Policy) RoomClient {
	return &resilientRoomClient{next: next, policy: policy}
}

func (c *resilientRoomClient) Exists(ctx context.Context, roomID int64) (bool, error) {
	return resilience.Query(ctx, c.policy, "exists", func(ctx context.Context) (bool, error) {
		return c.next.Exists(ctx, roomID)
	}, resilience.Value(false))
}

func (c *resilientRoomClient) Capacity(ctx context.Context, roomID int64) (int, error) {
	return resilience.Query(ctx, c.policy, "capacity", func(ctx context.Context) (int, error) {
		return c.next.Capacity(ctx, roomID)
	}, resilience.Value(0))
}

func (c *resilientRoomClient) Available(ctx context.Context, roomID int64) (bool, error) {
	return resilience.Query(ctx, c.policy, "availability", func(ctx context.Context) (bool, error) {
		return c.next.Available(ctx, roomID)
	}, resilience.Value(false))
}
