package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"roombooker/internal/dto"
	"roombooker/internal/model"
	"roombooker/internal/resilience"
)

type HTTPBookingClient struct {
	http *httpClient
}

func NewHTTPBookingClient(baseURL string, cfg HTTPConfig) *HTTPBookingClient {
	return &HTTPBookingClient{http: newHTTPClient(baseURL, cfg)}
}

func (c *HTTPBookingClient) IsAvailable(ctx context.Context, q AvailabilityQuery) (bool, error) {
	params := url.Values{}
	params.Set("roomId", strconv.FormatInt(q.RoomID, 10))
	params.Set("startTime", q.Start.Format(time.RFC3339))
	params.Set("endTime", q.End.Format(time.RFC3339))
	if q.ExcludeBookingID != nil {
		params.Set("excludeBookingId", strconv.FormatInt(*q.ExcludeBookingID, 10))
	}

	body, err := c.http.do(ctx, http.MethodGet, "/api/bookings/availability?"+params.Encode(), nil)
	if err != nil {
		return false, err
	}
	return decode[bool](body)
}

func (c *HTTPBookingClient) CreateEventBooking(ctx context.Context, req dto.EventBookingRequest) (*model.Booking, error) {
	body, err := c.http.do(ctx, http.MethodPost, "/api/bookings/event", req)
	if err != nil {
		return nil, err
	}
	b, err := decode[model.Booking](body)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *HTTPBookingClient) ReplaceEventBooking(ctx context.Context, bookingID int64, req dto.EventBookingRequest) (*model.Booking, error) {
	body, err := c.http.do(ctx, http.MethodPut, idPath("/api/bookings/%d/event", bookingID), req)
	if err != nil {
		return nil, err
	}
	b, err := decode[model.Booking](body)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *HTTPBookingClient) Delete(ctx context.Context, bookingID int64) error {
	_, err := c.http.do(ctx, http.MethodDelete, idPath("/api/bookings/%d", bookingID), nil)
	return err
}

type resilientBookingClient struct {
	next   BookingClient
	policy *resilience.Policy
}

// NewResilientBookingClient reads an unreachable booking service as "not available".
// Create, replace and delete are attempted once and report the failure.
func NewResilientBookingClient(next BookingClient, policy *resilience.Policy) BookingClient {
	return &resilientBookingClient{next: next, policy: policy}
}

func (c *resilientBookingClient) IsAvailable(ctx context.Context, q AvailabilityQuery) (bool, error) {
	return resilience.Query(ctx, c.policy, "availability", func(ctx context.Context) (bool, error) {
		return c.next.IsAvailable(ctx, q)
	}, resilience.Value(false))
}

func (c *resilientBookingClient) CreateEventBooking(ctx context.Context, req dto.EventBookingRequest) (*model.Booking, error) {
	return resilience.Command(ctx, c.policy, "create_event_booking", func(ctx context.Context) (*model.Booking, error) {
		return c.next.CreateEventBooking(ctx, req)
	})
}

func (c *resilientBookingClient) ReplaceEventBooking(ctx context.Context, bookingID int64, req dto.EventBookingRequest) (*model.Booking, error) {
	return resilience.Command(ctx, c.policy, "replace_event_booking", func(ctx context.Context) (*model.Booking, error) {
		return c.next.ReplaceEventBooking(ctx, bookingID, req)
	})
}

func (c *resilientBookingClient) Delete(ctx context.Context, bookingID int64) error {
	_, err := resilience.Command(ctx, c.policy, "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.next.Delete(ctx, bookingID)
	})
	return err
}
