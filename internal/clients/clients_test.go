package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombooker/internal/apperr"
	"roombooker/internal/dto"
	"roombooker/internal/model"
	"roombooker/internal/resilience"
)

func fastPolicy(name string) *resilience.Policy {
	return resilience.NewPolicy(name, resilience.Config{
		Timeout: 200 * time.Millisecond,
		Retry: resilience.RetryConfig{
			MaxRetries:      1,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
			Multiplier:      1,
		},
		Breaker: resilience.BreakerConfig{
			MaxRequests:         1,
			OpenTimeout:         time.Minute,
			ConsecutiveFailures: 3,
		},
	}, nil)
}

func TestHTTPUserClient_DecodesBareAndEnvelopedAnswers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/1/role":
			_, _ = w.Write([]byte("ADMIN"))
		case "/api/users/2/role":
			_, _ = w.Write([]byte(`"superadmin"`))
		case "/api/users/3/type":
			_, _ = w.Write([]byte(`{"status":"ok","data":"FACULTY"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPUserClient(srv.URL, DefaultHTTPConfig())
	ctx := context.Background()

	role, err := c.Role(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", role)

	role, err = c.Role(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "SUPERADMIN", role)

	typ, err := c.Type(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "FACULTY", typ)

	_, err = c.Role(ctx, 4)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestResilientUserClient_NotFoundIsNotAFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "user not found", http.StatusNotFound)
	}))
	defer srv.Close()

	policy := fastPolicy("user")
	c := NewResilientUserClient(NewHTTPUserClient(srv.URL, DefaultHTTPConfig()), policy)

	_, err := c.Role(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
	assert.Zero(t, policy.Fallbacks())
}

func TestResilientUserClient_FailingDependencyResolvesUnknown(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	policy := fastPolicy("user")
	c := NewResilientUserClient(NewHTTPUserClient(srv.URL, DefaultHTTPConfig()), policy)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		role, err := c.Role(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, model.Unknown, role)
	}
	hitsWhenOpened := hits.Load()

	for i := 0; i < 10; i++ {
		role, err := c.Role(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, model.Unknown, role)
	}

	assert.Equal(t, hitsWhenOpened, hits.Load(), "open breaker must not reach the user service")
	assert.Equal(t, int64(13), policy.Fallbacks())
}

func TestResilientRoomClient_ReadTimeoutFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	policy := fastPolicy("room")
	c := NewResilientRoomClient(
		NewHTTPRoomClient(srv.URL, HTTPConfig{ConnectTimeout: time.Second, ReadTimeout: 50 * time.Millisecond}),
		policy,
	)

	exists, err := c.Exists(context.Background(), 101)
	require.NoError(t, err)
	assert.False(t, exists)

	capacity, err := c.Capacity(context.Background(), 101)
	require.NoError(t, err)
	assert.Zero(t, capacity)
	assert.Equal(t, int64(2), policy.Fallbacks())
}

func TestHTTPRoomClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/room/101/exists":
			_, _ = w.Write([]byte("true"))
		case "/api/room/101/capacity":
			_, _ = w.Write([]byte("120"))
		case "/api/room/101/availability":
			_, _ = w.Write([]byte("false"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPRoomClient(srv.URL, DefaultHTTPConfig())
	ctx := context.Background()

	exists, err := c.Exists(ctx, 101)
	require.NoError(t, err)
	assert.True(t, exists)

	capacity, err := c.Capacity(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, 120, capacity)

	available, err := c.Available(ctx, 101)
	require.NoError(t, err)
	assert.False(t, available)
}

func TestHTTPBookingClient(t *testing.T) {
	start := time.Date(2024, 11, 10, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/bookings/availability":
			q := r.URL.Query()
			assert.Equal(t, "101", q.Get("roomId"))
			assert.Equal(t, start.Format(time.RFC3339), q.Get("startTime"))
			assert.Equal(t, end.Format(time.RFC3339), q.Get("endTime"))
			assert.Equal(t, "5", q.Get("excludeBookingId"))
			_ = json.NewEncoder(w).Encode(dto.Response{Status: "ok", Data: true})
		case r.Method == http.MethodPost && r.URL.Path == "/api/bookings/event":
			var req dto.EventBookingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.RoomID == 13 {
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(dto.Response{Status: "error", Error: &dto.Error{
					Code: "CONFLICT", Desc: "Room is under maintenance",
				}})
				return
			}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(dto.Response{Status: "ok", Data: model.Booking{
				ID: 77, RoomID: req.RoomID, UserID: req.UserID, StartTime: req.StartTime, EndTime: req.EndTime,
			}})
		case r.Method == http.MethodPut && r.URL.Path == "/api/bookings/77/event":
			var req dto.EventBookingRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(dto.Response{Status: "ok", Data: model.Booking{
				ID: 77, RoomID: req.RoomID, UserID: req.UserID, StartTime: req.StartTime, EndTime: req.EndTime,
			}})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/bookings/77":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPBookingClient(srv.URL, DefaultHTTPConfig())
	ctx := context.Background()
	exclude := int64(5)

	ok, err := c.IsAvailable(ctx, AvailabilityQuery{RoomID: 101, Start: start, End: end, ExcludeBookingID: &exclude})
	require.NoError(t, err)
	assert.True(t, ok)

	req := dto.EventBookingRequest{
		BookingRequest: dto.BookingRequest{UserID: 1, RoomID: 101, StartTime: start, EndTime: end},
		EventType:      "Workshop", ExpectedAttendees: 50,
	}
	b, err := c.CreateEventBooking(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(77), b.ID)
	assert.True(t, b.StartTime.Equal(start))

	req.RoomID = 13
	_, err = c.CreateEventBooking(ctx, req)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "Room is under maintenance", apperr.Message(err))

	req.EndTime = end.Add(time.Hour)
	moved, err := c.ReplaceEventBooking(ctx, 77, req)
	require.NoError(t, err)
	assert.Equal(t, int64(77), moved.ID)
	assert.True(t, moved.EndTime.Equal(end.Add(time.Hour)))
	_, err = c.ReplaceEventBooking(ctx, 78, req)
	assert.True(t, apperr.IsNotFound(err))

	require.NoError(t, c.Delete(ctx, 77))
	assert.True(t, apperr.IsNotFound(c.Delete(ctx, 78)))
}

func TestResilientBookingClient_CreateNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("booking store down"))
	}))
	defer srv.Close()

	c := NewResilientBookingClient(NewHTTPBookingClient(srv.URL, DefaultHTTPConfig()), fastPolicy("booking"))

	_, err := c.CreateEventBooking(context.Background(), dto.EventBookingRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, http.StatusServiceUnavailable, apperr.HTTPStatus(err))
	assert.Equal(t, "booking store down", apperr.Message(err))
}

func TestHTTPEventClient(t *testing.T) {
	var gotStatus string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/events/3/exists":
			_, _ = w.Write([]byte(`{"status":"ok","data":true}`))
		case r.Method == http.MethodPut && r.URL.Path == "/api/events/3/status":
			gotStatus = r.URL.Query().Get("status")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/api/events/3":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprint(w, `{"status":"error","error":{"code":"EVENT_NOT_FOUND","desc":"Event not found"}}`)
		}
	}))
	defer srv.Close()

	c := NewResilientEventClient(NewHTTPEventClient(srv.URL, DefaultHTTPConfig()), fastPolicy("event"))
	ctx := context.Background()

	exists, err := c.Exists(ctx, 3)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.UpdateStatus(ctx, 3, model.StatusApproved))
	assert.Equal(t, "APPROVED", gotStatus)
	require.NoError(t, c.Delete(ctx, 3))

	err = c.UpdateStatus(ctx, 4, model.StatusRejected)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
	assert.Equal(t, "Event not found", apperr.Message(err))
}

func TestResilientEventClient_ExistsHasNoSubstitute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	policy := fastPolicy("event")
	c := NewResilientEventClient(NewHTTPEventClient(srv.URL, DefaultHTTPConfig()), policy)

	_, err := c.Exists(context.Background(), 3)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Zero(t, policy.Fallbacks())
}
