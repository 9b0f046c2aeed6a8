package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombooker/internal/apperr"
	"roombooker/internal/clients"
	"roombooker/internal/dto"
	"roombooker/internal/model"
	"roombooker/internal/repo"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	bodies [][]byte
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.bodies = append(p.bodies, body)
	return nil
}

func (p *recordingPublisher) Close() {}

type recordingAlerter struct {
	mu       sync.Mutex
	subjects []string
}

func (a *recordingAlerter) Alert(_ context.Context, subject, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subjects = append(a.subjects, subject)
	return nil
}

func openRoom() *clients.FakeRoomClient {
	return &clients.FakeRoomClient{
		ExistsFunc:    func(context.Context, int64) (bool, error) { return true, nil },
		CapacityFunc:  func(context.Context, int64) (int, error) { return 100, nil },
		AvailableFunc: func(context.Context, int64) (bool, error) { return true, nil },
	}
}

func userOfType(typ string) *clients.FakeUserClient {
	return &clients.FakeUserClient{
		TypeFunc: func(context.Context, int64) (string, error) { return typ, nil },
		RoleFunc: func(context.Context, int64) (string, error) { return model.RoleUser, nil },
	}
}

type bookingFixture struct {
	svc      *BookingService
	bookings *repo.MemoryBookingRepository
	pub      *recordingPublisher
	alerts   *recordingAlerter
	rooms    *clients.FakeRoomClient
	users    *clients.FakeUserClient
}

func newBookingFixture() *bookingFixture {
	f := &bookingFixture{
		bookings: repo.NewMemoryBookingRepository(),
		pub:      &recordingPublisher{},
		alerts:   &recordingAlerter{},
		rooms:    openRoom(),
		users:    userOfType(model.TypeStudent),
	}
	f.svc = NewBookingService(BookingDeps{
		Bookings:  f.bookings,
		Rooms:     f.rooms,
		Users:     f.users,
		Publisher: f.pub,
		Alerter:   f.alerts,
	})
	return f
}

func bookingReq(room int64, start, end time.Time) dto.BookingRequest {
	return dto.BookingRequest{UserID: 7, RoomID: room, StartTime: start, EndTime: end, Purpose: "Lecture"}
}

func TestCreateBooking_Overlap(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	first, err := f.svc.CreateBooking(ctx, bookingReq(101, at(9, 0), at(11, 0)))
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	_, err = f.svc.CreateBooking(ctx, bookingReq(101, at(10, 0), at(12, 0)))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, MsgRoomNotAvailable, apperr.Message(err))

	_, err = f.svc.CreateBooking(ctx, bookingReq(101, at(11, 0), at(12, 0)))
	assert.NoError(t, err, "touching intervals do not overlap")

	_, err = f.svc.CreateBooking(ctx, bookingReq(102, at(10, 0), at(12, 0)))
	assert.NoError(t, err, "other rooms are independent")

	assert.Empty(t, f.pub.bodies)
}

func TestCreateBooking_RoomChecks(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*clients.FakeRoomClient)
		kind  apperr.Kind
		msg   string
	}{
		{
			name: "missing room",
			setup: func(r *clients.FakeRoomClient) {
				r.ExistsFunc = func(context.Context, int64) (bool, error) { return false, nil }
			},
			kind: apperr.KindNotFound,
			msg:  MsgRoomNotFound,
		},
		{
			name: "room service 404",
			setup: func(r *clients.FakeRoomClient) {
				r.ExistsFunc = func(context.Context, int64) (bool, error) { return false, apperr.NotFound("no such room") }
			},
			kind: apperr.KindNotFound,
			msg:  MsgRoomNotFound,
		},
		{
			name: "maintenance",
			setup: func(r *clients.FakeRoomClient) {
				r.AvailableFunc = func(context.Context, int64) (bool, error) { return false, nil }
			},
			kind: apperr.KindConflict,
			msg:  MsgRoomMaintenance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture()
			tt.setup(f.rooms)

			_, err := f.svc.CreateBooking(context.Background(), bookingReq(101, at(9, 0), at(10, 0)))
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, tt.msg, apperr.Message(err))

			all, _ := f.bookings.List(context.Background())
			assert.Empty(t, all)
		})
	}
}

func TestCreateBooking_User(t *testing.T) {
	f := newBookingFixture()
	f.users.TypeFunc = func(context.Context, int64) (string, error) { return "", apperr.NotFound("user 7 not found") }
	_, err := f.svc.CreateBooking(context.Background(), bookingReq(101, at(9, 0), at(10, 0)))
	assert.True(t, apperr.IsNotFound(err))

	f.users.TypeFunc = func(context.Context, int64) (string, error) { return model.Unknown, nil }
	_, err = f.svc.CreateBooking(context.Background(), bookingReq(101, at(9, 0), at(10, 0)))
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestCreateBooking_InvalidInterval(t *testing.T) {
	f := newBookingFixture()

	_, err := f.svc.CreateBooking(context.Background(), bookingReq(101, at(11, 0), at(9, 0)))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.CreateBooking(context.Background(), bookingReq(101, at(9, 0), at(9, 0)))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateBooking_ConcurrentSameSlot(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	const callers = 20
	var created atomic.Int32
	var conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateBooking(ctx, bookingReq(101, at(9, 0), at(11, 0)))
			switch {
			case err == nil:
				created.Add(1)
			case apperr.Is(err, apperr.KindConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(callers-1), conflicts.Load())
	all, _ := f.bookings.ListByRoom(ctx, 101)
	assert.Len(t, all, 1)
}

func TestCreateEventBooking_Publishes(t *testing.T) {
	f := newBookingFixture()
	req := dto.EventBookingRequest{
		BookingRequest:    bookingReq(101, at(9, 0), at(11, 0)),
		EventType:         "Workshop",
		ExpectedAttendees: 50,
	}
	req.Purpose = "Go workshop"

	b, err := f.svc.CreateEventBooking(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, f.pub.bodies, 1)
	var msg dto.BookingEvent
	require.NoError(t, json.Unmarshal(f.pub.bodies[0], &msg))
	assert.NotEmpty(t, msg.MessageID)
	assert.Equal(t, b.ID, msg.BookingID)
	assert.Equal(t, int64(101), msg.RoomID)
	assert.Equal(t, int64(7), msg.UserID)
	assert.Equal(t, "Go workshop", msg.Purpose)
	assert.Equal(t, "Workshop", msg.EventType)
	assert.Equal(t, 50, msg.ExpectedAttendees)
	assert.Nil(t, msg.EventID)
	assert.True(t, msg.StartTime.Equal(at(9, 0)))
	assert.Equal(t, "1", f.pub.keys[0])
}

func TestCreateEventBooking_PublishFailure(t *testing.T) {
	f := newBookingFixture()
	f.pub.err = errors.New("broker unreachable")

	_, err := f.svc.CreateEventBooking(context.Background(), dto.EventBookingRequest{
		BookingRequest:    bookingReq(101, at(9, 0), at(11, 0)),
		EventType:         "Seminar",
		ExpectedAttendees: 10,
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInconsistent))

	all, _ := f.bookings.List(context.Background())
	assert.Len(t, all, 1, "the booking stays committed")
	assert.Len(t, f.alerts.subjects, 1)
}

func TestUpdateBooking_IgnoresItself(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, bookingReq(101, at(9, 0), at(11, 0)))
	require.NoError(t, err)
	other, err := f.svc.CreateBooking(ctx, bookingReq(101, at(12, 0), at(13, 0)))
	require.NoError(t, err)

	updated, err := f.svc.UpdateBooking(ctx, b.ID, bookingReq(101, at(9, 30), at(11, 30)))
	require.NoError(t, err)
	assert.True(t, updated.StartTime.Equal(at(9, 30)))

	_, err = f.svc.UpdateBooking(ctx, b.ID, bookingReq(101, at(11, 0), at(12, 30)))
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.svc.UpdateBooking(ctx, other.ID+100, bookingReq(101, at(14, 0), at(15, 0)))
	assert.True(t, apperr.IsNotFound(err))
}

func TestIsAvailable_Exclude(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, bookingReq(101, at(9, 0), at(11, 0)))
	require.NoError(t, err)

	ok, err := f.svc.IsAvailable(ctx, 101, at(10, 0), at(12, 0), nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.IsAvailable(ctx, 101, at(10, 0), at(12, 0), &b.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteBooking(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, bookingReq(101, at(9, 0), at(11, 0)))
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteBooking(ctx, b.ID))

	err = f.svc.DeleteBooking(ctx, b.ID)
	assert.True(t, apperr.IsNotFound(err))
	assert.Equal(t, dto.BookingNotFound, apperr.Code(err))
}

func TestReplaceEventBooking_MovesInPlace(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	eventID := int64(3)

	b, err := f.svc.CreateEventBooking(ctx, dto.EventBookingRequest{
		BookingRequest: bookingReq(101, at(9, 0), at(11, 0)), EventType: "Workshop", ExpectedAttendees: 20,
	})
	require.NoError(t, err)
	_, err = f.svc.CreateBooking(ctx, bookingReq(101, at(13, 0), at(14, 0)))
	require.NoError(t, err)
	published := len(f.pub.bodies)

	req := dto.EventBookingRequest{
		BookingRequest: bookingReq(101, at(9, 0), at(12, 0)), EventType: "Workshop", ExpectedAttendees: 30,
		EventID: &eventID,
	}
	moved, err := f.svc.ReplaceEventBooking(ctx, b.ID, req)
	require.NoError(t, err, "extending over its own slot")
	assert.Equal(t, b.ID, moved.ID)

	all, _ := f.bookings.ListByRoom(ctx, 101)
	require.Len(t, all, 2)
	stored, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, stored.EndTime.Equal(at(12, 0)))
	assert.Len(t, f.pub.bodies, published, "the event service updates the event itself")

	req.EndTime = at(13, 30)
	_, err = f.svc.ReplaceEventBooking(ctx, b.ID, req)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.svc.ReplaceEventBooking(ctx, b.ID+100, req)
	assert.True(t, apperr.IsNotFound(err))
}
