package clients

import (
	"context"
	"errors"

	"roombooker/internal/dto"
	"roombooker/internal/model"
)

var errNotStubbed = errors.New("fake: method not stubbed")

// Fakes for tests. A nil Func field fails the call.

type FakeUserClient struct {
	RoleFunc func(ctx context.Context, userID int64) (string, error)
	TypeFunc func(ctx context.Context, userID int64) (string, error)
}

func (f *FakeUserClient) Role(ctx context.Context, userID int64) (string, error) {
	if f.RoleFunc == nil {
		return "", errNotStubbed
	}
	return f.RoleFunc(ctx, userID)
}

func (f *FakeUserClient) Type(ctx context.Context, userID int64) (string, error) {
	if f.TypeFunc == nil {
		return "", errNotStubbed
	}
	return f.TypeFunc(ctx, userID)
}

type FakeRoomClient struct {
	ExistsFunc    func(ctx context.Context, roomID int64) (bool, error)
	CapacityFunc  func(ctx context.Context, roomID int64) (int, error)
	AvailableFunc func(ctx context.Context, roomID int64) (bool, error)
}

func (f *FakeRoomClient) Exists(ctx context.Context, roomID int64) (bool, error) {
	if f.ExistsFunc == nil {
		return false, errNotStubbed
	}
	return f.ExistsFunc(ctx, roomID)
}

func (f *FakeRoomClient) Capacity(ctx context.Context, roomID int64) (int, error) {
	if f.CapacityFunc == nil {
		return 0, errNotStubbed
	}
	return f.CapacityFunc(ctx, roomID)
}

func (f *FakeRoomClient) Available(ctx context.Context, roomID int64) (bool, error) {
	if f.AvailableFunc == nil {
		return false, errNotStubbed
	}
	return f.AvailableFunc(ctx, roomID)
}

type FakeBookingClient struct {
	IsAvailableFunc         func(ctx context.Context, q AvailabilityQuery) (bool, error)
	CreateEventBookingFunc  func(ctx context.Context, req dto.EventBookingRequest) (*model.Booking, error)
	ReplaceEventBookingFunc func(ctx context.Context, bookingID int64, req dto.EventBookingRequest) (*model.Booking, error)
	DeleteFunc              func(ctx context.Context, bookingID int64) error
}

func (f *FakeBookingClient) IsAvailable(ctx context.Context, q AvailabilityQuery) (bool, error) {
	if f.IsAvailableFunc == nil {
		return false, errNotStubbed
	}
	return f.IsAvailableFunc(ctx, q)
}

func (f *FakeBookingClient) CreateEventBooking(ctx context.Context, req dto.EventBookingRequest) (*model.Booking, error) {
	if f.CreateEventBookingFunc == nil {
		return nil, errNotStubbed
	}
	return f.CreateEventBookingFunc(ctx, req)
}

func (f *FakeBookingClient) ReplaceEventBooking(ctx context.Context, bookingID int64, req dto.EventBookingRequest) (*model.Booking, error) {
	if f.ReplaceEventBookingFunc == nil {
		return nil, errNotStubbed
	}
	return f.ReplaceEventBookingFunc(ctx, bookingID, req)
}

func (f *FakeBookingClient) Delete(ctx context.Context, bookingID int64) error {
	if f.DeleteFunc == nil {
		return errNotStubbed
	}
	return f.DeleteFunc(ctx, bookingID)
}

type FakeEventClient struct {
	ExistsFunc       func(ctx context.Context, eventID int64) (bool, error)
	UpdateStatusFunc func(ctx context.Context, eventID int64, status model.EventStatus) error
	DeleteFunc       func(ctx context.Context, eventID int64) error
}

func (f *FakeEventClient) Exists(ctx context.Context, eventID int64) (bool, error) {
	if f.ExistsFunc == nil {
		return false, errNotStubbed
	}
	return f.ExistsFunc(ctx, eventID)
}

func (f *FakeEventClient) UpdateStatus(ctx context.Context, eventID int64, status model.EventStatus) error {
	if f.UpdateStatusFunc == nil {
		return errNotStubbed
	}
	return f.UpdateStatusFunc(ctx, eventID, status)
}

func (f *FakeEventClient) Delete(ctx context.Context, eventID int64) error {
	if f.DeleteFunc == nil {
		return errNotStubbed
	}
	return f.DeleteFunc(ctx, eventID)
}
