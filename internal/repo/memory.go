package repo

import (
	"context"
	"sort"
	"sync"

	"roombooker/internal/model"
)

// In-memory repositories, selected with database.driver=memory and used by tests.
// Bookings keep the bookings_no_overlap rule of the Postgres schema: half-open intervals of one
// room may not intersect.

type MemoryBookingRepository struct {
	mu       sync.RWMutex
	seq      int64
	bookings map[int64]model.Booking
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{bookings: make(map[int64]model.Booking)}
}

func (r *MemoryBookingRepository) Create(_ context.Context, b *model.Booking) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.overlapsLocked(b) {
		return 0, ErrBookingOverlap
	}
	r.seq++
	b.ID = r.seq
	b.CreatedAt = now()
	b.UpdatedAt = b.CreatedAt
	r.bookings[b.ID] = *b
	return b.ID, nil
}

func (r *MemoryBookingRepository) overlapsLocked(b *model.Booking) bool {
	for _, o := range r.bookings {
		if o.ID != b.ID && o.RoomID == b.RoomID && o.EndTime.After(b.StartTime) && o.StartTime.Before(b.EndTime) {
			return true
		}
	}
	return false
}

func (r *MemoryBookingRepository) GetByID(_ context.Context, id int64) (*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (r *MemoryBookingRepository) List(_ context.Context) ([]model.Booking, error) {
	return r.filter(func(model.Booking) bool { return true }), nil
}

func (r *MemoryBookingRepository) ListByUser(_ context.Context, userID int64) ([]model.Booking, error) {
	return r.filter(func(b model.Booking) bool { return b.UserID == userID }), nil
}

func (r *MemoryBookingRepository) ListByRoom(_ context.Context, roomID int64) ([]model.Booking, error) {
	return r.filter(func(b model.Booking) bool { return b.RoomID == roomID }), nil
}

func (r *MemoryBookingRepository) filter(keep func(model.Booking) bool) []model.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (r *MemoryBookingRepository) Update(_ context.Context, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.bookings[b.ID]
	if !ok {
		return ErrBookingNotFound
	}
	if r.overlapsLocked(b) {
		return ErrBookingOverlap
	}
	b.CreatedAt = old.CreatedAt
	b.UpdatedAt = now()
	r.bookings[b.ID] = *b
	return nil
}

func (r *MemoryBookingRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[id]; !ok {
		return ErrBookingNotFound
	}
	delete(r.bookings, id)
	return nil
}

type MemoryEventRepository struct {
	mu     sync.RWMutex
	seq    int64
	events map[int64]model.Event
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{events: make(map[int64]model.Event)}
}

func (r *MemoryEventRepository) Create(_ context.Context, e *model.Event) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(e)
	return e.ID, nil
}

func (r *MemoryEventRepository) insertLocked(e *model.Event) {
	r.seq++
	e.ID = r.seq
	e.CreatedAt = now()
	e.UpdatedAt = e.CreatedAt
	r.events[e.ID] = copyEvent(*e)
}

func (r *MemoryEventRepository) CreateFromBooking(_ context.Context, e *model.Event) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.BookingID != nil {
		for _, existing := range r.events {
			if existing.BookingID != nil && *existing.BookingID == *e.BookingID {
				return false, nil
			}
		}
	}
	r.insertLocked(e)
	return true, nil
}

func (r *MemoryEventRepository) GetByID(_ context.Context, id int64) (*model.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	e = copyEvent(e)
	return &e, nil
}

func (r *MemoryEventRepository) GetByBookingID(_ context.Context, bookingID int64) (*model.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.events {
		if e.BookingID != nil && *e.BookingID == bookingID {
			e = copyEvent(e)
			return &e, nil
		}
	}
	return nil, ErrEventNotFound
}

func (r *MemoryEventRepository) List(_ context.Context) ([]model.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, copyEvent(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryEventRepository) Update(_ context.Context, e *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.events[e.ID]
	if !ok {
		return ErrEventNotFound
	}
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = now()
	r.events[e.ID] = copyEvent(*e)
	return nil
}

func (r *MemoryEventRepository) AttachBooking(_ context.Context, eventID, bookingID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	id := bookingID
	e.BookingID = &id
	e.UpdatedAt = now()
	r.events[eventID] = e
	return nil
}

func (r *MemoryEventRepository) UpdateStatusTx(_ context.Context, id int64, next model.EventStatus) (*model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	if !e.Status.CanTransition(next) {
		e = copyEvent(e)
		return &e, ErrInvalidTransition
	}
	if e.Status != next {
		e.Status = next
		e.UpdatedAt = now()
		r.events[id] = e
	}
	e = copyEvent(e)
	return &e, nil
}

func (r *MemoryEventRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return ErrEventNotFound
	}
	delete(r.events, id)
	return nil
}

func copyEvent(e model.Event) model.Event {
	if e.BookingID != nil {
		id := *e.BookingID
		e.BookingID = &id
	}
	return e
}

type MemoryApprovalRepository struct {
	mu        sync.RWMutex
	seq       int64
	approvals map[int64]model.Approval
	byEvent   map[int64]int64
}

func NewMemoryApprovalRepository() *MemoryApprovalRepository {
	return &MemoryApprovalRepository{
		approvals: make(map[int64]model.Approval),
		byEvent:   make(map[int64]int64),
	}
}

func (r *MemoryApprovalRepository) Upsert(_ context.Context, a *model.Approval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byEvent[a.EventID]; ok {
		old := r.approvals[id]
		a.ID = id
		a.CreatedAt = old.CreatedAt
	} else {
		r.seq++
		a.ID = r.seq
		a.CreatedAt = now()
		r.byEvent[a.EventID] = a.ID
	}
	a.UpdatedAt = now()
	r.approvals[a.ID] = *a
	return nil
}

func (r *MemoryApprovalRepository) GetByID(_ context.Context, id int64) (*model.Approval, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.approvals[id]
	if !ok {
		return nil, ErrApprovalNotFound
	}
	return &a, nil
}

func (r *MemoryApprovalRepository) GetByEventID(_ context.Context, eventID int64) (*model.Approval, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEvent[eventID]
	if !ok {
		return nil, ErrApprovalNotFound
	}
	a := r.approvals[id]
	return &a, nil
}

func (r *MemoryApprovalRepository) List(_ context.Context) ([]model.Approval, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Approval, 0, len(r.approvals))
	for _, a := range r.approvals {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
