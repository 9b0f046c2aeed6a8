// Package roomlock serializes booking writes per room, closing the window between the
// availability check and the insert.
package roomlock

import (
	"context"
	"errors"
	"sync"
)

var ErrNotHeld = errors.New("room lock is not held")

// Release gives a lock back. It is safe to call once.
type Release func(ctx context.Context) error

type Locker interface {
	// Acquire blocks until the lock of roomID is held or ctx is done.
	Acquire(ctx context.Context, roomID int64) (Release, error)
}

// Local is an in-process keyed mutex for single-replica deployments and tests.
type Local struct {
	mu    sync.Mutex
	rooms map[int64]*roomSlot
}

type roomSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{rooms: make(map[int64]*roomSlot)}
}

func (l *Local) Acquire(ctx context.Context, roomID int64) (Release, error) {
	l.mu.Lock()
	slot, ok := l.rooms[roomID]
	if !ok {
		slot = &roomSlot{ch: make(chan struct{}, 1)}
		l.rooms[roomID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(roomID, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		err := ErrNotHeld
		once.Do(func() {
			<-slot.ch
			l.drop(roomID, slot)
			err = nil
		})
		return err
	}, nil
}

func (l *Local) drop(roomID int64, slot *roomSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.rooms, roomID)
	}
}
