package inventory

import (
	"context"
	"errors"
)

// Query is the read side used by the HTML views.
type Query struct {
	store *Store
}

// NewQuery returns a Query over store.
func NewQuery(store *Store) (*Query, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	return &Query{store: store}, nil
}

// Machines lists every machine's current state, most recently seen first.
func (q *Query) Machines(ctx context.Context) ([]State, error) {
	return q.store.ListCurrentState(ctx)
}

// Machine returns one machine's current state or ErrNotFound.
func (q *Query) Machine(ctx context.Context, serial string) (State, error) {
	return q.store.GetCurrentState(ctx, serial)
}

// History returns one machine's events, newest first.
func (q *Query) History(ctx context.Context, serial string) ([]Event, error) {
	return q.store.ListHistory(ctx, serial)
}

// Device returns the state and history of one machine, or ErrNotFound when
// the machine has never checked in.
func (q *Query) Device(ctx context.Context, serial string) (Device, error) {
	state, err := q.store.GetCurrentState(ctx, serial)
	if err != nil {
		return Device{}, err
	}
	history, err := q.store.ListHistory(ctx, serial)
	if err != nil {
		return Device{}, err
	}
	return Device{State: state, History: history}, nil
}
