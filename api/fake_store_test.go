package api

import (
	"context"
	"sync"

	"event-scheduler/changefeed"
	"event-scheduler/domain"
)

type memStore struct {
	mu      sync.Mutex
	events  map[string]domain.Event
	calls   int
	err     error
	pingErr error
	// afterGet runs once, outside the lock, after the next GetEvent.
	afterGet func()
}

func newMemStore() *memStore {
	return &memStore{events: map[string]domain.Event{}}
}

func (m *memStore) enter() error {
	m.mu.Lock()
	m.calls++
	return m.err
}

func (m *memStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *memStore) ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	err := m.enter()
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := []domain.Event{}
	for _, ev := range m.events {
		if filter.Matches(ev) {
			out = append(out, ev)
		}
	}
	domain.SortByStart(out)
	return out, nil
}

func (m *memStore) Event(id string) (domain.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	return ev, ok
}

func (m *memStore) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	ev, err := m.getEvent(id)
	m.mu.Lock()
	hook := m.afterGet
	m.afterGet = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ev, err
}

func (m *memStore) getEvent(id string) (*domain.Event, error) {
	err := m.enter()
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	ev, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (m *memStore) InsertEvent(ctx context.Context, ev domain.Event) (string, error) {
	err := m.enter()
	defer m.mu.Unlock()
	if err != nil {
		return "", err
	}
	ev.ID = domain.NewID()
	m.events[ev.ID] = ev
	return ev.ID, nil
}

func (m *memStore) UpdateEvent(ctx context.Context, id string, upd domain.EventUpdate) (*domain.Event, error) {
	err := m.enter()
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	ev, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	ev = upd.Apply(ev)
	m.events[id] = ev
	return &ev, nil
}

func (m *memStore) DeleteEvent(ctx context.Context, id string) (*domain.Event, error) {
	err := m.enter()
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	ev, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	delete(m.events, id)
	return &ev, nil
}

func (m *memStore) Ping(ctx context.Context) error {
	return m.pingErr
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []changefeed.Change
	reject  bool
}

func (n *recordingNotifier) Notify(ch changefeed.Change) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.reject {
		return false
	}
	n.changes = append(n.changes, ch)
	return true
}

func (n *recordingNotifier) Kinds() []changefeed.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]changefeed.Kind, len(n.changes))
	for i, ch := range n.changes {
		out[i] = ch.Type
	}
	return out
}
