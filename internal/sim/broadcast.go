package sim

import (
	"context"
	"maps"
	"sort"
	"sync"
)

// Listener receives a copy of the parameter bag once per cycle.
type Listener func(cycle int, params Params)

// Broadcaster publishes the parameter bag to subscribers. Place it last in
// the operator list so listeners see the final values of each cycle.
type Broadcaster struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[int]Listener)}
}

func (*Broadcaster) Name() string {
	return "broadcast"
}

// Subscribe registers l and returns a function that removes it.
func (b *Broadcaster) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

func (b *Broadcaster) Change(_ context.Context, state *State) error {
	b.mu.Lock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, b.listeners[id])
	}
	b.mu.Unlock()

	for _, l := range listeners {
		l(state.Cycle, maps.Clone(state.Params))
	}
	return nil
}
