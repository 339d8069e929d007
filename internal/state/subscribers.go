package state

import (
	"slices"
	"sync"
)

type subscribers[T any] struct {
	mu        sync.Mutex
	next      int
	listeners map[int]func(T)
}

func (s *subscribers[T]) add(listener func(T)) func() {
	if listener == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[int]func(T))
	}
	id := s.next
	s.next++
	s.listeners[id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers[T]) notify(value T) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	fns := make([]func(T), 0, len(ids))
	// Registration order.
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}
