package services

import "sync"

// Subscription is a cancellable stream of values produced by a single goroutine.
// C is closed once the producer exits, after Cancel or when the source ends.
type Subscription[T any] struct {
	ch     chan T
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

func newSubscription[T any]() *Subscription[T] {
	return &Subscription[T]{
		ch:     make(chan T),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// C returns the delivery channel
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Cancel stops delivery and waits for the producer to exit. No value is
// delivered after Cancel returns. Safe to call more than once.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() { close(s.done) })
	<-s.exited
}

// Done is closed when Cancel is called
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// run starts the producer. produce must return once send reports false
// or s.done is closed.
func (s *Subscription[T]) run(produce func()) {
	go func() {
		defer close(s.exited)
		defer close(s.ch)
		produce()
	}()
}

// send delivers v unless the subscription has been cancelled
func (s *Subscription[T]) send(v T) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ch <- v:
		return true
	case <-s.done:
		return false
	}
}
