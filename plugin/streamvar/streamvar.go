// Package streamvar provides a single-writer broadcast cell for incrementally
// resolved values. A producer calls Update any number of times followed by
// exactly one Done; subscribers joining at any point receive the latest value
// and every subsequent update.
package streamvar

import "sync"

// Event is one delivery to a subscriber.
type Event[T any] struct {
	Value T
	// Final is true for the terminal Done value.
	Final bool
}

// Var is an incremental-value broadcast channel.
type Var[T any] struct {
	mu     sync.Mutex
	value  T
	seeded bool
	done   bool
	subs   []chan Event[T]
}

// New creates an empty Var.
func New[T any]() *Var[T] {
	return &Var[T]{}
}

// Update publishes a partial value. Calling Update after Done panics: the
// terminal value must be the last delivery.
func (v *Var[T]) Update(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.done {
		panic("streamvar: Update after Done")
	}
	v.value = value
	v.seeded = true
	for _, ch := range v.subs {
		ch <- Event[T]{Value: value}
	}
}

// Done publishes the terminal value and closes every subscription. It must be
// called exactly once.
func (v *Var[T]) Done(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.done {
		panic("streamvar: Done called twice")
	}
	v.value = value
	v.seeded = true
	v.done = true
	for _, ch := range v.subs {
		ch <- Event[T]{Value: value, Final: true}
		close(ch)
	}
	v.subs = nil
}

// Subscribe returns a channel delivering the latest value (when one exists)
// followed by all subsequent updates, plus a cancel function. The channel is
// closed after the final value, or after cancel. The buffer is unbounded in
// practice via a per-subscriber pump so a slow consumer cannot block the
// producer; a consumer that stops reading must call cancel or the pump keeps
// waiting on it. Cancel is idempotent.
func (v *Var[T]) Subscribe() (<-chan Event[T], func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make(chan Event[T], 16)
	if v.done {
		// Late subscriber: replay the final value only.
		out <- Event[T]{Value: v.value, Final: true}
		close(out)
		return out, func() {}
	}

	in := make(chan Event[T], 16)
	if v.seeded {
		in <- Event[T]{Value: v.value}
	}
	v.subs = append(v.subs, in)

	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			v.mu.Lock()
			for i, ch := range v.subs {
				if ch == in {
					v.subs = append(v.subs[:i], v.subs[i+1:]...)
					break
				}
			}
			v.mu.Unlock()
			close(stop)
		})
	}

	go func() {
		// Pump with an overflow queue so producer sends never block. Every
		// wait also watches stop, so an abandoned subscription releases the
		// pump and drops its undelivered events.
		var queue []Event[T]
		for {
			if len(queue) == 0 {
				select {
				case ev, ok := <-in:
					if !ok {
						close(out)
						return
					}
					queue = append(queue, ev)
				case <-stop:
					close(out)
					return
				}
				continue
			}
			select {
			case ev, ok := <-in:
				if !ok {
					for len(queue) > 0 {
						select {
						case out <- queue[0]:
							queue = queue[1:]
						case <-stop:
							close(out)
							return
						}
					}
					close(out)
					return
				}
				queue = append(queue, ev)
			case out <- queue[0]:
				queue = queue[1:]
			case <-stop:
				close(out)
				return
			}
		}
	}()
	return out, cancel
}

// Latest returns the most recent value and whether the stream has finished.
func (v *Var[T]) Latest() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value, v.done
}
