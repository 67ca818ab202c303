package auth

import (
	"sync"
)

// listeners fans auth-state changes out to subscribers. Each subscriber has
// its own goroutine and a one-slot mailbox that always holds the latest state.
type listeners struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	ch     chan *User
	closed bool
}

func (l *listeners) subscribe(current *User, fn func(*User)) func() {
	l.mu.Lock()
	if l.subs == nil {
		l.subs = make(map[int]*subscriber)
	}
	id := l.nextID
	l.nextID++
	sub := &subscriber{ch: make(chan *User, 1)}
	sub.ch <- current
	l.subs[id] = sub
	l.mu.Unlock()

	go func() {
		for u := range sub.ch {
			fn(u)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs, id)
			sub.closed = true
			close(sub.ch)
		})
	}
}

func (l *listeners) notify(u *User) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, sub := range l.subs {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- u:
		default:
			// replace the undelivered state with the newer one
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- u
		}
	}
}

func (l *listeners) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}
