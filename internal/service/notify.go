package service

import "sync"

// Notifier fans an invalidation signal out to live query observers. Every
// mutating operation publishes once; observers re-fetch on receipt. A slow
// observer never blocks a publish, consecutive signals simply coalesce into
// the one it has not consumed yet.
type Notifier struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[chan struct{}]struct{})}
}

// Subscribe registers an observer. The returned cancel must be called when
// the observer goes away; it is safe to call more than once.
func (n *Notifier) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if _, ok := n.subs[ch]; ok {
			delete(n.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (n *Notifier) Publish() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
