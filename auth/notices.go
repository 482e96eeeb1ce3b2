package auth

import "sync"

// Notice is a user facing event raised by the session manager without a
// caller asking for it.
type Notice string

const (
	NoticeSessionExpired         Notice = "session expired"
	NoticeSignedOut              Notice = "signed out"
	NoticeAuthenticationRequired Notice = "authentication required"
)

const subscriberBuffer = 4

type noticeBroker struct {
	mu          sync.Mutex
	subscribers map[int]chan Notice
	nextID      int
	latest      Notice
}

func newNoticeBroker() *noticeBroker {
	return &noticeBroker{subscribers: make(map[int]chan Notice)}
}

func (b *noticeBroker) subscribe() (<-chan Notice, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Notice, subscriberBuffer)
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
			close(ch)
		})
	}
}

// publish never blocks; a subscriber that is not draining its channel misses notices.
func (b *noticeBroker) publish(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = n
	for _, ch := range b.subscribers {
		select {
		case ch <- n:
		default:
		}
	}
}

func (b *noticeBroker) last() (Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.latest != ""
}
