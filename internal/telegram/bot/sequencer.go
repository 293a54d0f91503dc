package bot

import "sync"

// chatSequencer orders handlers of the same chat. Each handler waits for the
// one entered before it; different chats run in parallel.
type chatSequencer struct {
	mu    sync.Mutex
	tails map[int64]chan struct{}
}

func newChatSequencer() *chatSequencer {
	return &chatSequencer{tails: make(map[int64]chan struct{})}
}

// enter reserves the next slot of chatID. prev is closed when the previous
// handler of the chat is done (nil if there is none); done must be called
// when this handler finishes. Calls for one chat must come from a single
// goroutine in arrival order.
func (s *chatSequencer) enter(chatID int64) (prev <-chan struct{}, done func()) {
	own := make(chan struct{})

	s.mu.Lock()
	if tail, ok := s.tails[chatID]; ok {
		prev = tail
	}
	s.tails[chatID] = own
	s.mu.Unlock()

	return prev, func() {
		s.mu.Lock()
		if s.tails[chatID] == own {
			delete(s.tails, chatID)
		}
		s.mu.Unlock()
		close(own)
	}
}
