package auth

import (
	"slices"
	"sync"

	"github.com/visarisk/agent/internal/models"
)

// subscription is one registered observer. Its lock is held while the
// callback runs so unsubscribe can wait for an in-flight delivery.
type subscription struct {
	lock   sync.Mutex
	id     uint64
	active bool
	fn     func(models.SessionState)
}

// stateContainer holds the published session state. Only the controller
// writes to it; everyone else reads or subscribes.
type stateContainer struct {
	// publishLock orders publications so observers see them in sequence
	publishLock sync.Mutex

	lock        sync.RWMutex
	state       models.SessionState
	subscribers []*subscription
	nextID      uint64
}

func (s *stateContainer) get() models.SessionState {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state.Clone()
}

func (s *stateContainer) publish(next models.SessionState) {
	s.publishLock.Lock()
	defer s.publishLock.Unlock()

	s.lock.Lock()
	s.state = next.Clone()
	subscribers := slices.Clone(s.subscribers)
	s.lock.Unlock()

	for _, sub := range subscribers {
		sub.lock.Lock()
		if sub.active {
			sub.fn(next.Clone())
		}
		sub.lock.Unlock()
	}
}

func (s *stateContainer) subscribe(fn func(models.SessionState)) func() {
	s.lock.Lock()
	s.nextID++
	sub := &subscription{
		id:     s.nextID,
		active: true,
		fn:     fn,
	}
	s.subscribers = append(s.subscribers, sub)
	s.lock.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			s.lock.Lock()
			s.subscribers = slices.DeleteFunc(s.subscribers, func(other *subscription) bool {
				return other.id == sub.id
			})
			s.lock.Unlock()

			// Wait for a delivery in progress, then switch it off for good
			sub.lock.Lock()
			sub.active = false
			sub.lock.Unlock()
		})
	}
}
