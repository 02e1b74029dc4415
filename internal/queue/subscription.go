package queue

// Subscription delivers refresh notifications. Notifications carry no
// payload and coalesce: a slow observer sees at most one pending signal.
type Subscription struct {
	Changed <-chan struct{}
	Done    <-chan struct{}

	changedCh chan struct{}
	doneCh    chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		changedCh: make(chan struct{}, 1),
		doneCh:    make(chan struct{}),
	}
	s.Changed = s.changedCh
	s.Done = s.doneCh
	return s
}

// notify signals the observer (non-blocking).
func (s *Subscription) notify() {
	select {
	case s.changedCh <- struct{}{}:
	default:
		// A signal is already pending
	}
}

func (s *Subscription) close() {
	close(s.doneCh)
}
