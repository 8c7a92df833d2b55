package session

import "time"

// ScheduleExpiry arms a one-shot timer that deletes key after delay, but only
// if the entry is still in the expected state when the timer fires. A session
// that moved on or was removed in the meantime is left alone.
func (s *Store) ScheduleExpiry(key string, expected State, delay time.Duration) {
	s.afterFunc(delay, func() {
		s.expire(key, expected)
	})
}

func (s *Store) expire(key string, expected State) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.State() != expected {
		s.mu.Unlock()
		return
	}
	delete(s.entries, key)
	s.mu.Unlock()

	if s.onExpire != nil {
		s.onExpire(e)
	}
}
