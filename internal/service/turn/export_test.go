package turn

import "time"

// SetClock pins the time source used for message stamps.
func SetClock(s *Service, now func() time.Time) {
	s.now = now
}
