package storagekeyring

import "time"

// SetClock replaces the clock for testing purposes.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}
