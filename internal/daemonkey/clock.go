package daemonkey

import "time"

// Clock supplies the current time for expiry stamping and checks.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// RealClock returns a Clock backed by the system time.
func RealClock() Clock { return realClock{} }
