// Package system implements the crawler.Clock port with the wall clock.
package system

import "time"

// Clock reports wall-clock time in UTC so task IDs and event timestamps
// are timezone-stable across deployments.
type Clock struct{}

// New returns a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
