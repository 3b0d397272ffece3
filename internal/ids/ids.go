package ids

import "github.com/segmentio/ksuid"

// New returns a time-ordered, URL-safe identifier used for object keys.
func New() string {
	return ksuid.New().String()
}
