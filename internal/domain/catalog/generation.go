package catalog

import "time"

// Generation describes one committed index build.
type Generation struct {
	ID          string
	Items       int
	Dimensions  int
	CommittedAt time.Time
}
