package ids

import "github.com/google/uuid"

// New returns a collision-resistant identifier. UUIDv7 puts a millisecond
// timestamp in front of random bits, so ids also sort by creation time.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
