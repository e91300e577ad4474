package party

import (
	"errors"
	"fmt"
)

// Domain errors. Their messages are shown to members as-is.
var (
	ErrNotSignedUp        = errors.New("you are not signed up for this party")
	ErrMaxGroups          = fmt.Errorf("a party can have at most %d groups", MaxGroups)
	ErrUnknownGroup       = errors.New("that group does not exist")
	ErrInvalidMember      = errors.New("a member id is required")
	ErrInvalidCount       = errors.New("additional attendees must be between 0 and 99")
	ErrInvalidRouteIndex  = errors.New("that route position does not exist")
	ErrDeletionProtected  = errors.New("this party is protected from deletion")
	ErrPartyNotFound      = errors.New("party not found")
	ErrPartyDeleted       = errors.New("party has been deleted")
	ErrChannelExists      = errors.New("a party already exists for this channel")
	ErrInvalidDescription = errors.New("description is empty after cleanup")
	ErrInvalidName        = errors.New("name is empty after cleanup")
	ErrInvalidGym         = errors.New("a gym is required")
)

// errUnchanged tells mutate to skip persistence without reporting an error.
var errUnchanged = errors.New("party: unchanged")

// RecordError reports a persisted record that could not be recovered.
type RecordError struct {
	ChannelID string
	Err       error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("party: record %s: %v", e.ChannelID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
