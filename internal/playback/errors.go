package playback

import "errors"

// Custom playback errors. Every failure in this package is synchronous and
// leaves shared state unchanged; timer callbacks never surface errors.
var (
	// ErrChannelNotFound indicates the requested channel does not exist
	ErrChannelNotFound = errors.New("channel not found")

	// ErrDuplicateItem indicates the item is already playing or queued
	ErrDuplicateItem = errors.New("item already playing or queued")

	// ErrNothingPlaying indicates a cursor or skip operation with no current item
	ErrNothingPlaying = errors.New("nothing is playing")

	// ErrNoChannel indicates the viewer has not joined any channel
	ErrNoChannel = errors.New("viewer is not in a channel")

	// ErrScheduleConflict indicates the event overlaps an existing scheduled slot
	ErrScheduleConflict = errors.New("scheduled slot conflicts with an existing event")

	// ErrInvalidTimeRange indicates the event starts or ends in the past
	ErrInvalidTimeRange = errors.New("scheduled slot starts or ends in the past")

	// ErrEventNotFound indicates no scheduled event with the given start time
	ErrEventNotFound = errors.New("scheduled event not found")

	// ErrNotAllowed indicates the viewer lacks permission for the operation
	ErrNotAllowed = errors.New("operation not allowed")

	// ErrInvalidName indicates an empty or malformed channel name
	ErrInvalidName = errors.New("invalid channel name")
)

// IsChannelNotFound checks if the error is a channel not found error
func IsChannelNotFound(err error) bool {
	return errors.Is(err, ErrChannelNotFound)
}

// IsDuplicateItem checks if the error is a duplicate item error
func IsDuplicateItem(err error) bool {
	return errors.Is(err, ErrDuplicateItem)
}

// IsNothingPlaying checks if the error is a nothing playing error
func IsNothingPlaying(err error) bool {
	return errors.Is(err, ErrNothingPlaying)
}

// IsScheduleConflict checks if the error is a schedule conflict error
func IsScheduleConflict(err error) bool {
	return errors.Is(err, ErrScheduleConflict)
}

// IsInvalidTimeRange checks if the error is an invalid time range error
func IsInvalidTimeRange(err error) bool {
	return errors.Is(err, ErrInvalidTimeRange)
}

// IsNotAllowed checks if the error is a permission error
func IsNotAllowed(err error) bool {
	return errors.Is(err, ErrNotAllowed)
}

// IsNoChannel checks if the error is a viewer-not-in-a-channel error
func IsNoChannel(err error) bool {
	return errors.Is(err, ErrNoChannel)
}

// IsEventNotFound checks if the error is a scheduled event not found error
func IsEventNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound)
}

// IsInvalidName checks if the error is an invalid channel name error
func IsInvalidName(err error) bool {
	return errors.Is(err, ErrInvalidName)
}
