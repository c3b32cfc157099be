package booking

import "errors"

var (
	// ErrInvalidDate means the date string does not parse under the configured format.
	ErrInvalidDate = errors.New("invalid date")
	ErrPastDate    = errors.New("cannot book in the past")
	ErrDateTooFar  = errors.New("date is too far in the future")

	ErrRoomNotFound = errors.New("room not found")
	ErrDeskNotFound = errors.New("desk not found")

	// ErrDeskUnavailable means the desk or its room has been switched off.
	ErrDeskUnavailable = errors.New("desk is not available")

	// ErrUserNotFound means the caller has not registered yet.
	ErrUserNotFound = errors.New("user not registered")

	// ErrAlreadyBooked is returned both by the pre-check and when the storage
	// uniqueness constraint rejects a concurrent insert on the same desk and date.
	ErrAlreadyBooked     = errors.New("desk already booked for this date")
	ErrUserAlreadyBooked = errors.New("user already has a booking for this date")

	ErrNoDesks = errors.New("no desks available")

	ErrBookingNotFound = errors.New("booking not found")
	ErrForbidden       = errors.New("booking belongs to another user")
)
