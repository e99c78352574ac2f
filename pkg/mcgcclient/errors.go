package mcgcclient

import "errors"

var (
	// ErrRegistrationAttemptsExceeded is returned when boot-time
	// registration exhausts RegistrationMaxAttempts without succeeding.
	ErrRegistrationAttemptsExceeded = errors.New("mcgcclient: registration attempts exceeded")
	// ErrRegistrationDeadlineExceeded is returned when boot-time
	// registration exceeds RegistrationAbsoluteDeadline without succeeding.
	ErrRegistrationDeadlineExceeded = errors.New("mcgcclient: registration absolute deadline exceeded")
)
