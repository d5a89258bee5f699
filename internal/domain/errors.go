package domain

import (
	"errors"
	"fmt"
)

// ErrSweepInProgress is returned when a sweep is requested while another
// sweep is still running. Scheduled runs treat this as a skip, the manual
// trigger surface maps it to HTTP 409.
var ErrSweepInProgress = errors.New("recurring sweep already in progress")

// ErrStoreIntegrity indicates the rule store returned something structurally
// impossible (e.g. a nil rule row). Fatal for the whole sweep.
var ErrStoreIntegrity = errors.New("rule store integrity error")

// UnsupportedFrequencyError is returned by the due-date calculator for a
// frequency value it does not understand. Fatal for that rule's processing
// attempt, recovered at the sweep level.
type UnsupportedFrequencyError struct {
	Frequency FrequencyType
}

func (e *UnsupportedFrequencyError) Error() string {
	return fmt.Sprintf("unsupported frequency type: %q", e.Frequency)
}

// IsUnsupportedFrequency reports whether err is an UnsupportedFrequencyError.
func IsUnsupportedFrequency(err error) bool {
	var ufe *UnsupportedFrequencyError
	return errors.As(err, &ufe)
}
