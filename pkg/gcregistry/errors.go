package gcregistry

import "errors"

// ErrNotRegistered is returned when a heartbeat or lookup targets an id
// that has no fleet_members row.
var ErrNotRegistered = errors.New("gcregistry: member not registered")
