// Package gcassign implements GC selection and assignment (C7): weighted
// candidate selection and the assign-before-write protocol with bounded
// retry against Meeting Controllers.
package gcassign

import "time"

// Assignment is a Meeting Assignment row (spec §3).
type Assignment struct {
	MeetingID    string
	ControllerID string
	Region       string
	AssignedAt   time.Time
	EndedAt      *time.Time
}

// candidate is the subset of gcregistry.Member selection needs, kept
// package-local so gcassign does not import gcregistry's storage details.
type candidate struct {
	ControllerID string
	Region       string
	GRPCEndpoint string
	LoadRatio    float64
}
