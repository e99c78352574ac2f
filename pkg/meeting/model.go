// Package meeting stores meeting metadata for the GC public handlers (C8):
// the code-to-id mapping, host identity, and join policy flags.
package meeting

import "time"

// Meeting is a single meeting's durable metadata.
type Meeting struct {
	ID                        string
	Code                      string
	Name                      string
	HostParticipantID         string
	AllowExternalParticipants bool
	AllowGuests               bool
	CreatedAt                 time.Time
	EndedAt                   *time.Time
}

// Ended reports whether the meeting has concluded.
func (m Meeting) Ended() bool {
	return m.EndedAt != nil
}

// SettingsUpdate is a partial PATCH payload; nil fields are left
// unchanged.
type SettingsUpdate struct {
	Name                      *string
	AllowExternalParticipants *bool
	AllowGuests               *bool
}

// Empty reports whether the update carries no changes (spec §6: "400 on
// empty body").
func (u SettingsUpdate) Empty() bool {
	return u.Name == nil && u.AllowExternalParticipants == nil && u.AllowGuests == nil
}
