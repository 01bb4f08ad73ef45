package models

import "time"

// MemberPresence is the live state of one guild member
type MemberPresence struct {
	UserID         string
	Bot            bool
	VoiceChannelID string // empty when not in voice
	SelfDeaf       bool
	SelfStream     bool
	Activities     []Activity
}

// InVoice reports whether the member currently occupies a voice channel
func (m MemberPresence) InVoice() bool {
	return m.VoiceChannelID != ""
}

// GuildSnapshot is a point-in-time view of a guild's members
type GuildSnapshot struct {
	GuildID string
	Members []MemberPresence
}

// GuildMember is a member as seen by the role synchronizers
type GuildMember struct {
	UserID   string
	Bot      bool
	Roles    []string
	JoinedAt time.Time
}

// HasRole reports whether the member holds roleID
func (m GuildMember) HasRole(roleID string) bool {
	for _, id := range m.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}
