package models

import "time"

// Interaction types written to the ledger
const (
	InteractionMinuteTick = "minute_tick"
	InteractionPenalty    = "penalty"
)

// LedgerEntry represents one signed, immutable point entry
type LedgerEntry struct {
	UserID          string
	GuildID         string
	Points          int
	InteractionType string
	CreatedAt       time.Time
}

// VoiceSession represents a member's stay in one voice channel
type VoiceSession struct {
	ID              int64
	UserID          string
	GuildID         string
	ChannelID       string
	JoinedAt        time.Time
	LeftAt          *time.Time
	DurationSeconds *int64
}

// ActivitySession represents one run of a named activity
type ActivitySession struct {
	ID              int64
	UserID          string
	GuildID         string
	ActivityName    string
	ActivityType    string
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationSeconds *int64
}

// TenureRecord represents when a member joined a guild
type TenureRecord struct {
	GuildID     string
	UserID      string
	JoinedAt    time.Time
	LastChecked time.Time
}

// TenureRole is one step of a guild's tenure staircase
type TenureRole struct {
	RoleID       string `yaml:"role_id"`
	DaysRequired int    `yaml:"days"`
}

// Aggregate is one member's value for a ranking query
type Aggregate struct {
	UserID string
	Value  int64
}

// Message represents a recorded guild message
type Message struct {
	MessageID string
	UserID    string
	GuildID   string
	ChannelID string
	CreatedAt time.Time
}
