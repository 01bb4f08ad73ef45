package models

// ActivityKind discriminates the variants of a presence activity
type ActivityKind int

const (
	ActivityPlaying ActivityKind = iota
	ActivityStreaming
	ActivityListening
	ActivityWatching
	ActivityCustom
	ActivityCompeting
	ActivityScreenShare
)

// ScreenShareActivity is the session name used for self_stream in voice
const ScreenShareActivity = "Screen Share"

// Activity is one entry of a member's presence
type Activity struct {
	Kind ActivityKind
	Name string
}

// String returns the stored activity_type tag
func (k ActivityKind) String() string {
	switch k {
	case ActivityPlaying:
		return "playing"
	case ActivityStreaming:
		return "streaming"
	case ActivityListening:
		return "listening"
	case ActivityWatching:
		return "watching"
	case ActivityCustom:
		return "custom"
	case ActivityCompeting:
		return "competing"
	case ActivityScreenShare:
		return "screen_share"
	default:
		return "unknown"
	}
}

// Tracked reports whether sessions are kept for this kind of activity.
// Custom statuses and listening (music) are not.
func (k ActivityKind) Tracked() bool {
	switch k {
	case ActivityCustom, ActivityListening:
		return false
	default:
		return true
	}
}

// Playing reports whether the activity counts as a game
func (a Activity) Playing() bool {
	return a.Kind == ActivityPlaying && a.Name != ""
}

// PlayingNames returns the distinct game names in activities
func PlayingNames(activities []Activity) []string {
	var names []string
	seen := make(map[string]bool)
	for _, act := range activities {
		if !act.Playing() || seen[act.Name] {
			continue
		}
		seen[act.Name] = true
		names = append(names, act.Name)
	}
	return names
}
