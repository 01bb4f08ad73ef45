package scoring

import "playpoints/internal/models"

// Award is the point delta computed for one member in one tick
type Award struct {
	UserID string
	Points int
}

type channelState struct {
	occupants int
	players   map[string]int // game name -> occupants playing it
}

// Evaluate computes every non-bot member's delta for one tick of snap.
// ignored reports voice channels that earn nothing; evenMinute enables the
// out-of-voice gaming point. Members with a zero delta are omitted.
func Evaluate(snap models.GuildSnapshot, ignored func(channelID string) bool, evenMinute bool) []Award {
	channels := make(map[string]*channelState)
	playing := make([][]string, len(snap.Members))

	for i, m := range snap.Members {
		if m.Bot {
			continue
		}
		playing[i] = models.PlayingNames(m.Activities)

		if !m.InVoice() || ignored(m.VoiceChannelID) {
			continue
		}
		ch := channels[m.VoiceChannelID]
		if ch == nil {
			ch = &channelState{players: make(map[string]int)}
			channels[m.VoiceChannelID] = ch
		}
		ch.occupants++
		for _, name := range playing[i] {
			ch.players[name]++
		}
	}

	var awards []Award
	for i, m := range snap.Members {
		if m.Bot {
			continue
		}

		points := 0
		isPlaying := len(playing[i]) > 0
		ch := channels[m.VoiceChannelID]
		active := m.InVoice() && ch != nil && !m.SelfDeaf

		if active {
			points++ // voice base
			if ch.occupants >= 2 {
				points++ // crowd
				if m.SelfStream {
					points++ // streaming
				}
			}
			for _, name := range playing[i] {
				if ch.players[name] >= 2 {
					points++ // synergy, once per member
					break
				}
			}
			if isPlaying {
				points++
			}
		} else if isPlaying && evenMinute {
			points++
		}

		if points > 0 {
			awards = append(awards, Award{UserID: m.UserID, Points: points})
		}
	}
	return awards
}
