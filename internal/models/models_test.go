package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("most_voice_time")
	require.NoError(t, err)
	assert.Equal(t, CategoryMostVoiceTime, c)
	assert.Equal(t, MetricVoiceSeconds, c.Metric())
	assert.Equal(t, 1, c.Rank())

	_, err = ParseCategory("most_vibes")
	assert.Error(t, err)
}

func TestCategoryCatalogue(t *testing.T) {
	for _, c := range Categories {
		assert.NotEmpty(t, c.Metric(), "category %s has no metric", c)
	}
	assert.Equal(t, 2, CategoryTop2.Rank())
	assert.Equal(t, 3, CategoryTop3.Rank())
	assert.Equal(t, MetricPoints, CategoryTop3.Metric())
}

func TestPlayingNames(t *testing.T) {
	acts := []Activity{
		{Kind: ActivityPlaying, Name: "Chess"},
		{Kind: ActivityPlaying, Name: "Chess"},
		{Kind: ActivityPlaying},
		{Kind: ActivityStreaming, Name: "Twitch"},
		{Kind: ActivityPlaying, Name: "Go"},
	}
	assert.Equal(t, []string{"Chess", "Go"}, PlayingNames(acts))
	assert.Empty(t, PlayingNames(nil))
}

func TestActivityKind(t *testing.T) {
	assert.Equal(t, "screen_share", ActivityScreenShare.String())
	assert.Equal(t, "playing", ActivityPlaying.String())
	assert.False(t, ActivityCustom.Tracked())
	assert.False(t, ActivityListening.Tracked())
	assert.True(t, ActivityStreaming.Tracked())
}

func TestGuildMemberHasRole(t *testing.T) {
	m := GuildMember{UserID: "a", Roles: []string{"r1", "r2"}}
	assert.True(t, m.HasRole("r2"))
	assert.False(t, m.HasRole("r3"))
	assert.True(t, MemberPresence{VoiceChannelID: "c"}.InVoice())
}
