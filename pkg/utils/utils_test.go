package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00:00", FormatDuration(0))
	assert.Equal(t, "1:02:05", FormatDuration(3725))
	assert.Equal(t, "27:46:40", FormatDuration(100000))
	assert.Equal(t, "0:00:00", FormatDuration(-5))
}

func TestMentions(t *testing.T) {
	assert.Equal(t, "<@42>", FormatUserMention("42"))
	assert.Equal(t, "<#7>", FormatChannelMention("7"))

	assert.True(t, IsUserMention("<@42>"))
	assert.True(t, IsUserMention("<@!42>"))
	assert.False(t, IsUserMention("<@&42>"), "role mention")
	assert.False(t, IsUserMention("<@>"))
	assert.False(t, IsUserMention("42"))

	assert.Equal(t, "42", ExtractUserIDFromMention("<@!42>"))
	assert.Equal(t, "42", ExtractUserIDFromMention("<@42>"))
}

func TestFormatLeaderboardEntry(t *testing.T) {
	assert.Equal(t, "🥇 <@1> - 10 points", FormatLeaderboardEntry(1, "<@1>", "10 points"))
	assert.Equal(t, "🥉 <@3> - 1 points", FormatLeaderboardEntry(3, "<@3>", "1 points"))
	assert.Equal(t, "4. <@4> - 0:01:00", FormatLeaderboardEntry(4, "<@4>", "0:01:00"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abcdefg...", TruncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "ééé...", TruncateString("ééééééé", 6))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
}
