package discord

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playpoints/internal/models"
)

func testGuild() *discordgo.Guild {
	joined := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	return &discordgo.Guild{
		ID: "g1",
		Roles: []*discordgo.Role{
			{ID: "admin", Permissions: discordgo.PermissionAdministrator},
			{ID: "member", Permissions: discordgo.PermissionSendMessages},
		},
		Members: []*discordgo.Member{
			{User: &discordgo.User{ID: "alice"}, Roles: []string{"member"}, JoinedAt: joined},
			{User: &discordgo.User{ID: "bob"}},
			{User: &discordgo.User{ID: "robot", Bot: true}},
		},
		VoiceStates: []*discordgo.VoiceState{
			{UserID: "alice", ChannelID: "c1", SelfStream: true},
			{UserID: "bob", ChannelID: "c1", SelfDeaf: true},
			{UserID: "robot", ChannelID: "c1"},
		},
		Presences: []*discordgo.Presence{
			{User: &discordgo.User{ID: "alice"}, Activities: []*discordgo.Activity{
				{Name: "Chess", Type: discordgo.ActivityTypeGame},
				{Name: "Spotify", Type: discordgo.ActivityTypeListening},
			}},
			{User: &discordgo.User{ID: "carol"}, Activities: []*discordgo.Activity{
				{Name: "Go", Type: discordgo.ActivityTypeGame},
			}},
		},
	}
}

func TestBuildSnapshot(t *testing.T) {
	snap := BuildSnapshot(testGuild())
	require.Len(t, snap.Members, 4)
	assert.Equal(t, "g1", snap.GuildID)

	byID := map[string]models.MemberPresence{}
	for _, m := range snap.Members {
		byID[m.UserID] = m
	}

	alice := byID["alice"]
	assert.Equal(t, "c1", alice.VoiceChannelID)
	assert.True(t, alice.SelfStream)
	assert.Equal(t, []models.Activity{
		{Kind: models.ActivityPlaying, Name: "Chess"},
		{Kind: models.ActivityListening, Name: "Spotify"},
	}, alice.Activities)

	assert.True(t, byID["bob"].SelfDeaf)
	assert.True(t, byID["robot"].Bot)
	assert.False(t, byID["carol"].InVoice(), "presence-only members are out of voice")
}

func TestBuildMembers(t *testing.T) {
	members := BuildMembers(testGuild())
	require.Len(t, members, 3)
	assert.Equal(t, "alice", members[0].UserID)
	assert.True(t, members[0].HasRole("member"))
	assert.Equal(t, 2025, members[0].JoinedAt.Year())
	assert.True(t, members[2].Bot)
}

func TestActivityKind(t *testing.T) {
	cases := map[discordgo.ActivityType]models.ActivityKind{
		discordgo.ActivityTypeGame:      models.ActivityPlaying,
		discordgo.ActivityTypeStreaming: models.ActivityStreaming,
		discordgo.ActivityTypeListening: models.ActivityListening,
		discordgo.ActivityTypeWatching:  models.ActivityWatching,
		discordgo.ActivityTypeCustom:    models.ActivityCustom,
		discordgo.ActivityTypeCompeting: models.ActivityCompeting,
	}
	for in, want := range cases {
		assert.Equal(t, want, ActivityKind(in))
	}
}

func TestMemberHasAdminPermissions(t *testing.T) {
	g := testGuild()
	assert.True(t, MemberHasAdminPermissions(g, &discordgo.Member{Roles: []string{"member", "admin"}}))
	assert.False(t, MemberHasAdminPermissions(g, &discordgo.Member{Roles: []string{"member"}}))
	assert.False(t, MemberHasAdminPermissions(g, &discordgo.Member{Roles: []string{"deleted"}}))
}

func TestStateView(t *testing.T) {
	state := discordgo.NewState()
	require.NoError(t, state.GuildAdd(testGuild()))
	view := NewStateView(state)

	assert.Equal(t, []string{"g1"}, view.GuildIDs())

	_, ok := view.Snapshot("missing")
	assert.False(t, ok)
	snap, ok := view.Snapshot("g1")
	require.True(t, ok)
	assert.Len(t, snap.Members, 4)

	assert.True(t, view.RoleExists("g1", "admin"))
	assert.False(t, view.RoleExists("g1", "gone"))
	assert.True(t, view.IsBot("g1", "robot"))
	assert.False(t, view.IsBot("g1", "stranger"))
	assert.True(t, view.IsAdmin("g1", &discordgo.Member{User: &discordgo.User{ID: "x"}, Roles: []string{"admin"}}))
	assert.False(t, view.IsAdmin("g1", nil))
}
