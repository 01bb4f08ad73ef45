package discord

import (
	"sort"

	"github.com/bwmarrin/discordgo"

	"playpoints/internal/models"
)

// StateView reads guild snapshots and members from the gateway cache
type StateView struct {
	state *discordgo.State
}

// NewStateView creates a new view over the session state cache
func NewStateView(state *discordgo.State) *StateView {
	return &StateView{state: state}
}

// GuildIDs returns every guild currently held in the cache
func (v *StateView) GuildIDs() []string {
	v.state.RLock()
	defer v.state.RUnlock()

	ids := make([]string, 0, len(v.state.Guilds))
	for _, g := range v.state.Guilds {
		if g.Unavailable {
			continue
		}
		ids = append(ids, g.ID)
	}
	return ids
}

// Snapshot builds the presence snapshot of one guild
func (v *StateView) Snapshot(guildID string) (models.GuildSnapshot, bool) {
	v.state.RLock()
	defer v.state.RUnlock()
	g := v.guild(guildID)
	if g == nil {
		return models.GuildSnapshot{}, false
	}
	return BuildSnapshot(g), true
}

// Members lists the cached members of a guild
func (v *StateView) Members(guildID string) []models.GuildMember {
	v.state.RLock()
	defer v.state.RUnlock()
	g := v.guild(guildID)
	if g == nil {
		return nil
	}
	return BuildMembers(g)
}

// RoleExists reports whether roleID is defined in the guild
func (v *StateView) RoleExists(guildID, roleID string) bool {
	_, err := v.state.Role(guildID, roleID)
	return err == nil
}

// IsAdmin reports whether the member holds a role with administrator rights
func (v *StateView) IsAdmin(guildID string, member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	v.state.RLock()
	defer v.state.RUnlock()
	g := v.guild(guildID)
	if g == nil {
		return false
	}
	if member.User != nil && member.User.ID == g.OwnerID {
		return true
	}
	return MemberHasAdminPermissions(g, member)
}

// guild finds a cached guild. The caller holds the state lock.
func (v *StateView) guild(guildID string) *discordgo.Guild {
	for _, g := range v.state.Guilds {
		if g.ID == guildID && !g.Unavailable {
			return g
		}
	}
	return nil
}

// IsBot looks a user up in the cache. Unknown users are treated as humans.
func (v *StateView) IsBot(guildID, userID string) bool {
	m, err := v.state.Member(guildID, userID)
	if err != nil || m.User == nil {
		return false
	}
	return m.User.Bot
}

// BuildSnapshot merges a guild's members, voice states and presences.
// The caller holds the state lock.
func BuildSnapshot(g *discordgo.Guild) models.GuildSnapshot {
	byUser := make(map[string]*models.MemberPresence)
	get := func(userID string) *models.MemberPresence {
		m := byUser[userID]
		if m == nil {
			m = &models.MemberPresence{UserID: userID}
			byUser[userID] = m
		}
		return m
	}

	for _, member := range g.Members {
		if member.User == nil {
			continue
		}
		get(member.User.ID).Bot = member.User.Bot
	}
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == "" {
			continue
		}
		m := get(vs.UserID)
		m.VoiceChannelID = vs.ChannelID
		m.SelfDeaf = vs.SelfDeaf
		m.SelfStream = vs.SelfStream
		if vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot {
			m.Bot = true
		}
	}
	for _, p := range g.Presences {
		if p.User == nil {
			continue
		}
		m := get(p.User.ID)
		m.Activities = ConvertActivities(p.Activities)
		if p.User.Bot {
			m.Bot = true
		}
	}

	snap := models.GuildSnapshot{GuildID: g.ID, Members: make([]models.MemberPresence, 0, len(byUser))}
	for _, m := range byUser {
		snap.Members = append(snap.Members, *m)
	}
	sort.Slice(snap.Members, func(i, j int) bool { return snap.Members[i].UserID < snap.Members[j].UserID })
	return snap
}

// BuildMembers converts the cached member list. The caller holds the state lock.
func BuildMembers(g *discordgo.Guild) []models.GuildMember {
	members := make([]models.GuildMember, 0, len(g.Members))
	for _, m := range g.Members {
		if m.User == nil {
			continue
		}
		members = append(members, ConvertMember(m))
	}
	return members
}

// ConvertMember converts a discordgo member to a GuildMember
func ConvertMember(m *discordgo.Member) models.GuildMember {
	gm := models.GuildMember{
		Roles:    append([]string(nil), m.Roles...),
		JoinedAt: m.JoinedAt,
	}
	if m.User != nil {
		gm.UserID = m.User.ID
		gm.Bot = m.User.Bot
	}
	return gm
}

// ActivityKind maps a gateway activity type onto the domain enum
func ActivityKind(t discordgo.ActivityType) models.ActivityKind {
	switch t {
	case discordgo.ActivityTypeStreaming:
		return models.ActivityStreaming
	case discordgo.ActivityTypeListening:
		return models.ActivityListening
	case discordgo.ActivityTypeWatching:
		return models.ActivityWatching
	case discordgo.ActivityTypeCustom:
		return models.ActivityCustom
	case discordgo.ActivityTypeCompeting:
		return models.ActivityCompeting
	default:
		return models.ActivityPlaying
	}
}

// ConvertActivities converts presence activities, dropping nil entries
func ConvertActivities(acts []*discordgo.Activity) []models.Activity {
	out := make([]models.Activity, 0, len(acts))
	for _, a := range acts {
		if a == nil {
			continue
		}
		out = append(out, models.Activity{Kind: ActivityKind(a.Type), Name: a.Name})
	}
	return out
}

// MemberHasAdminPermissions returns true if one of the member's roles grants
// administrator
func MemberHasAdminPermissions(guild *discordgo.Guild, member *discordgo.Member) bool {
	guildRoles := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		guildRoles[role.ID] = role
	}
	for _, roleID := range member.Roles {
		if role, ok := guildRoles[roleID]; ok && role.Permissions&discordgo.PermissionAdministrator != 0 {
			return true
		}
	}
	return false
}
