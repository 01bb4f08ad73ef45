package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playpoints/internal/models"
)

const sampleGuilds = `
guilds:
  - id: "g1"
    ignored_voice_channels: ["afk", "music"]
    tenure_roles:
      - {role_id: "sergeant", days: 28}
      - {role_id: "recruit", days: 0}
      - {role_id: "private", days: 7}
    dynamic_roles:
      top_1: "gold"
      most_voice_time: "voice"
`

func TestParseGuilds(t *testing.T) {
	set, err := ParseGuilds(strings.NewReader(sampleGuilds))
	require.NoError(t, err)

	g := set.Guild("g1")
	require.NotNil(t, g)
	assert.True(t, g.IsIgnored("afk"))
	assert.False(t, g.IsIgnored("general"))
	assert.Equal(t, []string{"afk", "music"}, g.IgnoredChannelList())

	require.Len(t, g.TenureRoles, 3)
	assert.Equal(t, "recruit", g.TenureRoles[0].RoleID)
	assert.Equal(t, "private", g.TenureRoles[1].RoleID)
	assert.Equal(t, "sergeant", g.TenureRoles[2].RoleID)

	assert.Equal(t, "gold", g.DynamicRoles[models.CategoryTop1])
	assert.Equal(t, "voice", g.DynamicRoles[models.CategoryMostVoiceTime])
	assert.Equal(t, []string{"g1"}, set.IDs())
	assert.Nil(t, set.Guild("other"))
}

func TestParseGuilds_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown category": `
guilds:
  - id: "g1"
    dynamic_roles: {most_hugs: "r"}
`,
		"negative days": `
guilds:
  - id: "g1"
    tenure_roles: [{role_id: "r", days: -1}]
`,
		"duplicate role": `
guilds:
  - id: "g1"
    tenure_roles: [{role_id: "r", days: 0}, {role_id: "r", days: 7}]
`,
		"role shared by two categories": `
guilds:
  - id: "g1"
    dynamic_roles: {top_1: "r-shared", most_voice_time: "r-shared"}
`,
		"role shared by tenure and category": `
guilds:
  - id: "g1"
    tenure_roles: [{role_id: "r", days: 0}]
    dynamic_roles: {most_messages: "r"}
`,
		"missing id": `
guilds:
  - ignored_voice_channels: ["x"]
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGuilds(strings.NewReader(doc))
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "GUILDS_CONFIG", cfgErr.Field)
		})
	}
}

func TestParseGuilds_Empty(t *testing.T) {
	set, err := ParseGuilds(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, set.IDs())
}

func TestLoad(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATABASE_DSN", "postgres://localhost/db")
	t.Setenv("GUILDS_CONFIG", t.TempDir()+"/missing.yaml")
	t.Setenv("TICK_INTERVAL", "30s")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.TickInterval)
	assert.Equal(t, 10*time.Minute, cfg.TenureInterval)
	assert.Equal(t, time.Hour, cfg.DynamicRoleInterval)
	assert.Equal(t, 5.0, cfg.RoleMutationsPerSecond)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.NotNil(t, cfg.Guilds)
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DATABASE_DSN", "postgres://localhost/db")

	_, err := Load()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "DISCORD_TOKEN", cfgErr.Field)
}

func TestLoad_BadInterval(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATABASE_DSN", "postgres://localhost/db")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("DYNAMIC_ROLE_INTERVAL", "soon")

	_, err := Load()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "DYNAMIC_ROLE_INTERVAL", cfgErr.Field)
}
