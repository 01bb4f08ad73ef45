package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"playpoints/internal/models"
)

// GuildConfig is the per-guild scoring and role configuration
type GuildConfig struct {
	ID                   string
	IgnoredVoiceChannels map[string]bool
	TenureRoles          []models.TenureRole // ascending by DaysRequired
	DynamicRoles         map[models.DynamicCategory]string
}

// IsIgnored reports whether voice in channelID earns nothing
func (g *GuildConfig) IsIgnored(channelID string) bool {
	return g != nil && g.IgnoredVoiceChannels[channelID]
}

// IgnoredChannelList returns the ignored channel ids
func (g *GuildConfig) IgnoredChannelList() []string {
	if g == nil {
		return nil
	}
	ids := make([]string, 0, len(g.IgnoredVoiceChannels))
	for id := range g.IgnoredVoiceChannels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GuildSet is the loaded guild configuration, keyed by guild id
type GuildSet struct {
	guilds map[string]*GuildConfig
}

// Guild returns the config for guildID or nil when unconfigured
func (s *GuildSet) Guild(guildID string) *GuildConfig {
	if s == nil {
		return nil
	}
	return s.guilds[guildID]
}

// IDs returns every configured guild id
func (s *GuildSet) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.guilds))
	for id := range s.guilds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type guildFile struct {
	Guilds []guildEntry `yaml:"guilds"`
}

type guildEntry struct {
	ID                   string              `yaml:"id"`
	IgnoredVoiceChannels []string            `yaml:"ignored_voice_channels"`
	TenureRoles          []models.TenureRole `yaml:"tenure_roles"`
	DynamicRoles         map[string]string   `yaml:"dynamic_roles"`
}

// LoadGuilds reads the guild YAML file. A missing file yields an empty set.
func LoadGuilds(path string) (*GuildSet, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &GuildSet{guilds: map[string]*GuildConfig{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open guild config: %w", err)
	}
	defer f.Close()
	return ParseGuilds(f)
}

// ParseGuilds decodes and validates guild configuration
func ParseGuilds(r io.Reader) (*GuildSet, error) {
	var file guildFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{Field: "GUILDS_CONFIG", Message: fmt.Sprintf("invalid guild config: %v", err)}
	}

	set := &GuildSet{guilds: make(map[string]*GuildConfig, len(file.Guilds))}
	for _, entry := range file.Guilds {
		if entry.ID == "" {
			return nil, &ConfigError{Field: "GUILDS_CONFIG", Message: "guild entry without id"}
		}
		if _, dup := set.guilds[entry.ID]; dup {
			return nil, &ConfigError{Field: "GUILDS_CONFIG", Message: fmt.Sprintf("guild %s configured twice", entry.ID)}
		}

		g := &GuildConfig{
			ID:                   entry.ID,
			IgnoredVoiceChannels: make(map[string]bool, len(entry.IgnoredVoiceChannels)),
			DynamicRoles:         make(map[models.DynamicCategory]string, len(entry.DynamicRoles)),
		}
		for _, ch := range entry.IgnoredVoiceChannels {
			g.IgnoredVoiceChannels[ch] = true
		}

		// one owner per role id across tenure steps and categories
		seen := make(map[string]bool)
		for _, tr := range entry.TenureRoles {
			if tr.RoleID == "" || tr.DaysRequired < 0 {
				return nil, &ConfigError{Field: "GUILDS_CONFIG", Message: fmt.Sprintf("guild %s: invalid tenure role %+v", entry.ID, tr)}
			}
			if seen[tr.RoleID] {
				return nil, &ConfigError{Field: "GUILDS_CONFIG", Message: fmt.Sprintf("guild %s: tenure role %s listed twice", entry.ID, tr.RoleID)}
			}
			seen[tr.RoleID] = true
			g.TenureRoles = append(g.TenureRoles, tr)
		}
		sort.SliceStable(g.TenureRoles, func(i, j int) bool {
			return g.TenureRoles[i].DaysRequired < g.TenureRoles[j].DaysRequired
		})

		for key, roleID := range entry.DynamicRoles {
			category, err := models.ParseCategory(key)
			if err != nil {
				return nil, &ConfigError{Field: "GUILDS_CONFIG", Message: fmt.Sprintf("guild %s: %v", entry.ID, err)}
			}
			if roleID == "" {
				continue
			}
			if seen[roleID] {
				return nil, &ConfigError{Field: "GUILDS_CONFIG", Message: fmt.Sprintf("guild %s: role %s is already assigned to another tenure step or category", entry.ID, roleID)}
			}
			seen[roleID] = true
			g.DynamicRoles[category] = roleID
		}

		set.guilds[entry.ID] = g
	}
	return set, nil
}
