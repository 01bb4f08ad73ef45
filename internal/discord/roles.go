package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// RoleMutator adds and removes roles through the REST API, throttled so a
// large convergence pass does not hit the platform's rate limits
type RoleMutator struct {
	session *discordgo.Session
	limiter *rate.Limiter
}

// NewRoleMutator creates a new role mutator limited to perSecond REST calls
func NewRoleMutator(session *discordgo.Session, perSecond float64) *RoleMutator {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &RoleMutator{session: session, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// AddRole grants roleID to the member
func (m *RoleMutator) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := m.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to add role %s: %w", roleID, err)
	}
	return nil
}

// RemoveRole revokes roleID from the member
func (m *RoleMutator) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := m.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to remove role %s: %w", roleID, err)
	}
	return nil
}
