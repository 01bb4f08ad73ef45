package roles

import (
	"context"
	"errors"

	"playpoints/internal/logging"
	"playpoints/internal/metrics"
	"playpoints/internal/models"
)

// ErrRoleNotFound is returned when a configured role no longer exists in the guild
var ErrRoleNotFound = errors.New("role not found in guild")

// MemberDirectory lists guild members and roles from the gateway cache
type MemberDirectory interface {
	Members(guildID string) []models.GuildMember
	RoleExists(guildID, roleID string) bool
}

// RoleMutator adds and removes member roles on the platform
type RoleMutator interface {
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
}

// converger applies role diffs and records every mutation
type converger struct {
	name    string
	mutator RoleMutator
	logger  *logging.Logger
	metrics *metrics.Metrics
}

func (c *converger) add(ctx context.Context, guildID, userID, roleID string) int {
	err := c.mutator.AddRole(ctx, guildID, userID, roleID)
	c.metrics.ObserveRoleMutation(c.name, "add", err)
	if err != nil {
		c.logger.Warn("role_add_failed", "guild_id", guildID, "user_id", userID, "role_id", roleID, "error", err)
		return 0
	}
	c.logger.Debug("role_added", "guild_id", guildID, "user_id", userID, "role_id", roleID)
	return 1
}

func (c *converger) remove(ctx context.Context, guildID, userID, roleID string) int {
	err := c.mutator.RemoveRole(ctx, guildID, userID, roleID)
	c.metrics.ObserveRoleMutation(c.name, "remove", err)
	if err != nil {
		c.logger.Warn("role_remove_failed", "guild_id", guildID, "user_id", userID, "role_id", roleID, "error", err)
		return 0
	}
	c.logger.Debug("role_removed", "guild_id", guildID, "user_id", userID, "role_id", roleID)
	return 1
}
