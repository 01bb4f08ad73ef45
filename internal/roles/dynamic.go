package roles

import (
	"context"
	"sort"
	"time"

	"playpoints/internal/config"
	"playpoints/internal/logging"
	"playpoints/internal/metrics"
	"playpoints/internal/models"
)

// AggregateStore runs the ranking queries behind dynamic categories
type AggregateStore interface {
	Aggregate(ctx context.Context, guildID string, metric models.Metric, from, to time.Time, ignoredChannels []string) ([]models.Aggregate, error)
}

// DynamicSync hands each category role to the members leading it this year
type DynamicSync struct {
	directory MemberDirectory
	store     AggregateStore
	guilds    *config.GuildSet
	conv      *converger
	logger    *logging.Logger
	location  *time.Location
	now       func() time.Time
}

// DynamicOption configures a DynamicSync
type DynamicOption func(*DynamicSync)

// WithDynamicClock overrides the time source
func WithDynamicClock(now func() time.Time) DynamicOption {
	return func(s *DynamicSync) { s.now = now }
}

// WithDynamicLocation sets the zone the yearly window is computed in
func WithDynamicLocation(loc *time.Location) DynamicOption {
	return func(s *DynamicSync) { s.location = loc }
}

// WithDynamicMetrics records role mutations on m
func WithDynamicMetrics(m *metrics.Metrics) DynamicOption {
	return func(s *DynamicSync) { s.conv.metrics = m }
}

// NewDynamicSync creates a new dynamic role synchronizer
func NewDynamicSync(directory MemberDirectory, mutator RoleMutator, store AggregateStore, guilds *config.GuildSet, logger *logging.Logger, opts ...DynamicOption) *DynamicSync {
	logger = logger.With("component", "dynamic_roles")
	s := &DynamicSync{
		directory: directory,
		store:     store,
		guilds:    guilds,
		conv:      &converger{name: "dynamic", mutator: mutator, logger: logger},
		logger:    logger,
		location:  time.UTC,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// YearWindow returns [Jan 1, next Jan 1) of t's year in loc
func YearWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(t.In(loc).Year(), time.January, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(1, 0, 0)
}

// WinnersAtRank returns the members holding the rank-th distinct value
// (dense ranking, rank starts at 1). The set is empty when that value is not
// positive or fewer distinct values exist.
func WinnersAtRank(aggregates []models.Aggregate, rank int) map[string]bool {
	values := make([]int64, 0, len(aggregates))
	seen := make(map[int64]bool)
	for _, a := range aggregates {
		if !seen[a.Value] {
			seen[a.Value] = true
			values = append(values, a.Value)
		}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] > values[j] })

	winners := make(map[string]bool)
	if rank < 1 || rank > len(values) || values[rank-1] <= 0 {
		return winners
	}
	for _, a := range aggregates {
		if a.Value == values[rank-1] {
			winners[a.UserID] = true
		}
	}
	return winners
}

// Run converges every configured guild
func (s *DynamicSync) Run(ctx context.Context) error {
	total := 0
	for _, guildID := range s.guilds.IDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		total += s.SyncGuild(ctx, guildID)
	}
	s.logger.Info("dynamic_sync_completed", "mutations", total)
	return nil
}

// SyncGuild converges every category of one guild and returns the number of
// successful mutations. A failing category is logged and skipped.
func (s *DynamicSync) SyncGuild(ctx context.Context, guildID string) int {
	cfg := s.guilds.Guild(guildID)
	if cfg == nil || len(cfg.DynamicRoles) == 0 {
		return 0
	}

	from, to := YearWindow(s.now(), s.location)
	members := s.directory.Members(guildID)
	cache := make(map[models.Metric][]models.Aggregate)

	mutations := 0
	for _, category := range models.Categories {
		roleID, ok := cfg.DynamicRoles[category]
		if !ok {
			continue
		}
		if !s.directory.RoleExists(guildID, roleID) {
			s.logger.Warn("dynamic_role_skipped", "guild_id", guildID, "category", category, "role_id", roleID, "error", ErrRoleNotFound)
			continue
		}

		metric := category.Metric()
		aggregates, ok := cache[metric]
		if !ok {
			var err error
			aggregates, err = s.store.Aggregate(ctx, guildID, metric, from, to, cfg.IgnoredChannelList())
			if err != nil {
				s.logger.Error("dynamic_aggregate_failed", "guild_id", guildID, "category", category, "error", err)
				continue
			}
			cache[metric] = aggregates
		}

		winners := WinnersAtRank(aggregates, category.Rank())
		mutations += s.converge(ctx, guildID, roleID, members, winners)
	}
	return mutations
}

func (s *DynamicSync) converge(ctx context.Context, guildID, roleID string, members []models.GuildMember, winners map[string]bool) int {
	mutations := 0
	for _, member := range members {
		has := member.HasRole(roleID)
		switch {
		case winners[member.UserID] && !has && !member.Bot:
			mutations += s.conv.add(ctx, guildID, member.UserID, roleID)
		case !winners[member.UserID] && has:
			mutations += s.conv.remove(ctx, guildID, member.UserID, roleID)
		}
	}
	return mutations
}
