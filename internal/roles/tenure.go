package roles

import (
	"context"
	"fmt"
	"time"

	"playpoints/internal/config"
	"playpoints/internal/logging"
	"playpoints/internal/metrics"
	"playpoints/internal/models"
)

// TenureStore persists member join dates
type TenureStore interface {
	GetTenureRecord(ctx context.Context, guildID, userID string) (*models.TenureRecord, error)
	ListTenureRecords(ctx context.Context, guildID string) (map[string]models.TenureRecord, error)
	UpsertTenureRecord(ctx context.Context, rec models.TenureRecord, overwrite bool) error
	TouchTenureRecords(ctx context.Context, guildID string, userIDs []string, at time.Time) error
}

// TenureSync keeps each member on exactly one step of the guild's staircase
type TenureSync struct {
	directory MemberDirectory
	store     TenureStore
	guilds    *config.GuildSet
	conv      *converger
	logger    *logging.Logger
	location  *time.Location
	now       func() time.Time
}

// TenureOption configures a TenureSync
type TenureOption func(*TenureSync)

// WithTenureClock overrides the clock
func WithTenureClock(now func() time.Time) TenureOption {
	return func(s *TenureSync) { s.now = now }
}

// WithTenureLocation sets the zone in which day boundaries fall
func WithTenureLocation(loc *time.Location) TenureOption {
	return func(s *TenureSync) { s.location = loc }
}

// WithTenureMetrics records role mutations
func WithTenureMetrics(m *metrics.Metrics) TenureOption {
	return func(s *TenureSync) { s.conv.metrics = m }
}

// NewTenureSync creates a new tenure role synchronizer
func NewTenureSync(directory MemberDirectory, mutator RoleMutator, store TenureStore, guilds *config.GuildSet, logger *logging.Logger, opts ...TenureOption) *TenureSync {
	logger = logger.With("component", "tenure_roles")
	s := &TenureSync{
		directory: directory,
		store:     store,
		guilds:    guilds,
		conv:      &converger{name: "tenure", mutator: mutator, logger: logger},
		logger:    logger,
		location:  time.UTC,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DaysBetween counts civil days from joined to now in loc
func DaysBetween(joined, now time.Time, loc *time.Location) int {
	jy, jm, jd := joined.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	// noon UTC avoids DST-length days skewing the division
	from := time.Date(jy, jm, jd, 12, 0, 0, 0, time.UTC)
	to := time.Date(ny, nm, nd, 12, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

// Target returns the staircase entry a member with the given tenure should
// hold. ok is false when no threshold is reached.
func Target(staircase []models.TenureRole, days int) (models.TenureRole, bool) {
	var (
		target models.TenureRole
		ok     bool
	)
	for _, step := range staircase {
		if step.DaysRequired <= days && (!ok || step.DaysRequired >= target.DaysRequired) {
			target, ok = step, true
		}
	}
	return target, ok
}

// Run converges every configured guild
func (s *TenureSync) Run(ctx context.Context) error {
	total := 0
	for _, guildID := range s.guilds.IDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.SyncGuild(ctx, guildID)
		if err != nil {
			s.logger.Error("tenure_sync_failed", "guild_id", guildID, "error", err)
			continue
		}
		total += n
	}
	s.logger.Info("tenure_sync_completed", "mutations", total)
	return nil
}

// SyncGuild converges one guild's staircase roles and returns the number of
// successful mutations
func (s *TenureSync) SyncGuild(ctx context.Context, guildID string) (int, error) {
	cfg := s.guilds.Guild(guildID)
	if cfg == nil || len(cfg.TenureRoles) == 0 {
		return 0, nil
	}

	staircase := make([]models.TenureRole, 0, len(cfg.TenureRoles))
	for _, step := range cfg.TenureRoles {
		if !s.directory.RoleExists(guildID, step.RoleID) {
			s.logger.Warn("tenure_role_skipped", "guild_id", guildID, "role_id", step.RoleID, "error", ErrRoleNotFound)
			continue
		}
		staircase = append(staircase, step)
	}
	if len(staircase) == 0 {
		return 0, nil
	}

	records, err := s.store.ListTenureRecords(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("failed to load tenure records: %w", err)
	}

	now := s.now()
	mutations := 0
	var checked []string
	for _, member := range s.directory.Members(guildID) {
		if member.Bot {
			continue
		}
		rec, ok := records[member.UserID]
		if !ok {
			s.register(ctx, guildID, member, false)
			continue
		}
		checked = append(checked, member.UserID)

		target, ok := Target(staircase, DaysBetween(rec.JoinedAt, now, s.location))
		if !ok {
			continue
		}
		for _, step := range staircase {
			if step.RoleID != target.RoleID && member.HasRole(step.RoleID) {
				mutations += s.conv.remove(ctx, guildID, member.UserID, step.RoleID)
			}
		}
		if !member.HasRole(target.RoleID) {
			mutations += s.conv.add(ctx, guildID, member.UserID, target.RoleID)
		}
	}

	if err := s.store.TouchTenureRecords(ctx, guildID, checked, now); err != nil {
		s.logger.Warn("tenure_touch_failed", "guild_id", guildID, "error", err)
	}
	return mutations, nil
}

// RegisterJoin records a fresh join, replacing any earlier join date
func (s *TenureSync) RegisterJoin(ctx context.Context, guildID string, member models.GuildMember) {
	if member.Bot {
		return
	}
	prev, err := s.store.GetTenureRecord(ctx, guildID, member.UserID)
	if err != nil {
		s.logger.Warn("tenure_lookup_failed", "guild_id", guildID, "user_id", member.UserID, "error", err)
	}
	if s.register(ctx, guildID, member, true) && prev != nil {
		s.logger.Info("tenure_reset_on_rejoin",
			"guild_id", guildID,
			"user_id", member.UserID,
			"previous_joined_at", prev.JoinedAt,
			"days_lost", DaysBetween(prev.JoinedAt, s.now(), s.location),
		)
	}
}

// Backfill registers every member of guildID that has no record yet and
// returns how many were added
func (s *TenureSync) Backfill(ctx context.Context, guildID string) (int, error) {
	records, err := s.store.ListTenureRecords(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("failed to load tenure records: %w", err)
	}
	added := 0
	for _, member := range s.directory.Members(guildID) {
		if member.Bot {
			continue
		}
		if _, ok := records[member.UserID]; ok {
			continue
		}
		if s.register(ctx, guildID, member, false) {
			added++
		}
	}
	if added > 0 {
		s.logger.Info("tenure_backfilled", "guild_id", guildID, "members", added)
	}
	return added, nil
}

func (s *TenureSync) register(ctx context.Context, guildID string, member models.GuildMember, overwrite bool) bool {
	joined := member.JoinedAt
	if joined.IsZero() {
		joined = s.now()
	}
	rec := models.TenureRecord{GuildID: guildID, UserID: member.UserID, JoinedAt: joined}
	if err := s.store.UpsertTenureRecord(ctx, rec, overwrite); err != nil {
		s.logger.Warn("tenure_register_failed", "guild_id", guildID, "user_id", member.UserID, "error", err)
		return false
	}
	return true
}
