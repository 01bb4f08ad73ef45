package sessions

import (
	"context"
	"sync"
	"time"

	"playpoints/internal/config"
	"playpoints/internal/logging"
	"playpoints/internal/metrics"
	"playpoints/internal/models"
	"playpoints/pkg/utils"
)

// Store persists voice and activity sessions
type Store interface {
	OpenVoiceSession(ctx context.Context, s models.VoiceSession) (int64, error)
	CloseVoiceSession(ctx context.Context, id int64, leftAt time.Time) error
	GetOpenVoiceSessions(ctx context.Context) ([]models.VoiceSession, error)
	OpenActivitySession(ctx context.Context, s models.ActivitySession) (int64, error)
	CloseActivitySession(ctx context.Context, id int64, endedAt time.Time) error
	GetOpenActivitySessions(ctx context.Context) ([]models.ActivitySession, error)
}

// GuildConfigs resolves per-guild configuration
type GuildConfigs interface {
	Guild(guildID string) *config.GuildConfig
}

type memberKey struct {
	guildID string
	userID  string
}

type openVoice struct {
	id        int64
	channelID string
	joinedAt  time.Time
}

type openActivity struct {
	id        int64
	kind      string
	startedAt time.Time
}

// Tracker owns the in-memory index of open sessions and keeps it in step
// with the store
type Tracker struct {
	mu         sync.Mutex
	store      Store
	guilds     GuildConfigs
	logger     *logging.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	voice      map[memberKey]*openVoice
	activities map[memberKey]map[string]*openActivity // activity name -> session
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithMetrics reports open session gauges on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// NewTracker creates a new session tracker
func NewTracker(store Store, guilds GuildConfigs, logger *logging.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:      store,
		guilds:     guilds,
		logger:     logger.With("component", "sessions"),
		now:        time.Now,
		voice:      make(map[memberKey]*openVoice),
		activities: make(map[memberKey]map[string]*openActivity),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// VoiceStateChanged applies a member's new voice state. An empty channelID
// means the member left voice.
func (t *Tracker) VoiceStateChanged(ctx context.Context, guildID, userID string, bot bool, channelID string, selfStream bool) {
	if bot {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyVoice(ctx, guildID, userID, channelID, selfStream)
	t.report()
}

// PresenceChanged diffs a member's tracked activities against the open set
func (t *Tracker) PresenceChanged(ctx context.Context, guildID, userID string, bot bool, activities []models.Activity) {
	if bot {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyPresence(ctx, guildID, userID, activities)
	t.report()
}

func (t *Tracker) applyVoice(ctx context.Context, guildID, userID, channelID string, selfStream bool) {
	key := memberKey{guildID, userID}
	tracked := channelID != "" && !t.guilds.Guild(guildID).IsIgnored(channelID)
	now := t.now()

	current := t.voice[key]
	if current != nil && (!tracked || current.channelID != channelID) {
		t.closeVoice(ctx, key, current, now)
		current = nil
	}
	if tracked && current == nil {
		t.openVoice(ctx, key, channelID, now)
	}

	_, sharing := t.activities[key][models.ScreenShareActivity]
	switch {
	case tracked && selfStream && !sharing:
		t.openActivity(ctx, key, models.ScreenShareActivity, models.ActivityScreenShare.String(), now)
	case (!tracked || !selfStream) && sharing:
		t.closeActivity(ctx, key, models.ScreenShareActivity, now)
	}
}

func (t *Tracker) applyPresence(ctx context.Context, guildID, userID string, activities []models.Activity) {
	key := memberKey{guildID, userID}
	now := t.now()

	desired := make(map[string]models.ActivityKind)
	for _, act := range activities {
		if act.Name == "" || !act.Kind.Tracked() || act.Kind == models.ActivityScreenShare || act.Name == models.ScreenShareActivity {
			continue
		}
		if _, dup := desired[act.Name]; !dup {
			desired[act.Name] = act.Kind
		}
	}

	for name := range t.activities[key] {
		if name == models.ScreenShareActivity {
			continue
		}
		if _, ok := desired[name]; !ok {
			t.closeActivity(ctx, key, name, now)
		}
	}
	for name, kind := range desired {
		if _, open := t.activities[key][name]; !open {
			t.openActivity(ctx, key, name, kind.String(), now)
		}
	}
}

func (t *Tracker) openVoice(ctx context.Context, key memberKey, channelID string, at time.Time) {
	id, err := t.store.OpenVoiceSession(ctx, models.VoiceSession{
		UserID:    key.userID,
		GuildID:   key.guildID,
		ChannelID: channelID,
		JoinedAt:  at,
	})
	if err != nil {
		t.logger.Error("voice_session_open_failed", "guild_id", key.guildID, "user_id", key.userID, "channel_id", channelID, "error", err)
		return
	}
	t.voice[key] = &openVoice{id: id, channelID: channelID, joinedAt: at}
	t.logger.Debug("voice_session_opened", "guild_id", key.guildID, "user_id", key.userID, "channel_id", channelID)
}

func (t *Tracker) closeVoice(ctx context.Context, key memberKey, s *openVoice, at time.Time) {
	delete(t.voice, key)
	if err := t.store.CloseVoiceSession(ctx, s.id, at); err != nil {
		t.logger.Error("voice_session_close_failed", "guild_id", key.guildID, "user_id", key.userID, "session_id", s.id, "error", err)
		return
	}
	t.logger.Debug("voice_session_closed",
		"guild_id", key.guildID,
		"user_id", key.userID,
		"channel_id", s.channelID,
		"duration", utils.FormatDuration(seconds(s.joinedAt, at)),
	)
}

func (t *Tracker) openActivity(ctx context.Context, key memberKey, name, kind string, at time.Time) {
	id, err := t.store.OpenActivitySession(ctx, models.ActivitySession{
		UserID:       key.userID,
		GuildID:      key.guildID,
		ActivityName: name,
		ActivityType: kind,
		StartedAt:    at,
	})
	if err != nil {
		t.logger.Error("activity_session_open_failed", "guild_id", key.guildID, "user_id", key.userID, "activity", name, "error", err)
		return
	}
	if t.activities[key] == nil {
		t.activities[key] = make(map[string]*openActivity)
	}
	t.activities[key][name] = &openActivity{id: id, kind: kind, startedAt: at}
	t.logger.Debug("activity_session_opened", "guild_id", key.guildID, "user_id", key.userID, "activity", name, "type", kind)
}

func (t *Tracker) closeActivity(ctx context.Context, key memberKey, name string, at time.Time) {
	s := t.activities[key][name]
	if s == nil {
		return
	}
	delete(t.activities[key], name)
	if len(t.activities[key]) == 0 {
		delete(t.activities, key)
	}
	if err := t.store.CloseActivitySession(ctx, s.id, at); err != nil {
		t.logger.Error("activity_session_close_failed", "guild_id", key.guildID, "user_id", key.userID, "session_id", s.id, "error", err)
		return
	}
	t.logger.Debug("activity_session_closed",
		"guild_id", key.guildID,
		"user_id", key.userID,
		"activity", name,
		"duration", utils.FormatDuration(seconds(s.startedAt, at)),
	)
}

// Recover reloads sessions left open by a previous process. When the store
// holds more than one open row for the same key, all but the latest are closed.
func (t *Tracker) Recover(ctx context.Context) error {
	voice, err := t.store.GetOpenVoiceSessions(ctx)
	if err != nil {
		return err
	}
	activities, err := t.store.GetOpenActivitySessions(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()

	for _, s := range voice {
		key := memberKey{s.GuildID, s.UserID}
		if prev := t.voice[key]; prev != nil {
			t.closeVoice(ctx, key, prev, now)
		}
		t.voice[key] = &openVoice{id: s.ID, channelID: s.ChannelID, joinedAt: s.JoinedAt}
	}
	for _, s := range activities {
		key := memberKey{s.GuildID, s.UserID}
		if t.activities[key][s.ActivityName] != nil {
			t.closeActivity(ctx, key, s.ActivityName, now)
		}
		if t.activities[key] == nil {
			t.activities[key] = make(map[string]*openActivity)
		}
		t.activities[key][s.ActivityName] = &openActivity{id: s.ID, kind: s.ActivityType, startedAt: s.StartedAt}
	}

	t.logger.Info("sessions_recovered", "voice", len(t.voice), "activity", t.activityCount())
	t.report()
	return nil
}

// ReconcileGuild brings one guild's open sessions in line with a full
// snapshot of its members. Sessions of members missing from the snapshot
// are closed.
func (t *Tracker) ReconcileGuild(ctx context.Context, snap models.GuildSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	present := make(map[string]bool, len(snap.Members))
	for _, m := range snap.Members {
		if m.Bot {
			continue
		}
		present[m.UserID] = true
		t.applyVoice(ctx, snap.GuildID, m.UserID, m.VoiceChannelID, m.SelfStream)
		t.applyPresence(ctx, snap.GuildID, m.UserID, m.Activities)
	}

	now := t.now()
	for key, s := range t.voice {
		if key.guildID == snap.GuildID && !present[key.userID] {
			t.closeVoice(ctx, key, s, now)
		}
	}
	for key, open := range t.activities {
		if key.guildID != snap.GuildID || present[key.userID] {
			continue
		}
		for name := range open {
			t.closeActivity(ctx, key, name, now)
		}
	}
	t.report()
}

// Flush closes every open session, used on shutdown
func (t *Tracker) Flush(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	voice, activity := len(t.voice), t.activityCount()
	for key, s := range t.voice {
		t.closeVoice(ctx, key, s, now)
	}
	for key, open := range t.activities {
		for name := range open {
			t.closeActivity(ctx, key, name, now)
		}
	}
	t.logger.Info("sessions_flushed", "voice", voice, "activity", activity)
	t.report()
}

// CurrentVoice returns the member's open voice session, if any
func (t *Tracker) CurrentVoice(guildID, userID string) (channelID string, since time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.voice[memberKey{guildID, userID}]
	if s == nil {
		return "", time.Time{}, false
	}
	return s.channelID, s.joinedAt, true
}

func (t *Tracker) activityCount() int {
	n := 0
	for _, open := range t.activities {
		n += len(open)
	}
	return n
}

func (t *Tracker) report() {
	t.metrics.SetOpenSessions("voice", len(t.voice))
	t.metrics.SetOpenSessions("activity", t.activityCount())
}

func seconds(from, to time.Time) int64 {
	d := int64(to.Sub(from).Seconds())
	if d < 0 {
		return 0
	}
	return d
}
