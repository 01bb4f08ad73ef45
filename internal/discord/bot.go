package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"playpoints/internal/config"
	"playpoints/internal/logging"
	"playpoints/internal/models"
)

// Store is the subset of persistence the gateway handlers and commands use
type Store interface {
	InsertMessage(ctx context.Context, m models.Message) error
	MarkMessageModerated(ctx context.Context, messageID string) error
	SumPoints(ctx context.Context, guildID, userID string, from, to time.Time) (int64, error)
	Aggregate(ctx context.Context, guildID string, metric models.Metric, from, to time.Time, ignoredChannels []string) ([]models.Aggregate, error)
}

// Penalizer removes points from a member
type Penalizer interface {
	Penalize(ctx context.Context, guildID, userID string, points int, reason string) error
}

// SessionTracker receives voice and presence transitions
type SessionTracker interface {
	VoiceStateChanged(ctx context.Context, guildID, userID string, bot bool, channelID string, selfStream bool)
	PresenceChanged(ctx context.Context, guildID, userID string, bot bool, activities []models.Activity)
	ReconcileGuild(ctx context.Context, snap models.GuildSnapshot)
	CurrentVoice(guildID, userID string) (channelID string, since time.Time, ok bool)
}

// MemberRegistry records join dates for tenure
type MemberRegistry interface {
	RegisterJoin(ctx context.Context, guildID string, member models.GuildMember)
	Backfill(ctx context.Context, guildID string) (int, error)
}

// Services are the components the bot forwards gateway events to
type Services struct {
	Store    Store
	Scoring  Penalizer
	Tracker  SessionTracker
	Tenure   MemberRegistry
	Guilds   *config.GuildSet
	Location *time.Location
}

// Bot represents the Discord bot
type Bot struct {
	session *discordgo.Session
	view    *StateView
	svc     Services
	logger  *logging.Logger
	now     func() time.Time
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates the gateway session. Handlers are attached by Start once the
// services are bound.
func New(token string, logger *logging.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildPresences |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	session.State.TrackPresences = true
	session.State.TrackVoice = true
	session.State.TrackMembers = true
	session.State.TrackRoles = true

	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		session: session,
		view:    NewStateView(session.State),
		logger:  logger.With("component", "discord"),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Session exposes the underlying gateway session
func (b *Bot) Session() *discordgo.Session { return b.session }

// View exposes the cache-backed snapshot provider and member directory
func (b *Bot) View() *StateView { return b.view }

// Start binds the services, registers handlers and opens the gateway
func (b *Bot) Start(svc Services) error {
	if svc.Location == nil {
		svc.Location = time.UTC
	}
	b.svc = svc

	b.session.AddHandler(b.guildCreate)
	b.session.AddHandler(b.guildMembersChunk)
	b.session.AddHandler(b.guildMemberAdd)
	b.session.AddHandler(b.voiceStateUpdate)
	b.session.AddHandler(b.presenceUpdate)
	b.session.AddHandler(b.messageCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	b.logger.Info("bot_started")
	return nil
}

// Stop cancels in-flight handlers and closes the gateway
func (b *Bot) Stop() error {
	b.cancel()
	return b.session.Close()
}

// guildCreate requests the full member list and reconciles sessions with
// the voice states delivered with the guild
func (b *Bot) guildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Unavailable {
		return
	}
	b.logger.Info("guild_available", "guild_id", g.ID, "members", g.MemberCount)
	if err := s.RequestGuildMembers(g.ID, "", 0, "", true); err != nil {
		b.logger.Warn("member_request_failed", "guild_id", g.ID, "error", err)
	}
	b.reconcile(g.ID)
}

// guildMembersChunk backfills tenure and reconciles once the last chunk arrives
func (b *Bot) guildMembersChunk(_ *discordgo.Session, c *discordgo.GuildMembersChunk) {
	if c.ChunkIndex != c.ChunkCount-1 {
		return
	}
	if _, err := b.svc.Tenure.Backfill(b.ctx, c.GuildID); err != nil {
		b.logger.Error("tenure_backfill_failed", "guild_id", c.GuildID, "error", err)
	}
	b.reconcile(c.GuildID)
}

func (b *Bot) reconcile(guildID string) {
	snap, ok := b.view.Snapshot(guildID)
	if !ok {
		return
	}
	b.svc.Tracker.ReconcileGuild(b.ctx, snap)
}

func (b *Bot) guildMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil {
		return
	}
	member := ConvertMember(m.Member)
	if member.JoinedAt.IsZero() {
		member.JoinedAt = b.now()
	}
	b.svc.Tenure.RegisterJoin(b.ctx, m.GuildID, member)
	b.logger.Info("member_joined", "guild_id", m.GuildID, "user_id", member.UserID)
}

// voiceStateUpdate handles voice state updates
func (b *Bot) voiceStateUpdate(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.VoiceState == nil || vs.GuildID == "" {
		return
	}
	bot := b.view.IsBot(vs.GuildID, vs.UserID)
	if vs.Member != nil && vs.Member.User != nil {
		bot = vs.Member.User.Bot
	}
	b.svc.Tracker.VoiceStateChanged(b.ctx, vs.GuildID, vs.UserID, bot, vs.ChannelID, vs.SelfStream)
}

// presenceUpdate handles presence updates for activity tracking
func (b *Bot) presenceUpdate(_ *discordgo.Session, p *discordgo.PresenceUpdate) {
	if p.User == nil || p.GuildID == "" {
		return
	}
	bot := p.User.Bot || b.view.IsBot(p.GuildID, p.User.ID)
	b.svc.Tracker.PresenceChanged(b.ctx, p.GuildID, p.User.ID, bot, ConvertActivities(p.Activities))
}

// messageCreate records guild messages and answers commands
func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	createdAt := m.Timestamp
	if createdAt.IsZero() {
		createdAt = b.now()
	}
	err := b.svc.Store.InsertMessage(b.ctx, models.Message{
		MessageID: m.ID,
		UserID:    m.Author.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		CreatedAt: createdAt,
	})
	if err != nil {
		b.logger.Warn("message_record_failed", "guild_id", m.GuildID, "message_id", m.ID, "error", err)
	}

	content := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(content, commandPrefix) {
		return
	}
	cmd := parseCommand(content)
	cmd.GuildID = m.GuildID
	cmd.UserID = m.Author.ID
	cmd.IsAdmin = b.view.IsAdmin(m.GuildID, withUser(m.Member, m.Author))

	reply := b.runCommand(b.ctx, cmd)
	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		b.logger.Warn("reply_failed", "guild_id", m.GuildID, "channel_id", m.ChannelID, "error", err)
	}
}

// withUser fills in the author on the partial member attached to messages
func withUser(member *discordgo.Member, user *discordgo.User) *discordgo.Member {
	if member == nil {
		return nil
	}
	cp := *member
	cp.User = user
	return &cp
}
