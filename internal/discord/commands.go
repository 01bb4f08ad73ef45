package discord

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"playpoints/internal/models"
	"playpoints/internal/roles"
	"playpoints/internal/scoring"
	"playpoints/pkg/utils"
)

const (
	commandPrefix  = "!"
	leaderboardMax = 10
	messageLimit   = 2000
)

type command struct {
	Name    string
	Args    []string
	GuildID string
	UserID  string
	IsAdmin bool
}

func parseCommand(content string) command {
	fields := strings.Fields(strings.TrimPrefix(content, commandPrefix))
	if len(fields) == 0 {
		return command{}
	}
	return command{Name: strings.ToLower(fields[0]), Args: fields[1:]}
}

// runCommand returns the reply for cmd, or "" when it is not a known command
func (b *Bot) runCommand(ctx context.Context, cmd command) string {
	switch cmd.Name {
	case "points":
		return b.handlePointsCommand(ctx, cmd)
	case "top":
		return b.handleTopCommand(ctx, cmd)
	case "voice":
		return b.handleVoiceCommand(ctx, cmd)
	case "penalize":
		return b.handlePenalizeCommand(ctx, cmd)
	default:
		return ""
	}
}

// handlePointsCommand handles !points [@user]
func (b *Bot) handlePointsCommand(ctx context.Context, cmd command) string {
	target := cmd.UserID
	if len(cmd.Args) > 0 && utils.IsUserMention(cmd.Args[0]) {
		target = utils.ExtractUserIDFromMention(cmd.Args[0])
	}

	from, to := roles.YearWindow(b.now(), b.svc.Location)
	total, err := b.svc.Store.SumPoints(ctx, cmd.GuildID, target, from, to)
	if err != nil {
		b.logger.Error("points_command_failed", "guild_id", cmd.GuildID, "user_id", target, "error", err)
		return "Something went wrong while reading points."
	}

	msg := fmt.Sprintf("🏆 %s has %d points in %d", utils.FormatUserMention(target), total, from.Year())
	aggs, err := b.svc.Store.Aggregate(ctx, cmd.GuildID, models.MetricPoints, from, to, nil)
	if err != nil {
		b.logger.Warn("rank_lookup_failed", "guild_id", cmd.GuildID, "error", err)
		return msg
	}
	if rank := denseRank(aggs, target); rank > 0 {
		msg += fmt.Sprintf(" (rank #%d)", rank)
	}
	return msg
}

// handleTopCommand handles !top
func (b *Bot) handleTopCommand(ctx context.Context, cmd command) string {
	from, to := roles.YearWindow(b.now(), b.svc.Location)
	aggs, err := b.svc.Store.Aggregate(ctx, cmd.GuildID, models.MetricPoints, from, to, nil)
	if err != nil {
		b.logger.Error("top_command_failed", "guild_id", cmd.GuildID, "error", err)
		return "Something went wrong while reading the leaderboard."
	}

	ranked := rankAggregates(aggs)
	if len(ranked) == 0 {
		return "No points recorded this year yet."
	}
	lines := []string{fmt.Sprintf("📊 Top %d, %d", leaderboardMax, from.Year())}
	for i, entry := range ranked {
		if i == leaderboardMax {
			break
		}
		lines = append(lines, utils.FormatLeaderboardEntry(entry.rank, utils.FormatUserMention(entry.UserID), fmt.Sprintf("%d points", entry.Value)))
	}
	return utils.TruncateString(strings.Join(lines, "\n"), messageLimit)
}

// handleVoiceCommand handles !voice
func (b *Bot) handleVoiceCommand(ctx context.Context, cmd command) string {
	from, to := roles.YearWindow(b.now(), b.svc.Location)
	cfg := b.svc.Guilds.Guild(cmd.GuildID)

	aggs, err := b.svc.Store.Aggregate(ctx, cmd.GuildID, models.MetricVoiceSeconds, from, to, cfg.IgnoredChannelList())
	if err != nil {
		b.logger.Error("voice_command_failed", "guild_id", cmd.GuildID, "user_id", cmd.UserID, "error", err)
		return "Something went wrong while reading voice time."
	}
	var total int64
	for _, a := range aggs {
		if a.UserID == cmd.UserID {
			total = a.Value
		}
	}

	msg := fmt.Sprintf("🔊 %s, voice time in %d: %s", utils.FormatUserMention(cmd.UserID), from.Year(), utils.FormatDuration(total))
	if channelID, since, ok := b.svc.Tracker.CurrentVoice(cmd.GuildID, cmd.UserID); ok {
		current := int64(b.now().Sub(since).Seconds())
		msg += fmt.Sprintf("\nNow in %s for %s", utils.FormatChannelMention(channelID), utils.FormatDuration(current))
	}
	return msg
}

// handlePenalizeCommand handles !penalize @user <points> [message_id]
func (b *Bot) handlePenalizeCommand(ctx context.Context, cmd command) string {
	if !cmd.IsAdmin {
		return "Only administrators can penalize members."
	}
	if len(cmd.Args) < 2 || !utils.IsUserMention(cmd.Args[0]) {
		return "Usage: !penalize @user <points> [message_id]"
	}
	target := utils.ExtractUserIDFromMention(cmd.Args[0])
	points, err := strconv.Atoi(cmd.Args[1])
	if err != nil {
		return "Usage: !penalize @user <points> [message_id]"
	}

	reason := "manual penalty by " + cmd.UserID
	var messageID string
	if len(cmd.Args) > 2 {
		messageID = cmd.Args[2]
		reason += " for message " + messageID
	}

	if err := b.svc.Scoring.Penalize(ctx, cmd.GuildID, target, points, reason); err != nil {
		if errors.Is(err, scoring.ErrInvalidPenalty) {
			return "Points must be a positive number."
		}
		b.logger.Error("penalize_command_failed", "guild_id", cmd.GuildID, "user_id", target, "error", err)
		return "Something went wrong while applying the penalty."
	}
	if messageID != "" {
		if err := b.svc.Store.MarkMessageModerated(ctx, messageID); err != nil {
			b.logger.Warn("mark_moderated_failed", "guild_id", cmd.GuildID, "message_id", messageID, "error", err)
		}
	}
	return fmt.Sprintf("⚠️ %s lost %d points.", utils.FormatUserMention(target), points)
}

type rankedAggregate struct {
	models.Aggregate
	rank int
}

// rankAggregates sorts by value descending with dense ranks; ties share a
// rank and are ordered by user id
func rankAggregates(aggs []models.Aggregate) []rankedAggregate {
	sorted := append([]models.Aggregate(nil), aggs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value > sorted[j].Value
		}
		return sorted[i].UserID < sorted[j].UserID
	})

	out := make([]rankedAggregate, 0, len(sorted))
	rank := 0
	for i, a := range sorted {
		if a.Value <= 0 {
			break
		}
		if i == 0 || a.Value != sorted[i-1].Value {
			rank++
		}
		out = append(out, rankedAggregate{Aggregate: a, rank: rank})
	}
	return out
}

func denseRank(aggs []models.Aggregate, userID string) int {
	for _, r := range rankAggregates(aggs) {
		if r.UserID == userID {
			return r.rank
		}
	}
	return 0
}
