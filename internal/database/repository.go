package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"playpoints/internal/models"
)

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// AppendLedgerEntry appends one point entry. A zero CreatedAt means now.
func (r *Repository) AppendLedgerEntry(ctx context.Context, e models.LedgerEntry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO ledger_entries (user_id, guild_id, points, interaction_type, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.UserID, e.GuildID, e.Points, e.InteractionType, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// SumPoints returns a member's point total within [from, to)
func (r *Repository) SumPoints(ctx context.Context, guildID, userID string, from, to time.Time) (int64, error) {
	var total int64
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(points), 0) FROM ledger_entries
		WHERE guild_id = $1 AND user_id = $2 AND created_at >= $3 AND created_at < $4`,
		guildID, userID, from.UTC(), to.UTC()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum points: %w", err)
	}
	return total, nil
}

type aggregateQuery struct {
	sql     string
	ignored bool // takes the ignored voice channel list as $4
}

var aggregateQueries = map[models.Metric]aggregateQuery{
	models.MetricPoints: {sql: `
		SELECT user_id, COALESCE(SUM(points), 0) FROM ledger_entries
		WHERE guild_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY user_id`},
	models.MetricVoiceSeconds: {ignored: true, sql: `
		SELECT user_id, COALESCE(SUM(duration_seconds), 0) FROM voice_sessions
		WHERE guild_id = $1 AND joined_at >= $2 AND joined_at < $3
		  AND duration_seconds IS NOT NULL AND NOT (channel_id = ANY($4))
		GROUP BY user_id`},
	models.MetricStreamSeconds: {sql: `
		SELECT user_id, COALESCE(SUM(duration_seconds), 0) FROM activity_sessions
		WHERE guild_id = $1 AND started_at >= $2 AND started_at < $3
		  AND duration_seconds IS NOT NULL AND activity_type IN ('streaming', 'screen_share')
		GROUP BY user_id`},
	models.MetricMessages: {sql: `
		SELECT user_id, COUNT(*) FROM messages
		WHERE guild_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY user_id`},
	models.MetricModerated: {sql: `
		SELECT user_id, COUNT(*) FROM messages
		WHERE guild_id = $1 AND created_at >= $2 AND created_at < $3 AND was_moderated
		GROUP BY user_id`},
	models.MetricGameSeconds: {sql: `
		SELECT user_id, COALESCE(SUM(duration_seconds), 0) FROM activity_sessions
		WHERE guild_id = $1 AND started_at >= $2 AND started_at < $3
		  AND duration_seconds IS NOT NULL AND activity_type = 'playing'
		GROUP BY user_id`},
	models.MetricDistinctGames: {sql: `
		SELECT user_id, COUNT(DISTINCT activity_name) FROM activity_sessions
		WHERE guild_id = $1 AND started_at >= $2 AND started_at < $3 AND activity_type = 'playing'
		GROUP BY user_id`},
	models.MetricLongestSession: {ignored: true, sql: `
		SELECT user_id, COALESCE(MAX(duration_seconds), 0) FROM voice_sessions
		WHERE guild_id = $1 AND joined_at >= $2 AND joined_at < $3
		  AND duration_seconds IS NOT NULL AND NOT (channel_id = ANY($4))
		GROUP BY user_id`},
}

// Aggregate returns every member's value for metric within [from, to).
// ignoredChannels only applies to voice-based metrics.
func (r *Repository) Aggregate(ctx context.Context, guildID string, metric models.Metric, from, to time.Time, ignoredChannels []string) ([]models.Aggregate, error) {
	q, ok := aggregateQueries[metric]
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}

	args := []interface{}{guildID, from.UTC(), to.UTC()}
	if q.ignored {
		if ignoredChannels == nil {
			ignoredChannels = []string{}
		}
		args = append(args, pq.Array(ignoredChannels))
	}

	rows, err := r.db.conn.QueryContext(ctx, q.sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", metric, err)
	}
	defer rows.Close()

	var result []models.Aggregate
	for rows.Next() {
		var a models.Aggregate
		if err := rows.Scan(&a.UserID, &a.Value); err != nil {
			return nil, fmt.Errorf("failed to scan %s aggregate: %w", metric, err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", metric, err)
	}
	return result, nil
}

// GetTenureRecord returns the member's record or nil when none exists
func (r *Repository) GetTenureRecord(ctx context.Context, guildID, userID string) (*models.TenureRecord, error) {
	rec := models.TenureRecord{GuildID: guildID, UserID: userID}
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT joined_at, last_checked FROM member_tenure WHERE guild_id = $1 AND user_id = $2`,
		guildID, userID).Scan(&rec.JoinedAt, &rec.LastChecked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenure record: %w", err)
	}
	return &rec, nil
}

// ListTenureRecords returns all records of a guild keyed by user id
func (r *Repository) ListTenureRecords(ctx context.Context, guildID string) (map[string]models.TenureRecord, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT user_id, joined_at, last_checked FROM member_tenure WHERE guild_id = $1`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenure records: %w", err)
	}
	defer rows.Close()

	records := make(map[string]models.TenureRecord)
	for rows.Next() {
		rec := models.TenureRecord{GuildID: guildID}
		if err := rows.Scan(&rec.UserID, &rec.JoinedAt, &rec.LastChecked); err != nil {
			return nil, fmt.Errorf("failed to scan tenure record: %w", err)
		}
		records[rec.UserID] = rec
	}
	return records, rows.Err()
}

// UpsertTenureRecord records when a member joined. An existing record keeps
// its joined_at unless overwrite is set (a fresh join event).
func (r *Repository) UpsertTenureRecord(ctx context.Context, rec models.TenureRecord, overwrite bool) error {
	query := `
		INSERT INTO member_tenure (guild_id, user_id, joined_at, last_checked)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (guild_id, user_id) DO NOTHING`
	if overwrite {
		query = `
		INSERT INTO member_tenure (guild_id, user_id, joined_at, last_checked)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (guild_id, user_id) DO UPDATE SET joined_at = EXCLUDED.joined_at`
	}
	if _, err := r.db.conn.ExecContext(ctx, query, rec.GuildID, rec.UserID, rec.JoinedAt.UTC()); err != nil {
		return fmt.Errorf("failed to upsert tenure record: %w", err)
	}
	return nil
}

// TouchTenureRecords sets last_checked for the given members
func (r *Repository) TouchTenureRecords(ctx context.Context, guildID string, userIDs []string, at time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.db.conn.ExecContext(ctx, `
		UPDATE member_tenure SET last_checked = $3 WHERE guild_id = $1 AND user_id = ANY($2)`,
		guildID, pq.Array(userIDs), at.UTC())
	if err != nil {
		return fmt.Errorf("failed to touch tenure records: %w", err)
	}
	return nil
}

// OpenVoiceSession inserts an open voice session and returns its id
func (r *Repository) OpenVoiceSession(ctx context.Context, s models.VoiceSession) (int64, error) {
	var id int64
	err := r.db.conn.QueryRowContext(ctx, `
		INSERT INTO voice_sessions (user_id, guild_id, channel_id, joined_at)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		s.UserID, s.GuildID, s.ChannelID, s.JoinedAt.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to open voice session: %w", err)
	}
	return id, nil
}

// CloseVoiceSession sets left_at and duration on an open session
func (r *Repository) CloseVoiceSession(ctx context.Context, id int64, leftAt time.Time) error {
	_, err := r.db.conn.ExecContext(ctx, `
		UPDATE voice_sessions
		SET left_at = $2, duration_seconds = GREATEST(EXTRACT(EPOCH FROM ($2 - joined_at))::BIGINT, 0)
		WHERE id = $1 AND left_at IS NULL`,
		id, leftAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to close voice session: %w", err)
	}
	return nil
}

// GetOpenVoiceSessions returns every session without left_at
func (r *Repository) GetOpenVoiceSessions(ctx context.Context) ([]models.VoiceSession, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, user_id, guild_id, channel_id, joined_at FROM voice_sessions
		WHERE left_at IS NULL ORDER BY joined_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to get open voice sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.VoiceSession
	for rows.Next() {
		var s models.VoiceSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.GuildID, &s.ChannelID, &s.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan voice session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// OpenActivitySession inserts an open activity session and returns its id
func (r *Repository) OpenActivitySession(ctx context.Context, s models.ActivitySession) (int64, error) {
	var id int64
	err := r.db.conn.QueryRowContext(ctx, `
		INSERT INTO activity_sessions (user_id, guild_id, activity_name, activity_type, started_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		s.UserID, s.GuildID, s.ActivityName, s.ActivityType, s.StartedAt.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to open activity session: %w", err)
	}
	return id, nil
}

// CloseActivitySession sets ended_at and duration on an open session
func (r *Repository) CloseActivitySession(ctx context.Context, id int64, endedAt time.Time) error {
	_, err := r.db.conn.ExecContext(ctx, `
		UPDATE activity_sessions
		SET ended_at = $2, duration_seconds = GREATEST(EXTRACT(EPOCH FROM ($2 - started_at))::BIGINT, 0)
		WHERE id = $1 AND ended_at IS NULL`,
		id, endedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to close activity session: %w", err)
	}
	return nil
}

// GetOpenActivitySessions returns every session without ended_at
func (r *Repository) GetOpenActivitySessions(ctx context.Context) ([]models.ActivitySession, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, user_id, guild_id, activity_name, activity_type, started_at FROM activity_sessions
		WHERE ended_at IS NULL ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to get open activity sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ActivitySession
	for rows.Next() {
		var s models.ActivitySession
		if err := rows.Scan(&s.ID, &s.UserID, &s.GuildID, &s.ActivityName, &s.ActivityType, &s.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// InsertMessage records a guild message, ignoring redeliveries
func (r *Repository) InsertMessage(ctx context.Context, m models.Message) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO messages (message_id, user_id, guild_id, channel_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (message_id) DO NOTHING`,
		m.MessageID, m.UserID, m.GuildID, m.ChannelID, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// MarkMessageModerated flags a stored message as removed by moderation
func (r *Repository) MarkMessageModerated(ctx context.Context, messageID string) error {
	_, err := r.db.conn.ExecContext(ctx, `UPDATE messages SET was_moderated = TRUE WHERE message_id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("failed to mark message moderated: %w", err)
	}
	return nil
}
