package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playpoints/internal/logging"
	"playpoints/internal/models"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewRepository(NewWithConn(conn, logging.Nop())), mock
}

func TestAppendLedgerEntry(t *testing.T) {
	repo, mock := newMockRepository(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO ledger_entries`).
		WithArgs("u1", "g1", 4, models.InteractionMinuteTick, at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.AppendLedgerEntry(context.Background(), models.LedgerEntry{
		UserID: "u1", GuildID: "g1", Points: 4, InteractionType: models.InteractionMinuteTick, CreatedAt: at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregate_VoiceExcludesIgnoredChannels(t *testing.T) {
	repo, mock := newMockRepository(t)
	from := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	to := time.Date(2027, 1, 1, 3, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM voice_sessions`).
		WithArgs("g1", from, to, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "sum"}).
			AddRow("u1", int64(3600)).
			AddRow("u2", int64(120)))

	rows, err := repo.Aggregate(context.Background(), "g1", models.MetricVoiceSeconds, from, to, []string{"afk"})
	require.NoError(t, err)
	assert.Equal(t, []models.Aggregate{{UserID: "u1", Value: 3600}, {UserID: "u2", Value: 120}}, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregate_PointsTakesNoChannelList(t *testing.T) {
	repo, mock := newMockRepository(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	mock.ExpectQuery(`FROM ledger_entries`).
		WithArgs("g1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "sum"}).AddRow("u1", int64(42)))

	rows, err := repo.Aggregate(context.Background(), "g1", models.MetricPoints, from, to, []string{"afk"})
	require.NoError(t, err)
	assert.Equal(t, []models.Aggregate{{UserID: "u1", Value: 42}}, rows)
}

func TestAggregate_UnknownMetric(t *testing.T) {
	repo, _ := newMockRepository(t)
	_, err := repo.Aggregate(context.Background(), "g1", models.Metric("hugs"), time.Now(), time.Now(), nil)
	assert.Error(t, err)
}

func TestGetTenureRecord_Missing(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`FROM member_tenure`).
		WithArgs("g1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"joined_at", "last_checked"}))

	rec, err := repo.GetTenureRecord(context.Background(), "g1", "u1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestOpenAndCloseVoiceSession(t *testing.T) {
	repo, mock := newMockRepository(t)
	joined := time.Date(2026, 5, 5, 20, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO voice_sessions`).
		WithArgs("u1", "g1", "c1", joined).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectExec(`UPDATE voice_sessions`).
		WithArgs(int64(9), joined.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.OpenVoiceSession(context.Background(), models.VoiceSession{
		UserID: "u1", GuildID: "g1", ChannelID: "c1", JoinedAt: joined,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	require.NoError(t, repo.CloseVoiceSession(context.Background(), id, joined.Add(time.Hour)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOpenVoiceSessions(t *testing.T) {
	repo, mock := newMockRepository(t)
	joined := time.Date(2026, 5, 5, 20, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE left_at IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "guild_id", "channel_id", "joined_at"}).
			AddRow(int64(1), "u1", "g1", "c1", joined))

	sessions, err := repo.GetOpenVoiceSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "c1", sessions[0].ChannelID)
	assert.True(t, sessions[0].JoinedAt.Equal(joined))
}

func TestTouchTenureRecords_NoMembers(t *testing.T) {
	repo, mock := newMockRepository(t)
	require.NoError(t, repo.TouchTenureRecords(context.Background(), "g1", nil, time.Now()))
	require.NoError(t, mock.ExpectationsWereMet())
}
