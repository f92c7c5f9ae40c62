package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/medcall/internal/call_service/domain"
	"github.com/carelinkhq/medcall/internal/call_service/repository"
)

func setupCallRepoTest(t *testing.T) (repository.CallRepository, pgxmock.PgxPoolIface) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewPgCallRepository(mockPool, logger)
	return repo, mockPool
}

func callRows(mockPool pgxmock.PgxPoolIface) *pgxmock.Rows {
	return mockPool.NewRows([]string{
		"call_sid", "to_number", "from_number", "status", "answered_by",
		"duration_seconds", "recording_url", "transcript", "created_at", "updated_at",
	})
}

func strPtr(s string) *string { return &s }

func TestPgCallRepository_Upsert(t *testing.T) {
	repo, mockPool := setupCallRepoTest(t)
	defer mockPool.Close()

	now := time.Now().UTC()
	status := domain.StatusCompleted
	answeredBy := domain.AnsweredByHuman
	duration := 42

	t.Run("MergesSuppliedFields", func(t *testing.T) {
		rows := callRows(mockPool).AddRow(
			"CA123", "+15551234567", "+15557654321", "completed", "human",
			int32(42), nil, nil, now, now,
		)

		mockPool.ExpectQuery(`INSERT INTO call_records`).
			WithArgs("CA123", strPtr("+15551234567"), strPtr("+15557654321"), &status, &answeredBy,
				&duration, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(rows)

		rec, err := repo.Upsert(context.Background(), "CA123", domain.CallUpdate{
			To:              strPtr("+15551234567"),
			From:            strPtr("+15557654321"),
			Status:          &status,
			AnsweredBy:      &answeredBy,
			DurationSeconds: &duration,
		})
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "CA123", rec.CallSID)
		assert.Equal(t, domain.StatusCompleted, rec.Status)
		assert.Equal(t, domain.AnsweredByHuman, rec.AnsweredBy)
		assert.Equal(t, 42, rec.DurationSeconds)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("PartialUpdateLeavesOtherFields", func(t *testing.T) {
		rows := callRows(mockPool).AddRow(
			"CA123", "+15551234567", "+15557654321", "completed", "human",
			int32(42), "https://api.example.com/rec/RE9", "yes", now, now,
		)

		mockPool.ExpectQuery(`INSERT INTO call_records`).
			WithArgs("CA123", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), strPtr("https://api.example.com/rec/RE9"), strPtr("yes"), pgxmock.AnyArg()).
			WillReturnRows(rows)

		rec, err := repo.Upsert(context.Background(), "CA123", domain.CallUpdate{
			RecordingURL: strPtr("https://api.example.com/rec/RE9"),
			Transcript:   strPtr("yes"),
		})
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com/rec/RE9", rec.RecordingURL)
		assert.Equal(t, "yes", rec.Transcript)
		// fields from the earlier status webhook survive the merge
		assert.Equal(t, "+15551234567", rec.To)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("EmptySIDRejected", func(t *testing.T) {
		_, err := repo.Upsert(context.Background(), "", domain.CallUpdate{})
		assert.ErrorIs(t, err, domain.ErrMissingCallSID)
	})
}

func TestPgCallRepository_GetBySID(t *testing.T) {
	repo, mockPool := setupCallRepoTest(t)
	defer mockPool.Close()

	t.Run("NotFound", func(t *testing.T) {
		mockPool.ExpectQuery(`SELECT .+ FROM call_records WHERE call_sid = \$1`).
			WithArgs("CA404").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetBySID(context.Background(), "CA404")
		assert.ErrorIs(t, err, domain.ErrCallNotFound)
	})

	t.Run("Found", func(t *testing.T) {
		now := time.Now().UTC()
		rows := callRows(mockPool).AddRow(
			"CA123", "+15551234567", "+15557654321", "in-progress", nil,
			int32(0), nil, nil, now, now,
		)
		mockPool.ExpectQuery(`SELECT .+ FROM call_records WHERE call_sid = \$1`).
			WithArgs("CA123").
			WillReturnRows(rows)

		rec, err := repo.GetBySID(context.Background(), "CA123")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInProgress, rec.Status)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgCallRepository_List(t *testing.T) {
	repo, mockPool := setupCallRepoTest(t)
	defer mockPool.Close()

	now := time.Now().UTC()
	rows := callRows(mockPool).
		AddRow("CA2", "+15550000002", "+15557654321", "completed", "human",
			int32(30), nil, "yes", now, now).
		AddRow("CA1", "+15550000001", "+15557654321", "no-answer", nil,
			int32(0), nil, nil, now.Add(-time.Hour), now.Add(-time.Hour))

	mockPool.ExpectQuery(`SELECT .+ FROM call_records ORDER BY created_at DESC`).
		WillReturnRows(rows)

	records, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "CA2", records[0].CallSID)
	assert.Equal(t, "CA1", records[1].CallSID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
