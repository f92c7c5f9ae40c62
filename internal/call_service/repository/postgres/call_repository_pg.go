package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carelinkhq/medcall/internal/call_service/domain"
	"github.com/carelinkhq/medcall/internal/call_service/repository"
)

// DB is the subset of pgxpool.Pool this repository needs. Narrowed so tests
// can substitute pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgCallRepository struct {
	db     DB
	logger *slog.Logger
}

// NewPgCallRepository creates a PostgreSQL-backed CallRepository.
func NewPgCallRepository(db DB, logger *slog.Logger) repository.CallRepository {
	return &pgCallRepository{db: db, logger: logger.With("component", "call_repository_pg")}
}

const callColumns = `call_sid, to_number, from_number, status, answered_by,
	       duration_seconds, recording_url, transcript, created_at, updated_at`

// Upsert merges the non-nil fields of update into the record for callSID.
// COALESCE keeps existing values for fields the caller has no data for, so
// out-of-order webhooks converge on the same final record.
func (r *pgCallRepository) Upsert(ctx context.Context, callSID string, update domain.CallUpdate) (*domain.CallRecord, error) {
	if callSID == "" {
		return nil, domain.ErrMissingCallSID
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO call_records (
			call_sid, to_number, from_number, status, answered_by,
			duration_seconds, recording_url, transcript, created_at, updated_at
		) VALUES (
			$1, $2, $3, COALESCE($4, 'initiated'), $5, COALESCE($6, 0), $7, $8, $9, $9
		)
		ON CONFLICT (call_sid) DO UPDATE SET
			to_number        = COALESCE($2, call_records.to_number),
			from_number      = COALESCE($3, call_records.from_number),
			status           = COALESCE($4, call_records.status),
			answered_by      = COALESCE($5, call_records.answered_by),
			duration_seconds = COALESCE($6, call_records.duration_seconds),
			recording_url    = COALESCE($7, call_records.recording_url),
			transcript       = COALESCE($8, call_records.transcript),
			updated_at       = $9
		RETURNING ` + callColumns

	row := r.db.QueryRow(ctx, query,
		callSID, update.To, update.From, update.Status, update.AnsweredBy,
		update.DurationSeconds, update.RecordingURL, update.Transcript, now,
	)
	rec, err := scanCallRecord(row)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to upsert call record", "call_sid", callSID, "error", err)
		return nil, fmt.Errorf("failed to upsert call record %s: %w", callSID, err)
	}
	return rec, nil
}

func (r *pgCallRepository) GetBySID(ctx context.Context, callSID string) (*domain.CallRecord, error) {
	query := `SELECT ` + callColumns + ` FROM call_records WHERE call_sid = $1`

	rec, err := scanCallRecord(r.db.QueryRow(ctx, query, callSID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCallNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get call record", "call_sid", callSID, "error", err)
		return nil, fmt.Errorf("failed to get call record %s: %w", callSID, err)
	}
	return rec, nil
}

// List returns all call records, newest first by creation time.
func (r *pgCallRepository) List(ctx context.Context) ([]domain.CallRecord, error) {
	query := `SELECT ` + callColumns + ` FROM call_records ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list call records", "error", err)
		return nil, fmt.Errorf("failed to list call records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.CallRecord, 0)
	for rows.Next() {
		rec, err := scanCallRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call record row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating call record rows: %w", err)
	}
	return records, nil
}

func scanCallRecord(row pgx.Row) (*domain.CallRecord, error) {
	var (
		rec          domain.CallRecord
		to           sql.NullString
		from         sql.NullString
		status       sql.NullString
		answeredBy   sql.NullString
		duration     sql.NullInt32
		recordingURL sql.NullString
		transcript   sql.NullString
	)

	err := row.Scan(
		&rec.CallSID, &to, &from, &status, &answeredBy,
		&duration, &recordingURL, &transcript, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.To = to.String
	rec.From = from.String
	rec.Status = domain.CallStatus(status.String)
	rec.AnsweredBy = domain.AnsweredBy(answeredBy.String)
	rec.DurationSeconds = int(duration.Int32)
	rec.RecordingURL = recordingURL.String
	rec.Transcript = transcript.String
	return &rec, nil
}
