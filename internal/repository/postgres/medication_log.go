package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository"
)

type medicationLogRepository struct {
	BaseRepository
}

func NewMedicationLogRepository(base BaseRepository) repository.MedicationLogRepository {
	return &medicationLogRepository{base}
}

func (r *medicationLogRepository) Toggle(ctx context.Context, medicationID uuid.UUID, day model.Date, at model.TimeOfDay) (*model.AdherenceResult, error) {
	var result *model.AdherenceResult
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.lockMedication(ctx, tx, medicationID); err != nil {
			return err
		}

		removed, err := r.deleteLog(ctx, tx, medicationID, day)
		if err != nil {
			return err
		}
		if removed != nil {
			result = &model.AdherenceResult{MedicationID: medicationID, Date: day, Taken: false, Log: removed}
		} else {
			log, err := r.insertLog(ctx, tx, medicationID, day, at)
			if err != nil {
				return err
			}
			result = &model.AdherenceResult{MedicationID: medicationID, Date: day, Taken: true, Log: log}
		}
		return r.recordEvent(ctx, tx, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *medicationLogRepository) Set(ctx context.Context, medicationID uuid.UUID, day model.Date, at model.TimeOfDay, taken bool) (*model.AdherenceResult, error) {
	var result *model.AdherenceResult
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.lockMedication(ctx, tx, medicationID); err != nil {
			return err
		}

		existing, err := r.getLog(ctx, tx, medicationID, day)
		if err != nil {
			return err
		}

		switch {
		case taken && existing != nil, !taken && existing == nil:
			result = &model.AdherenceResult{MedicationID: medicationID, Date: day, Taken: taken, Log: existing}
			return nil
		case taken:
			log, err := r.insertLog(ctx, tx, medicationID, day, at)
			if err != nil {
				return err
			}
			result = &model.AdherenceResult{MedicationID: medicationID, Date: day, Taken: true, Log: log}
		default:
			removed, err := r.deleteLog(ctx, tx, medicationID, day)
			if err != nil {
				return err
			}
			result = &model.AdherenceResult{MedicationID: medicationID, Date: day, Taken: false, Log: removed}
		}
		return r.recordEvent(ctx, tx, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lockMedication serializes adherence changes for one medication.
func (r *medicationLogRepository) lockMedication(ctx context.Context, tx *sqlx.Tx, medicationID uuid.UUID) error {
	var id uuid.UUID
	err := tx.GetContext(ctx, &id, `SELECT id FROM medications WHERE id = $1 FOR UPDATE`, medicationID)
	if err != nil {
		return notFoundOr(err, "medication", "lock")
	}
	return nil
}

func (r *medicationLogRepository) getLog(ctx context.Context, tx *sqlx.Tx, medicationID uuid.UUID, day model.Date) (*model.MedicationLog, error) {
	var log model.MedicationLog
	err := tx.GetContext(ctx, &log,
		`SELECT * FROM medication_logs WHERE medication_id = $1 AND taken_date = $2`, medicationID, day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medication log: %w", err)
	}
	return &log, nil
}

func (r *medicationLogRepository) deleteLog(ctx context.Context, tx *sqlx.Tx, medicationID uuid.UUID, day model.Date) (*model.MedicationLog, error) {
	var log model.MedicationLog
	err := tx.GetContext(ctx, &log,
		`DELETE FROM medication_logs WHERE medication_id = $1 AND taken_date = $2 RETURNING *`, medicationID, day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete medication log: %w", err)
	}
	return &log, nil
}

func (r *medicationLogRepository) insertLog(ctx context.Context, tx *sqlx.Tx, medicationID uuid.UUID, day model.Date, at model.TimeOfDay) (*model.MedicationLog, error) {
	query := `
		INSERT INTO medication_logs (id, medication_id, taken_date, taken_time, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (medication_id, taken_date) DO NOTHING
		RETURNING *
	`
	var log model.MedicationLog
	err := tx.GetContext(ctx, &log, query,
		uuid.New(), medicationID, day, at, model.MedicationLogStatusTaken, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		// The row lock makes this unreachable; keep the existing log if it happens.
		return r.getLog(ctx, tx, medicationID, day)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert medication log: %w", err)
	}
	return &log, nil
}

func (r *medicationLogRepository) recordEvent(ctx context.Context, tx *sqlx.Tx, result *model.AdherenceResult) error {
	eventType := model.EventMedicationUntaken
	if result.Taken {
		eventType = model.EventMedicationTaken
	}
	event, err := model.NewOutboxEvent(eventType, result)
	if err != nil {
		return err
	}
	return r.CreateOutboxEvent(ctx, tx, event)
}

func (r *medicationLogRepository) ListByMedication(ctx context.Context, medicationID uuid.UUID) ([]*model.MedicationLog, error) {
	logs := []*model.MedicationLog{}
	query := `SELECT * FROM medication_logs WHERE medication_id = $1 ORDER BY taken_date DESC`
	if err := r.db.SelectContext(ctx, &logs, query, medicationID); err != nil {
		return nil, fmt.Errorf("failed to list medication logs: %w", err)
	}
	return logs, nil
}

func (r *medicationLogRepository) ListForDate(ctx context.Context, medicationIDs []uuid.UUID, day model.Date) ([]*model.MedicationLog, error) {
	logs := []*model.MedicationLog{}
	if len(medicationIDs) == 0 {
		return logs, nil
	}
	ids := make([]string, len(medicationIDs))
	for i, id := range medicationIDs {
		ids[i] = id.String()
	}
	query := `SELECT * FROM medication_logs WHERE medication_id = ANY($1::uuid[]) AND taken_date = $2`
	if err := r.db.SelectContext(ctx, &logs, query, pq.Array(ids), day); err != nil {
		return nil, fmt.Errorf("failed to list medication logs: %w", err)
	}
	return logs, nil
}
