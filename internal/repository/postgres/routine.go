package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository"
)

type routineRepository struct {
	BaseRepository
}

func NewRoutineRepository(base BaseRepository) repository.RoutineRepository {
	return &routineRepository{base}
}

func (r *routineRepository) Create(ctx context.Context, routine *model.Routine) error {
	query := `
		INSERT INTO routines (id, patient_id, activity_name, scheduled_at, is_completed, version, created_at, updated_at)
		VALUES (:id, :patient_id, :activity_name, :scheduled_at, :is_completed, :version, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, routine); err != nil {
		return fmt.Errorf("failed to create routine: %w", err)
	}
	return nil
}

func (r *routineRepository) Get(ctx context.Context, id uuid.UUID) (*model.Routine, error) {
	var routine model.Routine
	if err := r.db.GetContext(ctx, &routine, `SELECT * FROM routines WHERE id = $1`, id); err != nil {
		return nil, notFoundOr(err, "routine", "get")
	}
	return &routine, nil
}

func (r *routineRepository) Update(ctx context.Context, routine *model.Routine) error {
	query := `
		UPDATE routines
		SET patient_id = $1, activity_name = $2, scheduled_at = $3, is_completed = $4,
			updated_at = $5, version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING version, updated_at
	`
	row := r.db.QueryRowxContext(ctx, query,
		routine.PatientID,
		routine.ActivityName,
		routine.ScheduledAt,
		routine.IsCompleted,
		time.Now().UTC(),
		routine.ID,
		routine.Version,
	)
	if err := row.Scan(&routine.Version, &routine.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.versionMismatch(ctx, "routines", "routine", routine.ID)
		}
		return fmt.Errorf("failed to update routine: %w", err)
	}
	return nil
}

func (r *routineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM routines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete routine: %w", err)
	}
	return expectOne(res, "routine")
}

func (r *routineRepository) List(ctx context.Context, filter model.RoutineFilter) ([]*model.Routine, error) {
	query := `
		SELECT r.*
		FROM routines r
		JOIN patients p ON p.id = r.patient_id
		WHERE p.caregiver_id = $1
		AND ($2::uuid IS NULL OR r.patient_id = $2)
		ORDER BY r.scheduled_at, r.activity_name
	`
	routines := []*model.Routine{}
	if err := r.db.SelectContext(ctx, &routines, query, filter.CaregiverID, filter.PatientID); err != nil {
		return nil, fmt.Errorf("failed to list routines: %w", err)
	}
	return routines, nil
}

func (r *routineRepository) ToggleComplete(ctx context.Context, id uuid.UUID) (*model.Routine, error) {
	query := `
		UPDATE routines
		SET is_completed = NOT is_completed, updated_at = $1, version = version + 1
		WHERE id = $2
		RETURNING *
	`
	var routine model.Routine
	if err := r.db.GetContext(ctx, &routine, query, time.Now().UTC(), id); err != nil {
		return nil, notFoundOr(err, "routine", "toggle")
	}
	return &routine, nil
}
