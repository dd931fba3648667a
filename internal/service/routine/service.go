package routine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository"
	"github.com/jwalitptl/caregiver-api/internal/service/access"
	"github.com/jwalitptl/caregiver-api/internal/service/event"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
	"github.com/jwalitptl/caregiver-api/pkg/metrics"
)

type RoutineService interface {
	CreateRoutine(ctx context.Context, caregiverID uuid.UUID, req *model.CreateRoutineRequest) (*model.Routine, error)
	GetRoutine(ctx context.Context, caregiverID, id uuid.UUID) (*model.Routine, error)
	ListRoutines(ctx context.Context, caregiverID uuid.UUID, patientID *uuid.UUID) ([]*model.Routine, error)
	UpdateRoutine(ctx context.Context, caregiverID, id uuid.UUID, req *model.UpdateRoutineRequest) (*model.Routine, error)
	DeleteRoutine(ctx context.Context, caregiverID, id uuid.UUID) error
	ToggleComplete(ctx context.Context, caregiverID, id uuid.UUID) (*model.Routine, error)
}

type Service struct {
	repo    repository.RoutineRepository
	guard   *access.Guard
	events  event.Emitter
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo repository.RoutineRepository, guard *access.Guard, events event.Emitter, metrics *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		guard:   guard,
		events:  events,
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *Service) CreateRoutine(ctx context.Context, caregiverID uuid.UUID, req *model.CreateRoutineRequest) (*model.Routine, error) {
	if _, err := s.guard.TargetPatient(ctx, caregiverID, req.PatientID); err != nil {
		return nil, err
	}

	routine := &model.Routine{
		Base:         model.NewBase(s.now()),
		PatientID:    req.PatientID,
		ActivityName: strings.TrimSpace(req.ActivityName),
		ScheduledAt:  req.ScheduledAt,
		IsCompleted:  req.IsCompleted,
		Version:      1,
	}
	if err := validateRoutine(routine); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, routine); err != nil {
		return nil, fmt.Errorf("failed to create routine: %w", err)
	}

	s.events.Emit(ctx, model.EventRoutineCreated, routine)
	return routine, nil
}

func (s *Service) GetRoutine(ctx context.Context, caregiverID, id uuid.UUID) (*model.Routine, error) {
	return s.guard.Routine(ctx, caregiverID, id)
}

func (s *Service) ListRoutines(ctx context.Context, caregiverID uuid.UUID, patientID *uuid.UUID) ([]*model.Routine, error) {
	if patientID != nil {
		if _, err := s.guard.Patient(ctx, caregiverID, *patientID); err != nil {
			return nil, err
		}
	}
	routines, err := s.repo.List(ctx, model.RoutineFilter{CaregiverID: caregiverID, PatientID: patientID})
	if err != nil {
		return nil, fmt.Errorf("failed to list routines: %w", err)
	}
	return routines, nil
}

func (s *Service) UpdateRoutine(ctx context.Context, caregiverID, id uuid.UUID, req *model.UpdateRoutineRequest) (*model.Routine, error) {
	routine, err := s.guard.Routine(ctx, caregiverID, id)
	if err != nil {
		return nil, err
	}

	if req.PatientID != nil && *req.PatientID != routine.PatientID {
		if _, err := s.guard.TargetPatient(ctx, caregiverID, *req.PatientID); err != nil {
			return nil, err
		}
		routine.PatientID = *req.PatientID
	}
	if req.ActivityName != nil {
		routine.ActivityName = strings.TrimSpace(*req.ActivityName)
	}
	if req.ScheduledAt != nil {
		routine.ScheduledAt = *req.ScheduledAt
	}
	if req.IsCompleted != nil {
		routine.IsCompleted = *req.IsCompleted
	}
	if req.Version != nil {
		routine.Version = *req.Version
	}
	if err := validateRoutine(routine); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, routine); err != nil {
		return nil, err
	}

	s.events.Emit(ctx, model.EventRoutineUpdated, routine)
	return routine, nil
}

func (s *Service) DeleteRoutine(ctx context.Context, caregiverID, id uuid.UUID) error {
	routine, err := s.guard.Routine(ctx, caregiverID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, routine.ID); err != nil {
		return err
	}
	s.events.Emit(ctx, model.EventRoutineDeleted, map[string]interface{}{
		"id":         routine.ID,
		"patient_id": routine.PatientID,
	})
	return nil
}

// ToggleComplete flips is_completed and leaves every other field alone.
func (s *Service) ToggleComplete(ctx context.Context, caregiverID, id uuid.UUID) (*model.Routine, error) {
	routine, err := s.guard.Routine(ctx, caregiverID, id)
	if err != nil {
		return nil, err
	}

	toggled, err := s.repo.ToggleComplete(ctx, routine.ID)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RoutineToggles.Inc()
	}
	s.events.Emit(ctx, model.EventRoutineToggled, map[string]interface{}{
		"id":           toggled.ID,
		"patient_id":   toggled.PatientID,
		"is_completed": toggled.IsCompleted,
	})
	return toggled, nil
}

func validateRoutine(r *model.Routine) error {
	switch {
	case r.ActivityName == "":
		return apperrors.Validation("activity_name is required")
	case len(r.ActivityName) > 200:
		return apperrors.Validation("activity_name must be at most 200 characters")
	case r.ScheduledAt.IsZero():
		return apperrors.Validation("scheduled_at is required")
	}
	return nil
}
