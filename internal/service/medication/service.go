package medication

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository"
	"github.com/jwalitptl/caregiver-api/internal/schedule"
	"github.com/jwalitptl/caregiver-api/internal/service/access"
	"github.com/jwalitptl/caregiver-api/internal/service/event"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
	"github.com/jwalitptl/caregiver-api/pkg/metrics"
)

type MedicationService interface {
	CreateMedication(ctx context.Context, caregiverID uuid.UUID, req *model.CreateMedicationRequest) (*model.Medication, error)
	GetMedication(ctx context.Context, caregiverID, id uuid.UUID) (*model.Medication, error)
	ListMedications(ctx context.Context, caregiverID uuid.UUID, patientID *uuid.UUID) ([]*model.Medication, error)
	UpdateMedication(ctx context.Context, caregiverID, id uuid.UUID, req *model.UpdateMedicationRequest) (*model.Medication, error)
	DeleteMedication(ctx context.Context, caregiverID, id uuid.UUID) error
	Schedule(ctx context.Context, caregiverID uuid.UUID, patientID *uuid.UUID, date *model.Date) ([]*model.ScheduledDose, error)
	MarkAsTaken(ctx context.Context, caregiverID, id uuid.UUID, date *model.Date, taken *bool) (*model.AdherenceResult, error)
	ListLogs(ctx context.Context, caregiverID, id uuid.UUID) ([]*model.MedicationLog, error)
}

type Service struct {
	repo     repository.MedicationRepository
	logs     repository.MedicationLogRepository
	patients repository.PatientRepository
	guard    *access.Guard
	clock    *schedule.Clock
	events   event.Emitter
	metrics  *metrics.Metrics
}

func NewService(
	repo repository.MedicationRepository,
	logs repository.MedicationLogRepository,
	patients repository.PatientRepository,
	guard *access.Guard,
	clock *schedule.Clock,
	events event.Emitter,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		repo:     repo,
		logs:     logs,
		patients: patients,
		guard:    guard,
		clock:    clock,
		events:   events,
		metrics:  metrics,
	}
}

func (s *Service) CreateMedication(ctx context.Context, caregiverID uuid.UUID, req *model.CreateMedicationRequest) (*model.Medication, error) {
	if _, err := s.guard.TargetPatient(ctx, caregiverID, req.PatientID); err != nil {
		return nil, err
	}

	medication := &model.Medication{
		Base:          model.NewBase(s.clock.Now()),
		PatientID:     req.PatientID,
		Name:          strings.TrimSpace(req.Name),
		Dosage:        strings.TrimSpace(req.Dosage),
		FrequencyType: model.NormalizeFrequency(req.FrequencyType),
		SelectedDays:  req.SelectedDays,
		ScheduledTime: req.ScheduledTime,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Version:       1,
	}
	if err := validateMedication(medication); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, medication); err != nil {
		return nil, fmt.Errorf("failed to create medication: %w", err)
	}

	s.events.Emit(ctx, model.EventMedicationCreated, medication)
	return medication, nil
}

func (s *Service) GetMedication(ctx context.Context, caregiverID, id uuid.UUID) (*model.Medication, error) {
	medication, _, err := s.guard.Medication(ctx, caregiverID, id)
	return medication, err
}

func (s *Service) ListMedications(ctx context.Context, caregiverID uuid.UUID, patientID *uuid.UUID) ([]*model.Medication, error) {
	if patientID != nil {
		if _, err := s.guard.Patient(ctx, caregiverID, *patientID); err != nil {
			return nil, err
		}
	}
	medications, err := s.repo.List(ctx, model.MedicationFilter{CaregiverID: caregiverID, PatientID: patientID})
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return medications, nil
}

func (s *Service) UpdateMedication(ctx context.Context, caregiverID, id uuid.UUID, req *model.UpdateMedicationRequest) (*model.Medication, error) {
	medication, _, err := s.guard.Medication(ctx, caregiverID, id)
	if err != nil {
		return nil, err
	}

	if req.PatientID != nil && *req.PatientID != medication.PatientID {
		if _, err := s.guard.TargetPatient(ctx, caregiverID, *req.PatientID); err != nil {
			return nil, err
		}
		medication.PatientID = *req.PatientID
	}
	if req.Name != nil {
		medication.Name = strings.TrimSpace(*req.Name)
	}
	if req.Dosage != nil {
		medication.Dosage = strings.TrimSpace(*req.Dosage)
	}
	if req.FrequencyType != nil {
		medication.FrequencyType = model.NormalizeFrequency(*req.FrequencyType)
	}
	if req.SelectedDays != nil {
		medication.SelectedDays = *req.SelectedDays
	}
	if req.ScheduledTime != nil {
		medication.ScheduledTime = *req.ScheduledTime
	}
	if req.StartDate != nil {
		medication.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		medication.EndDate = *req.EndDate
	}
	if req.Version != nil {
		medication.Version = *req.Version
	}
	if err := validateMedication(medication); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, medication); err != nil {
		return nil, err
	}

	s.events.Emit(ctx, model.EventMedicationUpdated, medication)
	return medication, nil
}

func (s *Service) DeleteMedication(ctx context.Context, caregiverID, id uuid.UUID) error {
	medication, _, err := s.guard.Medication(ctx, caregiverID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, medication.ID); err != nil {
		return err
	}
	s.events.Emit(ctx, model.EventMedicationDeleted, map[string]interface{}{
		"id":         medication.ID,
		"patient_id": medication.PatientID,
	})
	return nil
}

// Schedule lists the doses due on date (today when nil) for one patient or
// for every patient of the caregiver.
func (s *Service) Schedule(ctx context.Context, caregiverID uuid.UUID, patientID *uuid.UUID, date *model.Date) ([]*model.ScheduledDose, error) {
	day := s.clock.Today()
	if date != nil && !date.IsZero() {
		day = *date
	}

	medications, err := s.ListMedications(ctx, caregiverID, patientID)
	if err != nil {
		return nil, err
	}
	patients, err := s.patients.ListByCaregiver(ctx, caregiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	names := make(map[uuid.UUID]string, len(patients))
	for _, p := range patients {
		names[p.ID] = p.Name
	}

	return s.doses(ctx, schedule.Due(medications, day), names, day)
}

func (s *Service) doses(ctx context.Context, due []*model.Medication, names map[uuid.UUID]string, day model.Date) ([]*model.ScheduledDose, error) {
	ids := make([]uuid.UUID, 0, len(due))
	for _, m := range due {
		ids = append(ids, m.ID)
	}
	taken := map[uuid.UUID]*model.MedicationLog{}
	if len(ids) > 0 {
		logs, err := s.logs.ListForDate(ctx, ids, day)
		if err != nil {
			return nil, fmt.Errorf("failed to load medication logs: %w", err)
		}
		for _, l := range logs {
			taken[l.MedicationID] = l
		}
	}

	out := make([]*model.ScheduledDose, 0, len(due))
	for _, m := range due {
		log := taken[m.ID]
		out = append(out, &model.ScheduledDose{
			Medication:  m,
			PatientName: names[m.PatientID],
			Date:        day,
			Taken:       log != nil,
			Log:         log,
		})
	}
	return out, nil
}

// MarkAsTaken flips the taken state of the dose on date, or sets it when
// taken is given. A dose can only be marked taken on a day it is due.
func (s *Service) MarkAsTaken(ctx context.Context, caregiverID, id uuid.UUID, date *model.Date, taken *bool) (*model.AdherenceResult, error) {
	medication, _, err := s.guard.Medication(ctx, caregiverID, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	day := model.DateOf(now)
	if date != nil && !date.IsZero() {
		day = *date
	}
	at := model.TimeOfDayOf(now)

	var result *model.AdherenceResult
	switch {
	case taken != nil && !*taken:
		result, err = s.logs.Set(ctx, medication.ID, day, at, false)
	case schedule.DueOn(medication, day):
		if taken != nil {
			result, err = s.logs.Set(ctx, medication.ID, day, at, true)
		} else {
			result, err = s.logs.Toggle(ctx, medication.ID, day, at)
		}
	default:
		result, err = s.untakeOnly(ctx, medication, day, at, taken)
	}
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		state := "untaken"
		if result.Taken {
			state = "taken"
		}
		s.metrics.AdherenceChanges.WithLabelValues(state).Inc()
	}
	return result, nil
}

// untakeOnly handles a dose that is not due on day. A stale log may still be
// cleared, nothing may be added.
func (s *Service) untakeOnly(ctx context.Context, medication *model.Medication, day model.Date, at model.TimeOfDay, taken *bool) (*model.AdherenceResult, error) {
	if taken == nil {
		logs, err := s.logs.ListForDate(ctx, []uuid.UUID{medication.ID}, day)
		if err != nil {
			return nil, fmt.Errorf("failed to load medication logs: %w", err)
		}
		if len(logs) > 0 {
			return s.logs.Set(ctx, medication.ID, day, at, false)
		}
	}
	return nil, apperrors.Validation("%s is not due on %s", medication.Name, day)
}

func (s *Service) ListLogs(ctx context.Context, caregiverID, id uuid.UUID) ([]*model.MedicationLog, error) {
	medication, _, err := s.guard.Medication(ctx, caregiverID, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.logs.ListByMedication(ctx, medication.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medication logs: %w", err)
	}
	return logs, nil
}

func validateMedication(m *model.Medication) error {
	switch {
	case m.Name == "":
		return apperrors.Validation("name is required")
	case len(m.Name) > 100:
		return apperrors.Validation("name must be at most 100 characters")
	case m.Dosage == "":
		return apperrors.Validation("dosage is required")
	case m.ScheduledTime.IsZero():
		return apperrors.Validation("scheduled_time is required")
	case m.StartDate.IsZero() || m.EndDate.IsZero():
		return apperrors.Validation("start_date and end_date are required")
	case m.StartDate.After(m.EndDate):
		return apperrors.Validation("start_date must not be after end_date")
	}

	switch m.FrequencyType {
	case model.FrequencyDaily:
		m.SelectedDays = nil
	case model.FrequencyWeekly:
		if len(m.SelectedDays) == 0 {
			return apperrors.Validation("weekly medications need at least one selected day")
		}
	default:
		return apperrors.Validation("frequency_type must be Daily or Weekly")
	}
	return nil
}
