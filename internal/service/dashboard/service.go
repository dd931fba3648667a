package dashboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository"
	"github.com/jwalitptl/caregiver-api/internal/schedule"
	"github.com/jwalitptl/caregiver-api/internal/service/access"
)

const (
	recentPatients = 3
	upcomingLimit  = 3
)

type Repositories struct {
	Patients       repository.PatientRepository
	Medications    repository.MedicationRepository
	MedicationLogs repository.MedicationLogRepository
	Routines       repository.RoutineRepository
	Memories       repository.MemoryRecordRepository
}

type Service struct {
	repos Repositories
	guard *access.Guard
	clock *schedule.Clock
}

func NewService(repos Repositories, guard *access.Guard, clock *schedule.Clock) *Service {
	return &Service{repos: repos, guard: guard, clock: clock}
}

// Today builds the caregiver's overview. Upcoming items belong to the
// selected patient, which defaults to the first patient by name.
func (s *Service) Today(ctx context.Context, caregiverID uuid.UUID, patientID *uuid.UUID) (*model.Dashboard, error) {
	now := s.clock.Now()
	dash := &model.Dashboard{
		Date:                model.DateOf(now),
		UpcomingMedications: []*model.ScheduledDose{},
		UpcomingRoutines:    []*model.Routine{},
	}

	var err error
	if dash.TotalPatients, err = s.repos.Patients.CountByCaregiver(ctx, caregiverID); err != nil {
		return nil, fmt.Errorf("failed to count patients: %w", err)
	}
	if dash.TotalMemories, err = s.repos.Memories.CountByCaregiver(ctx, caregiverID); err != nil {
		return nil, fmt.Errorf("failed to count memory records: %w", err)
	}
	if dash.RecentPatients, err = s.repos.Patients.ListRecent(ctx, caregiverID, recentPatients); err != nil {
		return nil, fmt.Errorf("failed to list recent patients: %w", err)
	}
	if dash.Patients, err = s.repos.Patients.ListByCaregiver(ctx, caregiverID); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	switch {
	case patientID != nil:
		if dash.SelectedPatient, err = s.guard.Patient(ctx, caregiverID, *patientID); err != nil {
			return nil, err
		}
	case len(dash.Patients) > 0:
		dash.SelectedPatient = dash.Patients[0]
	default:
		return dash, nil
	}
	selected := dash.SelectedPatient

	medications, err := s.repos.Medications.List(ctx, model.MedicationFilter{CaregiverID: caregiverID, PatientID: &selected.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	today, err := s.doses(ctx, schedule.Due(medications, dash.Date), selected.Name, dash.Date)
	if err != nil {
		return nil, err
	}
	dash.DueToday = len(today)
	for _, d := range today {
		if d.Taken {
			dash.TakenToday++
		}
	}

	upcoming := map[uuid.UUID]bool{}
	for _, m := range schedule.Upcoming(medications, now, upcomingLimit) {
		upcoming[m.ID] = true
	}
	for _, d := range today {
		if upcoming[d.Medication.ID] {
			dash.UpcomingMedications = append(dash.UpcomingMedications, d)
		}
	}

	routines, err := s.repos.Routines.List(ctx, model.RoutineFilter{CaregiverID: caregiverID, PatientID: &selected.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list routines: %w", err)
	}
	if up := schedule.UpcomingRoutines(routines, now, upcomingLimit); up != nil {
		dash.UpcomingRoutines = up
	}

	return dash, nil
}

// Patient returns everything recorded for one of the caregiver's patients.
func (s *Service) Patient(ctx context.Context, caregiverID, patientID uuid.UUID) (*model.PatientDashboard, error) {
	patient, err := s.guard.Patient(ctx, caregiverID, patientID)
	if err != nil {
		return nil, err
	}
	return s.patientView(ctx, patient)
}

// PatientByToken is the read-only view opened with a patient's access token.
func (s *Service) PatientByToken(ctx context.Context, token uuid.UUID) (*model.PatientDashboard, error) {
	patient, err := s.repos.Patients.GetByAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}
	view, err := s.patientView(ctx, patient)
	if err != nil {
		return nil, err
	}
	// the token is the credential; do not echo it back
	view.Patient.AccessToken = uuid.Nil
	return view, nil
}

func (s *Service) patientView(ctx context.Context, patient *model.Patient) (*model.PatientDashboard, error) {
	medications, err := s.repos.Medications.List(ctx, model.MedicationFilter{CaregiverID: patient.CaregiverID, PatientID: &patient.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	routines, err := s.repos.Routines.List(ctx, model.RoutineFilter{CaregiverID: patient.CaregiverID, PatientID: &patient.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list routines: %w", err)
	}
	memories, err := s.repos.Memories.List(ctx, model.MemoryFilter{CaregiverID: patient.CaregiverID, PatientID: &patient.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list memory records: %w", err)
	}

	day := s.clock.Today()
	today, err := s.doses(ctx, schedule.Due(medications, day), patient.Name, day)
	if err != nil {
		return nil, err
	}

	return &model.PatientDashboard{
		Patient:     patient,
		PatientName: patient.Name,
		Medications: medications,
		Today:       today,
		Routines:    routines,
		Memories:    memories,
	}, nil
}

func (s *Service) doses(ctx context.Context, due []*model.Medication, patientName string, day model.Date) ([]*model.ScheduledDose, error) {
	out := make([]*model.ScheduledDose, 0, len(due))
	if len(due) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, 0, len(due))
	for _, m := range due {
		ids = append(ids, m.ID)
	}
	logs, err := s.repos.MedicationLogs.ListForDate(ctx, ids, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load medication logs: %w", err)
	}
	byMedication := make(map[uuid.UUID]*model.MedicationLog, len(logs))
	for _, l := range logs {
		byMedication[l.MedicationID] = l
	}

	for _, m := range due {
		l := byMedication[m.ID]
		out = append(out, &model.ScheduledDose{
			Medication:  m,
			PatientName: patientName,
			Date:        day,
			Taken:       l != nil,
			Log:         l,
		})
	}
	return out, nil
}
