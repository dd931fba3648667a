// Package memstore is an in-process implementation of the repository
// interfaces. It mirrors the database constraints (cascading deletes, the
// unique adherence log per day, optimistic versions) so services behave the
// same against it as against Postgres.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

type logKey struct {
	medicationID uuid.UUID
	day          model.Date
}

// Store holds every table behind one lock.
type Store struct {
	mu          sync.Mutex
	caregivers  map[uuid.UUID]*model.Caregiver
	patients    map[uuid.UUID]*model.Patient
	medications map[uuid.UUID]*model.Medication
	logs        map[logKey]*model.MedicationLog
	routines    map[uuid.UUID]*model.Routine
	memories    map[uuid.UUID]*model.MemoryRecord
	outbox      map[uuid.UUID]*model.OutboxEvent
}

func New() *Store {
	return &Store{
		caregivers:  map[uuid.UUID]*model.Caregiver{},
		patients:    map[uuid.UUID]*model.Patient{},
		medications: map[uuid.UUID]*model.Medication{},
		logs:        map[logKey]*model.MedicationLog{},
		routines:    map[uuid.UUID]*model.Routine{},
		memories:    map[uuid.UUID]*model.MemoryRecord{},
		outbox:      map[uuid.UUID]*model.OutboxEvent{},
	}
}

func (s *Store) Caregivers() repository.CaregiverRepository         { return &caregiverRepo{s} }
func (s *Store) Patients() repository.PatientRepository             { return &patientRepo{s} }
func (s *Store) Medications() repository.MedicationRepository       { return &medicationRepo{s} }
func (s *Store) MedicationLogs() repository.MedicationLogRepository { return &medicationLogRepo{s} }
func (s *Store) Routines() repository.RoutineRepository             { return &routineRepo{s} }
func (s *Store) Memories() repository.MemoryRecordRepository        { return &memoryRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository                { return &outboxRepo{s} }

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Caregivers:     s.Caregivers(),
		Patients:       s.Patients(),
		Medications:    s.Medications(),
		MedicationLogs: s.MedicationLogs(),
		Routines:       s.Routines(),
		Memories:       s.Memories(),
		Outbox:         s.Outbox(),
	}
}

// Events returns a snapshot of the outbox ordered by creation.
func (s *Store) Events() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		c := *e
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// LogCount counts adherence logs for one medication.
func (s *Store) LogCount(medicationID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.logs {
		if k.medicationID == medicationID {
			n++
		}
	}
	return n
}

func conflict(resource string) error {
	return apperrors.Conflict(fmt.Sprintf("%s was modified by another request", resource), nil)
}

func (s *Store) ownedBy(patientID, caregiverID uuid.UUID) bool {
	p, ok := s.patients[patientID]
	return ok && p.CaregiverID == caregiverID
}

// deletePatientLocked removes a patient and everything that references it.
func (s *Store) deletePatientLocked(id uuid.UUID) {
	for mid, m := range s.medications {
		if m.PatientID == id {
			s.deleteMedicationLocked(mid)
		}
	}
	for rid, r := range s.routines {
		if r.PatientID == id {
			delete(s.routines, rid)
		}
	}
	for mid, m := range s.memories {
		if m.PatientID == id {
			delete(s.memories, mid)
		}
	}
	delete(s.patients, id)
}

func (s *Store) deleteMedicationLocked(id uuid.UUID) {
	for k := range s.logs {
		if k.medicationID == id {
			delete(s.logs, k)
		}
	}
	delete(s.medications, id)
}

type caregiverRepo struct{ s *Store }

func (r *caregiverRepo) Create(_ context.Context, c *model.Caregiver) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.caregivers {
		if strings.EqualFold(existing.Email, c.Email) {
			return apperrors.Conflict("email already registered", nil)
		}
	}
	cp := *c
	r.s.caregivers[c.ID] = &cp
	return nil
}

func (r *caregiverRepo) Get(_ context.Context, id uuid.UUID) (*model.Caregiver, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.caregivers[id]
	if !ok {
		return nil, apperrors.NotFound("caregiver", nil)
	}
	cp := *c
	return &cp, nil
}

func (r *caregiverRepo) GetByEmail(_ context.Context, email string) (*model.Caregiver, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.caregivers {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("caregiver", nil)
}

type patientRepo struct{ s *Store }

func (r *patientRepo) Create(_ context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *p
	r.s.patients[p.ID] = &cp
	return nil
}

func (r *patientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return nil, apperrors.NotFound("patient", nil)
	}
	cp := *p
	return &cp, nil
}

func (r *patientRepo) GetByAccessToken(_ context.Context, token uuid.UUID) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.patients {
		if p.AccessToken == token {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("patient", nil)
}

func (r *patientRepo) Update(_ context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.patients[p.ID]
	if !ok {
		return apperrors.NotFound("patient", nil)
	}
	if stored.Version != p.Version {
		return conflict("patient")
	}
	stored.Name = p.Name
	stored.Age = p.Age
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	p.Version = stored.Version
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *patientRepo) UpdateAccessToken(_ context.Context, id uuid.UUID, token uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return apperrors.NotFound("patient", nil)
	}
	p.AccessToken = token
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *patientRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[id]; !ok {
		return apperrors.NotFound("patient", nil)
	}
	r.s.deletePatientLocked(id)
	return nil
}

func (r *patientRepo) ListByCaregiver(_ context.Context, caregiverID uuid.UUID) ([]*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.s.patientsOf(caregiverID)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *patientRepo) ListRecent(_ context.Context, caregiverID uuid.UUID, limit int) ([]*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.s.patientsOf(caregiverID)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *patientRepo) CountByCaregiver(_ context.Context, caregiverID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.patientsOf(caregiverID)), nil
}

func (s *Store) patientsOf(caregiverID uuid.UUID) []*model.Patient {
	out := []*model.Patient{}
	for _, p := range s.patients {
		if p.CaregiverID == caregiverID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

type medicationRepo struct{ s *Store }

func (r *medicationRepo) Create(_ context.Context, m *model.Medication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[m.PatientID]; !ok {
		return fmt.Errorf("failed to create medication: patient %s does not exist", m.PatientID)
	}
	cp := *m
	r.s.medications[m.ID] = &cp
	return nil
}

func (r *medicationRepo) Get(_ context.Context, id uuid.UUID) (*model.Medication, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.medications[id]
	if !ok {
		return nil, apperrors.NotFound("medication", nil)
	}
	cp := *m
	return &cp, nil
}

func (r *medicationRepo) Update(_ context.Context, m *model.Medication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.medications[m.ID]
	if !ok {
		return apperrors.NotFound("medication", nil)
	}
	if stored.Version != m.Version {
		return conflict("medication")
	}
	cp := *m
	cp.Version = stored.Version + 1
	cp.CreatedAt = stored.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	r.s.medications[m.ID] = &cp
	m.Version = cp.Version
	m.UpdatedAt = cp.UpdatedAt
	return nil
}

func (r *medicationRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.medications[id]; !ok {
		return apperrors.NotFound("medication", nil)
	}
	r.s.deleteMedicationLocked(id)
	return nil
}

func (r *medicationRepo) List(_ context.Context, filter model.MedicationFilter) ([]*model.Medication, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Medication{}
	for _, m := range r.s.medications {
		if !r.s.ownedBy(m.PatientID, filter.CaregiverID) {
			continue
		}
		if filter.PatientID != nil && m.PatientID != *filter.PatientID {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].ScheduledTime.Compare(out[j].ScheduledTime); c != 0 {
			return c < 0
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

type medicationLogRepo struct{ s *Store }

func (r *medicationLogRepo) Toggle(ctx context.Context, medicationID uuid.UUID, day model.Date, at model.TimeOfDay) (*model.AdherenceResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.medications[medicationID]; !ok {
		return nil, apperrors.NotFound("medication", nil)
	}
	key := logKey{medicationID, day}
	if existing, ok := r.s.logs[key]; ok {
		delete(r.s.logs, key)
		return r.recordLocked(&model.AdherenceResult{MedicationID: medicationID, Date: day, Taken: false, Log: existing})
	}
	log := r.insertLocked(key, at)
	return r.recordLocked(&model.AdherenceResult{MedicationID: medicationID, Date: day, Taken: true, Log: log})
}

func (r *medicationLogRepo) Set(ctx context.Context, medicationID uuid.UUID, day model.Date, at model.TimeOfDay, taken bool) (*model.AdherenceResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.medications[medicationID]; !ok {
		return nil, apperrors.NotFound("medication", nil)
	}
	key := logKey{medicationID, day}
	existing, has := r.s.logs[key]
	switch {
	case taken && has:
		cp := *existing
		return &model.AdherenceResult{MedicationID: medicationID, Date: day, Taken: true, Log: &cp}, nil
	case !taken && !has:
		return &model.AdherenceResult{MedicationID: medicationID, Date: day, Taken: false}, nil
	case taken:
		log := r.insertLocked(key, at)
		return r.recordLocked(&model.AdherenceResult{MedicationID: medicationID, Date: day, Taken: true, Log: log})
	default:
		delete(r.s.logs, key)
		return r.recordLocked(&model.AdherenceResult{MedicationID: medicationID, Date: day, Taken: false, Log: existing})
	}
}

func (r *medicationLogRepo) insertLocked(key logKey, at model.TimeOfDay) *model.MedicationLog {
	log := &model.MedicationLog{
		ID:           uuid.New(),
		MedicationID: key.medicationID,
		TakenDate:    key.day,
		TakenTime:    at,
		Status:       model.MedicationLogStatusTaken,
		CreatedAt:    time.Now().UTC(),
	}
	r.s.logs[key] = log
	cp := *log
	return &cp
}

func (r *medicationLogRepo) recordLocked(result *model.AdherenceResult) (*model.AdherenceResult, error) {
	eventType := model.EventMedicationUntaken
	if result.Taken {
		eventType = model.EventMedicationTaken
	}
	event, err := model.NewOutboxEvent(eventType, result)
	if err != nil {
		return nil, err
	}
	r.s.outbox[event.ID] = event
	return result, nil
}

func (r *medicationLogRepo) ListByMedication(_ context.Context, medicationID uuid.UUID) ([]*model.MedicationLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.MedicationLog{}
	for k, l := range r.s.logs {
		if k.medicationID == medicationID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TakenDate.After(out[j].TakenDate) })
	return out, nil
}

func (r *medicationLogRepo) ListForDate(_ context.Context, medicationIDs []uuid.UUID, day model.Date) ([]*model.MedicationLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.MedicationLog{}
	for _, id := range medicationIDs {
		if l, ok := r.s.logs[logKey{id, day}]; ok {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

type routineRepo struct{ s *Store }

func (r *routineRepo) Create(_ context.Context, rt *model.Routine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[rt.PatientID]; !ok {
		return fmt.Errorf("failed to create routine: patient %s does not exist", rt.PatientID)
	}
	cp := *rt
	r.s.routines[rt.ID] = &cp
	return nil
}

func (r *routineRepo) Get(_ context.Context, id uuid.UUID) (*model.Routine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rt, ok := r.s.routines[id]
	if !ok {
		return nil, apperrors.NotFound("routine", nil)
	}
	cp := *rt
	return &cp, nil
}

func (r *routineRepo) Update(_ context.Context, rt *model.Routine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.routines[rt.ID]
	if !ok {
		return apperrors.NotFound("routine", nil)
	}
	if stored.Version != rt.Version {
		return conflict("routine")
	}
	cp := *rt
	cp.Version = stored.Version + 1
	cp.CreatedAt = stored.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	r.s.routines[rt.ID] = &cp
	rt.Version = cp.Version
	rt.UpdatedAt = cp.UpdatedAt
	return nil
}

func (r *routineRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.routines[id]; !ok {
		return apperrors.NotFound("routine", nil)
	}
	delete(r.s.routines, id)
	return nil
}

func (r *routineRepo) List(_ context.Context, filter model.RoutineFilter) ([]*model.Routine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Routine{}
	for _, rt := range r.s.routines {
		if !r.s.ownedBy(rt.PatientID, filter.CaregiverID) {
			continue
		}
		if filter.PatientID != nil && rt.PatientID != *filter.PatientID {
			continue
		}
		cp := *rt
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].ActivityName < out[j].ActivityName
	})
	return out, nil
}

func (r *routineRepo) ToggleComplete(_ context.Context, id uuid.UUID) (*model.Routine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rt, ok := r.s.routines[id]
	if !ok {
		return nil, apperrors.NotFound("routine", nil)
	}
	rt.IsCompleted = !rt.IsCompleted
	rt.Version++
	rt.UpdatedAt = time.Now().UTC()
	cp := *rt
	return &cp, nil
}

type memoryRepo struct{ s *Store }

func (r *memoryRepo) Create(_ context.Context, m *model.MemoryRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[m.PatientID]; !ok {
		return fmt.Errorf("failed to create memory record: patient %s does not exist", m.PatientID)
	}
	cp := *m
	r.s.memories[m.ID] = &cp
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id uuid.UUID) (*model.MemoryRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.memories[id]
	if !ok {
		return nil, apperrors.NotFound("memory record", nil)
	}
	cp := *m
	return &cp, nil
}

func (r *memoryRepo) Update(_ context.Context, m *model.MemoryRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.memories[m.ID]
	if !ok {
		return apperrors.NotFound("memory record", nil)
	}
	if stored.Version != m.Version {
		return conflict("memory record")
	}
	cp := *m
	cp.Version = stored.Version + 1
	cp.CreatedAt = stored.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	r.s.memories[m.ID] = &cp
	m.Version = cp.Version
	m.UpdatedAt = cp.UpdatedAt
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.memories[id]; !ok {
		return apperrors.NotFound("memory record", nil)
	}
	delete(r.s.memories, id)
	return nil
}

func (r *memoryRepo) List(_ context.Context, filter model.MemoryFilter) ([]*model.MemoryRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.MemoryRecord{}
	for _, m := range r.s.memories {
		if !r.s.ownedBy(m.PatientID, filter.CaregiverID) {
			continue
		}
		if filter.PatientID != nil && m.PatientID != *filter.PatientID {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepo) CountByCaregiver(_ context.Context, caregiverID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, m := range r.s.memories {
		if r.s.ownedBy(m.PatientID, caregiverID) {
			n++
		}
	}
	return n, nil
}

type outboxRepo struct{ s *Store }

func (r *outboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	if e == nil || e.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	e.Status = model.OutboxStatusPending
	cp := *e
	r.s.outbox[e.ID] = &cp
	return nil
}

func (r *outboxRepo) GetPendingEventsWithLock(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	var due []*model.OutboxEvent
	for _, e := range r.s.outbox {
		if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusRetry {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		due = append(due, e)
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]*model.OutboxEvent, 0, len(due))
	for _, e := range due {
		e.Status = model.OutboxStatusProcessing
		e.UpdatedAt = now
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (r *outboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.outbox[id]
	if !ok {
		return apperrors.NotFound("outbox event", nil)
	}
	now := time.Now().UTC()
	e.Status = model.OutboxStatusProcessed
	e.ProcessedAt = &now
	e.ErrorMessage = nil
	e.UpdatedAt = now
	return nil
}

func (r *outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, errorMessage string, retryAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.outbox[id]
	if !ok {
		return apperrors.NotFound("outbox event", nil)
	}
	e.Status = model.OutboxStatusFailed
	if retryAt != nil {
		e.Status = model.OutboxStatusRetry
	}
	e.ErrorMessage = &errorMessage
	e.RetryAt = retryAt
	e.RetryCount++
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *outboxRepo) ReleaseStale(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessing && e.UpdatedAt.Before(before) {
			e.Status = model.OutboxStatusRetry
			e.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

func (r *outboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.s.outbox, id)
			n++
		}
	}
	return n, nil
}
