package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository/memstore"
	"github.com/jwalitptl/caregiver-api/internal/schedule"
	"github.com/jwalitptl/caregiver-api/internal/service/access"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

// Wednesday 6 March 2024, 10:00.
var testNow = time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memstore.Store
	svc       *Service
	caregiver uuid.UUID
}

func newFixture() *fixture {
	store := memstore.New()
	guard := access.NewGuard(store.Patients(), store.Medications(), store.Routines(), store.Memories())
	clock := schedule.NewClockAt(time.UTC, func() time.Time { return testNow })
	svc := NewService(Repositories{
		Patients:       store.Patients(),
		Medications:    store.Medications(),
		MedicationLogs: store.MedicationLogs(),
		Routines:       store.Routines(),
		Memories:       store.Memories(),
	}, guard, clock)
	return &fixture{store: store, svc: svc, caregiver: uuid.New()}
}

func (f *fixture) patient(t *testing.T, name string, age time.Duration) *model.Patient {
	t.Helper()
	p := &model.Patient{Base: model.NewBase(testNow.Add(-age)), CaregiverID: f.caregiver, Name: name, AccessToken: uuid.New(), Version: 1}
	require.NoError(t, f.store.Patients().Create(context.Background(), p))
	return p
}

func (f *fixture) medication(t *testing.T, p *model.Patient, name string, hour int, frequency model.FrequencyType, days ...time.Weekday) *model.Medication {
	t.Helper()
	m := &model.Medication{
		Base:          model.NewBase(testNow),
		PatientID:     p.ID,
		Name:          name,
		Dosage:        "5 ml",
		FrequencyType: frequency,
		SelectedDays:  model.Weekdays(days),
		ScheduledTime: model.NewTimeOfDay(hour, 0),
		StartDate:     model.NewDate(2024, time.March, 1),
		EndDate:       model.NewDate(2024, time.March, 31),
		Version:       1,
	}
	require.NoError(t, f.store.Medications().Create(context.Background(), m))
	return m
}

func (f *fixture) routine(t *testing.T, p *model.Patient, name string, at time.Time) {
	t.Helper()
	r := &model.Routine{Base: model.NewBase(testNow), PatientID: p.ID, ActivityName: name, ScheduledAt: at, Version: 1}
	require.NoError(t, f.store.Routines().Create(context.Background(), r))
}

func TestToday(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	zaid := f.patient(t, "Zaid", 4*time.Hour)
	adel := f.patient(t, "Adel", 3*time.Hour)
	f.patient(t, "Lina", 2*time.Hour)
	f.patient(t, "Rami", time.Hour)

	morning := f.medication(t, adel, "Morning pill", 8, model.FrequencyDaily)
	f.medication(t, adel, "Late", 14, model.FrequencyDaily)
	f.medication(t, adel, "Noon", 12, model.FrequencyDaily)
	f.medication(t, adel, "Eleven", 11, model.FrequencyDaily)
	f.medication(t, adel, "One", 13, model.FrequencyDaily)
	f.medication(t, adel, "Mondays", 15, model.FrequencyWeekly, time.Monday)
	f.medication(t, zaid, "Other patient", 11, model.FrequencyDaily)

	_, err := f.store.MedicationLogs().Set(ctx, morning.ID, model.DateOf(testNow), model.NewTimeOfDay(8, 5), true)
	require.NoError(t, err)

	f.routine(t, adel, "Breakfast", testNow.Add(-time.Hour))
	f.routine(t, adel, "Walk", testNow.Add(5*time.Hour))
	f.routine(t, adel, "Tomorrow", testNow.Add(24*time.Hour))

	dash, err := f.svc.Today(ctx, f.caregiver, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, dash.TotalPatients)
	require.Len(t, dash.RecentPatients, 3)
	assert.Equal(t, "Rami", dash.RecentPatients[0].Name)
	require.NotNil(t, dash.SelectedPatient)
	assert.Equal(t, adel.ID, dash.SelectedPatient.ID)

	assert.Equal(t, 5, dash.DueToday)
	assert.Equal(t, 1, dash.TakenToday)

	var upcoming []string
	for _, d := range dash.UpcomingMedications {
		upcoming = append(upcoming, d.Medication.Name)
	}
	assert.Equal(t, []string{"Eleven", "Noon", "One"}, upcoming)

	require.Len(t, dash.UpcomingRoutines, 1)
	assert.Equal(t, "Walk", dash.UpcomingRoutines[0].ActivityName)

	selected, err := f.svc.Today(ctx, f.caregiver, &zaid.ID)
	require.NoError(t, err)
	require.Len(t, selected.UpcomingMedications, 1)
	assert.Equal(t, "Zaid", selected.UpcomingMedications[0].PatientName)

	_, err = f.svc.Today(ctx, uuid.New(), &zaid.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestTodayWithoutPatients(t *testing.T) {
	dash, err := newFixture().svc.Today(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Zero(t, dash.TotalPatients)
	assert.Nil(t, dash.SelectedPatient)
	assert.Empty(t, dash.UpcomingMedications)
}

func TestPatientViews(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	p := f.patient(t, "Adel", time.Hour)
	f.medication(t, p, "Daily", 9, model.FrequencyDaily)
	f.medication(t, p, "Mondays", 9, model.FrequencyWeekly, time.Monday)
	f.routine(t, p, "Walk", testNow)
	require.NoError(t, f.store.Memories().Create(ctx, &model.MemoryRecord{
		Base: model.NewBase(testNow), PatientID: p.ID, Caption: "Trip", Version: 1,
	}))

	view, err := f.svc.Patient(ctx, f.caregiver, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Adel", view.PatientName)
	assert.Len(t, view.Medications, 2)
	assert.Len(t, view.Today, 1)
	assert.Len(t, view.Routines, 1)
	assert.Len(t, view.Memories, 1)

	_, err = f.svc.Patient(ctx, uuid.New(), p.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	public, err := f.svc.PatientByToken(ctx, p.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, public.Patient.ID)
	assert.Equal(t, uuid.Nil, public.Patient.AccessToken)

	_, err = f.svc.PatientByToken(ctx, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
