package routine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository/memstore"
	"github.com/jwalitptl/caregiver-api/internal/service/access"
	"github.com/jwalitptl/caregiver-api/internal/service/event"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
	"github.com/jwalitptl/caregiver-api/pkg/metrics"
)

func setup(t *testing.T) (*Service, *memstore.Store, uuid.UUID, *model.Patient) {
	t.Helper()
	store := memstore.New()
	guard := access.NewGuard(store.Patients(), store.Medications(), store.Routines(), store.Memories())
	svc := NewService(store.Routines(), guard, event.NewEventService(store.Outbox()), metrics.New("test", prometheus.NewRegistry()))

	caregiver := uuid.New()
	patient := &model.Patient{Base: model.NewBase(time.Now()), CaregiverID: caregiver, Name: "Yousef", AccessToken: uuid.New(), Version: 1}
	require.NoError(t, store.Patients().Create(context.Background(), patient))
	return svc, store, caregiver, patient
}

func TestToggleCompleteFlipsOnlyCompletion(t *testing.T) {
	ctx := context.Background()
	svc, store, caregiver, patient := setup(t)

	at := time.Date(2024, time.March, 6, 16, 30, 0, 0, time.UTC)
	created, err := svc.CreateRoutine(ctx, caregiver, &model.CreateRoutineRequest{
		PatientID: patient.ID, ActivityName: "Evening walk", ScheduledAt: at,
	})
	require.NoError(t, err)
	assert.False(t, created.IsCompleted)

	toggled, err := svc.ToggleComplete(ctx, caregiver, created.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsCompleted)
	assert.Equal(t, created.ActivityName, toggled.ActivityName)
	assert.True(t, created.ScheduledAt.Equal(toggled.ScheduledAt))
	assert.Equal(t, created.PatientID, toggled.PatientID)

	again, err := svc.ToggleComplete(ctx, caregiver, created.ID)
	require.NoError(t, err)
	assert.False(t, again.IsCompleted)

	toggles := 0
	for _, e := range store.Events() {
		if e.EventType == model.EventRoutineToggled {
			toggles++
		}
	}
	assert.Equal(t, 2, toggles)
}

func TestRoutineOwnership(t *testing.T) {
	ctx := context.Background()
	svc, _, caregiver, patient := setup(t)
	stranger := uuid.New()

	created, err := svc.CreateRoutine(ctx, caregiver, &model.CreateRoutineRequest{
		PatientID: patient.ID, ActivityName: "Breakfast", ScheduledAt: time.Now(),
	})
	require.NoError(t, err)

	_, err = svc.ToggleComplete(ctx, stranger, created.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = svc.GetRoutine(ctx, stranger, created.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	list, err := svc.ListRoutines(ctx, stranger, nil)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = svc.ListRoutines(ctx, caregiver, &patient.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.ToggleComplete(ctx, caregiver, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestUpdateAndDeleteRoutine(t *testing.T) {
	ctx := context.Background()
	svc, _, caregiver, patient := setup(t)

	created, err := svc.CreateRoutine(ctx, caregiver, &model.CreateRoutineRequest{
		PatientID: patient.ID, ActivityName: "Lunch", ScheduledAt: time.Now(),
	})
	require.NoError(t, err)

	empty := ""
	_, err = svc.UpdateRoutine(ctx, caregiver, created.ID, &model.UpdateRoutineRequest{ActivityName: &empty})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	name := "Late lunch"
	updated, err := svc.UpdateRoutine(ctx, caregiver, created.ID, &model.UpdateRoutineRequest{ActivityName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Late lunch", updated.ActivityName)
	assert.Equal(t, 2, updated.Version)

	require.NoError(t, svc.DeleteRoutine(ctx, caregiver, created.ID))
	_, err = svc.GetRoutine(ctx, caregiver, created.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
