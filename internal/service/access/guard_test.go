package access

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository/memstore"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

func seedPatient(t *testing.T, store *memstore.Store, caregiverID uuid.UUID) *model.Patient {
	t.Helper()
	p := &model.Patient{Base: model.NewBase(time.Now()), CaregiverID: caregiverID, Name: "Amal", AccessToken: uuid.New(), Version: 1}
	require.NoError(t, store.Patients().Create(context.Background(), p))
	return p
}

func TestGuard(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	guard := NewGuard(store.Patients(), store.Medications(), store.Routines(), store.Memories())

	owner, other := uuid.New(), uuid.New()
	patient := seedPatient(t, store, owner)

	routine := &model.Routine{Base: model.NewBase(time.Now()), PatientID: patient.ID, ActivityName: "Walk", ScheduledAt: time.Now(), Version: 1}
	require.NoError(t, store.Routines().Create(ctx, routine))

	t.Run("owner can load", func(t *testing.T) {
		got, err := guard.Routine(ctx, owner, routine.ID)
		require.NoError(t, err)
		assert.Equal(t, routine.ID, got.ID)
	})

	t.Run("other caregiver is forbidden", func(t *testing.T) {
		_, err := guard.Routine(ctx, other, routine.ID)
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

		_, err = guard.Patient(ctx, other, patient.ID)
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	})

	t.Run("missing record is not found", func(t *testing.T) {
		_, err := guard.Routine(ctx, owner, uuid.New())
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

		_, _, err = guard.Medication(ctx, owner, uuid.New())
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

		_, err = guard.Memory(ctx, owner, uuid.New())
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("target patient", func(t *testing.T) {
		_, err := guard.TargetPatient(ctx, owner, uuid.Nil)
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

		_, err = guard.TargetPatient(ctx, owner, uuid.New())
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

		_, err = guard.TargetPatient(ctx, other, patient.ID)
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	})
}
