package model

import (
	"time"

	"github.com/google/uuid"
)

type Routine struct {
	Base
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	ActivityName string    `db:"activity_name" json:"activity_name"`
	ScheduledAt  time.Time `db:"scheduled_at" json:"scheduled_at"`
	IsCompleted  bool      `db:"is_completed" json:"is_completed"`
	Version      int       `db:"version" json:"version"`
}

type CreateRoutineRequest struct {
	PatientID    uuid.UUID `json:"patient_id" binding:"required"`
	ActivityName string    `json:"activity_name" binding:"required,max=200"`
	ScheduledAt  time.Time `json:"scheduled_at" binding:"required"`
	IsCompleted  bool      `json:"is_completed"`
}

type UpdateRoutineRequest struct {
	PatientID    *uuid.UUID `json:"patient_id"`
	ActivityName *string    `json:"activity_name" binding:"omitempty,max=200"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
	IsCompleted  *bool      `json:"is_completed"`
	Version      *int       `json:"version"`
}

type RoutineFilter struct {
	CaregiverID uuid.UUID
	PatientID   *uuid.UUID
}
