package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type FrequencyType string

const (
	FrequencyDaily  FrequencyType = "Daily"
	FrequencyWeekly FrequencyType = "Weekly"
)

// NormalizeFrequency maps an empty value to Daily and fixes the case of known values.
func NormalizeFrequency(s string) FrequencyType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "daily":
		return FrequencyDaily
	case "weekly":
		return FrequencyWeekly
	default:
		return FrequencyType(s)
	}
}

type Medication struct {
	Base
	PatientID     uuid.UUID     `db:"patient_id" json:"patient_id"`
	Name          string        `db:"name" json:"name"`
	Dosage        string        `db:"dosage" json:"dosage"`
	FrequencyType FrequencyType `db:"frequency_type" json:"frequency_type"`
	SelectedDays  Weekdays      `db:"selected_days" json:"selected_days"`
	ScheduledTime TimeOfDay     `db:"scheduled_time" json:"scheduled_time"`
	StartDate     Date          `db:"start_date" json:"start_date"`
	EndDate       Date          `db:"end_date" json:"end_date"`
	Version       int           `db:"version" json:"version"`
}

type CreateMedicationRequest struct {
	PatientID     uuid.UUID `json:"patient_id" binding:"required"`
	Name          string    `json:"name" binding:"required,max=100"`
	Dosage        string    `json:"dosage" binding:"required,max=100"`
	FrequencyType string    `json:"frequency_type" binding:"omitempty,frequency"`
	SelectedDays  Weekdays  `json:"selected_days"`
	ScheduledTime TimeOfDay `json:"scheduled_time"`
	StartDate     Date      `json:"start_date"`
	EndDate       Date      `json:"end_date"`
}

type UpdateMedicationRequest struct {
	PatientID     *uuid.UUID `json:"patient_id"`
	Name          *string    `json:"name" binding:"omitempty,max=100"`
	Dosage        *string    `json:"dosage" binding:"omitempty,max=100"`
	FrequencyType *string    `json:"frequency_type" binding:"omitempty,frequency"`
	SelectedDays  *Weekdays  `json:"selected_days"`
	ScheduledTime *TimeOfDay `json:"scheduled_time"`
	StartDate     *Date      `json:"start_date"`
	EndDate       *Date      `json:"end_date"`
	Version       *int       `json:"version"`
}

// MedicationFilter scopes list queries. CaregiverID is always set by the service.
type MedicationFilter struct {
	CaregiverID uuid.UUID
	PatientID   *uuid.UUID
}

const MedicationLogStatusTaken = "Taken"

type MedicationLog struct {
	ID           uuid.UUID `db:"id" json:"id"`
	MedicationID uuid.UUID `db:"medication_id" json:"medication_id"`
	TakenDate    Date      `db:"taken_date" json:"taken_date"`
	TakenTime    TimeOfDay `db:"taken_time" json:"taken_time"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// AdherenceResult is the state of a (medication, date) pair after a toggle or set.
type AdherenceResult struct {
	MedicationID uuid.UUID      `json:"medication_id"`
	Date         Date           `json:"date"`
	Taken        bool           `json:"taken"`
	Log          *MedicationLog `json:"log,omitempty"`
}

type MarkAsTakenRequest struct {
	Taken *bool `json:"taken"`
}

// ScheduledDose is one due medication on a given day.
type ScheduledDose struct {
	Medication  *Medication    `json:"medication"`
	PatientName string         `json:"patient_name"`
	Date        Date           `json:"date"`
	Taken       bool           `json:"taken"`
	Log         *MedicationLog `json:"log,omitempty"`
}
