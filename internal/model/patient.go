package model

import (
	"github.com/google/uuid"
)

type Patient struct {
	Base
	CaregiverID uuid.UUID `db:"caregiver_id" json:"caregiver_id"`
	Name        string    `db:"name" json:"name"`
	Age         int       `db:"age" json:"age"`
	AccessToken uuid.UUID `db:"access_token" json:"access_token"`
	Version     int       `db:"version" json:"version"`
}

type CreatePatientRequest struct {
	Name string `json:"name" binding:"required,max=100"`
	Age  int    `json:"age" binding:"min=0,max=150"`
}

type UpdatePatientRequest struct {
	Name    *string `json:"name" binding:"omitempty,max=100"`
	Age     *int    `json:"age" binding:"omitempty,min=0,max=150"`
	Version *int    `json:"version"`
}
