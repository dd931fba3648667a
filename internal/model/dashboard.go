package model

// Dashboard is the caregiver's "today" overview.
type Dashboard struct {
	Date                Date             `json:"date"`
	TotalPatients       int              `json:"total_patients"`
	TotalMemories       int              `json:"total_memories"`
	RecentPatients      []*Patient       `json:"recent_patients"`
	Patients            []*Patient       `json:"patients"`
	SelectedPatient     *Patient         `json:"selected_patient,omitempty"`
	UpcomingMedications []*ScheduledDose `json:"upcoming_medications"`
	UpcomingRoutines    []*Routine       `json:"upcoming_routines"`
	DueToday            int              `json:"due_today"`
	TakenToday          int              `json:"taken_today"`
}

// PatientDashboard is everything recorded for one patient.
type PatientDashboard struct {
	Patient     *Patient         `json:"patient"`
	PatientName string           `json:"patient_name"`
	Medications []*Medication    `json:"medications"`
	Today       []*ScheduledDose `json:"today"`
	Routines    []*Routine       `json:"routines"`
	Memories    []*MemoryRecord  `json:"memories"`
}
