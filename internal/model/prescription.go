package model

import "time"

// PrescriptionStatus は処方箋の状態を表す。
type PrescriptionStatus string

const (
	// StatusActive は有効な処方箋。
	StatusActive PrescriptionStatus = "active"
	// StatusCompleted は治療完了した処方箋。
	StatusCompleted PrescriptionStatus = "completed"
	// StatusCancelled は取り消された処方箋。
	StatusCancelled PrescriptionStatus = "cancelled"
)

// IsValid は状態が定義済みの値かどうかを返す。
func (s PrescriptionStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Prescription は医師が患者に発行する処方箋を表す。
// 医師1名・患者1名に紐づき、観測されたフローでは削除されない。
type Prescription struct {
	ID          string
	DoctorID    string
	PatientID   string
	Diagnosis   string
	Notes       string
	Status      PrescriptionStatus
	Medications []Medication
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Medication は処方箋に含まれる医薬品を表す。
// ちょうど1つの処方箋に属する。
type Medication struct {
	ID             string
	PrescriptionID string
	Name           string
	Dosage         string
	Frequency      string
	Duration       string
	Instructions   string
	CreatedAt      time.Time
}
