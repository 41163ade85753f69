package prescription

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/rxnote/internal/model"
	"github.com/hitoshi/rxnote/internal/repository"
)

// --- モック定義 ---

type mockPrescriptionRepo struct {
	findByIDFn              func(ctx context.Context, id string) (*model.Prescription, error)
	createWithMedicationsFn func(ctx context.Context, prescription *model.Prescription) error
	listByDoctorIDFn        func(ctx context.Context, doctorID string) ([]*model.Prescription, error)
	listByPatientIDFn       func(ctx context.Context, patientID string) ([]*model.Prescription, error)
	updateStatusFn          func(ctx context.Context, id string, status model.PrescriptionStatus) error
}

func (m *mockPrescriptionRepo) FindByID(ctx context.Context, id string) (*model.Prescription, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockPrescriptionRepo) CreateWithMedications(ctx context.Context, prescription *model.Prescription) error {
	if m.createWithMedicationsFn != nil {
		return m.createWithMedicationsFn(ctx, prescription)
	}
	return nil
}

func (m *mockPrescriptionRepo) ListByDoctorID(ctx context.Context, doctorID string) ([]*model.Prescription, error) {
	if m.listByDoctorIDFn != nil {
		return m.listByDoctorIDFn(ctx, doctorID)
	}
	return nil, nil
}

func (m *mockPrescriptionRepo) ListByPatientID(ctx context.Context, patientID string) ([]*model.Prescription, error) {
	if m.listByPatientIDFn != nil {
		return m.listByPatientIDFn(ctx, patientID)
	}
	return nil, nil
}

func (m *mockPrescriptionRepo) UpdateStatus(ctx context.Context, id string, status model.PrescriptionStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

type mockProfileRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.Profile, error)
	listByRoleFn func(ctx context.Context, role model.Role) ([]*model.Profile, error)
}

func (m *mockProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockProfileRepo) Insert(ctx context.Context, profile *model.Profile) error {
	return nil
}

func (m *mockProfileRepo) ListByRole(ctx context.Context, role model.Role) ([]*model.Profile, error) {
	if m.listByRoleFn != nil {
		return m.listByRoleFn(ctx, role)
	}
	return nil, nil
}

var _ repository.PrescriptionRepository = (*mockPrescriptionRepo)(nil)
var _ repository.ProfileRepository = (*mockProfileRepo)(nil)

func patientProfile(id string) *mockProfileRepo {
	return &mockProfileRepo{
		findByIDFn: func(ctx context.Context, pid string) (*model.Profile, error) {
			if pid == id {
				return &model.Profile{ID: id, Role: model.RolePatient}, nil
			}
			return nil, nil
		},
	}
}

func validInput() CreateInput {
	return CreateInput{
		PatientID: "patient-1",
		Diagnosis: "高血圧症",
		Notes:     "経過観察",
		Medications: []MedicationInput{
			{Name: "アムロジピン", Dosage: "5mg", Frequency: "1日1回", Duration: "30日分", Instructions: "朝食後"},
		},
	}
}

// --- テスト ---

func TestCreate_Valid(t *testing.T) {
	ctx := context.Background()

	var saved *model.Prescription
	repo := &mockPrescriptionRepo{
		createWithMedicationsFn: func(ctx context.Context, p *model.Prescription) error {
			saved = p
			return nil
		},
	}
	svc := NewService(repo, patientProfile("patient-1"))

	created, err := svc.Create(ctx, "doctor-1", validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if saved == nil {
		t.Fatal("prescription should be persisted")
	}
	if created.ID == "" {
		t.Error("ID should be generated")
	}
	if created.DoctorID != "doctor-1" || created.PatientID != "patient-1" {
		t.Errorf("participants = (%q, %q)", created.DoctorID, created.PatientID)
	}
	if created.Status != model.StatusActive {
		t.Errorf("initial status = %q, want active", created.Status)
	}
	if len(created.Medications) != 1 {
		t.Fatalf("medications = %d, want 1", len(created.Medications))
	}
	if created.Medications[0].PrescriptionID != created.ID {
		t.Error("medication should reference its prescription")
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&mockPrescriptionRepo{}, patientProfile("patient-1"))

	tests := []struct {
		name     string
		mutate   func(*CreateInput)
		wantCode string
	}{
		{
			"empty diagnosis",
			func(in *CreateInput) { in.Diagnosis = "   " },
			model.ErrCodeInvalidPrescription,
		},
		{
			"no medications",
			func(in *CreateInput) { in.Medications = nil },
			model.ErrCodeInvalidPrescription,
		},
		{
			"medication without name",
			func(in *CreateInput) { in.Medications[0].Name = "" },
			model.ErrCodeInvalidMedication,
		},
		{
			"medication without dosage",
			func(in *CreateInput) { in.Medications[0].Dosage = "" },
			model.ErrCodeInvalidMedication,
		},
		{
			"medication without frequency",
			func(in *CreateInput) { in.Medications[0].Frequency = "" },
			model.ErrCodeInvalidMedication,
		},
		{
			"medication without duration",
			func(in *CreateInput) { in.Medications[0].Duration = "" },
			model.ErrCodeInvalidMedication,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)

			_, err := svc.Create(ctx, "doctor-1", input)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != tt.wantCode {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestCreate_InstructionsAreOptional(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&mockPrescriptionRepo{}, patientProfile("patient-1"))

	input := validInput()
	input.Medications[0].Instructions = ""

	if _, err := svc.Create(ctx, "doctor-1", input); err != nil {
		t.Errorf("Create() error = %v, instructions should be optional", err)
	}
}

func TestCreate_UnknownPatient(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&mockPrescriptionRepo{}, &mockProfileRepo{})

	_, err := svc.Create(ctx, "doctor-1", validInput())
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePatientNotFound {
		t.Errorf("error = %v, want PATIENT_NOT_FOUND", err)
	}
}

func TestCreate_TargetMustBePatientRole(t *testing.T) {
	ctx := context.Background()
	profiles := &mockProfileRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Profile, error) {
			return &model.Profile{ID: id, Role: model.RoleDoctor}, nil
		},
	}
	svc := NewService(&mockPrescriptionRepo{}, profiles)

	_, err := svc.Create(ctx, "doctor-1", validInput())
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePatientNotFound {
		t.Errorf("error = %v, want PATIENT_NOT_FOUND for a doctor target", err)
	}
}

func TestGet_ParticipantsOnly(t *testing.T) {
	ctx := context.Background()
	stored := &model.Prescription{ID: "rx-1", DoctorID: "doctor-1", PatientID: "patient-1"}
	repo := &mockPrescriptionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Prescription, error) {
			if id == "rx-1" {
				return stored, nil
			}
			return nil, nil
		},
	}
	svc := NewService(repo, &mockProfileRepo{})

	for _, requester := range []string{"doctor-1", "patient-1"} {
		got, err := svc.Get(ctx, requester, "rx-1")
		if err != nil || got == nil {
			t.Errorf("Get(%q) = (%v, %v), want the prescription", requester, got, err)
		}
	}

	// 当事者以外には存在を開示しない。
	_, err := svc.Get(ctx, "other-doctor", "rx-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePrescriptionNotFound {
		t.Errorf("error = %v, want PRESCRIPTION_NOT_FOUND for a non-participant", err)
	}
}

func TestListForProfile_ScopesByRole(t *testing.T) {
	ctx := context.Background()

	doctorList := []*model.Prescription{{ID: "rx-d"}}
	patientList := []*model.Prescription{{ID: "rx-p"}}
	repo := &mockPrescriptionRepo{
		listByDoctorIDFn: func(ctx context.Context, doctorID string) ([]*model.Prescription, error) {
			if doctorID != "doctor-1" {
				t.Errorf("doctorID = %q", doctorID)
			}
			return doctorList, nil
		},
		listByPatientIDFn: func(ctx context.Context, patientID string) ([]*model.Prescription, error) {
			if patientID != "patient-1" {
				t.Errorf("patientID = %q", patientID)
			}
			return patientList, nil
		},
	}
	svc := NewService(repo, &mockProfileRepo{})

	got, err := svc.ListForProfile(ctx, &model.Profile{ID: "doctor-1", Role: model.RoleDoctor})
	if err != nil || len(got) != 1 || got[0].ID != "rx-d" {
		t.Errorf("doctor list = (%v, %v)", got, err)
	}

	got, err = svc.ListForProfile(ctx, &model.Profile{ID: "patient-1", Role: model.RolePatient})
	if err != nil || len(got) != 1 || got[0].ID != "rx-p" {
		t.Errorf("patient list = (%v, %v)", got, err)
	}

	if _, err := svc.ListForProfile(ctx, nil); err == nil {
		t.Error("nil profile should be rejected")
	}
}

func TestUpdateStatus_AuthoringDoctorOnly(t *testing.T) {
	ctx := context.Background()
	stored := &model.Prescription{ID: "rx-1", DoctorID: "doctor-1", PatientID: "patient-1", Status: model.StatusActive}

	var updatedTo model.PrescriptionStatus
	repo := &mockPrescriptionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Prescription, error) {
			return stored, nil
		},
		updateStatusFn: func(ctx context.Context, id string, status model.PrescriptionStatus) error {
			updatedTo = status
			return nil
		},
	}
	svc := NewService(repo, &mockProfileRepo{})

	got, err := svc.UpdateStatus(ctx, "doctor-1", "rx-1", model.StatusCompleted)
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if got.Status != model.StatusCompleted || updatedTo != model.StatusCompleted {
		t.Errorf("status = %q, persisted = %q, want completed", got.Status, updatedTo)
	}

	// 他の医師による変更は拒否する。
	_, err = svc.UpdateStatus(ctx, "doctor-2", "rx-1", model.StatusCancelled)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeForbiddenRole {
		t.Errorf("error = %v, want FORBIDDEN_ROLE", err)
	}
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&mockPrescriptionRepo{}, &mockProfileRepo{})

	_, err := svc.UpdateStatus(ctx, "doctor-1", "rx-1", "expired")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidStatus {
		t.Errorf("error = %v, want INVALID_STATUS", err)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&mockPrescriptionRepo{}, &mockProfileRepo{})

	_, err := svc.UpdateStatus(ctx, "doctor-1", "missing", model.StatusCompleted)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePrescriptionNotFound {
		t.Errorf("error = %v, want PRESCRIPTION_NOT_FOUND", err)
	}
}

func TestListPatients(t *testing.T) {
	ctx := context.Background()
	profiles := &mockProfileRepo{
		listByRoleFn: func(ctx context.Context, role model.Role) ([]*model.Profile, error) {
			if role != model.RolePatient {
				t.Errorf("role = %q, want patient", role)
			}
			return []*model.Profile{{ID: "patient-1"}, {ID: "patient-2"}}, nil
		},
	}
	svc := NewService(&mockPrescriptionRepo{}, profiles)

	patients, err := svc.ListPatients(ctx)
	if err != nil || len(patients) != 2 {
		t.Errorf("ListPatients() = (%d, %v), want 2 patients", len(patients), err)
	}
}
