// Package prescription は処方箋のビジネスロジックを提供する。
package prescription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/rxnote/internal/model"
	"github.com/hitoshi/rxnote/internal/repository"
)

// Service は処方箋の作成・取得・状態管理を行う。
type Service struct {
	prescriptionRepo repository.PrescriptionRepository
	profileRepo      repository.ProfileRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(prescriptionRepo repository.PrescriptionRepository, profileRepo repository.ProfileRepository) *Service {
	return &Service{
		prescriptionRepo: prescriptionRepo,
		profileRepo:      profileRepo,
	}
}

// MedicationInput は処方箋作成時の医薬品入力。
type MedicationInput struct {
	Name         string
	Dosage       string
	Frequency    string
	Duration     string
	Instructions string
}

// CreateInput は処方箋作成の入力。
type CreateInput struct {
	PatientID   string
	Diagnosis   string
	Notes       string
	Medications []MedicationInput
}

// Create は医師が患者宛の処方箋を作成する。
// 診断名と1件以上の完全な医薬品が必須。患者はpatientロールの
// 既存プロフィールでなければならない。初期状態はactive。
func (s *Service) Create(ctx context.Context, doctorID string, input CreateInput) (*model.Prescription, error) {
	if strings.TrimSpace(input.Diagnosis) == "" {
		return nil, model.NewInvalidPrescriptionError("診断名は必須です")
	}
	if len(input.Medications) == 0 {
		return nil, model.NewInvalidPrescriptionError("医薬品を1件以上指定してください")
	}
	for i, med := range input.Medications {
		if err := validateMedication(i, med); err != nil {
			return nil, err
		}
	}

	patient, err := s.profileRepo.FindByID(ctx, input.PatientID)
	if err != nil {
		return nil, fmt.Errorf("患者プロフィールの取得に失敗しました: %w", err)
	}
	if patient == nil || patient.Role != model.RolePatient {
		return nil, model.NewPatientNotFoundError(input.PatientID)
	}

	now := time.Now()
	prescription := &model.Prescription{
		ID:        uuid.New().String(),
		DoctorID:  doctorID,
		PatientID: input.PatientID,
		Diagnosis: strings.TrimSpace(input.Diagnosis),
		Notes:     strings.TrimSpace(input.Notes),
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, med := range input.Medications {
		prescription.Medications = append(prescription.Medications, model.Medication{
			ID:             uuid.New().String(),
			PrescriptionID: prescription.ID,
			Name:           strings.TrimSpace(med.Name),
			Dosage:         strings.TrimSpace(med.Dosage),
			Frequency:      strings.TrimSpace(med.Frequency),
			Duration:       strings.TrimSpace(med.Duration),
			Instructions:   strings.TrimSpace(med.Instructions),
			CreatedAt:      now,
		})
	}

	if err := s.prescriptionRepo.CreateWithMedications(ctx, prescription); err != nil {
		return nil, fmt.Errorf("処方箋の作成に失敗しました: %w", err)
	}

	return prescription, nil
}

// validateMedication は医薬品入力の必須項目を検証する。
func validateMedication(index int, med MedicationInput) error {
	switch {
	case strings.TrimSpace(med.Name) == "":
		return model.NewInvalidMedicationError(index, "名称は必須です")
	case strings.TrimSpace(med.Dosage) == "":
		return model.NewInvalidMedicationError(index, "用量は必須です")
	case strings.TrimSpace(med.Frequency) == "":
		return model.NewInvalidMedicationError(index, "服用頻度は必須です")
	case strings.TrimSpace(med.Duration) == "":
		return model.NewInvalidMedicationError(index, "服用期間は必須です")
	}
	return nil
}

// Get は処方箋を取得する。
// 処方した医師と宛先の患者のみが閲覧でき、それ以外には存在を開示しない。
func (s *Service) Get(ctx context.Context, requesterID, id string) (*model.Prescription, error) {
	prescription, err := s.prescriptionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("処方箋の取得に失敗しました: %w", err)
	}
	if prescription == nil {
		return nil, model.NewPrescriptionNotFoundError(id)
	}
	if prescription.DoctorID != requesterID && prescription.PatientID != requesterID {
		// 当事者以外には未検出と同じ応答を返す。
		return nil, model.NewPrescriptionNotFoundError(id)
	}
	return prescription, nil
}

// ListForProfile は閲覧者のロールに応じた処方箋一覧を返す。
// 医師は自身が作成した処方箋、患者は自身宛の処方箋のみが対象。
func (s *Service) ListForProfile(ctx context.Context, profile *model.Profile) ([]*model.Prescription, error) {
	if profile == nil {
		return nil, model.NewUnauthorizedError()
	}

	var (
		list []*model.Prescription
		err  error
	)
	switch profile.Role {
	case model.RoleDoctor:
		list, err = s.prescriptionRepo.ListByDoctorID(ctx, profile.ID)
	case model.RolePatient:
		list, err = s.prescriptionRepo.ListByPatientID(ctx, profile.ID)
	default:
		return nil, model.NewInvalidRoleError(string(profile.Role))
	}
	if err != nil {
		return nil, fmt.Errorf("処方箋一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// UpdateStatus は処方箋の状態を更新する。処方した医師本人のみが変更できる。
func (s *Service) UpdateStatus(ctx context.Context, doctorID, id string, status model.PrescriptionStatus) (*model.Prescription, error) {
	if !status.IsValid() {
		return nil, model.NewInvalidStatusError(string(status))
	}

	prescription, err := s.prescriptionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("処方箋の取得に失敗しました: %w", err)
	}
	if prescription == nil {
		return nil, model.NewPrescriptionNotFoundError(id)
	}
	if prescription.DoctorID != doctorID {
		return nil, model.NewForbiddenRoleError(model.RoleDoctor)
	}

	if err := s.prescriptionRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("処方箋状態の更新に失敗しました: %w", err)
	}

	prescription.Status = status
	prescription.UpdatedAt = time.Now()
	return prescription, nil
}

// ListPatients は処方箋作成フォーム用の患者一覧をfull_name昇順で返す。
func (s *Service) ListPatients(ctx context.Context) ([]*model.Profile, error) {
	patients, err := s.profileRepo.ListByRole(ctx, model.RolePatient)
	if err != nil {
		return nil, fmt.Errorf("患者一覧の取得に失敗しました: %w", err)
	}
	return patients, nil
}
