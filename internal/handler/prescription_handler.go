package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/rxnote/internal/middleware"
	"github.com/hitoshi/rxnote/internal/model"
	"github.com/hitoshi/rxnote/internal/prescription"
)

// PrescriptionServiceInterface は処方箋ハンドラーが必要とするサービスインターフェース。
type PrescriptionServiceInterface interface {
	// Create は医師が患者宛の処方箋を作成する。
	Create(ctx context.Context, doctorID string, input prescription.CreateInput) (*model.Prescription, error)
	// Get は処方箋を取得する。当事者以外には存在を開示しない。
	Get(ctx context.Context, requesterID, id string) (*model.Prescription, error)
	// ListForProfile は閲覧者のロールに応じた処方箋一覧を返す。
	ListForProfile(ctx context.Context, profile *model.Profile) ([]*model.Prescription, error)
	// UpdateStatus は処方箋の状態を更新する。
	UpdateStatus(ctx context.Context, doctorID, id string, status model.PrescriptionStatus) (*model.Prescription, error)
	// ListPatients は処方箋作成フォーム用の患者一覧を返す。
	ListPatients(ctx context.Context) ([]*model.Profile, error)
}

// PrescriptionHandler は処方箋管理のHTTPハンドラー。
type PrescriptionHandler struct {
	service PrescriptionServiceInterface
}

// NewPrescriptionHandler はPrescriptionHandlerを生成する。
func NewPrescriptionHandler(service PrescriptionServiceInterface) *PrescriptionHandler {
	return &PrescriptionHandler{service: service}
}

// medicationRequest は処方箋作成リクエストの医薬品。
type medicationRequest struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

// createPrescriptionRequest は処方箋作成リクエストのボディ。
type createPrescriptionRequest struct {
	PatientID   string              `json:"patient_id"`
	Diagnosis   string              `json:"diagnosis"`
	Notes       string              `json:"notes"`
	Medications []medicationRequest `json:"medications"`
}

// updateStatusRequest は処方箋状態更新リクエストのボディ。
type updateStatusRequest struct {
	Status string `json:"status"`
}

// medicationResponse は医薬品のAPIレスポンス。
type medicationResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

// prescriptionResponse は処方箋のAPIレスポンス。
type prescriptionResponse struct {
	ID          string               `json:"id"`
	DoctorID    string               `json:"doctor_id"`
	PatientID   string               `json:"patient_id"`
	Diagnosis   string               `json:"diagnosis"`
	Notes       string               `json:"notes"`
	Status      string               `json:"status"`
	Medications []medicationResponse `json:"medications"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// CreatePrescription は処方箋を作成する。医師専用。
// POST /api/prescriptions
func (h *PrescriptionHandler) CreatePrescription(w http.ResponseWriter, r *http.Request) {
	profile, err := middleware.ProfileFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createPrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	input := prescription.CreateInput{
		PatientID: req.PatientID,
		Diagnosis: req.Diagnosis,
		Notes:     req.Notes,
	}
	for _, med := range req.Medications {
		input.Medications = append(input.Medications, prescription.MedicationInput{
			Name:         med.Name,
			Dosage:       med.Dosage,
			Frequency:    med.Frequency,
			Duration:     med.Duration,
			Instructions: med.Instructions,
		})
	}

	created, err := h.service.Create(r.Context(), profile.ID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPrescriptionResponse(created))
}

// ListPrescriptions は閲覧者のロールに応じた処方箋一覧を返す。
// 医師は自身が作成した処方箋、患者は自身宛の処方箋のみ。
// GET /api/prescriptions
func (h *PrescriptionHandler) ListPrescriptions(w http.ResponseWriter, r *http.Request) {
	profile, err := middleware.ProfileFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	list, err := h.service.ListForProfile(r.Context(), profile)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]prescriptionResponse, 0, len(list))
	for _, p := range list {
		responses = append(responses, toPrescriptionResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// GetPrescription は処方箋詳細を取得する。当事者のみ閲覧できる。
// GET /api/prescriptions/:id
func (h *PrescriptionHandler) GetPrescription(w http.ResponseWriter, r *http.Request) {
	profile, err := middleware.ProfileFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	id := chi.URLParam(r, "id")

	found, err := h.service.Get(r.Context(), profile.ID, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPrescriptionResponse(found))
}

// UpdatePrescriptionStatus は処方箋の状態を更新する。処方した医師専用。
// PATCH /api/prescriptions/:id/status
func (h *PrescriptionHandler) UpdatePrescriptionStatus(w http.ResponseWriter, r *http.Request) {
	profile, err := middleware.ProfileFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.UpdateStatus(r.Context(), profile.ID, id, model.PrescriptionStatus(req.Status))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPrescriptionResponse(updated))
}

// ListPatients は処方箋作成フォーム用の患者一覧を返す。医師専用。
// GET /api/patients
func (h *PrescriptionHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.service.ListPatients(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]profileResponse, 0, len(patients))
	for _, p := range patients {
		responses = append(responses, toProfileResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// toPrescriptionResponse はmodel.PrescriptionからAPIレスポンスに変換する。
func toPrescriptionResponse(p *model.Prescription) prescriptionResponse {
	medications := make([]medicationResponse, 0, len(p.Medications))
	for _, med := range p.Medications {
		medications = append(medications, medicationResponse{
			ID:           med.ID,
			Name:         med.Name,
			Dosage:       med.Dosage,
			Frequency:    med.Frequency,
			Duration:     med.Duration,
			Instructions: med.Instructions,
		})
	}
	return prescriptionResponse{
		ID:          p.ID,
		DoctorID:    p.DoctorID,
		PatientID:   p.PatientID,
		Diagnosis:   p.Diagnosis,
		Notes:       p.Notes,
		Status:      string(p.Status),
		Medications: medications,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
