package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/rxnote/internal/middleware"
	"github.com/hitoshi/rxnote/internal/model"
	"github.com/hitoshi/rxnote/internal/prescription"
)

// --- モック定義 ---

type mockPrescriptionService struct {
	createFn         func(ctx context.Context, doctorID string, input prescription.CreateInput) (*model.Prescription, error)
	getFn            func(ctx context.Context, requesterID, id string) (*model.Prescription, error)
	listForProfileFn func(ctx context.Context, profile *model.Profile) ([]*model.Prescription, error)
	updateStatusFn   func(ctx context.Context, doctorID, id string, status model.PrescriptionStatus) (*model.Prescription, error)
	listPatientsFn   func(ctx context.Context) ([]*model.Profile, error)
}

var _ PrescriptionServiceInterface = (*mockPrescriptionService)(nil)

func (m *mockPrescriptionService) Create(ctx context.Context, doctorID string, input prescription.CreateInput) (*model.Prescription, error) {
	if m.createFn != nil {
		return m.createFn(ctx, doctorID, input)
	}
	return nil, nil
}

func (m *mockPrescriptionService) Get(ctx context.Context, requesterID, id string) (*model.Prescription, error) {
	if m.getFn != nil {
		return m.getFn(ctx, requesterID, id)
	}
	return nil, nil
}

func (m *mockPrescriptionService) ListForProfile(ctx context.Context, profile *model.Profile) ([]*model.Prescription, error) {
	if m.listForProfileFn != nil {
		return m.listForProfileFn(ctx, profile)
	}
	return nil, nil
}

func (m *mockPrescriptionService) UpdateStatus(ctx context.Context, doctorID, id string, status model.PrescriptionStatus) (*model.Prescription, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, doctorID, id, status)
	}
	return nil, nil
}

func (m *mockPrescriptionService) ListPatients(ctx context.Context) ([]*model.Profile, error) {
	if m.listPatientsFn != nil {
		return m.listPatientsFn(ctx)
	}
	return nil, nil
}

// prescriptionTestRouter はURLパラメータ解決のためにchi.Routerでハンドラーをラップする。
func prescriptionTestRouter(h *PrescriptionHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/prescriptions", h.CreatePrescription)
	r.Get("/api/prescriptions", h.ListPrescriptions)
	r.Get("/api/prescriptions/{id}", h.GetPrescription)
	r.Patch("/api/prescriptions/{id}/status", h.UpdatePrescriptionStatus)
	r.Get("/api/patients", h.ListPatients)
	return r
}

func withProfile(req *http.Request, profile *model.Profile) *http.Request {
	return req.WithContext(middleware.ContextWithProfile(req.Context(), profile))
}

func doctorProfile() *model.Profile {
	return &model.Profile{ID: "acc-doctor", Email: "doctor@example.com", Role: model.RoleDoctor}
}

// --- テスト ---

func TestPrescriptionHandler_Create_Returns201(t *testing.T) {
	svc := &mockPrescriptionService{
		createFn: func(ctx context.Context, doctorID string, input prescription.CreateInput) (*model.Prescription, error) {
			if doctorID != "acc-doctor" {
				t.Errorf("doctorID = %q, want %q", doctorID, "acc-doctor")
			}
			if input.PatientID != "acc-patient" || len(input.Medications) != 1 {
				t.Errorf("input = %+v", input)
			}
			return &model.Prescription{
				ID:        "rx-1",
				DoctorID:  doctorID,
				PatientID: input.PatientID,
				Diagnosis: input.Diagnosis,
				Status:    model.StatusActive,
				Medications: []model.Medication{
					{ID: "med-1", Name: "アモキシシリン", Dosage: "250mg", Frequency: "1日3回", Duration: "7日間"},
				},
			}, nil
		},
	}
	router := prescriptionTestRouter(NewPrescriptionHandler(svc))

	body := `{
		"patient_id": "acc-patient",
		"diagnosis": "急性咽頭炎",
		"medications": [
			{"name": "アモキシシリン", "dosage": "250mg", "frequency": "1日3回", "duration": "7日間"}
		]
	}`
	req := withProfile(httptest.NewRequest(http.MethodPost, "/api/prescriptions", strings.NewReader(body)), doctorProfile())
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var got prescriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != "rx-1" || got.Status != "active" || len(got.Medications) != 1 {
		t.Errorf("response = %+v", got)
	}
}

func TestPrescriptionHandler_Create_ValidationError_Returns400(t *testing.T) {
	svc := &mockPrescriptionService{
		createFn: func(ctx context.Context, doctorID string, input prescription.CreateInput) (*model.Prescription, error) {
			return nil, model.NewInvalidPrescriptionError("診断名は必須です")
		},
	}
	router := prescriptionTestRouter(NewPrescriptionHandler(svc))

	body := `{"patient_id":"acc-patient","diagnosis":"","medications":[]}`
	req := withProfile(httptest.NewRequest(http.MethodPost, "/api/prescriptions", strings.NewReader(body)), doctorProfile())
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var got apiErrorResponse
	json.NewDecoder(resp.Body).Decode(&got)
	if got.Code != model.ErrCodeInvalidPrescription {
		t.Errorf("code = %q, want %q", got.Code, model.ErrCodeInvalidPrescription)
	}
}

func TestPrescriptionHandler_Create_UnknownPatient_Returns404(t *testing.T) {
	svc := &mockPrescriptionService{
		createFn: func(ctx context.Context, doctorID string, input prescription.CreateInput) (*model.Prescription, error) {
			return nil, model.NewPatientNotFoundError(input.PatientID)
		},
	}
	router := prescriptionTestRouter(NewPrescriptionHandler(svc))

	body := `{"patient_id":"acc-missing","diagnosis":"風邪","medications":[{"name":"葛根湯","dosage":"2.5g","frequency":"1日3回","duration":"5日間"}]}`
	req := withProfile(httptest.NewRequest(http.MethodPost, "/api/prescriptions", strings.NewReader(body)), doctorProfile())
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestPrescriptionHandler_Create_NoProfile_Returns401(t *testing.T) {
	router := prescriptionTestRouter(NewPrescriptionHandler(&mockPrescriptionService{}))

	body := `{"patient_id":"acc-patient","diagnosis":"風邪","medications":[]}`
	req := httptest.NewRequest(http.MethodPost, "/api/prescriptions", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestPrescriptionHandler_List_ReturnsPrescriptions(t *testing.T) {
	svc := &mockPrescriptionService{
		listForProfileFn: func(ctx context.Context, profile *model.Profile) ([]*model.Prescription, error) {
			if profile.ID != "acc-doctor" {
				t.Errorf("profile ID = %q, want %q", profile.ID, "acc-doctor")
			}
			return []*model.Prescription{
				{ID: "rx-1", DoctorID: "acc-doctor", PatientID: "acc-p1", Status: model.StatusActive},
				{ID: "rx-2", DoctorID: "acc-doctor", PatientID: "acc-p2", Status: model.StatusCompleted},
			}, nil
		},
	}
	router := prescriptionTestRouter(NewPrescriptionHandler(svc))

	req := withProfile(httptest.NewRequest(http.MethodGet, "/api/prescriptions", nil), doctorProfile())
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got []prescriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestPrescriptionHandler_List_Empty_ReturnsEmptyArray(t *testing.T) {
	// 処方箋がない場合もnullではなく空配列を返す。
	router := prescriptionTestRouter(NewPrescriptionHandler(&mockPrescriptionService{}))

	req := withProfile(httptest.NewRequest(http.MethodGet, "/api/prescriptions", nil), doctorProfile())
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	body := strings.TrimSpace(w.Body.String())
	if body != "[]" {
		t.Errorf("body = %q, want %q", body, "[]")
	}
}

func TestPrescriptionHandler_Get_ReturnsPrescription(t *testing.T) {
	svc := &mockPrescriptionService{
		getFn: func(ctx context.Context, requesterID, id string) (*model.Prescription, error) {
			if requesterID != "acc-doctor" || id != "rx-1" {
				t.Errorf("requesterID = %q, id = %q", requesterID, id)
			}
			return &model.Prescription{ID: "rx-1", DoctorID: "acc-doctor", PatientID: "acc-p1", Status: model.StatusActive}, nil
		},
	}
	router := prescriptionTestRouter(NewPrescriptionHandler(svc))

	req := withProfile(httptest.NewRequest(http.MethodGet, "/api/prescriptions/rx-1", nil), doctorProfile())
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got prescriptionResponse
	json.NewDecoder(resp.Body).Decode(&got)
	if got.ID != "rx-1" {
		t.Errorf("ID = %q, want %q", got.ID, "rx-1")
	}
}

func TestPrescriptionHandler_Get_NotFound_Returns404(t *testing.T) {
	svc := &mockPrescriptionService{
		getFn: func(ctx context.Context, requesterID, id string) (*model.Prescription, error) {
			return nil, model.NewPrescriptionNotFoundError(id)
		},
	}
	router := prescriptionTestRouter(NewPrescriptionHandler(svc))

	req := withProfile(httptest.NewRequest(http.MethodGet, "/api/prescriptions/rx-missing", nil), doctorProfile())
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestPrescriptionHandler_UpdateStatus_ReturnsUpdated(t *testing.T) {
	svc := &mockPrescriptionService{
		updateStatusFn: func(ctx context.Context, doctorID, id string, status model.PrescriptionStatus) (*model.Prescription, error) {
			if status != model.StatusCompleted {
				t.Errorf("status = %q, want %q", status, model.StatusCompleted)
			}
			return &model.Prescription{ID: id, DoctorID: doctorID, Status: status}, nil
		},
	}
	router := prescriptionTestRouter(NewPrescriptionHandler(svc))

	body := `{"status":"completed"}`
	req := withProfile(httptest.NewRequest(http.MethodPatch, "/api/prescriptions/rx-1/status", strings.NewReader(body)), doctorProfile())
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got prescriptionResponse
	json.NewDecoder(resp.Body).Decode(&got)
	if got.Status != "completed" {
		t.Errorf("status = %q, want %q", got.Status, "completed")
	}
}

func TestPrescriptionHandler_UpdateStatus_NotAuthor_Returns403(t *testing.T) {
	svc := &mockPrescriptionService{
		updateStatusFn: func(ctx context.Context, doctorID, id string, status model.PrescriptionStatus) (*model.Prescription, error) {
			return nil, model.NewForbiddenRoleError(model.RoleDoctor)
		},
	}
	router := prescriptionTestRouter(NewPrescriptionHandler(svc))

	body := `{"status":"cancelled"}`
	req := withProfile(httptest.NewRequest(http.MethodPatch, "/api/prescriptions/rx-1/status", strings.NewReader(body)), doctorProfile())
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestPrescriptionHandler_UpdateStatus_InvalidStatus_Returns400(t *testing.T) {
	svc := &mockPrescriptionService{
		updateStatusFn: func(ctx context.Context, doctorID, id string, status model.PrescriptionStatus) (*model.Prescription, error) {
			return nil, model.NewInvalidStatusError(string(status))
		},
	}
	router := prescriptionTestRouter(NewPrescriptionHandler(svc))

	body := `{"status":"paused"}`
	req := withProfile(httptest.NewRequest(http.MethodPatch, "/api/prescriptions/rx-1/status", strings.NewReader(body)), doctorProfile())
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestPrescriptionHandler_ListPatients_ReturnsPatients(t *testing.T) {
	svc := &mockPrescriptionService{
		listPatientsFn: func(ctx context.Context) ([]*model.Profile, error) {
			return []*model.Profile{
				{ID: "acc-p1", FullName: "佐藤一郎", Role: model.RolePatient},
				{ID: "acc-p2", FullName: "鈴木花子", Role: model.RolePatient},
			}, nil
		},
	}
	router := prescriptionTestRouter(NewPrescriptionHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got []profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 || got[0].FullName != "佐藤一郎" {
		t.Errorf("response = %+v", got)
	}
}
