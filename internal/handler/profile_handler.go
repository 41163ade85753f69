package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/rxnote/internal/middleware"
	"github.com/hitoshi/rxnote/internal/model"
)

// ProfileStoreInterface はプロフィールハンドラーが必要とするストアインターフェース。
// repository.ProfileRepositoryを直接変更せず、最小限のインターフェースとして定義する。
type ProfileStoreInterface interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)
	// Insert はプロフィールを作成する。重複時はPROFILE_ALREADY_EXISTSを返す。
	Insert(ctx context.Context, profile *model.Profile) error
}

// ProfileHandler はプロフィール管理のHTTPハンドラー。
type ProfileHandler struct {
	store ProfileStoreInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(store ProfileStoreInterface) *ProfileHandler {
	return &ProfileHandler{store: store}
}

// createProfileRequest はプロフィール作成リクエストのボディ。
// プロフィールIDは認証済みアカウントIDが使われるため、ボディには含まれない。
type createProfileRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// profileResponse はプロフィール情報のAPIレスポンス。
type profileResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetProfile はプロフィールを取得する。
// 自分自身のプロフィールは常に取得でき、他人のプロフィールは
// 医師ロールのみが取得できる。権限のない対象には存在を開示しない。
// GET /api/profiles/:id
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	profileID := chi.URLParam(r, "id")

	if profileID != accountID {
		requester, err := h.store.FindByID(r.Context(), accountID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if requester == nil || requester.Role != model.RoleDoctor {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewProfileNotFoundError(profileID))
			return
		}
	}

	profile, err := h.store.FindByID(r.Context(), profileID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if profile == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProfileNotFoundError(profileID))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponse(profile))
}

// CreateProfile は認証済みアカウントのプロフィールを作成する。
// 初回サインイン時の遅延作成で使用され、既存プロフィールは上書きしない。
// POST /api/profiles
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	role := model.Role(req.Role)
	if role == "" {
		role = model.RolePatient
	}
	if !role.IsValid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRoleError(req.Role))
		return
	}

	now := time.Now()
	profile := &model.Profile{
		ID:        accountID,
		Email:     req.Email,
		FullName:  req.FullName,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.store.Insert(r.Context(), profile); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toProfileResponse(profile))
}

// toProfileResponse はmodel.ProfileからAPIレスポンスに変換する。
func toProfileResponse(profile *model.Profile) profileResponse {
	return profileResponse{
		ID:        profile.ID,
		Email:     profile.Email,
		FullName:  profile.FullName,
		Role:      string(profile.Role),
		CreatedAt: profile.CreatedAt,
		UpdatedAt: profile.UpdatedAt,
	}
}
