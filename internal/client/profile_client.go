package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/rxnote/internal/model"
	"github.com/hitoshi/rxnote/internal/session"
)

// ProfileClient はプロフィールストアゲートウェイのHTTP実装。
type ProfileClient struct {
	api *Client
}

// NewProfileClient はProfileClientを生成する。
func NewProfileClient(api *Client) *ProfileClient {
	return &ProfileClient{api: api}
}

type profileResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type insertProfileRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// GetByID は指定IDのプロフィールを返す。見つからない場合は(nil, nil)。
func (c *ProfileClient) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	var resp profileResponse
	_, err := c.api.doJSON(ctx, http.MethodGet, "/api/profiles/"+id, nil, &resp)
	if err != nil {
		if isStatus(err, model.ErrCodeProfileNotFound) {
			return nil, nil
		}
		return nil, err
	}

	role := model.Role(resp.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("サーバーが未知のロールを返しました: %s", resp.Role)
	}

	return &model.Profile{
		ID:        resp.ID,
		Email:     resp.Email,
		FullName:  resp.FullName,
		Role:      role,
		CreatedAt: resp.CreatedAt,
		UpdatedAt: resp.UpdatedAt,
	}, nil
}

// Insert は認証済みアカウントのプロフィールを作成する。
// 既に存在する場合はPROFILE_ALREADY_EXISTSのAPIErrorをそのまま返す。
// 既存フィールドの上書きは行わない。
func (c *ProfileClient) Insert(ctx context.Context, profile *model.Profile) error {
	_, err := c.api.doJSON(ctx, http.MethodPost, "/api/profiles", insertProfileRequest{
		Email:    profile.Email,
		FullName: profile.FullName,
		Role:     string(profile.Role),
	}, nil)
	return err
}

var _ session.ProfileStore = (*ProfileClient)(nil)
