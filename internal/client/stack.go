package client

import (
	"fmt"

	"github.com/hitoshi/rxnote/internal/config"
	"github.com/hitoshi/rxnote/internal/session"
)

// NewSessionStack は設定からクライアント側スタック一式を組み立てる。
// HTTPクライアント、IDプロバイダーゲートウェイ、プロフィールストアゲートウェイを
// 配線したセッションブートストラップを返す。
//
// APIBaseURLまたはAPIPublicKeyが未設定の場合は起動時エラーを返す。
// 返されたBootstrapはStart()で解決を開始し、利用終了時は
// Bootstrap.Close()とIdentityClient.Close()の両方を呼ぶこと。
func NewSessionStack(cfg *config.Config, bootstrapCfg session.Config) (*session.Bootstrap, *IdentityClient, error) {
	api, err := New(Config{
		BaseURL: cfg.APIBaseURL,
		APIKey:  cfg.APIPublicKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build API client: %w", err)
	}

	idp := NewIdentityClient(api, IdentityClientConfig{
		RevalidateInterval: cfg.SessionRevalidateInterval,
	})
	profiles := NewProfileClient(api)

	bootstrapCfg.ResolveTimeout = cfg.ResolveTimeout
	bootstrap := session.New(idp, profiles, bootstrapCfg)

	return bootstrap, idp, nil
}
