package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/rxnote/internal/model"
	"github.com/hitoshi/rxnote/internal/session"
)

// revalidateTimeout は再検証1回あたりのHTTPリクエストタイムアウト。
const revalidateTimeout = 5 * time.Second

// IdentityClientConfig はIdentityClientの設定。
type IdentityClientConfig struct {
	// RevalidateInterval はサーバーセッションを定期的に再検証する間隔。
	// サーバー側でセッションが失効した場合、ユーザー操作を待たずに
	// SIGNED_OUTイベントを配送するために使う。0の場合は再検証を行わない。
	RevalidateInterval time.Duration
}

// IdentityClient はIDプロバイダーゲートウェイのHTTP実装。
// サインイン・サインアウトの成功と定期的なセッション再検証の結果を
// ローカルの認証状態変更イベントとして購読者へ配送する。
type IdentityClient struct {
	api *Client

	mu       sync.Mutex
	handlers map[uint64]func(session.AuthEvent)
	nextID   uint64
	signedIn bool

	revalidateInterval time.Duration
	stopOnce           sync.Once
	stopCh             chan struct{}
}

// NewIdentityClient はIdentityClientを生成する。
// RevalidateIntervalが正の場合は再検証ループを開始する。
// ループはClose()で停止する。
func NewIdentityClient(api *Client, cfg IdentityClientConfig) *IdentityClient {
	c := &IdentityClient{
		api:                api,
		handlers:           make(map[uint64]func(session.AuthEvent)),
		revalidateInterval: cfg.RevalidateInterval,
		stopCh:             make(chan struct{}),
	}

	if c.revalidateInterval > 0 {
		go c.revalidateLoop()
	}

	return c
}

// Close はセッション再検証ループを停止する。冪等。
func (c *IdentityClient) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

type sessionResponse struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type signUpResponse struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	SignedIn  bool   `json:"signed_in"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GetSession は現在のセッションのIdentityを返す。
// セッションが存在しない・失効している場合は(nil, nil)を返す。
func (c *IdentityClient) GetSession(ctx context.Context) (*model.Identity, error) {
	var resp sessionResponse
	status, err := c.api.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, &resp)
	if err != nil {
		if status == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, err
	}
	return &model.Identity{ID: resp.AccountID, Email: resp.Email}, nil
}

// OnAuthStateChange は認証状態変更イベントの購読を開始する。
// 返されるSubscriptionのUnsubscribeは冪等。
func (c *IdentityClient) OnAuthStateChange(handler func(session.AuthEvent)) session.Subscription {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[id] = handler
	c.mu.Unlock()

	return &subscription{client: c, id: id}
}

// SignUp はアカウントを作成する。
// サーバーがセッションも発行した場合はSIGNED_INイベントを配送する。
func (c *IdentityClient) SignUp(ctx context.Context, email, password string, attrs session.SignUpAttributes) (*session.AuthResult, error) {
	var resp signUpResponse
	_, err := c.api.doJSON(ctx, http.MethodPost, "/api/auth/signup", signUpRequest{
		Email:    email,
		Password: password,
		FullName: attrs.FullName,
		Role:     string(attrs.Role),
	}, &resp)
	if err != nil {
		return nil, err
	}

	identity := &model.Identity{ID: resp.AccountID, Email: resp.Email}
	if resp.SignedIn {
		c.emit(session.AuthEvent{Type: session.EventSignedIn, Identity: identity})
	}
	return &session.AuthResult{Identity: identity, SignedIn: resp.SignedIn}, nil
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
// 成功時はSIGNED_INイベントを配送する。
func (c *IdentityClient) SignInWithPassword(ctx context.Context, email, password string) (*session.AuthResult, error) {
	var resp sessionResponse
	_, err := c.api.doJSON(ctx, http.MethodPost, "/api/auth/login", signInRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}

	identity := &model.Identity{ID: resp.AccountID, Email: resp.Email}
	c.emit(session.AuthEvent{Type: session.EventSignedIn, Identity: identity})
	return &session.AuthResult{Identity: identity, SignedIn: true}, nil
}

// SignOut は現在のセッションを破棄し、SIGNED_OUTイベントを配送する。
// サーバー側で既にセッションが失効している場合も成功として扱う。
func (c *IdentityClient) SignOut(ctx context.Context) error {
	status, err := c.api.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	if err != nil && status != http.StatusUnauthorized {
		return err
	}

	c.emit(session.AuthEvent{Type: session.EventSignedOut})
	return nil
}

// revalidateLoop はClose()されるまで定期的にセッションを再検証する。
func (c *IdentityClient) revalidateLoop() {
	ticker := time.NewTicker(c.revalidateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.revalidate()
		}
	}
}

// revalidate はサーバーへ現在のセッションを照会し、ローカルの認証状態と
// 食い違っている場合のみイベントを配送する。
// 一時的なネットワークエラーでは状態を変更しない。
func (c *IdentityClient) revalidate() {
	ctx, cancel := context.WithTimeout(context.Background(), revalidateTimeout)
	defer cancel()

	identity, err := c.GetSession(ctx)
	if err != nil {
		return
	}

	c.mu.Lock()
	signedIn := c.signedIn
	c.mu.Unlock()

	switch {
	case identity == nil && signedIn:
		// サーバー側でセッションが失効した
		c.emit(session.AuthEvent{Type: session.EventSignedOut})
	case identity != nil && !signedIn:
		// 別経路で確立されたセッションを発見した
		c.emit(session.AuthEvent{Type: session.EventSignedIn, Identity: identity})
	}
}

// emit は登録済みの全ハンドラーへイベントを配送し、
// 最後に観測した認証状態を記録する。
func (c *IdentityClient) emit(ev session.AuthEvent) {
	c.mu.Lock()
	c.signedIn = ev.Type == session.EventSignedIn
	handlers := make([]func(session.AuthEvent), 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

type subscription struct {
	client *IdentityClient
	id     uint64
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.client.mu.Lock()
		delete(s.client.handlers, s.id)
		s.client.mu.Unlock()
	})
}

var _ session.IdentityProvider = (*IdentityClient)(nil)
var _ session.Subscription = (*subscription)(nil)
